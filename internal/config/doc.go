// Package config loads, normalizes, and validates singalong configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SINGALONG_DATA_DIR. The Config type centralizes every knob the daemon and
// CLI need, and derives the on-disk layout (job lists, catalog database, model
// cache, song folders) from a single data directory.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
