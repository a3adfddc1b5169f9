// Package ytdlp mediates access to the yt-dlp CLI used for acquisitions.
//
// It builds the probe and download command lines, parses --newline progress
// output, classifies failures into typed errors carrying the stderr tail, and
// optionally installs the standalone yt-dlp release into the data directory
// when no binary is reachable.
//
// Prefer this package over ad-hoc exec.Command usage when talking to yt-dlp so
// timeouts and progress reporting stay consistent.
package ytdlp
