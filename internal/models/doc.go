// Package models resolves and downloads the separation model files used by
// the separator, one per quality tier.
//
// Presence is decided by the file existing in the cache directory; there is
// no manifest. Downloads stream to "<file>.tmp" and rename into place, and
// concurrent downloads of the same tier are coalesced.
package models
