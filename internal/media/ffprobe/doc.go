// Package ffprobe probes audio files with ffprobe and exposes the fields the
// catalog records, chiefly the duration of downloaded tracks.
package ffprobe
