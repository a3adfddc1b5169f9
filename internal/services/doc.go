// Package services defines shared utilities consumed by the job managers and
// their external tool integrations.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that classify failures as
//     validation, not-found, conflict, or external tool errors so the API and
//     CLI can map them consistently.
//   - A line-oriented command Executor that streams stdout and stderr from
//     yt-dlp, ffprobe, and the separator, and that tests replace with stubs.
//
// Tool-specific clients live in subpackages (ytdlp, separator).
package services
