// Package textutil provides text helpers shared by the job managers: Unicode
// normalization of user-facing titles, newline cleanup for lyric payloads, and
// a bounded tail buffer for capturing the end of subprocess stderr.
package textutil
