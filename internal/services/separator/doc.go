// Package separator runs the external stem separation program and decodes
// its JSON-lines progress protocol.
//
// The program prints one JSON object per stdout line: progress updates,
// an informational "starting" message, a final "success" message naming the
// instrumental and vocal stems, or an error object. Anything else on stdout
// is ignored; stderr is kept as a bounded tail for failure reports.
package separator
