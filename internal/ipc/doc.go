// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships
// the matching client used by the CLI.
//
// Request and response types alias the HTTP API DTOs so the CLI renders
// the same shapes a browser client receives. Requests are validated with
// the same struct tags before they reach the daemon.
package ipc
