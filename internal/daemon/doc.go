// Package daemon coordinates the long-running singalong process.
//
// It takes a flock-based lock so only one instance owns the data directory,
// then opens the catalog, restores both job queues from their JSON history
// files and starts them. Catalog deletions prune download history, and job
// transitions are fanned out as catalog-changed notifications to subscribers
// such as the websocket hub.
//
// The optional HTTP API is served from here so its lifetime matches the
// lock. Individual job semantics live in the acquisition and separation
// packages; the daemon only wires them together.
package daemon
