// Package api serves the daemon over HTTP with fiber and pushes job and
// catalog changes to browser clients over a websocket.
//
// # Key Types
//
// Service: the daemon operations the HTTP layer needs. The daemon package
// supplies the implementation so api never imports it.
//
// Server: fiber app with bearer-token auth, request validation, the error
// envelope, /metrics, and the /ws/events hub.
//
// Hub: fan-out of Event payloads to connected websocket clients. Publish never
// blocks, so it is safe to call from queue subscriber callbacks.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers.
// Timestamps use RFC3339 with milliseconds. Errors are classified with the
// services markers and mapped to status codes by services.HTTPStatus.
package api
