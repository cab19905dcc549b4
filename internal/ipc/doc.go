// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management, the request/response DTOs and the
// conversions between render and journal models and their wire forms. Errors
// returned by the daemon travel as RPC errors; per-item failures inside a
// submission travel in the outcome with their error kind.
//
// Reuse these types when adding endpoints so the CLI and daemon stay
// compatible.
package ipc
