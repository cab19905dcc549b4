// Package services defines shared error markers and context helpers used by
// the render dispatcher, the external-process adapter and the daemon.
//
// Key responsibilities:
//   - Context helpers that stamp queue item IDs, writer names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures with errors.Is (invalid argument, validation, spawn, external
//     tool, configuration).
package services
