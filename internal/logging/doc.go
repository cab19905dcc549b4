// Package logging assembles structured slog loggers and formatting helpers used
// across natrender.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so dispatcher and engine code can
// tag log lines with writer names, queue item IDs and correlation IDs. The
// package also provides a no-op logger for tests and a progress sampler that
// keeps per-frame progress from flooding the log.
package logging
