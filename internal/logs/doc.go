// Package logs reads the daemon log with bounded memory.
//
// Tail returns the last N lines of a file together with the byte offset the
// next read should start from, and Follow polls from that offset until the
// context ends. A missing file reads as empty so callers can start following
// before the daemon has written anything.
package logs
