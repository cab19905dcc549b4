// Package queue persists the render journal in SQLite.
//
// The journal is a history of every queue item the dispatcher has seen:
// when it was queued, started and finished, its frame range, the child
// process that ran it and the error it failed with. The dispatcher never
// reads it back; it exists for the CLI and IPC history views. A Recorder
// observer translates dispatcher events into journal transitions.
package queue
