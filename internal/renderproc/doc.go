// Package renderproc runs renders in child processes.
//
// A Spawner re-invokes the natrender binary (or the configured process
// command) in headless render mode against a project snapshot. The child
// reports progress as JSON lines on stdout; its exit status becomes the
// completion result of the queue item.
package renderproc
