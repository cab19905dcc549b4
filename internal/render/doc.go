// Package render schedules writer renders.
//
// A caller describes each request as a Work value (writer plus optional frame
// range, step and flags). The Dispatcher validates every Work into a
// QueueItem and runs the batch under one of four policies: blocking (bounded
// worker pool, returns when everything is done), out-of-process (one child
// process per item against a saved project snapshot), queued (appended to the
// pending FIFO while another render is active) or concurrent (each item on its
// own goroutine).
//
// The Registry holds the active set and the pending FIFO behind one mutex and
// guarantees a writer is never active or pending twice. Completions flow back
// through the dispatcher's reconcile loop, which promotes the pending head.
// Observers receive every lifecycle transition; the journal, notifications and
// the child-process progress stream are all observers.
package render
