package render

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"natrender/internal/services"
)

// Registry holds the active renders and the pending FIFO. A writer appears in
// at most one of the two at any time. Every method takes the lock for the
// container mutation only.
type Registry struct {
	mu      sync.Mutex
	active  map[string]*QueueItem
	pending []*QueueItem
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*QueueItem)}
}

// Admission is the outcome of one Admit call.
type Admission struct {
	Start    []*QueueItem
	Queued   []*QueueItem
	Rejected []Rejection
}

// Rejection pairs refused work with the reason.
type Rejection struct {
	Info Info
	Err  error
}

// Admit registers a batch. When queueBehindActive is set and a render is
// already active, the whole batch joins the pending FIFO; otherwise every
// item becomes active and should be started by the caller. Items whose writer
// is already known, or repeated in the batch, are rejected.
func (r *Registry) Admit(items []*QueueItem, queueBehindActive bool) Admission {
	r.mu.Lock()
	defer r.mu.Unlock()

	queue := queueBehindActive && len(r.active) > 0
	var out Admission
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		name := item.Writer()
		if _, dup := seen[name]; dup || r.knownLocked(name) {
			out.Rejected = append(out.Rejected, Rejection{
				Info: item.info(),
				Err: services.Wrap(services.ErrValidation, "render", "admit",
					fmt.Sprintf("writer %s busy", name), nil),
			})
			continue
		}
		seen[name] = struct{}{}
		if queue {
			r.pending = append(r.pending, item)
			out.Queued = append(out.Queued, item)
			continue
		}
		item.startedAt = time.Now().UTC()
		r.active[name] = item
		out.Start = append(out.Start, item)
	}
	return out
}

// Completion describes the registry transition after a render finished.
type Completion struct {
	Finished *QueueItem
	// Next is the pending head promoted to active, if any. The caller must
	// start it.
	Next *QueueItem
	// Drained is set when nothing is active or pending anymore.
	Drained bool
}

// Complete removes item from the active set and promotes the pending head.
// Completing an item that is not active changes nothing.
func (r *Registry) Complete(item *QueueItem) Completion {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := item.Writer()
	current, ok := r.active[name]
	if !ok || current != item {
		return Completion{}
	}
	delete(r.active, name)
	out := Completion{Finished: item}
	if len(r.pending) > 0 {
		next := r.pending[0]
		r.pending[0] = nil
		r.pending = r.pending[1:]
		next.startedAt = time.Now().UTC()
		r.active[next.Writer()] = next
		out.Next = next
	}
	out.Drained = len(r.active) == 0 && len(r.pending) == 0
	return out
}

// Remove deletes a pending item for writer before it becomes active. Active
// items are never pre-empted here.
func (r *Registry) Remove(writer string) (*QueueItem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for idx, item := range r.pending {
		if item.Writer() != writer {
			continue
		}
		r.pending = append(r.pending[:idx], r.pending[idx+1:]...)
		return item, true
	}
	return nil, false
}

// Active returns the active item for writer.
func (r *Registry) Active(writer string) (*QueueItem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.active[writer]
	return item, ok
}

// Attach records the child process running item.
func (r *Registry) Attach(item *QueueItem, handle ProcessHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.process = handle
}

func (r *Registry) processOf(item *QueueItem) ProcessHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return item.process
}

// Info returns a consistent copy of item.
func (r *Registry) Info(item *QueueItem) Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return item.info()
}

// RegistrySnapshot is a point-in-time copy of the registry.
type RegistrySnapshot struct {
	Active  []Info `json:"active"`
	Pending []Info `json:"pending"`
}

// Snapshot copies both containers. Active items are ordered by start time,
// pending items by queue position.
func (r *Registry) Snapshot() RegistrySnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := RegistrySnapshot{
		Active:  make([]Info, 0, len(r.active)),
		Pending: make([]Info, 0, len(r.pending)),
	}
	for _, item := range r.active {
		snap.Active = append(snap.Active, item.info())
	}
	sort.Slice(snap.Active, func(i, j int) bool {
		if snap.Active[i].StartedAt.Equal(snap.Active[j].StartedAt) {
			return snap.Active[i].Writer < snap.Active[j].Writer
		}
		return snap.Active[i].StartedAt.Before(snap.Active[j].StartedAt)
	})
	for _, item := range r.pending {
		snap.Pending = append(snap.Pending, item.info())
	}
	return snap
}

// Counts returns the number of active and pending items.
func (r *Registry) Counts() (active, pending int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active), len(r.pending)
}

// drainPending empties the pending FIFO and returns what it held.
func (r *Registry) drainPending() []*QueueItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.pending
	r.pending = nil
	return out
}

func (r *Registry) knownLocked(writer string) bool {
	if _, ok := r.active[writer]; ok {
		return true
	}
	for _, item := range r.pending {
		if item.Writer() == writer {
			return true
		}
	}
	return false
}
