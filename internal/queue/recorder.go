package queue

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"natrender/internal/logging"
	"natrender/internal/render"
)

// Recorder journals dispatcher events. It satisfies render.Observer.
type Recorder struct {
	store  *Store
	logger *slog.Logger

	mu   sync.Mutex
	last map[string]int
}

// NewRecorder builds an observer writing to store.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Recorder{
		store:  store,
		logger: logging.NewComponentLogger(logger, "journal"),
		last:   make(map[string]int),
	}
}

// HandleRenderEvent persists event. Failures are logged, never returned; the
// journal must not hold renders back.
func (r *Recorder) HandleRenderEvent(ctx context.Context, event render.Event) {
	if r == nil || r.store == nil {
		return
	}
	var err error
	switch event.Type {
	case render.EventQueued:
		err = r.store.RecordQueued(ctx, event.Item)
	case render.EventStarted, render.EventRestarted:
		err = r.store.RecordStarted(ctx, event.Item)
	case render.EventProgress:
		if !r.progressChanged(event.Item.ID, event.Progress.Percent) {
			return
		}
		err = r.store.RecordProgress(ctx, event.Item.ID, event.Progress.Percent)
	case render.EventFinished:
		r.forget(event.Item.ID)
		err = r.store.RecordFinished(ctx, event.Item, event.Err)
	case render.EventRejected:
		err = r.store.RecordRejected(ctx, event.Item, event.Err)
	case render.EventRemoved:
		err = r.store.RecordRemoved(ctx, event.Item, event.Err)
	default:
		return
	}
	if err != nil {
		logging.WarnWithContext(r.logger, "journal update failed", "journal_write_failed",
			logging.String(logging.FieldItemID, event.Item.ID),
			logging.String("event", string(event.Type)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "render history is incomplete"),
		)
	}
}

// progressChanged reports whether percent crossed a whole-percent boundary
// since the last write for id.
func (r *Recorder) progressChanged(id string, percent float64) bool {
	whole := int(math.Floor(percent))
	r.mu.Lock()
	defer r.mu.Unlock()
	previous, seen := r.last[id]
	if seen && whole <= previous {
		return false
	}
	r.last[id] = whole
	return true
}

func (r *Recorder) forget(id string) {
	r.mu.Lock()
	delete(r.last, id)
	r.mu.Unlock()
}

var _ render.Observer = (*Recorder)(nil)
