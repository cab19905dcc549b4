package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"natrender/internal/logging"
	"natrender/internal/render"
	"natrender/internal/services"
)

const observerBuffer = 32

type delivery struct {
	ctx     context.Context
	event   Event
	payload Payload
}

// Observer turns dispatcher events into notifications. It satisfies
// render.Observer.
type Observer struct {
	service Service
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan delivery
	wg     sync.WaitGroup
}

// NewObserver starts a delivery worker for service.
func NewObserver(service Service, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Observer{
		service: service,
		logger:  logging.NewComponentLogger(logger, "notifications"),
		queue:   make(chan delivery, observerBuffer),
	}
	o.wg.Add(1)
	go o.run()
	return o
}

// HandleRenderEvent maps event to a notification and queues it.
func (o *Observer) HandleRenderEvent(ctx context.Context, event render.Event) {
	kind, payload, ok := translate(event)
	if !ok {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	select {
	case o.queue <- delivery{ctx: ctx, event: kind, payload: payload}:
	default:
		o.logger.Warn("notification dropped",
			logging.String("event", string(kind)),
			logging.String(logging.FieldEventType, "notification_dropped"),
		)
	}
}

// Close stops accepting events and waits for queued deliveries.
func (o *Observer) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.queue)
	o.mu.Unlock()
	o.wg.Wait()
}

func (o *Observer) run() {
	defer o.wg.Done()
	for d := range o.queue {
		if err := o.service.Publish(d.ctx, d.event, d.payload); err != nil {
			logging.WarnWithContext(o.logger, "notification failed", "notification_failed",
				logging.String("event", string(d.event)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
				logging.String(logging.FieldImpact, "user was not notified"),
			)
		}
	}
}

func translate(event render.Event) (Event, Payload, bool) {
	item := event.Item
	base := Payload{
		"writer":   item.Writer,
		"sequence": item.SequenceName,
		"range":    item.Range.String(),
	}
	switch event.Type {
	case render.EventStarted, render.EventRestarted:
		return EventRenderStarted, base, true
	case render.EventFinished:
		if event.Err == nil {
			if !item.StartedAt.IsZero() {
				base["elapsed"] = time.Since(item.StartedAt).Round(time.Second).String()
			}
			return EventRenderCompleted, base, true
		}
		if services.Kind(event.Err) == "cancelled" {
			return "", nil, false
		}
		base["error"] = event.Err.Error()
		return EventRenderFailed, base, true
	case render.EventDrained:
		return EventQueueDrained, Payload{}, true
	default:
		return "", nil, false
	}
}

var _ render.Observer = (*Observer)(nil)
