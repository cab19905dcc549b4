package render

import (
	"context"
	"time"
)

// EventType names a queue item lifecycle transition.
type EventType string

const (
	EventQueued    EventType = "queued"
	EventStarted   EventType = "started"
	EventRestarted EventType = "restarted"
	EventProgress  EventType = "progress"
	EventFinished  EventType = "finished"
	EventRejected  EventType = "rejected"
	EventRemoved   EventType = "removed"
	// EventDrained fires when the registry becomes empty. It carries no item.
	EventDrained EventType = "drained"
)

// Event is delivered to observers. Err is set on failed finishes and on
// rejections.
type Event struct {
	Type     EventType
	Item     Info
	Progress Progress
	Err      error
	At       time.Time
}

// Observer receives lifecycle events. Implementations must be safe for
// concurrent use and must not block for long.
type Observer interface {
	HandleRenderEvent(ctx context.Context, event Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, event Event)

func (f ObserverFunc) HandleRenderEvent(ctx context.Context, event Event) {
	f(ctx, event)
}
