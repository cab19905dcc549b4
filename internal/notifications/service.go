package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"natrender/internal/config"
)

const userAgent = "natrender/0.1.0"

// Event names a notification kind.
type Event string

const (
	EventRenderStarted   Event = "render_started"
	EventRenderCompleted Event = "render_completed"
	EventRenderFailed    Event = "render_failed"
	EventQueueDrained    Event = "queue_drained"
	EventTest            Event = "test"
)

// Payload carries the values a notification is formatted from.
type Payload map[string]any

// Service publishes notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
		enabled: map[Event]bool{
			EventRenderStarted:   cfg.Notifications.RenderStarted,
			EventRenderCompleted: cfg.Notifications.RenderFinished,
			EventRenderFailed:    cfg.Notifications.RenderFailed,
			EventQueueDrained:    cfg.Notifications.QueueDrained,
			EventTest:            true,
		},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if !n.enabled[event] {
		return nil
	}
	message, ok := format(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, message)
}

func format(event Event, data Payload) (payload, bool) {
	writer := text(data, "writer")
	switch event {
	case EventRenderStarted:
		return payload{
			title:   "natrender - Render Started",
			message: fmt.Sprintf("Rendering %s frames %s", writer, text(data, "range")),
			tags:    []string{"natrender", "render", "started"},
		}, true
	case EventRenderCompleted:
		message := fmt.Sprintf("Rendered %s", writer)
		if sequence := text(data, "sequence"); sequence != "" {
			message = fmt.Sprintf("%s\nOutput: %s", message, sequence)
		}
		if elapsed := text(data, "elapsed"); elapsed != "" {
			message = fmt.Sprintf("%s\nTook %s", message, elapsed)
		}
		return payload{
			title:   "natrender - Render Complete",
			message: message,
			tags:    []string{"natrender", "render", "completed"},
		}, true
	case EventRenderFailed:
		reason := text(data, "error")
		if reason == "" {
			reason = "unknown"
		}
		return payload{
			title:    "natrender - Render Failed",
			message:  fmt.Sprintf("Render of %s failed: %s", writer, reason),
			tags:     []string{"natrender", "render", "failed"},
			priority: "high",
		}, true
	case EventQueueDrained:
		return payload{
			title:   "natrender - Queue Drained",
			message: "All queued renders have finished",
			tags:    []string{"natrender", "queue", "drained"},
		}, true
	case EventTest:
		return payload{
			title:    "natrender - Test",
			message:  "Notification system test",
			tags:     []string{"natrender", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func text(data Payload, key string) string {
	if data == nil {
		return ""
	}
	value, ok := data[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
