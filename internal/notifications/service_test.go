package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"natrender/internal/config"
	"natrender/internal/notifications"
	"natrender/internal/render"
	"natrender/internal/services"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventRenderCompleted, notifications.Payload{"writer": "Write1"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "render started",
			event: notifications.EventRenderStarted,
			payload: notifications.Payload{
				"writer": "Write1",
				"range":  "1-48 x2",
			},
			expectTitle:   "natrender - Render Started",
			expectMessage: "Rendering Write1 frames 1-48 x2",
			expectTags:    "natrender,render,started",
		},
		{
			name:  "render completed",
			event: notifications.EventRenderCompleted,
			payload: notifications.Payload{
				"writer":   "Write1",
				"sequence": "/renders/shot010.####.exr",
				"elapsed":  "2m0s",
			},
			expectTitle:   "natrender - Render Complete",
			expectMessage: "Rendered Write1\nOutput: /renders/shot010.####.exr\nTook 2m0s",
			expectTags:    "natrender,render,completed",
		},
		{
			name:  "render failed",
			event: notifications.EventRenderFailed,
			payload: notifications.Payload{
				"writer": "Movie",
				"error":  "exit status 3",
			},
			expectTitle:    "natrender - Render Failed",
			expectMessage:  "Render of Movie failed: exit status 3",
			expectTags:     "natrender,render,failed",
			expectPriority: "high",
		},
		{
			name:          "queue drained",
			event:         notifications.EventQueueDrained,
			expectTitle:   "natrender - Queue Drained",
			expectMessage: "All queued renders have finished",
			expectTags:    "natrender,queue,drained",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5
			cfg.Notifications.RenderStarted = true

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonoursToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for disabled event: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.RenderStarted = false
	cfg.Notifications.QueueDrained = false

	svc := notifications.NewService(&cfg)
	for _, event := range []notifications.Event{notifications.EventRenderStarted, notifications.EventQueueDrained} {
		if err := svc.Publish(context.Background(), event, nil); err != nil {
			t.Fatalf("expected no error for disabled event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

type recordingService struct {
	mu     sync.Mutex
	events []notifications.Event
	last   notifications.Payload
}

func (r *recordingService) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.last = payload
	return nil
}

func TestObserverTranslatesRenderEvents(t *testing.T) {
	svc := &recordingService{}
	observer := notifications.NewObserver(svc, nil)

	item := render.Info{Writer: "Write1", Range: render.Range{First: 1, Last: 10, Step: 1}, StartedAt: time.Now().Add(-time.Minute)}
	ctx := context.Background()
	observer.HandleRenderEvent(ctx, render.Event{Type: render.EventQueued, Item: item})
	observer.HandleRenderEvent(ctx, render.Event{Type: render.EventStarted, Item: item})
	observer.HandleRenderEvent(ctx, render.Event{Type: render.EventProgress, Item: item})
	observer.HandleRenderEvent(ctx, render.Event{Type: render.EventFinished, Item: item})
	observer.HandleRenderEvent(ctx, render.Event{Type: render.EventFinished, Item: item,
		Err: services.Wrap(services.ErrCancelled, "render", "cancel", "cancelled by request", nil)})
	observer.HandleRenderEvent(ctx, render.Event{Type: render.EventFinished, Item: item, Err: errors.New("exit status 1")})
	observer.HandleRenderEvent(ctx, render.Event{Type: render.EventDrained})
	observer.Close()
	observer.HandleRenderEvent(ctx, render.Event{Type: render.EventStarted, Item: item})

	want := []notifications.Event{
		notifications.EventRenderStarted,
		notifications.EventRenderCompleted,
		notifications.EventRenderFailed,
		notifications.EventQueueDrained,
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.events) != len(want) {
		t.Fatalf("expected %v, got %v", want, svc.events)
	}
	for i := range want {
		if svc.events[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], svc.events[i])
		}
	}
}
