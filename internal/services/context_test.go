package services_test

import (
	"context"
	"testing"

	"natrender/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithItemID(ctx, "item-1")
	ctx = services.WithWriter(ctx, "Write1")
	ctx = services.WithComponent(ctx, "dispatcher")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ItemIDFromContext(ctx); !ok || id != "item-1" {
		t.Fatalf("unexpected item id: %v %v", id, ok)
	}
	if writer, ok := services.WriterFromContext(ctx); !ok || writer != "Write1" {
		t.Fatalf("unexpected writer: %v %v", writer, ok)
	}
	if component, ok := services.ComponentFromContext(ctx); !ok || component != "dispatcher" {
		t.Fatalf("unexpected component: %v %v", component, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithWriter(ctx, "")
	ctx = services.WithItemID(ctx, "")
	if _, ok := services.WriterFromContext(ctx); ok {
		t.Fatal("expected no writer value")
	}
	if _, ok := services.ItemIDFromContext(ctx); ok {
		t.Fatal("expected no item id value")
	}
}
