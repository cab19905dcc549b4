package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errLocked = errors.New("database is locked (5) (SQLITE_BUSY)")

func TestBusyPolicyRetriesUntilWriteSucceeds(t *testing.T) {
	policy := busyPolicy{attempts: 5, initial: time.Millisecond, ceiling: 2 * time.Millisecond}
	calls := 0
	err := policy.retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errLocked
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry returned error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestBusyPolicyGivesUp(t *testing.T) {
	policy := busyPolicy{attempts: 3, initial: time.Millisecond, ceiling: time.Millisecond}
	calls := 0
	err := policy.retry(context.Background(), func() error {
		calls++
		return errLocked
	})
	if !errors.Is(err, errLocked) || calls != 3 {
		t.Fatalf("expected busy error after 3 attempts, got %v after %d", err, calls)
	}

	calls = 0
	constraint := errors.New("UNIQUE constraint failed: render_items.id")
	err = policy.retry(context.Background(), func() error {
		calls++
		return constraint
	})
	if !errors.Is(err, constraint) || calls != 1 {
		t.Fatalf("expected one attempt for a non-busy error, got %v after %d", err, calls)
	}
}

func TestBusyPolicyStopsOnCancel(t *testing.T) {
	policy := busyPolicy{attempts: 10, initial: time.Hour, ceiling: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := policy.retry(ctx, func() error { return errLocked })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
