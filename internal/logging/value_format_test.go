package logging

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"
)

type frameSpan struct{ first, last int }

func (s frameSpan) String() string { return fmt.Sprintf("frames %d-%d", s.first, s.last) }

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		value slog.Value
		want  string
	}{
		{"plain string", slog.StringValue("render started"), "render started"},
		{"empty string", slog.StringValue(""), `""`},
		{"newline", slog.StringValue("a\nb"), `"a\nb"`},
		{"error", slog.AnyValue(errors.New("frame 3 failed")), "frame 3 failed"},
		{"stringer", slog.AnyValue(frameSpan{1, 9}), "frames 1-9"},
		{"writers", slog.AnyValue([]string{"WriteA", "WriteB"}), "WriteA,WriteB"},
		{"short duration", slog.DurationValue(1234567 * time.Nanosecond), "1.235ms"},
		{"seconds", slog.DurationValue(2345 * time.Millisecond), "2.35s"},
		{"minutes", slog.DurationValue(90*time.Second + 400*time.Millisecond), "1m30s"},
		{"float", slog.Float64Value(12.5), "12.5"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatValue(tc.value); got != tc.want {
				t.Fatalf("formatValue = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFormatTimestampKeepsMilliseconds(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 20, 30, 456_000_000, time.Local)
	if got := formatTimestamp(ts); got != "2024-05-01 10:20:30.456" {
		t.Fatalf("unexpected timestamp %q", got)
	}
	if formatTimestamp(time.Time{}) != "" {
		t.Fatal("expected zero time to format empty")
	}
}
