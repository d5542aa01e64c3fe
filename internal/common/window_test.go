package common

import (
	"testing"
	"time"
)

func TestTrailingWindow(t *testing.T) {
	now := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	w := TrailingWindow(30, now)

	wantEnd := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	wantStart := time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC)

	if !w.End.Equal(wantEnd) {
		t.Fatalf("expected end %v, got %v", wantEnd, w.End)
	}
	if !w.Start.Equal(wantStart) {
		t.Fatalf("expected start %v, got %v", wantStart, w.Start)
	}
}

func TestTrailingWindowSingleDay(t *testing.T) {
	now := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	w := TrailingWindow(1, now)

	if !w.Start.Equal(w.End) {
		t.Fatalf("one-day window should start and end on the same day: %v to %v", w.Start, w.End)
	}
}

func TestWindowFormat(t *testing.T) {
	w := Window{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	start, end := w.Format()
	if start != "2024-01-01" || end != "2024-01-31" {
		t.Fatalf("unexpected format: %q, %q", start, end)
	}
}
