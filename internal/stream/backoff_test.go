package stream

import (
	"testing"
	"time"
)

func TestDefaultBackoffDelays(t *testing.T) {
	b := DefaultBackoff()
	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for attempt, w := range want {
		if got := b.NextDelay(attempt); got != w {
			t.Fatalf("attempt %d: expected %s, got %s", attempt, w, got)
		}
	}
	if got := b.NextDelay(5000); got != 30*time.Second {
		t.Fatalf("expected cap on huge attempt, got %s", got)
	}
	if got := b.NextDelay(-1); got != time.Second {
		t.Fatalf("expected base delay for negative attempt, got %s", got)
	}
}

func TestBackoffExhausted(t *testing.T) {
	b := DefaultBackoff()
	if b.Exhausted(9) {
		t.Fatalf("attempt 9 must still allow a retry")
	}
	if !b.Exhausted(10) {
		t.Fatalf("attempt 10 must exhaust the budget")
	}
}

func TestBackoffCustom(t *testing.T) {
	b := Backoff{Base: 250 * time.Millisecond, Max: time.Second, Multiplier: 3, MaxAttempts: 2}
	if got := b.NextDelay(1); got != 750*time.Millisecond {
		t.Fatalf("expected 750ms, got %s", got)
	}
	if got := b.NextDelay(2); got != time.Second {
		t.Fatalf("expected 1s cap, got %s", got)
	}
}
