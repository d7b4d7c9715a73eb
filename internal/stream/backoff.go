package stream

import (
	"math"
	"time"
)

// Backoff is the reconnect policy: the delay before retry n (0-based) is
// min(Base * Multiplier^n, Max), and at most MaxAttempts retries are scheduled
// between successful opens.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	Multiplier  float64
	MaxAttempts int
}

// DefaultBackoff is 1s doubling up to 30s, ten retries.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:        time.Second,
		Max:         30 * time.Second,
		Multiplier:  2,
		MaxAttempts: 10,
	}
}

// NextDelay returns the wait before the retry that follows attempt retries.
func (b Backoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(b.Base) * math.Pow(b.Multiplier, float64(attempt))
	if math.IsInf(d, 0) || math.IsNaN(d) || d > float64(b.Max) {
		return b.Max
	}
	return time.Duration(d)
}

// Exhausted reports whether no further retry may be scheduled after attempt retries.
func (b Backoff) Exhausted(attempt int) bool {
	return attempt >= b.MaxAttempts
}
