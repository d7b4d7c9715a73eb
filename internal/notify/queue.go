package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Toast is one queued notification as shown to a user.
type Toast struct {
	ID        string        `json:"id"`
	Message   string        `json:"message"`
	Severity  Severity      `json:"type"`
	TTL       time.Duration `json:"-"`
	Duration  int64         `json:"duration"` // ms
	CreatedAt time.Time     `json:"createdAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// Queue keeps the most recent notifications in memory until they expire or are
// dismissed. It is safe for concurrent use and Notify never blocks on I/O.
type Queue struct {
	mu         sync.RWMutex
	items      []Toast
	limit      int
	defaultTTL time.Duration
	now        func() time.Time
}

// NewQueue creates a queue retaining at most limit toasts.
func NewQueue(limit int, defaultTTL time.Duration) *Queue {
	if limit <= 0 {
		limit = 50
	}
	return &Queue{limit: limit, defaultTTL: effectiveTTL(defaultTTL, DefaultTTL), now: time.Now}
}

func (q *Queue) Notify(message string, severity Severity, ttl time.Duration) {
	now := q.now()
	ttl = effectiveTTL(ttl, q.defaultTTL)
	toast := Toast{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity,
		TTL:       ttl,
		Duration:  ttl.Milliseconds(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	q.mu.Lock()
	q.items = append(q.items, toast)
	if len(q.items) > q.limit {
		q.items = append([]Toast(nil), q.items[len(q.items)-q.limit:]...)
	}
	q.mu.Unlock()
}

// Active returns the toasts that have not expired, oldest first.
func (q *Queue) Active() []Toast {
	now := q.now()

	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]Toast, 0, len(q.items))
	for _, t := range q.items {
		if now.Before(t.ExpiresAt) {
			out = append(out, t)
		}
	}
	return out
}

// History returns every retained toast including expired ones.
func (q *Queue) History() []Toast {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]Toast, len(q.items))
	copy(out, q.items)
	return out
}

// Dismiss removes the toast with the given id and reports whether it existed.
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, t := range q.items {
		if t.ID == id {
			q.items = append(q.items[:i:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Prune drops expired toasts and returns how many were removed.
func (q *Queue) Prune() int {
	now := q.now()

	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0:0]
	for _, t := range q.items {
		if now.Before(t.ExpiresAt) {
			kept = append(kept, t)
		}
	}
	removed := len(q.items) - len(kept)
	q.items = kept
	return removed
}
