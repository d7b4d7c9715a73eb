package dashboard

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// logRecord is one captured log line as served by /api/logs.
type logRecord struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Stream    string                 `json:"stream,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// logBuffer is a logrus hook keeping the most recent entries in a ring.
type logBuffer struct {
	mu    sync.RWMutex
	ring  []logRecord
	next  int
	full  bool
	level logrus.Level

	enabled atomic.Bool
}

func newLogBuffer(limit int, level logrus.Level) *logBuffer {
	if limit <= 0 {
		limit = 200
	}
	b := &logBuffer{ring: make([]logRecord, limit), level: level}
	b.enabled.Store(true)
	return b
}

// Levels limits capture to entries at or above the configured level.
func (b *logBuffer) Levels() []logrus.Level {
	levels := make([]logrus.Level, 0, len(logrus.AllLevels))
	for _, l := range logrus.AllLevels {
		if l <= b.level {
			levels = append(levels, l)
		}
	}
	return levels
}

func (b *logBuffer) Fire(entry *logrus.Entry) error {
	if !b.enabled.Load() {
		return nil
	}

	record := logRecord{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
	}
	for k, v := range entry.Data {
		switch k {
		case "component":
			record.Component, _ = v.(string)
			continue
		case "stream":
			record.Stream, _ = v.(string)
			continue
		}
		if record.Fields == nil {
			record.Fields = make(map[string]interface{}, len(entry.Data))
		}
		switch val := v.(type) {
		case error:
			record.Fields[k] = val.Error()
		case fmt.Stringer:
			record.Fields[k] = val.String()
		default:
			record.Fields[k] = val
		}
	}

	b.mu.Lock()
	b.ring[b.next] = record
	b.next = (b.next + 1) % len(b.ring)
	if b.next == 0 {
		b.full = true
	}
	b.mu.Unlock()
	return nil
}

// snapshot returns the buffered records oldest first.
func (b *logBuffer) snapshot() []logRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.full {
		return append([]logRecord(nil), b.ring[:b.next]...)
	}
	out := make([]logRecord, 0, len(b.ring))
	out = append(out, b.ring[b.next:]...)
	return append(out, b.ring[:b.next]...)
}

func (b *logBuffer) close() {
	b.enabled.Store(false)
}
