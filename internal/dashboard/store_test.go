package dashboard

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func entryAt(sec int64, msg string, data logrus.Fields) *logrus.Entry {
	e := logrus.NewEntry(logrus.New())
	e.Time = time.Unix(sec, 0)
	e.Level = logrus.WarnLevel
	e.Message = msg
	e.Data = data
	return e
}

func TestLogBufferCapturesEntries(t *testing.T) {
	b := newLogBuffer(3, logrus.InfoLevel)
	err := b.Fire(entryAt(10, "connection error", logrus.Fields{
		"component": "stream_manager",
		"stream":    "depth",
		"error":     errors.New("reset"),
	}))
	if err != nil {
		t.Fatalf("Fire returned error: %v", err)
	}

	records := b.snapshot()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.Component != "stream_manager" || r.Stream != "depth" || r.Level != "warning" {
		t.Fatalf("unexpected record %#v", r)
	}
	if r.Fields["error"] != "reset" {
		t.Fatalf("expected error rendered as text, got %#v", r.Fields)
	}
}

func TestLogBufferWrapsOldestFirst(t *testing.T) {
	b := newLogBuffer(2, logrus.InfoLevel)
	for i := int64(0); i < 5; i++ {
		b.Fire(entryAt(i, "msg", nil))
	}
	records := b.snapshot()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Timestamp.Unix() != 3 || records[1].Timestamp.Unix() != 4 {
		t.Fatalf("unexpected retention order: %v, %v", records[0].Timestamp, records[1].Timestamp)
	}
}

func TestLogBufferLevelsAndClose(t *testing.T) {
	b := newLogBuffer(2, logrus.WarnLevel)
	for _, l := range b.Levels() {
		if l > logrus.WarnLevel {
			t.Fatalf("level %s should not be captured", l)
		}
	}
	b.close()
	b.Fire(entryAt(1, "ignored", nil))
	if len(b.snapshot()) != 0 {
		t.Fatalf("closed buffer must not capture")
	}
}
