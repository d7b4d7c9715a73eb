// Package notify carries transient status messages from the stream managers to
// whatever is presenting them. Every Sink must return promptly and must not panic.
package notify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Severity classifies a notification.
type Severity int

const (
	Info Severity = iota
	Success
	Warning
	Error
)

// DefaultTTL is how long a notification stays visible when no ttl is given.
const DefaultTTL = 5 * time.Second

var severityNames = [...]string{"info", "success", "warning", "error"}

func (s Severity) String() string {
	if s < Info || s > Error {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity converts a configuration string into a Severity.
func ParseSeverity(s string) (Severity, error) {
	for i, name := range severityNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Severity(i), nil
		}
	}
	return Info, fmt.Errorf("unknown severity %q", s)
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Sink accepts fire-and-forget notifications. A ttl <= 0 means DefaultTTL.
type Sink interface {
	Notify(message string, severity Severity, ttl time.Duration)
}

// Func adapts a plain function to Sink.
type Func func(message string, severity Severity, ttl time.Duration)

func (f Func) Notify(message string, severity Severity, ttl time.Duration) {
	f(message, severity, ttl)
}

// Discard drops every notification.
var Discard Sink = Func(func(string, Severity, time.Duration) {})

// Multi fans one notification out to several sinks in order.
type Multi []Sink

func (m Multi) Notify(message string, severity Severity, ttl time.Duration) {
	for _, s := range m {
		if s != nil {
			Safe(s, message, severity, ttl)
		}
	}
}

// Safe delivers to s and swallows any panic raised by it, so a broken sink can
// never unwind into its caller.
func Safe(s Sink, message string, severity Severity, ttl time.Duration) {
	if s == nil {
		return
	}
	defer func() { _ = recover() }()
	s.Notify(message, severity, ttl)
}

func effectiveTTL(ttl, fallback time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultTTL
}
