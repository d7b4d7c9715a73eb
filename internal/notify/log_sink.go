package notify

import (
	"time"

	"marketview/logger"
)

// LogSink writes every notification to the structured log.
type LogSink struct {
	log *logger.Log
}

func NewLogSink(log *logger.Log) *LogSink {
	if log == nil {
		log = logger.GetLogger()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Notify(message string, severity Severity, ttl time.Duration) {
	entry := s.log.WithComponent("notify").WithFields(logger.Fields{
		"severity": severity.String(),
		"ttl_ms":   effectiveTTL(ttl, DefaultTTL).Milliseconds(),
	})
	switch severity {
	case Error:
		entry.Error(message)
	case Warning:
		entry.Warn(message)
	default:
		entry.Info(message)
	}
}
