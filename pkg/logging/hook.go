package logging

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Hook forwards logrus entries to a Logger. The message is stored under
// "message" in a structured payload next to the entry's fields. Do not add it
// to the logger the client itself logs to.
type Hook struct {
	logger *Logger
	levels []logrus.Level
}

// NewHook forwards the given levels, or all levels if none are given.
func NewHook(l *Logger, levels ...logrus.Level) *Hook {
	if len(levels) == 0 {
		levels = logrus.AllLevels
	}
	return &Hook{logger: l, levels: levels}
}

func (h *Hook) Levels() []logrus.Level {
	return h.levels
}

func (h *Hook) Fire(entry *logrus.Entry) error {
	payload := make(StructPayload, len(entry.Data)+1)
	for k, v := range entry.Data {
		payload[k] = v
	}
	payload["message"] = entry.Message

	ctx := entry.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return h.logger.Write(ctx, &Entry{
		Timestamp: entry.Time,
		Severity:  severityFromLogrus(entry.Level),
		Payload:   payload,
	})
}

func severityFromLogrus(level logrus.Level) Severity {
	switch level {
	case logrus.PanicLevel:
		return Emergency
	case logrus.FatalLevel:
		return Critical
	case logrus.ErrorLevel:
		return Error
	case logrus.WarnLevel:
		return Warning
	case logrus.InfoLevel:
		return Info
	case logrus.DebugLevel, logrus.TraceLevel:
		return Debug
	}
	return Default
}
