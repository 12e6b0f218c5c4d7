package logging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Logger writes entries to one log for one monitored resource.
type Logger struct {
	client    *Client
	logName   string
	resource  Resource
	labels    map[string]string
	insertIDs bool
}

// Logger returns a helper that writes to logName. labels are attached to
// every entry.
func (c *Client) Logger(logName string, resource Resource, labels map[string]string) *Logger {
	return &Logger{
		client:   c,
		logName:  logName,
		resource: resource,
		labels:   labels,
	}
}

// WithInsertIDs returns a copy of l that stamps every entry with a random
// insert ID so retried writes are deduplicated by the service.
func (l *Logger) WithInsertIDs() *Logger {
	c := *l
	c.insertIDs = true
	return &c
}

// Write sends e, filling in the timestamp and insert ID when unset.
func (l *Logger) Write(ctx context.Context, e *Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if l.insertIDs && e.InsertID == "" {
		e.InsertID = uuid.New().String()
	}
	return l.client.WriteEntries(ctx, []*Entry{e},
		WithLogName(l.logName),
		WithResource(l.resource),
		WithLabels(l.labels))
}

// Log writes payload at severity. See NewPayload for how payload is encoded.
func (l *Logger) Log(ctx context.Context, severity Severity, payload interface{}) error {
	p, err := NewPayload(payload)
	if err != nil {
		return err
	}
	return l.Write(ctx, &Entry{Severity: severity, Payload: p})
}

func (l *Logger) Debug(ctx context.Context, payload interface{}) error {
	return l.Log(ctx, Debug, payload)
}

func (l *Logger) Info(ctx context.Context, payload interface{}) error {
	return l.Log(ctx, Info, payload)
}

func (l *Logger) Notice(ctx context.Context, payload interface{}) error {
	return l.Log(ctx, Notice, payload)
}

func (l *Logger) Warning(ctx context.Context, payload interface{}) error {
	return l.Log(ctx, Warning, payload)
}

func (l *Logger) Error(ctx context.Context, payload interface{}) error {
	return l.Log(ctx, Error, payload)
}

func (l *Logger) Critical(ctx context.Context, payload interface{}) error {
	return l.Log(ctx, Critical, payload)
}

func (l *Logger) Alert(ctx context.Context, payload interface{}) error {
	return l.Log(ctx, Alert, payload)
}

func (l *Logger) Emergency(ctx context.Context, payload interface{}) error {
	return l.Log(ctx, Emergency, payload)
}
