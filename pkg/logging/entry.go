package logging

import (
	"fmt"
	"time"
)

// Entry is a single log record. The zero value is an empty entry.
//
// Field documentation follows
// https://cloud.google.com/logging/docs/reference/v2/rest/v2/LogEntry
type Entry struct {
	// Resource name of the log, "projects/[PROJECT_ID]/logs/[LOG_ID]". A bare
	// LOG_ID is expanded against the client's project on write.
	LogName string
	// The monitored resource that produced this entry.
	Resource Resource
	// Time the event happened. Zero lets the service use the ingestion time.
	Timestamp time.Time
	Severity  Severity
	// Optional. Entries with the same InsertID and Timestamp are deduplicated.
	InsertID string
	Labels   map[string]string
	// Nil means no payload.
	Payload        Payload
	HTTPRequest    HTTPRequest
	Operation      Operation
	SourceLocation SourceLocation
	// Optional. "projects/[PROJECT_ID]/traces/[TRACE_ID]"
	Trace        string
	SpanID       string
	TraceSampled bool
}

// Empty reports whether no field of e is set. Empty entries are never sent.
func (e *Entry) Empty() bool {
	return e.LogName == "" &&
		e.Resource.Empty() &&
		e.Timestamp.IsZero() &&
		e.Severity == Default &&
		e.InsertID == "" &&
		len(e.Labels) == 0 &&
		payloadEmpty(e.Payload) &&
		e.HTTPRequest.Empty() &&
		e.Operation.Empty() &&
		e.SourceLocation.Empty() &&
		e.Trace == "" &&
		e.SpanID == "" &&
		!e.TraceSampled
}

// Resource identifies the monitored resource an entry concerns, e.g.
// {Type: "gce_instance", Labels: {"instance_id": "..."}}.
type Resource struct {
	Type   string
	Labels map[string]string
}

func (r Resource) Empty() bool {
	return r.Type == "" && len(r.Labels) == 0
}

// HTTPRequest according to https://cloud.google.com/logging/docs/reference/v2/rest/v2/LogEntry#HttpRequest
type HTTPRequest struct {
	Method                         string
	URL                            string
	RequestSize                    int64
	Status                         int
	ResponseSize                   int64
	UserAgent                      string
	RemoteIP                       string
	ServerIP                       string
	Referer                        string
	Latency                        time.Duration
	CacheLookup                    bool
	CacheHit                       bool
	CacheValidatedWithOriginServer bool
	CacheFillBytes                 int64
	Protocol                       string
}

func (r HTTPRequest) Empty() bool {
	return r == HTTPRequest{}
}

// Operation groups entries that belong to one long-running operation.
type Operation struct {
	ID       string // Log entries with the same ID are part of the same operation.
	Producer string // The combination of ID and Producer must be globally unique.
	First    bool   // Set on the first entry of the operation.
	Last     bool   // Set on the last entry of the operation.
}

func (o Operation) Empty() bool {
	return o == Operation{}
}

// SourceLocation is the source code position that produced the entry.
type SourceLocation struct {
	File     string
	Line     int64
	Function string
}

func (l SourceLocation) Empty() bool {
	return l == SourceLocation{}
}

// CoerceLabels converts label values of any type to strings.
func CoerceLabels(labels map[string]interface{}) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		switch t := v.(type) {
		case string:
			out[k] = t
		case fmt.Stringer:
			out[k] = t.String()
		case nil:
			out[k] = ""
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
