package logging_test

import (
	"testing"
	"time"

	"cloud.google.com/go/logging/apiv2/loggingpb"
	"github.com/gcloudkit/gcloud/pkg/apierr"
	"github.com/gcloudkit/gcloud/pkg/logging"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ltype "google.golang.org/genproto/googleapis/logging/type"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestSeverity(t *testing.T) {
	assert.Equal(t, "ERROR", logging.Error.String())
	assert.Equal(t, "Severity(150)", logging.Severity(150).String())
	assert.True(t, logging.Notice.Valid())
	assert.False(t, logging.Severity(150).Valid())
	assert.True(t, logging.Warning < logging.Error)

	s, err := logging.ParseSeverity(" critical ")
	require.NoError(t, err)
	assert.Equal(t, logging.Critical, s)

	_, err = logging.ParseSeverity("loud")
	assert.Error(t, err)
}

func TestEmpty(t *testing.T) {
	e := &logging.Entry{}
	assert.True(t, e.Empty())

	e.InsertID = "abc"
	assert.False(t, e.Empty())

	setters := map[string]func(*logging.Entry){
		"logName":        func(e *logging.Entry) { e.LogName = "syslog" },
		"resource":       func(e *logging.Entry) { e.Resource.Type = "global" },
		"timestamp":      func(e *logging.Entry) { e.Timestamp = time.Now() },
		"severity":       func(e *logging.Entry) { e.Severity = logging.Info },
		"labels":         func(e *logging.Entry) { e.Labels = map[string]string{"a": "b"} },
		"payload":        func(e *logging.Entry) { e.Payload = logging.TextPayload("x") },
		"httpRequest":    func(e *logging.Entry) { e.HTTPRequest.Status = 200 },
		"operation":      func(e *logging.Entry) { e.Operation.ID = "op" },
		"sourceLocation": func(e *logging.Entry) { e.SourceLocation.Line = 1 },
		"trace":          func(e *logging.Entry) { e.Trace = "projects/p/traces/t" },
		"traceSampled":   func(e *logging.Entry) { e.TraceSampled = true },
	}
	for name, set := range setters {
		e := &logging.Entry{}
		set(e)
		assert.False(t, e.Empty(), name)
	}

	assert.True(t, (&logging.Entry{Payload: logging.TextPayload("")}).Empty())
}

func TestRoundTrip(t *testing.T) {
	e := &logging.Entry{
		LogName:  "projects/p/logs/syslog",
		Severity: logging.Error,
		Labels:   map[string]string{"env": "production"},
		Payload:  logging.TextPayload("boom"),
	}
	pb, err := e.ToProto()
	require.NoError(t, err)

	back, err := logging.EntryFromProto(pb)
	require.NoError(t, err)
	assert.Equal(t, "projects/p/logs/syslog", back.LogName)
	assert.Equal(t, logging.Error, back.Severity)
	assert.Equal(t, map[string]string{"env": "production"}, back.Labels)
	assert.Equal(t, logging.TextPayload("boom"), back.Payload)
	assert.True(t, back.Timestamp.IsZero())
	assert.Equal(t, e, back)
}

func TestRoundTripAllFields(t *testing.T) {
	e := &logging.Entry{
		LogName:   "projects/p/logs/requests",
		Resource:  logging.Resource{Type: "gce_instance", Labels: map[string]string{"instance_id": "42"}},
		Timestamp: time.Date(2016, 3, 1, 12, 30, 0, 123456789, time.UTC),
		Severity:  logging.Notice,
		InsertID:  "abc-123",
		Labels:    map[string]string{"env": "production"},
		Payload: logging.StructPayload{
			"message": "served",
			"count":   float64(3),
			"ok":      true,
			"tags":    []interface{}{"a", "b"},
			"nested":  map[string]interface{}{"k": "v"},
		},
		HTTPRequest: logging.HTTPRequest{
			Method:   "GET",
			URL:      "http://example.com/index.html",
			Status:   200,
			Latency:  1500 * time.Millisecond,
			CacheHit: true,
			Protocol: "HTTP/1.1",
		},
		Operation:      logging.Operation{ID: "op-1", Producer: "app", First: true},
		SourceLocation: logging.SourceLocation{File: "main.go", Line: 12, Function: "main.serve"},
		Trace:          "projects/p/traces/0123",
		SpanID:         "000000000000004a",
		TraceSampled:   true,
	}
	pb, err := e.ToProto()
	require.NoError(t, err)
	assert.Equal(t, int64(1456835400), pb.GetTimestamp().GetSeconds())
	assert.Equal(t, int32(123456789), pb.GetTimestamp().GetNanos())
	assert.Equal(t, ltype.LogSeverity_NOTICE, pb.GetSeverity())
	assert.Equal(t, int64(1), pb.GetHttpRequest().GetLatency().GetSeconds())

	back, err := logging.EntryFromProto(pb)
	require.NoError(t, err)
	assert.Equal(t, e, back)
}

func TestSubRecordsAlwaysPresent(t *testing.T) {
	pb, err := (&logging.Entry{LogName: "projects/p/logs/x"}).ToProto()
	require.NoError(t, err)
	assert.NotNil(t, pb.GetResource())
	assert.NotNil(t, pb.GetHttpRequest())
	assert.NotNil(t, pb.GetOperation())
	assert.NotNil(t, pb.GetSourceLocation())
	assert.Nil(t, pb.GetTimestamp())
	assert.Nil(t, pb.GetPayload())
}

func TestPayloadExclusive(t *testing.T) {
	pb, err := (&logging.Entry{Payload: logging.StructPayload{"a": "b"}}).ToProto()
	require.NoError(t, err)
	assert.NotNil(t, pb.GetJsonPayload())
	assert.Equal(t, "", pb.GetTextPayload())
	assert.Nil(t, pb.GetProtoPayload())

	msg, err := anypb.New(durationpb.New(time.Second))
	require.NoError(t, err)
	pb, err = (&logging.Entry{Payload: logging.ProtoPayload{Any: msg}}).ToProto()
	require.NoError(t, err)
	assert.NotNil(t, pb.GetProtoPayload())
	assert.Nil(t, pb.GetJsonPayload())
	assert.Equal(t, "", pb.GetTextPayload())
}

func TestProtoPayloadFromProto(t *testing.T) {
	msg, err := anypb.New(durationpb.New(time.Second))
	require.NoError(t, err)

	e, err := logging.EntryFromProto(&loggingpb.LogEntry{
		Payload: &loggingpb.LogEntry_ProtoPayload{ProtoPayload: msg},
	})
	require.NoError(t, err)
	p, ok := e.Payload.(logging.ProtoPayload)
	require.True(t, ok)
	assert.Equal(t, "type.googleapis.com/google.protobuf.Duration", p.Any.GetTypeUrl())
}

func TestFromProtoNil(t *testing.T) {
	e, err := logging.EntryFromProto(nil)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.True(t, e.Empty())
}

func TestFromProtoMalformed(t *testing.T) {
	var ce *apierr.ConversionError

	_, err := logging.EntryFromProto(&loggingpb.LogEntry{Severity: ltype.LogSeverity(150)})
	require.Error(t, err)
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "severity", ce.Field)

	_, err = logging.EntryFromProto(&loggingpb.LogEntry{Timestamp: &timestamppb.Timestamp{Seconds: 1, Nanos: -5}})
	require.Error(t, err)
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "timestamp", ce.Field)
}

type request struct {
	Path   string `json:"path"`
	Status int    `json:"status"`
	secret string
}

type color int

func (c color) String() string { return [...]string{"red", "green"}[c] }

func TestNewPayload(t *testing.T) {
	p, err := logging.NewPayload(nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = logging.NewPayload("hello")
	require.NoError(t, err)
	assert.Equal(t, logging.TextPayload("hello"), p)

	p, err = logging.NewPayload(42)
	require.NoError(t, err)
	assert.Equal(t, logging.TextPayload("42"), p)

	p, err = logging.NewPayload(errors.New("disk full"))
	require.NoError(t, err)
	assert.Equal(t, logging.TextPayload("disk full"), p)

	p, err = logging.NewPayload(durationpb.New(time.Minute))
	require.NoError(t, err)
	assert.IsType(t, logging.ProtoPayload{}, p)

	p, err = logging.NewPayload(&request{Path: "/", Status: 200, secret: "x"})
	require.NoError(t, err)
	assert.Equal(t, logging.StructPayload{"path": "/", "status": float64(200)}, p)

	p, err = logging.NewPayload(map[color]int{1: 7})
	require.NoError(t, err)
	assert.Equal(t, logging.StructPayload{"green": 7}, p)

	var nilReq *request
	p, err = logging.NewPayload(nilReq)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestStructPayloadNormalized(t *testing.T) {
	when := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	e := &logging.Entry{Payload: logging.StructPayload{
		"when":   when,
		"color":  color(0),
		"ids":    []int{1, 2},
		"counts": map[int]string{1: "one"},
	}}
	pb, err := e.ToProto()
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"when":   "2020-01-02T03:04:05Z",
		"color":  "red",
		"ids":    []interface{}{float64(1), float64(2)},
		"counts": map[string]interface{}{"1": "one"},
	}, pb.GetJsonPayload().AsMap())
}

func TestCoerceLabels(t *testing.T) {
	assert.Nil(t, logging.CoerceLabels(nil))
	assert.Equal(t, map[string]string{
		"count": "3",
		"color": "green",
		"ok":    "true",
		"none":  "",
	}, logging.CoerceLabels(map[string]interface{}{
		"count": 3,
		"color": color(1),
		"ok":    true,
		"none":  nil,
	}))
}

func TestLogPath(t *testing.T) {
	p, err := logging.LogPath("p", "syslog")
	require.NoError(t, err)
	assert.Equal(t, "projects/p/logs/syslog", p)

	p, err = logging.LogPath("p", "projects/other/logs/cloudaudit.googleapis.com%2Factivity")
	require.NoError(t, err)
	assert.Equal(t, "projects/other/logs/cloudaudit.googleapis.com%2Factivity", p)

	for _, bad := range []string{"", "bad name", "tab\there", "projects/p/topics/x", string(make([]byte, 600))} {
		_, err := logging.LogPath("p", bad)
		assert.True(t, apierr.IsInvalid(err), "%q", bad)
	}

	_, err = logging.LogPath("", "syslog")
	assert.True(t, apierr.IsInvalid(err))
}
