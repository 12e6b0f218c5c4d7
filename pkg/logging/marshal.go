package logging

import (
	"cloud.google.com/go/logging/apiv2/loggingpb"
	"github.com/gcloudkit/gcloud/pkg/apierr"
	"github.com/gcloudkit/gcloud/pkg/gcloud"
	"google.golang.org/genproto/googleapis/api/monitoredres"
	ltype "google.golang.org/genproto/googleapis/logging/type"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const record = "LogEntry"

// ToProto converts e to its wire form. Resource, HttpRequest, Operation and
// SourceLocation are always present, possibly empty. At most one payload slot
// is set.
func (e *Entry) ToProto() (*loggingpb.LogEntry, error) {
	pb := &loggingpb.LogEntry{
		LogName:        e.LogName,
		Resource:       e.Resource.toProto(),
		Severity:       e.Severity.toProto(),
		InsertId:       e.InsertID,
		Labels:         gcloud.CopyLabels(e.Labels),
		HttpRequest:    e.HTTPRequest.toProto(),
		Operation:      e.Operation.toProto(),
		SourceLocation: e.SourceLocation.toProto(),
		Trace:          e.Trace,
		SpanId:         e.SpanID,
		TraceSampled:   e.TraceSampled,
	}
	if !e.Timestamp.IsZero() {
		pb.Timestamp = timestamppb.New(e.Timestamp)
	}

	switch p := e.Payload.(type) {
	case nil:
	case TextPayload:
		if p != "" {
			pb.Payload = &loggingpb.LogEntry_TextPayload{TextPayload: string(p)}
		}
	case StructPayload:
		s, err := p.toProto()
		if err != nil {
			return nil, apierr.Conversion(record, "jsonPayload", map[string]interface{}(p), err)
		}
		pb.Payload = &loggingpb.LogEntry_JsonPayload{JsonPayload: s}
	case ProtoPayload:
		if p.Any != nil {
			pb.Payload = &loggingpb.LogEntry_ProtoPayload{ProtoPayload: p.Any}
		}
	}
	return pb, nil
}

// EntryFromProto converts a wire entry. A nil pb yields an empty Entry.
func EntryFromProto(pb *loggingpb.LogEntry) (*Entry, error) {
	e := &Entry{}
	if pb == nil {
		return e, nil
	}

	e.LogName = pb.GetLogName()
	e.Resource = resourceFromProto(pb.GetResource())
	e.InsertID = pb.GetInsertId()
	e.Labels = gcloud.CopyLabels(pb.GetLabels())
	e.Trace = pb.GetTrace()
	e.SpanID = pb.GetSpanId()
	e.TraceSampled = pb.GetTraceSampled()
	e.Operation = operationFromProto(pb.GetOperation())
	e.SourceLocation = sourceLocationFromProto(pb.GetSourceLocation())

	if ts := pb.GetTimestamp(); ts != nil {
		if err := ts.CheckValid(); err != nil {
			return nil, apierr.Conversion(record, "timestamp", ts, err)
		}
		e.Timestamp = ts.AsTime()
	}

	sev := Severity(pb.GetSeverity())
	if !sev.Valid() {
		return nil, apierr.Conversion(record, "severity", int32(pb.GetSeverity()), nil)
	}
	e.Severity = sev

	hr, err := httpRequestFromProto(pb.GetHttpRequest())
	if err != nil {
		return nil, err
	}
	e.HTTPRequest = hr

	switch {
	case pb.GetProtoPayload() != nil:
		e.Payload = ProtoPayload{Any: pb.GetProtoPayload()}
	case pb.GetJsonPayload() != nil:
		e.Payload = StructPayload(pb.GetJsonPayload().AsMap())
	case pb.GetTextPayload() != "":
		e.Payload = TextPayload(pb.GetTextPayload())
	}
	return e, nil
}

func (r Resource) toProto() *monitoredres.MonitoredResource {
	return &monitoredres.MonitoredResource{
		Type:   r.Type,
		Labels: gcloud.CopyLabels(r.Labels),
	}
}

func resourceFromProto(pb *monitoredres.MonitoredResource) Resource {
	return Resource{
		Type:   pb.GetType(),
		Labels: gcloud.CopyLabels(pb.GetLabels()),
	}
}

func (r HTTPRequest) toProto() *ltype.HttpRequest {
	pb := &ltype.HttpRequest{
		RequestMethod:                  r.Method,
		RequestUrl:                     r.URL,
		RequestSize:                    r.RequestSize,
		Status:                         int32(r.Status),
		ResponseSize:                   r.ResponseSize,
		UserAgent:                      r.UserAgent,
		RemoteIp:                       r.RemoteIP,
		ServerIp:                       r.ServerIP,
		Referer:                        r.Referer,
		CacheLookup:                    r.CacheLookup,
		CacheHit:                       r.CacheHit,
		CacheValidatedWithOriginServer: r.CacheValidatedWithOriginServer,
		CacheFillBytes:                 r.CacheFillBytes,
		Protocol:                       r.Protocol,
	}
	if r.Latency != 0 {
		pb.Latency = durationpb.New(r.Latency)
	}
	return pb
}

func httpRequestFromProto(pb *ltype.HttpRequest) (HTTPRequest, error) {
	r := HTTPRequest{
		Method:                         pb.GetRequestMethod(),
		URL:                            pb.GetRequestUrl(),
		RequestSize:                    pb.GetRequestSize(),
		Status:                         int(pb.GetStatus()),
		ResponseSize:                   pb.GetResponseSize(),
		UserAgent:                      pb.GetUserAgent(),
		RemoteIP:                       pb.GetRemoteIp(),
		ServerIP:                       pb.GetServerIp(),
		Referer:                        pb.GetReferer(),
		CacheLookup:                    pb.GetCacheLookup(),
		CacheHit:                       pb.GetCacheHit(),
		CacheValidatedWithOriginServer: pb.GetCacheValidatedWithOriginServer(),
		CacheFillBytes:                 pb.GetCacheFillBytes(),
		Protocol:                       pb.GetProtocol(),
	}
	if l := pb.GetLatency(); l != nil {
		if err := l.CheckValid(); err != nil {
			return HTTPRequest{}, apierr.Conversion(record, "httpRequest.latency", l, err)
		}
		r.Latency = l.AsDuration()
	}
	return r, nil
}

func (o Operation) toProto() *loggingpb.LogEntryOperation {
	return &loggingpb.LogEntryOperation{
		Id:       o.ID,
		Producer: o.Producer,
		First:    o.First,
		Last:     o.Last,
	}
}

func operationFromProto(pb *loggingpb.LogEntryOperation) Operation {
	return Operation{
		ID:       pb.GetId(),
		Producer: pb.GetProducer(),
		First:    pb.GetFirst(),
		Last:     pb.GetLast(),
	}
}

func (l SourceLocation) toProto() *loggingpb.LogEntrySourceLocation {
	return &loggingpb.LogEntrySourceLocation{
		File:     l.File,
		Line:     l.Line,
		Function: l.Function,
	}
}

func sourceLocationFromProto(pb *loggingpb.LogEntrySourceLocation) SourceLocation {
	return SourceLocation{
		File:     pb.GetFile(),
		Line:     pb.GetLine(),
		Function: pb.GetFunction(),
	}
}
