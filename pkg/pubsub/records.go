package pubsub

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/gcloudkit/gcloud/pkg/apierr"
	"github.com/gcloudkit/gcloud/pkg/gcloud"
	raw "google.golang.org/api/pubsub/v1"
)

// Names are either short ("orders") or fully qualified
// ("projects/p/topics/orders"); records always hold qualified names.
func qualify(project, kind, name string) string {
	if name == "" || strings.HasPrefix(name, "projects/") {
		return name
	}
	return "projects/" + project + "/" + kind + "/" + name
}

// ShortName strips the project and kind from a qualified name.
func ShortName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

type Topic struct {
	Name   string
	Labels map[string]string
}

func topicFromRaw(t *raw.Topic) *Topic {
	if t == nil {
		return &Topic{}
	}
	return &Topic{Name: t.Name, Labels: gcloud.CopyLabels(t.Labels)}
}

func (t *Topic) toRaw(project string) *raw.Topic {
	return &raw.Topic{
		Name:   qualify(project, "topics", t.Name),
		Labels: gcloud.CopyLabels(t.Labels),
	}
}

// Subscription delivers a topic's messages by pull or, when Endpoint is set,
// by push to that URL.
type Subscription struct {
	Name        string
	Topic       string
	AckDeadline time.Duration
	Endpoint    string
	Labels      map[string]string
}

func subscriptionFromRaw(s *raw.Subscription) *Subscription {
	if s == nil {
		return &Subscription{}
	}
	out := &Subscription{
		Name:        s.Name,
		Topic:       s.Topic,
		AckDeadline: time.Duration(s.AckDeadlineSeconds) * time.Second,
		Labels:      gcloud.CopyLabels(s.Labels),
	}
	if s.PushConfig != nil {
		out.Endpoint = s.PushConfig.PushEndpoint
	}
	return out
}

func (s *Subscription) toRaw(project string) *raw.Subscription {
	out := &raw.Subscription{
		Name:               qualify(project, "subscriptions", s.Name),
		Topic:              qualify(project, "topics", s.Topic),
		AckDeadlineSeconds: int64(s.AckDeadline / time.Second),
		Labels:             gcloud.CopyLabels(s.Labels),
	}
	if s.Endpoint != "" {
		out.PushConfig = &raw.PushConfig{PushEndpoint: s.Endpoint}
	}
	return out
}

// Message carries raw bytes; the wire form is base64.
type Message struct {
	ID          string
	Data        []byte
	Attributes  map[string]string
	Published   time.Time
	OrderingKey string
}

func messageFromRaw(m *raw.PubsubMessage) (*Message, error) {
	if m == nil {
		return &Message{}, nil
	}
	out := &Message{
		ID:          m.MessageId,
		Attributes:  gcloud.CopyLabels(m.Attributes),
		OrderingKey: m.OrderingKey,
	}
	if m.Data != "" {
		data, err := base64.StdEncoding.DecodeString(m.Data)
		if err != nil {
			return nil, apierr.Conversion("PubsubMessage", "data", m.Data, err)
		}
		out.Data = data
	}
	published, err := gcloud.ParseTime("PubsubMessage", "publishTime", m.PublishTime)
	if err != nil {
		return nil, err
	}
	out.Published = published
	return out, nil
}

// toRaw leaves out the ID and publish time, which the service assigns.
func (m *Message) toRaw() *raw.PubsubMessage {
	return &raw.PubsubMessage{
		Data:        base64.StdEncoding.EncodeToString(m.Data),
		Attributes:  gcloud.CopyLabels(m.Attributes),
		OrderingKey: m.OrderingKey,
	}
}

// ReceivedMessage is a pulled message and the ID to acknowledge it with.
type ReceivedMessage struct {
	AckID   string
	Message *Message
	// Zero unless the subscription has a dead letter policy
	DeliveryAttempt int
}

func receivedFromRaw(r *raw.ReceivedMessage) (*ReceivedMessage, error) {
	msg, err := messageFromRaw(r.Message)
	if err != nil {
		return nil, err
	}
	return &ReceivedMessage{
		AckID:           r.AckId,
		Message:         msg,
		DeliveryAttempt: int(r.DeliveryAttempt),
	}, nil
}
