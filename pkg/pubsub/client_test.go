package pubsub_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gcloudkit/gcloud/pkg/apierr"
	"github.com/gcloudkit/gcloud/pkg/backoff"
	"github.com/gcloudkit/gcloud/pkg/gcloud"
	"github.com/gcloudkit/gcloud/pkg/pubsub"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	raw "google.golang.org/api/pubsub/v1"
)

// fakePubSub fans published messages out to the subscriptions of a topic.
type fakePubSub struct {
	m         sync.Mutex
	topics    map[string]*raw.Topic
	subs      map[string]*raw.Subscription
	queues    map[string][]*raw.ReceivedMessage
	published []*raw.PubsubMessage
	acked     []string
	nextID    int
}

func newFake() *fakePubSub {
	return &fakePubSub{
		topics: map[string]*raw.Topic{},
		subs:   map[string]*raw.Subscription{},
		queues: map[string][]*raw.ReceivedMessage{},
	}
}

func (f *fakePubSub) handler() http.Handler {
	r := chi.NewRouter()
	// custom methods look like .../topics/t:publish
	r.HandleFunc("/v1/projects/{project}/{kind}/{resource}", func(w http.ResponseWriter, r *http.Request) {
		f.m.Lock()
		defer f.m.Unlock()

		resource, method := chi.URLParam(r, "resource"), ""
		if i := strings.Index(resource, ":"); i >= 0 {
			resource, method = resource[:i], resource[i+1:]
		}
		name := "projects/" + chi.URLParam(r, "project") + "/" + chi.URLParam(r, "kind") + "/" + resource

		switch {
		case chi.URLParam(r, "kind") == "topics" && r.Method == http.MethodPut:
			var t raw.Topic
			json.NewDecoder(r.Body).Decode(&t)
			t.Name = name
			f.topics[name] = &t
			reply(w, http.StatusOK, &t)
		case chi.URLParam(r, "kind") == "topics" && method == "publish":
			f.publish(w, r, name)
		case chi.URLParam(r, "kind") == "topics" && r.Method == http.MethodGet:
			t, ok := f.topics[name]
			if !ok {
				fail(w, http.StatusNotFound, "Resource not found")
				return
			}
			reply(w, http.StatusOK, t)
		case chi.URLParam(r, "kind") == "subscriptions" && r.Method == http.MethodPut:
			var s raw.Subscription
			json.NewDecoder(r.Body).Decode(&s)
			if _, ok := f.topics[s.Topic]; !ok {
				fail(w, http.StatusNotFound, "Resource not found")
				return
			}
			s.Name = name
			if s.AckDeadlineSeconds == 0 {
				s.AckDeadlineSeconds = 10
			}
			f.subs[name] = &s
			reply(w, http.StatusOK, &s)
		case method == "pull":
			var req raw.PullRequest
			json.NewDecoder(r.Body).Decode(&req)
			q := f.queues[name]
			n := int(req.MaxMessages)
			if n > len(q) {
				n = len(q)
			}
			reply(w, http.StatusOK, &raw.PullResponse{ReceivedMessages: q[:n]})
			f.queues[name] = q[n:]
		case method == "acknowledge":
			var req raw.AcknowledgeRequest
			json.NewDecoder(r.Body).Decode(&req)
			f.acked = append(f.acked, req.AckIds...)
			reply(w, http.StatusOK, &raw.Empty{})
		default:
			fail(w, http.StatusNotImplemented, "not implemented")
		}
	})
	return r
}

func (f *fakePubSub) publish(w http.ResponseWriter, r *http.Request, topic string) {
	if _, ok := f.topics[topic]; !ok {
		fail(w, http.StatusNotFound, "Resource not found")
		return
	}
	var req raw.PublishRequest
	json.NewDecoder(r.Body).Decode(&req)

	resp := &raw.PublishResponse{}
	for _, m := range req.Messages {
		f.nextID++
		m.MessageId = fmt.Sprint(f.nextID)
		m.PublishTime = "2016-03-01T12:30:00Z"
		f.published = append(f.published, m)
		resp.MessageIds = append(resp.MessageIds, m.MessageId)
		for name, s := range f.subs {
			if s.Topic == topic {
				f.queues[name] = append(f.queues[name], &raw.ReceivedMessage{AckId: "ack-" + m.MessageId, Message: m})
			}
		}
	}
	reply(w, http.StatusOK, resp)
}

func reply(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, code int, msg string) {
	reply(w, code, map[string]interface{}{
		"error": map[string]interface{}{"code": code, "message": msg},
	})
}

func newClient(t *testing.T, f *fakePubSub) *pubsub.Client {
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	cfg := gcloud.DefaultConfig()
	cfg.Project = "test-project"
	cfg.NoAuth = true
	cfg.Endpoints[gcloud.ServicePubSub] = srv.URL + "/"

	noSleep := func(context.Context, time.Duration) error { return nil }
	c, err := pubsub.New(context.Background(), cfg,
		gcloud.WithBackoff(backoff.New(backoff.WithSleep(noSleep))))
	require.NoError(t, err)
	return c
}

func TestPublishPull(t *testing.T) {
	f := newFake()
	c := newClient(t, f)
	ctx := context.Background()

	topic, err := c.CreateTopic(ctx, &pubsub.Topic{Name: "orders", Labels: map[string]string{"env": "test"}})
	require.NoError(t, err)
	assert.Equal(t, "projects/test-project/topics/orders", topic.Name)

	sub, err := c.CreateSubscription(ctx, &pubsub.Subscription{Name: "workers", Topic: "orders"})
	require.NoError(t, err)
	assert.Equal(t, "projects/test-project/topics/orders", sub.Topic)
	assert.Equal(t, 10*time.Second, sub.AckDeadline)

	ids, err := c.Publish(ctx, "orders",
		&pubsub.Message{Data: []byte("first"), Attributes: map[string]string{"n": "1"}},
		&pubsub.Message{Data: []byte{0xff, 0x00}},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids)

	// base64 on the wire
	require.Len(t, f.published, 2)
	assert.Equal(t, "Zmlyc3Q=", f.published[0].Data)

	msgs, err := c.Pull(ctx, "workers", 10, true)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte("first"), msgs[0].Message.Data)
	assert.Equal(t, map[string]string{"n": "1"}, msgs[0].Message.Attributes)
	assert.Equal(t, []byte{0xff, 0x00}, msgs[1].Message.Data)
	assert.False(t, msgs[0].Message.Published.IsZero())

	require.NoError(t, c.Acknowledge(ctx, "projects/test-project/subscriptions/workers", msgs[0].AckID, msgs[1].AckID))
	assert.Equal(t, []string{"ack-1", "ack-2"}, f.acked)

	msgs, err = c.Pull(ctx, "workers", 10, true)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestErrors(t *testing.T) {
	f := newFake()
	c := newClient(t, f)
	ctx := context.Background()

	_, err := c.Topic(ctx, "missing")
	assert.True(t, apierr.IsNotFound(err))

	_, err = c.Publish(ctx, "missing", &pubsub.Message{Data: []byte("x")})
	assert.True(t, apierr.IsNotFound(err))

	_, err = c.CreateSubscription(ctx, &pubsub.Subscription{Name: "s", Topic: "missing"})
	assert.True(t, apierr.IsNotFound(err))

	_, err = c.Pull(ctx, "s", 0, true)
	assert.True(t, apierr.IsInvalid(err))

	ids, err := c.Publish(ctx, "orders")
	require.NoError(t, err)
	assert.Nil(t, ids)
}
