// Package pubsub publishes to and pulls from Cloud Pub/Sub.
//
// Topic and subscription arguments may be short names; they are qualified
// with the client's project.
package pubsub

import (
	"context"
	"time"

	"github.com/gcloudkit/gcloud/pkg/apierr"
	"github.com/gcloudkit/gcloud/pkg/backoff"
	"github.com/gcloudkit/gcloud/pkg/gcloud"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	raw "google.golang.org/api/pubsub/v1"
)

// The service accepts at most this many messages per publish request.
const MaxPublish = 1000

type Client struct {
	project string
	svc     *raw.Service
	log     gcloud.Logger
	backoff *backoff.Backoff
}

func New(ctx context.Context, cfg *gcloud.Config, opts ...gcloud.Option) (*Client, error) {
	s := gcloud.NewSettings(cfg, gcloud.ServicePubSub, opts...)
	if s.Project == "" {
		return nil, errors.New("pubsub requires a project")
	}
	svc, err := raw.NewService(ctx, s.ClientOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create pubsub service")
	}
	return &Client{
		project: s.Project,
		svc:     svc,
		log:     s.Logger,
		backoff: s.Backoff.For(gcloud.ServicePubSub),
	}, nil
}

func (c *Client) topic(name string) string {
	return qualify(c.project, "topics", name)
}

func (c *Client) subscription(name string) string {
	return qualify(c.project, "subscriptions", name)
}

func (c *Client) CreateTopic(ctx context.Context, t *Topic) (*Topic, error) {
	req := t.toRaw(c.project)
	var resp *raw.Topic
	err := apierr.FromAPI("pubsub.topics.create", c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.svc.Projects.Topics.Create(req.Name, req).Context(ctx).Do()
		return err
	}))
	if err != nil {
		return nil, err
	}
	c.log.WithField("topic", resp.Name).Info("created topic")
	return topicFromRaw(resp), nil
}

func (c *Client) Topic(ctx context.Context, name string) (*Topic, error) {
	var resp *raw.Topic
	err := apierr.FromAPI("pubsub.topics.get", c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.svc.Projects.Topics.Get(c.topic(name)).Context(ctx).Do()
		return err
	}))
	if err != nil {
		return nil, err
	}
	return topicFromRaw(resp), nil
}

func (c *Client) Topics(ctx context.Context) ([]*Topic, error) {
	var out []*Topic
	token := ""
	for {
		var resp *raw.ListTopicsResponse
		err := apierr.FromAPI("pubsub.topics.list", c.backoff.Execute(ctx, func() error {
			call := c.svc.Projects.Topics.List("projects/" + c.project).Context(ctx)
			if token != "" {
				call = call.PageToken(token)
			}
			var err error
			resp, err = call.Do()
			return err
		}))
		if err != nil {
			return nil, err
		}
		for _, t := range resp.Topics {
			out = append(out, topicFromRaw(t))
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		token = resp.NextPageToken
	}
}

func (c *Client) DeleteTopic(ctx context.Context, name string) error {
	return apierr.FromAPI("pubsub.topics.delete", c.backoff.Execute(ctx, func() error {
		_, err := c.svc.Projects.Topics.Delete(c.topic(name)).Context(ctx).Do()
		return err
	}))
}

// Publish sends messages to a topic and returns their IDs in order.
// Batches larger than MaxPublish are split into several requests.
func (c *Client) Publish(ctx context.Context, topic string, msgs ...*Message) ([]string, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	name := c.topic(topic)
	var ids []string
	for start := 0; start < len(msgs); start += MaxPublish {
		end := start + MaxPublish
		if end > len(msgs) {
			end = len(msgs)
		}
		req := &raw.PublishRequest{}
		for _, m := range msgs[start:end] {
			req.Messages = append(req.Messages, m.toRaw())
		}

		var resp *raw.PublishResponse
		err := apierr.FromAPI("pubsub.topics.publish", c.backoff.Execute(ctx, func() error {
			var err error
			resp, err = c.svc.Projects.Topics.Publish(name, req).Context(ctx).Do()
			return err
		}))
		if err != nil {
			return ids, err
		}
		ids = append(ids, resp.MessageIds...)
	}
	c.log.WithFields(logrus.Fields{"topic": name, "count": len(ids)}).Debug("published")
	return ids, nil
}

func (c *Client) CreateSubscription(ctx context.Context, s *Subscription) (*Subscription, error) {
	req := s.toRaw(c.project)
	var resp *raw.Subscription
	err := apierr.FromAPI("pubsub.subscriptions.create", c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.svc.Projects.Subscriptions.Create(req.Name, req).Context(ctx).Do()
		return err
	}))
	if err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{"subscription": resp.Name, "topic": resp.Topic}).Info("created subscription")
	return subscriptionFromRaw(resp), nil
}

func (c *Client) Subscription(ctx context.Context, name string) (*Subscription, error) {
	var resp *raw.Subscription
	err := apierr.FromAPI("pubsub.subscriptions.get", c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.svc.Projects.Subscriptions.Get(c.subscription(name)).Context(ctx).Do()
		return err
	}))
	if err != nil {
		return nil, err
	}
	return subscriptionFromRaw(resp), nil
}

func (c *Client) Subscriptions(ctx context.Context) ([]*Subscription, error) {
	var out []*Subscription
	token := ""
	for {
		var resp *raw.ListSubscriptionsResponse
		err := apierr.FromAPI("pubsub.subscriptions.list", c.backoff.Execute(ctx, func() error {
			call := c.svc.Projects.Subscriptions.List("projects/" + c.project).Context(ctx)
			if token != "" {
				call = call.PageToken(token)
			}
			var err error
			resp, err = call.Do()
			return err
		}))
		if err != nil {
			return nil, err
		}
		for _, s := range resp.Subscriptions {
			out = append(out, subscriptionFromRaw(s))
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		token = resp.NextPageToken
	}
}

func (c *Client) DeleteSubscription(ctx context.Context, name string) error {
	return apierr.FromAPI("pubsub.subscriptions.delete", c.backoff.Execute(ctx, func() error {
		_, err := c.svc.Projects.Subscriptions.Delete(c.subscription(name)).Context(ctx).Do()
		return err
	}))
}

// Pull fetches up to max messages. With immediate set the call returns at
// once even if no messages are available.
func (c *Client) Pull(ctx context.Context, sub string, max int, immediate bool) ([]*ReceivedMessage, error) {
	if max <= 0 {
		return nil, apierr.Invalidf("pubsub.subscriptions.pull", "max messages must be positive, got %d", max)
	}
	req := &raw.PullRequest{MaxMessages: int64(max), ReturnImmediately: immediate}

	var resp *raw.PullResponse
	err := apierr.FromAPI("pubsub.subscriptions.pull", c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.svc.Projects.Subscriptions.Pull(c.subscription(sub), req).Context(ctx).Do()
		return err
	}))
	if err != nil {
		return nil, err
	}

	out := make([]*ReceivedMessage, 0, len(resp.ReceivedMessages))
	for _, r := range resp.ReceivedMessages {
		msg, err := receivedFromRaw(r)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

func (c *Client) Acknowledge(ctx context.Context, sub string, ackIDs ...string) error {
	if len(ackIDs) == 0 {
		return nil
	}
	req := &raw.AcknowledgeRequest{AckIds: ackIDs}
	return apierr.FromAPI("pubsub.subscriptions.acknowledge", c.backoff.Execute(ctx, func() error {
		_, err := c.svc.Projects.Subscriptions.Acknowledge(c.subscription(sub), req).Context(ctx).Do()
		return err
	}))
}

// ModifyAckDeadline extends or shortens the deadline of pulled messages. A
// zero deadline makes them available for redelivery at once.
func (c *Client) ModifyAckDeadline(ctx context.Context, sub string, deadline time.Duration, ackIDs ...string) error {
	if len(ackIDs) == 0 {
		return nil
	}
	req := &raw.ModifyAckDeadlineRequest{
		AckDeadlineSeconds: int64(deadline / time.Second),
		AckIds:             ackIDs,
		ForceSendFields:    []string{"AckDeadlineSeconds"},
	}
	return apierr.FromAPI("pubsub.subscriptions.modifyAckDeadline", c.backoff.Execute(ctx, func() error {
		_, err := c.svc.Projects.Subscriptions.ModifyAckDeadline(c.subscription(sub), req).Context(ctx).Do()
		return err
	}))
}
