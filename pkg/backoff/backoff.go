// Package backoff retries outbound calls that a Google service rejected with
// a rate-limit signal, waiting a little longer before every attempt.
package backoff

import (
	"context"
	"time"

	"github.com/gcloudkit/gcloud/pkg/apierr"
	"github.com/sirupsen/logrus"
)

const (
	DefaultRetries = 3
	DefaultUnit    = time.Second
)

// DelayFunc maps the 1-based retry attempt to the wait before it.
type DelayFunc func(attempt int) time.Duration

// SleepFunc performs the wait. Tests substitute a recorder.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Linear waits attempt*unit: 1s, 2s, 3s, ... for the default unit.
func Linear(unit time.Duration) DelayFunc {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * unit
	}
}

// Exponential waits base, 2*base, 4*base, ... capped at max (when max > 0).
func Exponential(base, max time.Duration) DelayFunc {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if max > 0 && d >= max {
				return max
			}
		}
		if max > 0 && d > max {
			return max
		}
		return d
	}
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Backoff is a retry policy. The zero value is not usable, build one with New.
// A Backoff holds no state between calls and may be shared.
type Backoff struct {
	Retries   int
	Delay     DelayFunc
	Sleep     SleepFunc
	Retryable func(error) bool

	service string
	log     logrus.FieldLogger
	metrics *Metrics
}

type Option func(*Backoff)

func WithRetries(n int) Option {
	return func(b *Backoff) {
		if n < 0 {
			n = 0
		}
		b.Retries = n
	}
}

func WithDelay(d DelayFunc) Option {
	return func(b *Backoff) { b.Delay = d }
}

func WithSleep(s SleepFunc) Option {
	return func(b *Backoff) { b.Sleep = s }
}

// WithReasons retries the given service error reasons on top of the
// rate-limit signals.
func WithReasons(reasons ...string) Option {
	return func(b *Backoff) { b.Retryable = apierr.RateLimitedBy(reasons...) }
}

func WithRetryable(f func(error) bool) Option {
	return func(b *Backoff) { b.Retryable = f }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Backoff) { b.log = l }
}

func WithMetrics(m *Metrics) Option {
	return func(b *Backoff) { b.metrics = m }
}

func New(opts ...Option) *Backoff {
	b := &Backoff{
		Retries:   DefaultRetries,
		Delay:     Linear(DefaultUnit),
		Sleep:     Sleep,
		Retryable: apierr.RateLimitedBy(),
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// For returns a copy of b labelled for service. Extra reasons are retried on
// top of the rate-limit signals.
func (b *Backoff) For(service string, reasons ...string) *Backoff {
	if b == nil {
		b = New()
	}
	c := *b
	c.service = service
	if len(reasons) > 0 {
		c.Retryable = apierr.RateLimitedBy(reasons...)
	}
	return &c
}

// Service is the label set by For.
func (b *Backoff) Service() string {
	return b.service
}

// Execute runs call, retrying it while it fails with a retryable error and
// attempts remain. The result of the last invocation is returned unchanged.
// If ctx is done while waiting, ctx.Err() is returned instead.
func (b *Backoff) Execute(ctx context.Context, call func() error) error {
	if b == nil {
		return call()
	}

	attempt := 1
	for {
		err := call()
		if err == nil || !b.Retryable(err) {
			return err
		}
		if attempt > b.Retries {
			b.log.WithFields(logrus.Fields{
				"service":  b.service,
				"attempts": attempt,
			}).Warn("retries exhausted")
			b.metrics.exhausted(b.service)
			return err
		}

		delay := b.Delay(attempt)
		b.log.WithFields(logrus.Fields{
			"service": b.service,
			"attempt": attempt,
			"delay":   delay,
		}).Debugf("rate limited, retrying: %v", err)
		b.metrics.retried(b.service)

		if serr := b.Sleep(ctx, delay); serr != nil {
			return serr
		}
		attempt++
	}
}
