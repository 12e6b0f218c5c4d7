package backoff

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gcloudkit/gcloud/pkg/apierr"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errRateLimited = &googleapi.Error{
	Code:    http.StatusTooManyRequests,
	Message: "Rate Limit Exceeded",
	Errors:  []googleapi.ErrorItem{{Reason: apierr.ReasonRateLimitExceeded}},
}

// recorder replaces the real wait so tests run instantly.
type recorder struct {
	waits []time.Duration
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func TestAttemptCount(t *testing.T) {
	for _, retries := range []int{0, 1, 3, 5} {
		rec := &recorder{}
		b := New(WithRetries(retries), WithSleep(rec.sleep))

		calls := 0
		err := b.Execute(context.Background(), func() error {
			calls++
			return errRateLimited
		})

		assert.Equal(t, errRateLimited, err)
		if calls != retries+1 {
			t.Fatalf("Wrong number of calls for %d retries: Expected %v, Got %v\n", retries, retries+1, calls)
		}
	}
}

func TestLinearDelaySequence(t *testing.T) {
	rec := &recorder{}
	b := New(WithRetries(5), WithSleep(rec.sleep))

	b.Execute(context.Background(), func() error { return errRateLimited })

	expected := []time.Duration{1 * time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second, 5 * time.Second}
	assert.Equal(t, expected, rec.waits)
}

func TestNoRetryOnOtherErrors(t *testing.T) {
	rec := &recorder{}
	b := New(WithSleep(rec.sleep))

	notFound := &googleapi.Error{Code: http.StatusNotFound, Message: "Not Found"}
	calls := 0
	err := b.Execute(context.Background(), func() error {
		calls++
		return notFound
	})

	assert.Equal(t, notFound, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.waits)
}

func TestNonRateLimitErrorAfterRetry(t *testing.T) {
	rec := &recorder{}
	b := New(WithSleep(rec.sleep))

	invalid := status.Error(codes.InvalidArgument, "bad log name")
	calls := 0
	err := b.Execute(context.Background(), func() error {
		calls++
		if calls == 1 {
			return status.Error(codes.ResourceExhausted, "quota")
		}
		return invalid
	})

	assert.Equal(t, invalid, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{time.Second}, rec.waits)
}

func TestSucceedsAfterRateLimit(t *testing.T) {
	rec := &recorder{}
	b := New(WithSleep(rec.sleep))

	calls := 0
	err := b.Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errRateLimited
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.waits)
}

func TestZeroRetries(t *testing.T) {
	rec := &recorder{}
	b := New(WithRetries(0), WithSleep(rec.sleep))

	calls := 0
	err := b.Execute(context.Background(), func() error {
		calls++
		return errRateLimited
	})
	assert.Equal(t, errRateLimited, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.waits)
}

func TestCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := New(WithDelay(Linear(time.Hour)))
	calls := 0
	err := b.Execute(ctx, func() error {
		calls++
		return errRateLimited
	})

	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, 1, calls)
}

func TestForAddsReasons(t *testing.T) {
	rec := &recorder{}
	base := New(WithRetries(2), WithSleep(rec.sleep))
	bq := base.For("bigquery", apierr.ReasonBackendError)

	backendErr := &googleapi.Error{
		Code:   http.StatusInternalServerError,
		Errors: []googleapi.ErrorItem{{Reason: apierr.ReasonBackendError}},
	}

	calls := 0
	bq.Execute(context.Background(), func() error {
		calls++
		return backendErr
	})
	assert.Equal(t, 3, calls)
	assert.Equal(t, "bigquery", bq.Service())

	// the template keeps its own classifier
	calls = 0
	base.Execute(context.Background(), func() error {
		calls++
		return backendErr
	})
	assert.Equal(t, 1, calls)
}

func TestExponential(t *testing.T) {
	d := Exponential(100*time.Millisecond, time.Second)
	assert.Equal(t, 100*time.Millisecond, d(1))
	assert.Equal(t, 200*time.Millisecond, d(2))
	assert.Equal(t, 800*time.Millisecond, d(4))
	assert.Equal(t, time.Second, d(5))
	assert.Equal(t, time.Second, d(10))
}

func TestNilBackoffRunsOnce(t *testing.T) {
	var b *Backoff
	calls := 0
	err := b.Execute(context.Background(), func() error {
		calls++
		return errRateLimited
	})
	assert.Equal(t, errRateLimited, err)
	assert.Equal(t, 1, calls)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	rec := &recorder{}
	b := New(WithRetries(2), WithSleep(rec.sleep), WithMetrics(m)).For("storage")

	err := b.Execute(context.Background(), func() error { return errRateLimited })
	require.Error(t, err)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Retries.WithLabelValues("storage")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Exhausted.WithLabelValues("storage")))
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, time.Since(start) < time.Minute)

	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}
