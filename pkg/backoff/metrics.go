package backoff

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts retries per service. A nil *Metrics records nothing.
type Metrics struct {
	// Retries counts waits taken after a rate-limit signal.
	// Labels: service
	Retries *prometheus.CounterVec

	// Exhausted counts calls that were still rate limited after the last retry.
	// Labels: service
	Exhausted *prometheus.CounterVec
}

// NewMetrics registers the backoff counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gcloud",
			Subsystem: "backoff",
			Name:      "retries_total",
			Help:      "Number of retries after a rate-limit response.",
		}, []string{"service"}),
		Exhausted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gcloud",
			Subsystem: "backoff",
			Name:      "exhausted_total",
			Help:      "Number of calls that failed after exhausting all retries.",
		}, []string{"service"}),
	}
}

func (m *Metrics) retried(service string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(service).Inc()
}

func (m *Metrics) exhausted(service string) {
	if m == nil {
		return
	}
	m.Exhausted.WithLabelValues(service).Inc()
}
