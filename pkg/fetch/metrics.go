package fetch

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts fetch-layer events. A nil *Metrics records nothing.
type Metrics struct {
	requests    *prometheus.CounterVec
	cache       *prometheus.CounterVec
	retries     prometheus.Counter
	challenges  prometheus.Counter
	waitSeconds prometheus.Histogram
}

// NewMetrics creates the fetch metrics and registers them with registerer.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	metrics := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statutes",
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Fetch requests by final result (ok, failed).",
		}, []string{"result"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statutes",
			Subsystem: "fetch",
			Name:      "cache_total",
			Help:      "Cache lookups by result (hit, miss).",
		}, []string{"result"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statutes",
			Subsystem: "fetch",
			Name:      "retries_total",
			Help:      "Attempts retried after a transient failure.",
		}),
		challenges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statutes",
			Subsystem: "fetch",
			Name:      "challenges_total",
			Help:      "Responses rejected as challenge pages or short bodies.",
		}),
		waitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "statutes",
			Subsystem: "fetch",
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting on the rate limiter per attempt.",
			Buckets:   []float64{0, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
	}

	collectors := []prometheus.Collector{
		metrics.requests, metrics.cache, metrics.retries, metrics.challenges, metrics.waitSeconds,
	}
	for _, collector := range collectors {
		if err := registerer.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register fetch metric: %w", err)
		}
	}
	return metrics, nil
}

func (metrics *Metrics) observeRequest(result string) {
	if metrics != nil {
		metrics.requests.WithLabelValues(result).Inc()
	}
}

func (metrics *Metrics) observeCache(hit bool) {
	if metrics == nil {
		return
	}
	if hit {
		metrics.cache.WithLabelValues("hit").Inc()
	} else {
		metrics.cache.WithLabelValues("miss").Inc()
	}
}

func (metrics *Metrics) observeRetry() {
	if metrics != nil {
		metrics.retries.Inc()
	}
}

func (metrics *Metrics) observeChallenge() {
	if metrics != nil {
		metrics.challenges.Inc()
	}
}

func (metrics *Metrics) observeWait(waited time.Duration) {
	if metrics != nil {
		metrics.waitSeconds.Observe(waited.Seconds())
	}
}
