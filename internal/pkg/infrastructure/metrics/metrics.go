package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WriteCollector exposes Prometheus metrics for the write protocol. All
// recording methods are safe to call on a nil collector, so callers
// that run without metrics pass nil instead of guarding every call.
type WriteCollector struct {
	registry         *prometheus.Registry
	submitTotal      *prometheus.CounterVec
	commitDuration   prometheus.Histogram
	conflictTotal    *prometheus.CounterVec
	rateLimitWait    prometheus.Histogram
	ambiguousOutcome prometheus.Counter
}

// NewWriteCollector constructs a collector with default counters and
// histograms registered on its own registry.
func NewWriteCollector() (*WriteCollector, error) {
	registry := prometheus.NewRegistry()

	submitTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wikibase",
		Subsystem: "write",
		Name:      "submissions_total",
		Help:      "Total number of edit submissions by outcome.",
	}, []string{"outcome"})

	commitDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "wikibase",
		Subsystem: "write",
		Name:      "commit_duration_seconds",
		Help:      "Latency distribution for committed edits, submission to commit.",
		Buckets:   prometheus.DefBuckets,
	})

	conflictTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wikibase",
		Subsystem: "write",
		Name:      "conflicts_total",
		Help:      "Total number of edit conflicts by resolution.",
	}, []string{"resolution"})

	rateLimitWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "wikibase",
		Subsystem: "write",
		Name:      "rate_limit_wait_seconds",
		Help:      "Time spent waiting out store-signalled rate limits.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	ambiguousOutcome := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wikibase",
		Subsystem: "write",
		Name:      "ambiguous_outcomes_total",
		Help:      "Total number of writes whose outcome could not be determined.",
	})

	collectors := []prometheus.Collector{
		submitTotal, commitDuration, conflictTotal, rateLimitWait, ambiguousOutcome,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &WriteCollector{
		registry:         registry,
		submitTotal:      submitTotal,
		commitDuration:   commitDuration,
		conflictTotal:    conflictTotal,
		rateLimitWait:    rateLimitWait,
		ambiguousOutcome: ambiguousOutcome,
	}, nil
}

// Handler returns an HTTP handler for exposing the collected metrics.
func (c *WriteCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *WriteCollector) RecordSubmission(outcome string) {
	if c == nil {
		return
	}
	c.submitTotal.WithLabelValues(outcome).Inc()
}

func (c *WriteCollector) RecordCommit(elapsed time.Duration) {
	if c == nil {
		return
	}
	c.commitDuration.Observe(elapsed.Seconds())
}

func (c *WriteCollector) RecordConflict(resolution string) {
	if c == nil {
		return
	}
	c.conflictTotal.WithLabelValues(resolution).Inc()
}

func (c *WriteCollector) RecordRateLimitWait(wait time.Duration) {
	if c == nil {
		return
	}
	c.rateLimitWait.Observe(wait.Seconds())
}

func (c *WriteCollector) RecordAmbiguousOutcome() {
	if c == nil {
		return
	}
	c.ambiguousOutcome.Inc()
}
