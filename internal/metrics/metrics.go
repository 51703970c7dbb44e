// Package metrics exposes Prometheus collectors for the transport, the API
// client and the load generator. Every Collector owns its own registry so
// tests and parallel runs never share counters.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hn"

// Collector records harness metrics.
type Collector struct {
	registry *prometheus.Registry

	attempts        *prometheus.CounterVec
	retries         *prometheus.CounterVec
	attemptDuration prometheus.Histogram
	outcomes        *prometheus.CounterVec
	loadRequests    *prometheus.CounterVec
	loadDuration    *prometheus.HistogramVec
}

// New creates a Collector backed by a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "attempts_total",
			Help:      "HTTP GET attempts by result (ok, timeout, connection, server_error).",
		}, []string{"result"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "retries_total",
			Help:      "Backoff sleeps scheduled, by the failure kind that triggered them.",
		}, []string{"kind"}),
		attemptDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "attempt_duration_seconds",
			Help:      "Latency of single HTTP GET attempts.",
			Buckets:   prometheus.DefBuckets,
		}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "outcomes_total",
			Help:      "API client results by operation and outcome (found, absent, failed, list, shape_error).",
		}, []string{"op", "result"}),
		loadRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "requests_total",
			Help:      "Load generator requests by request name and result.",
		}, []string{"name", "result"}),
		loadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "request_duration_seconds",
			Help:      "Load generator response times by request name.",
			Buckets:   []float64{.025, .05, .1, .2, .4, .8, 1.6, 3.2},
		}, []string{"name"}),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// ObserveAttempt records one transport attempt.
func (c *Collector) ObserveAttempt(result string, d time.Duration) {
	c.attempts.WithLabelValues(result).Inc()
	c.attemptDuration.Observe(d.Seconds())
}

// ObserveRetry records a scheduled backoff.
func (c *Collector) ObserveRetry(kind string) {
	c.retries.WithLabelValues(kind).Inc()
}

// ObserveOutcome records an API client result.
func (c *Collector) ObserveOutcome(op, result string) {
	c.outcomes.WithLabelValues(op, result).Inc()
}

// ObserveRequest records a load generator request.
func (c *Collector) ObserveRequest(name string, d time.Duration, failed bool) {
	result := "ok"
	if failed {
		result = "failure"
	}
	c.loadRequests.WithLabelValues(name, result).Inc()
	c.loadDuration.WithLabelValues(name).Observe(d.Seconds())
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
