// Package metrics wraps the Prometheus collectors for persistence and sync telemetry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tartampluch/go-lifegrid/internal/config"
)

const (
	resultSuccess = "success"
	resultError   = "error"
)

// Collector owns a private registry so tests can create as many as they like.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	gatewayWrites  *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
	gatewayPending *prometheus.GaugeVec
	syncOps        *prometheus.CounterVec
	syncLatency    *prometheus.HistogramVec
	mutations      *prometheus.CounterVec
	feedRequests   *prometheus.CounterVec
}

// NewCollector creates a collector under the given namespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = config.MetricsNamespace
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.gatewayWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "writes_total",
			Help:      "Total number of snapshot writes per scope",
		},
		[]string{"scope", "result"},
	)

	c.gatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "write_duration_seconds",
			Help:      "Time taken to encode and write a snapshot",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"scope"},
	)

	c.gatewayPending = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "pending",
			Help:      "Snapshots queued but not yet written",
		},
		[]string{"scope"},
	)

	c.syncOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "operations_total",
			Help:      "Total number of remote fetch and upsert operations",
		},
		[]string{"record", "op", "result"},
	)

	c.syncLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Time taken by remote operations",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"record", "op"},
	)

	c.mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "mutations_total",
			Help:      "Total number of state changes per store",
		},
		[]string{"store"},
	)

	c.feedRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "requests_total",
			Help:      "Calendar feed requests by response code",
		},
		[]string{"code"},
	)

	c.registry.MustRegister(
		c.gatewayWrites,
		c.gatewayLatency,
		c.gatewayPending,
		c.syncOps,
		c.syncLatency,
		c.mutations,
		c.feedRequests,
	)

	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordWrite records one gateway write attempt.
func (c *Collector) RecordWrite(scope string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.gatewayWrites.WithLabelValues(scope, result(err)).Inc()
	c.gatewayLatency.WithLabelValues(scope).Observe(duration.Seconds())
}

// RecordPending sets the queue depth of a scope.
func (c *Collector) RecordPending(scope string, depth int) {
	if c == nil {
		return
	}
	c.gatewayPending.WithLabelValues(scope).Set(float64(depth))
}

// RecordSync records one remote operation ("fetch" or "upsert").
func (c *Collector) RecordSync(record, op string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.syncOps.WithLabelValues(record, op, result(err)).Inc()
	c.syncLatency.WithLabelValues(record, op).Observe(duration.Seconds())
}

// RecordMutation counts a state change on a store.
func (c *Collector) RecordMutation(store string) {
	if c == nil {
		return
	}
	c.mutations.WithLabelValues(store).Inc()
}

// RecordFeedRequest counts a calendar feed response.
func (c *Collector) RecordFeedRequest(code int) {
	if c == nil {
		return
	}
	c.feedRequests.WithLabelValues(http.StatusText(code)).Inc()
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}
