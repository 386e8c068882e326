package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// metrics holds the Prometheus collectors exposed alongside the JSONL
// journal and stats.json. Registered on a private registry so repeated
// Store construction in tests never collides with the global default
// registerer.
type metrics struct {
	registry *prometheus.Registry
	calls    *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		registry: reg,
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcphost_tool_calls_total",
			Help: "Total tool invocations by fully-qualified tool name.",
		}, []string{"tool"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcphost_tool_errors_total",
			Help: "Total failed tool invocations by fully-qualified tool name.",
		}, []string{"tool"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mcphost_tool_call_duration_ms",
			Help:    "Tool call duration in milliseconds by fully-qualified tool name.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"tool"}),
	}
	reg.MustRegister(m.calls, m.errors, m.duration)
	return m
}

func (m *metrics) observe(entry CallLog) {
	m.calls.WithLabelValues(entry.Tool).Inc()
	if !entry.Success {
		m.errors.WithLabelValues(entry.Tool).Inc()
	}
	m.duration.WithLabelValues(entry.Tool).Observe(float64(entry.DurationMs))
}

// Handler returns the http.Handler serving this store's Prometheus text
// exposition, intended to be mounted at GET /metrics next to GET /health.
func (s *Store) Handler() http.Handler {
	return promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})
}
