package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// Every recording helper is safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Tool metrics
	ToolCallsTotal   *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec
	ToolCallErrors   *prometheus.CounterVec
	ToolListRequests prometheus.Counter
	RPCRequestsTotal *prometheus.CounterVec

	// Upstream metrics
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec

	// Store metrics
	StoreMutationsTotal  *prometheus.CounterVec
	StoreMutationLatency *prometheus.HistogramVec
	StorePersistDuration prometheus.Histogram
	DescriptorsEnabled   prometheus.Gauge
	DescriptorsDisabled  prometheus.Gauge

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		// Tool metrics
		ToolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apibridge_tool_calls_total",
				Help: "Total number of tool invocations",
			},
			[]string{"tool_kind", "status"},
		),
		ToolCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apibridge_tool_call_duration_seconds",
				Help:    "Duration of tool invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool_kind"},
		),
		ToolCallErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apibridge_tool_call_errors_total",
				Help: "Total number of failed tool invocations by error kind",
			},
			[]string{"error_kind"},
		),
		ToolListRequests: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "apibridge_tool_list_requests_total",
				Help: "Total number of tools/list requests",
			},
		),
		RPCRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apibridge_rpc_requests_total",
				Help: "Total number of JSON-RPC messages by method and transport",
			},
			[]string{"method", "transport"},
		),

		// Upstream metrics
		UpstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apibridge_upstream_requests_total",
				Help: "Total number of upstream HTTP requests by outcome",
			},
			[]string{"method", "outcome"},
		),
		UpstreamRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apibridge_upstream_request_duration_seconds",
				Help:    "Duration of upstream HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),

		// Store metrics
		StoreMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apibridge_store_mutations_total",
				Help: "Total number of store mutations by operation and status",
			},
			[]string{"op", "status"},
		),
		StoreMutationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apibridge_store_mutation_duration_seconds",
				Help:    "Duration of store mutations including persistence",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		StorePersistDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "apibridge_store_persist_duration_seconds",
				Help:    "Duration of atomic store file writes",
				Buckets: prometheus.DefBuckets,
			},
		),
		DescriptorsEnabled: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "apibridge_descriptors_enabled",
				Help: "Number of enabled API descriptors",
			},
		),
		DescriptorsDisabled: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "apibridge_descriptors_disabled",
				Help: "Number of disabled API descriptors",
			},
		),

		// Session metrics
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "apibridge_sessions_active",
				Help: "Number of currently active client sessions",
			},
		),
		SessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apibridge_sessions_total",
				Help: "Total number of client sessions opened",
			},
			[]string{"transport"},
		),
	}

	// Register all metrics
	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(
		m.ToolCallsTotal,
		m.ToolCallDuration,
		m.ToolCallErrors,
		m.ToolListRequests,
		m.RPCRequestsTotal,
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDuration,
		m.StoreMutationsTotal,
		m.StoreMutationLatency,
		m.StorePersistDuration,
		m.DescriptorsEnabled,
		m.DescriptorsDisabled,
		m.SessionsActive,
		m.SessionsTotal,
	)
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

// RecordRPC counts one inbound JSON-RPC message.
func (m *Metrics) RecordRPC(method, transport string) {
	if m == nil {
		return
	}
	m.RPCRequestsTotal.WithLabelValues(method, transport).Inc()
}

// RecordToolList counts one tools/list request.
func (m *Metrics) RecordToolList() {
	if m == nil {
		return
	}
	m.ToolListRequests.Inc()
}

// RecordToolCall records one tool invocation. kind is "builtin" or "api";
// errorKind is empty on success.
func (m *Metrics) RecordToolCall(kind, errorKind string, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(kind, status(errorKind == "")).Inc()
	m.ToolCallDuration.WithLabelValues(kind).Observe(d.Seconds())
	if errorKind != "" {
		m.ToolCallErrors.WithLabelValues(errorKind).Inc()
	}
}

// RecordUpstream records one outbound request. outcome is an HTTP status
// class such as "2xx", or "network"/"timeout".
func (m *Metrics) RecordUpstream(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(method, outcome).Inc()
	m.UpstreamRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RecordStoreMutation records one store mutation attempt.
func (m *Metrics) RecordStoreMutation(op string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.StoreMutationsTotal.WithLabelValues(op, status(ok)).Inc()
	m.StoreMutationLatency.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveStorePersist records one atomic file write.
func (m *Metrics) ObserveStorePersist(d time.Duration) {
	if m == nil {
		return
	}
	m.StorePersistDuration.Observe(d.Seconds())
}

// SetDescriptorCounts publishes the current descriptor population.
func (m *Metrics) SetDescriptorCounts(enabled, disabled int) {
	if m == nil {
		return
	}
	m.DescriptorsEnabled.Set(float64(enabled))
	m.DescriptorsDisabled.Set(float64(disabled))
}

// SessionOpened counts a new client session.
func (m *Metrics) SessionOpened(transport string) {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues(transport).Inc()
	m.SessionsActive.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
