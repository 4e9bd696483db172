package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics. A nil
// *Metrics disables recording everywhere.
type Metrics struct {
	// Quote batch metrics
	quoteBatchesTotal  *prometheus.CounterVec
	quoteBatchDuration *prometheus.HistogramVec
	quoteBatchSize     prometheus.Histogram

	// Execution metrics
	executionStepsTotal   *prometheus.CounterVec
	executionStepDuration *prometheus.HistogramVec
	executionRunsTotal    *prometheus.CounterVec

	// Ledger RPC metrics
	rpcCallsTotal   *prometheus.CounterVec
	rpcCallDuration *prometheus.HistogramVec
	rpcRetries      *prometheus.CounterVec

	// HTTP metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS metrics
	natsEventsPublished *prometheus.CounterVec
	natsPublishDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		quoteBatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "basketd_quote_batches_total",
				Help: "Total number of quote batch fetches by status",
			},
			[]string{"status"},
		),
		quoteBatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "basketd_quote_batch_duration_seconds",
				Help:    "Duration of quote batch fetches in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"status"},
		),
		quoteBatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "basketd_quote_batch_size",
				Help:    "Number of allocations per quote batch",
				Buckets: []float64{1, 2, 3, 5, 7, 10, 15},
			},
		),
		executionStepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "basketd_execution_steps_total",
				Help: "Total number of sequencer steps by mode and status",
			},
			[]string{"mode", "status"},
		),
		executionStepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "basketd_execution_step_duration_seconds",
				Help:    "Duration of individual sequencer steps in seconds",
				Buckets: []float64{0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"mode", "status"},
		),
		executionRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "basketd_execution_runs_total",
				Help: "Total number of execution runs by mode and terminal status",
			},
			[]string{"mode", "status"},
		),
		rpcCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "basketd_ledger_rpc_calls_total",
				Help: "Total number of ledger RPC calls by method and status",
			},
			[]string{"method", "status"},
		),
		rpcCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "basketd_ledger_rpc_call_duration_seconds",
				Help:    "Duration of ledger RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),
		rpcRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "basketd_ledger_rpc_retries_total",
				Help: "Total number of ledger RPC retries by method and reason",
			},
			[]string{"method", "reason"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "basketd_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"handler", "method"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "basketd_http_requests_total",
				Help: "Total number of HTTP requests by handler, method, and status class",
			},
			[]string{"handler", "method", "status"},
		),
		natsEventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "basketd_nats_events_published_total",
				Help: "Total number of run events published to NATS by status",
			},
			[]string{"status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "basketd_nats_publish_duration_seconds",
				Help:    "Duration of NATS publishes in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"status"},
		),
	}
}

// RecordQuoteBatch records a completed quote batch fetch.
func (m *Metrics) RecordQuoteBatch(status string, size int, duration float64) {
	m.quoteBatchesTotal.WithLabelValues(status).Inc()
	m.quoteBatchDuration.WithLabelValues(status).Observe(duration)
	m.quoteBatchSize.Observe(float64(size))
}

// RecordExecutionStep records one sequencer step outcome.
func (m *Metrics) RecordExecutionStep(mode, status string, duration float64) {
	m.executionStepsTotal.WithLabelValues(mode, status).Inc()
	m.executionStepDuration.WithLabelValues(mode, status).Observe(duration)
}

// RecordRun records a terminal run outcome.
func (m *Metrics) RecordRun(mode, status string) {
	m.executionRunsTotal.WithLabelValues(mode, status).Inc()
}

// RecordRPCCall records a ledger RPC call.
func (m *Metrics) RecordRPCCall(method, status string, duration float64) {
	m.rpcCallsTotal.WithLabelValues(method, status).Inc()
	m.rpcCallDuration.WithLabelValues(method).Observe(duration)
}

// RecordRPCRetry records a ledger RPC retry.
func (m *Metrics) RecordRPCRetry(method, reason string) {
	m.rpcRetries.WithLabelValues(method, reason).Inc()
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	m.httpRequestsTotal.WithLabelValues(handler, method, statusClass(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(handler, method).Observe(duration)
}

// RecordNATSPublish records a run-event publish.
func (m *Metrics) RecordNATSPublish(status string, duration float64) {
	m.natsEventsPublished.WithLabelValues(status).Inc()
	m.natsPublishDuration.WithLabelValues(status).Observe(duration)
}

// statusClass converts an HTTP status code to its class label (e.g., "2xx")
// to keep label cardinality flat.
func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
