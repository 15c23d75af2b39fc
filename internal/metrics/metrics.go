package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// RequestLatency tracks HTTP request latency by endpoint and method
	RequestLatency *prometheus.HistogramVec
	// HTTPRequestsTotal total HTTP requests
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestsInFlight current HTTP requests being processed
	HTTPRequestsInFlight prometheus.Gauge
	// CollectionsTotal counts collection runs by task kind and outcome
	CollectionsTotal *prometheus.CounterVec
	// CollectionLatency tracks collection run latency by task kind
	CollectionLatency *prometheus.HistogramVec
	// SchedulerTicks counts scheduler ticks by outcome (run, skipped)
	SchedulerTicks *prometheus.CounterVec
	// TasksDuePicked counts tasks picked up per tick
	TasksDuePicked prometheus.Counter
	// TaskTransitions counts task status transitions
	TaskTransitions *prometheus.CounterVec
	// AccountHealth tracks usability per bound account
	AccountHealth *prometheus.GaugeVec
	// ErrorCounter counts errors by type and endpoint
	ErrorCounter *prometheus.CounterVec
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		CollectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collections_total",
				Help:      "Total number of collection runs",
			},
			[]string{"kind", "outcome"},
		),
		CollectionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "collection_latency_seconds",
				Help:      "Collection run latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"kind"},
		),
		SchedulerTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_ticks_total",
				Help:      "Total number of scheduler ticks",
			},
			[]string{"outcome"},
		),
		TasksDuePicked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_due_picked_total",
				Help:      "Total number of due tasks picked up by the scheduler",
			},
		),
		TaskTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_transitions_total",
				Help:      "Total number of task status transitions",
			},
			[]string{"status"},
		),
		AccountHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "account_health_status",
				Help:      "Usability of bound accounts (1=valid, 0=expired)",
			},
			[]string{"account_id"},
		),
		ErrorCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors",
			},
			[]string{"type", "endpoint"},
		),
	}

	// Register metrics with custom registry
	registry.MustRegister(
		m.RequestLatency,
		m.HTTPRequestsTotal,
		m.HTTPRequestsInFlight,
		m.CollectionsTotal,
		m.CollectionLatency,
		m.SchedulerTicks,
		m.TasksDuePicked,
		m.TaskTransitions,
		m.AccountHealth,
		m.ErrorCounter,
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequestLatency records the latency of an HTTP request
func (m *Metrics) RecordRequestLatency(endpoint, method, status string, durationSeconds float64) {
	m.RequestLatency.WithLabelValues(endpoint, method, status).Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint, method, status string) {
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// IncHTTPRequestsInFlight increments the in-flight requests counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight decrements the in-flight requests counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordCollection records the outcome and latency of one collection run
func (m *Metrics) RecordCollection(kind, outcome string, durationSeconds float64) {
	m.CollectionsTotal.WithLabelValues(kind, outcome).Inc()
	m.CollectionLatency.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordTick records one scheduler tick
func (m *Metrics) RecordTick(outcome string, picked int) {
	m.SchedulerTicks.WithLabelValues(outcome).Inc()
	if picked > 0 {
		m.TasksDuePicked.Add(float64(picked))
	}
}

// RecordTaskTransition records a task status change
func (m *Metrics) RecordTaskTransition(status string) {
	m.TaskTransitions.WithLabelValues(status).Inc()
}

// SetAccountHealth sets the usability gauge for an account
func (m *Metrics) SetAccountHealth(accountID string, healthy bool) {
	value := 1.0
	if !healthy {
		value = 0.0
	}
	m.AccountHealth.WithLabelValues(accountID).Set(value)
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, endpoint string) {
	m.ErrorCounter.WithLabelValues(errorType, endpoint).Inc()
}
