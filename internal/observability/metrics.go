package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the engine's prometheus collectors.
type Metrics struct {
	requestCount     *prometheus.CounterVec
	errorCount       *prometheus.CounterVec
	utilization      *prometheus.GaugeVec
	healthTier       *prometheus.GaugeVec
	refreshDuration  prometheus.Histogram
	fetchFailures    *prometheus.CounterVec
	alertsRaised     *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	availabilityRuns *prometheus.CounterVec
}

// NewMetrics registers collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestCount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "path", "status"}),
		errorCount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "HTTP errors by method, route and domain error code",
		}, []string{"method", "path", "code"}),
		utilization: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "queue_utilization_percent",
			Help: "Latest computed queue utilization",
		}, []string{"queue"}),
		healthTier: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "queue_health_tier",
			Help: "Queue health tier (0 excellent, 1 good, 2 warning, 3 critical, -1 unknown)",
		}, []string{"queue"}),
		refreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "queue_refresh_duration_seconds",
			Help:    "Duration of a queue refresh cycle",
			Buckets: prometheus.DefBuckets,
		}),
		fetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_fetch_failures_total",
			Help: "Refresh cycles skipped because queue data could not be loaded",
		}, []string{"queue"}),
		alertsRaised: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_alerts_total",
			Help: "Alerts accepted into a queue's buffer",
		}, []string{"queue", "severity"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_transitions_total",
			Help: "Ticket status transition attempts",
		}, []string{"from", "to", "result"}),
		availabilityRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_availability_writes_total",
			Help: "Agent availability writes by result",
		}, []string{"result"}),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(method, path, code).Inc()
}

// RecordRefresh stores the outcome of one monitor cycle. tier is -1 when unknown.
func (m *Metrics) RecordRefresh(queueID string, utilization float64, known bool, tier int, took time.Duration) {
	if m == nil {
		return
	}
	m.refreshDuration.Observe(took.Seconds())
	if known {
		m.utilization.WithLabelValues(queueID).Set(utilization)
	}
	m.healthTier.WithLabelValues(queueID).Set(float64(tier))
}

// RecordFetchFailure counts a skipped cycle.
func (m *Metrics) RecordFetchFailure(queueID string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(queueID).Inc()
}

// RecordAlert counts an accepted alert.
func (m *Metrics) RecordAlert(queueID, severity string) {
	if m == nil {
		return
	}
	m.alertsRaised.WithLabelValues(queueID, severity).Inc()
}

// RecordTransition counts a status transition attempt.
func (m *Metrics) RecordTransition(from, to, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to, result).Inc()
}

// RecordAvailabilityWrite counts an availability toggle.
func (m *Metrics) RecordAvailabilityWrite(result string) {
	if m == nil {
		return
	}
	m.availabilityRuns.WithLabelValues(result).Inc()
}
