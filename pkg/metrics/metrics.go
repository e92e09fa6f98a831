package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Access decisions
	Decisions         *prometheus.CounterVec
	StatusTransitions *prometheus.CounterVec
	PaymentsRecorded  *prometheus.CounterVec
	PaymentAmount     prometheus.Counter
	IdempotentReplays *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
	DatabaseLatency    *prometheus.HistogramVec

	// Worker metrics
	AuditLogsPurged prometheus.Counter
}

// New creates all application metrics and registers them with reg. A nil
// reg leaves them unregistered, which tests rely on.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_decisions_total",
			Help:      "Operation attempts by outcome and denial reason",
		}, []string{"operation", "outcome", "reason"}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Applied status transitions per entity",
		}, []string{"entity", "from", "to"}),
		PaymentsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_recorded_total",
			Help:      "Recorded payments by method",
		}, []string{"method"}),
		PaymentAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_amount_total",
			Help:      "Sum of recorded payment amounts",
		}),
		IdempotentReplays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotent_replays_total",
			Help:      "Requests answered from a previous identical request",
		}, []string{"operation"}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "path"}),

		DatabaseOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		DatabaseLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "database_operation_duration_seconds",
			Help:      "Duration of database operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),

		AuditLogsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_logs_purged_total",
			Help:      "Audit log rows removed by retention cleanup",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Decisions,
			m.StatusTransitions,
			m.PaymentsRecorded,
			m.PaymentAmount,
			m.IdempotentReplays,
			m.HTTPRequests,
			m.HTTPLatency,
			m.DatabaseOperations,
			m.DatabaseLatency,
			m.AuditLogsPurged,
		)
	}
	return m
}

// ObserveDecision counts one operation attempt. Safe on a nil receiver.
func (m *Metrics) ObserveDecision(operation, outcome, reason string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(operation, outcome, reason).Inc()
}

func (m *Metrics) ObserveTransition(entity, from, to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(entity, from, to).Inc()
}

func (m *Metrics) ObservePayment(method string, amount float64) {
	if m == nil {
		return
	}
	m.PaymentsRecorded.WithLabelValues(method).Inc()
	m.PaymentAmount.Add(amount)
}

func (m *Metrics) ObserveReplay(operation string) {
	if m == nil {
		return
	}
	m.IdempotentReplays.WithLabelValues(operation).Inc()
}

// ObserveDB records one database call started at start.
func (m *Metrics) ObserveDB(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.DatabaseOperations.WithLabelValues(operation, status).Inc()
	m.DatabaseLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, path, statusLabel(status)).Inc()
	m.HTTPLatency.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePurge(n int64) {
	if m == nil {
		return
	}
	m.AuditLogsPurged.Add(float64(n))
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
