package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AuthMetrics records outcomes of account and session operations.
type AuthMetrics struct {
	operations  *prometheus.CounterVec
	otpIssued   *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	sessionsNew prometheus.Counter
	eventErrors prometheus.Counter
}

// NewAuthMetrics registers the auth collectors with reg. A nil reg uses the default registerer.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &AuthMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather",
			Subsystem: "auth",
			Name:      "operations_total",
			Help:      "Account operations by outcome",
		}, []string{"operation", "outcome"}),
		otpIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather",
			Subsystem: "auth",
			Name:      "otp_issued_total",
			Help:      "Verification codes issued by reason",
		}, []string{"reason"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather",
			Subsystem: "auth",
			Name:      "otp_deliveries_total",
			Help:      "Verification code delivery attempts by result",
		}, []string{"result"}),
		sessionsNew: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather",
			Subsystem: "auth",
			Name:      "sessions_created_total",
			Help:      "Sessions created after verification or login",
		}),
		eventErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weather",
			Subsystem: "auth",
			Name:      "event_publish_failures_total",
			Help:      "Domain events the broker failed to accept",
		}),
	}

	reg.MustRegister(m.operations, m.otpIssued, m.deliveries, m.sessionsNew, m.eventErrors)
	return m
}

// ObserveOperation counts one finished operation.
func (m *AuthMetrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// ObserveOTPIssued counts an issued code.
func (m *AuthMetrics) ObserveOTPIssued(reason string) {
	if m == nil {
		return
	}
	m.otpIssued.WithLabelValues(reason).Inc()
}

// ObserveDelivery counts a delivery attempt.
func (m *AuthMetrics) ObserveDelivery(delivered bool) {
	if m == nil {
		return
	}
	result := "failed"
	if delivered {
		result = "delivered"
	}
	m.deliveries.WithLabelValues(result).Inc()
}

// ObserveSessionCreated counts a new session.
func (m *AuthMetrics) ObserveSessionCreated() {
	if m == nil {
		return
	}
	m.sessionsNew.Inc()
}

// ObserveEventFailure counts an event the broker rejected.
func (m *AuthMetrics) ObserveEventFailure() {
	if m == nil {
		return
	}
	m.eventErrors.Inc()
}
