package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatewayRequests      *prometheus.CounterVec
	gatewayLatency       *prometheus.HistogramVec
	paymentTransitions   *prometheus.CounterVec
	notificationsQueued  *prometheus.CounterVec
	notificationsDropped *prometheus.CounterVec
	notificationsSent    *prometheus.CounterVec
	httpRequests         *prometheus.HistogramVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		gatewayRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_gateway_requests_total",
			Help: "Calls to the payment gateway by operation and outcome.",
		}, []string{"operation", "outcome"}),
		gatewayLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payment_gateway_request_duration_seconds",
			Help:    "Latency of payment gateway calls.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"operation"}),
		paymentTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_status_transitions_total",
			Help: "Payment status changes by resulting status.",
		}, []string{"status"}),
		notificationsQueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_enqueued_total",
			Help: "Notification tasks accepted by the dispatcher.",
		}, []string{"kind"}),
		notificationsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_dropped_total",
			Help: "Notification tasks dropped because the buffer was full or publishing failed.",
		}, []string{"kind"}),
		notificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_delivered_total",
			Help: "Notification tasks handled by the worker by outcome.",
		}, []string{"kind", "outcome"}),
		httpRequests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// ObserveGatewayCall records one gateway round trip.
func (m *Metrics) ObserveGatewayCall(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(operation, outcome).Inc()
	m.gatewayLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// PaymentTransition records a payment entering status.
func (m *Metrics) PaymentTransition(status string) {
	if m == nil {
		return
	}
	m.paymentTransitions.WithLabelValues(status).Inc()
}

// NotificationQueued records an accepted notification task.
func (m *Metrics) NotificationQueued(kind string) {
	if m == nil {
		return
	}
	m.notificationsQueued.WithLabelValues(kind).Inc()
}

// NotificationDropped records a lost notification task.
func (m *Metrics) NotificationDropped(kind string) {
	if m == nil {
		return
	}
	m.notificationsDropped.WithLabelValues(kind).Inc()
}

// NotificationDelivered records the worker's handling of a task.
func (m *Metrics) NotificationDelivered(kind, outcome string) {
	if m == nil {
		return
	}
	m.notificationsSent.WithLabelValues(kind, outcome).Inc()
}

// ObserveHTTPRequest records one served HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}
