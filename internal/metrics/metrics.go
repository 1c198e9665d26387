// Package metrics owns the Prometheus collectors of the settlement service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway outcomes recorded on payment_gateway_requests_total.
const (
	OutcomeSuccess     = "success"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeInvalid     = "invalid"
)

// Metrics groups the collectors. All fields are registered on the registerer
// passed to New.
type Metrics struct {
	GatewayRequests *prometheus.CounterVec
	GatewayAttempts *prometheus.CounterVec
	GatewayLatency  *prometheus.HistogramVec
	CircuitState    *prometheus.GaugeVec
	Transitions     *prometheus.CounterVec
	OrderPushes     *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		GatewayRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_gateway_requests_total",
			Help: "Approval calls per provider by final outcome.",
		}, []string{"provider", "outcome"}),
		GatewayAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_gateway_attempts_total",
			Help: "HTTP attempts sent to a provider, including retries.",
		}, []string{"provider"}),
		GatewayLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payment_gateway_attempt_duration_seconds",
			Help:    "Latency of single provider attempts.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		CircuitState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "payment_circuit_state",
			Help: "Circuit breaker state per provider (0 closed, 1 open, 2 half-open).",
		}, []string{"provider"}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_transitions_total",
			Help: "Payment status transitions by target status.",
		}, []string{"to"}),
		OrderPushes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_order_status_pushes_total",
			Help: "Order status notifications by status and result.",
		}, []string{"status", "result"}),
	}
}

// NewNop returns collectors registered on a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
