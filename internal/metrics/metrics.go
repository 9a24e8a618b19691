package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// CheckoutMetrics tracks the orchestrator's transitions and payment policy decisions.
type CheckoutMetrics struct {
	Transitions      *prometheus.CounterVec
	PaymentOutcomes  *prometheus.CounterVec
	StoreFallbacks   *prometheus.CounterVec
	CollaboratorCall *prometheus.HistogramVec
	ActiveSessions   prometheus.Gauge
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	m := &CheckoutMetrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "transitions_total",
			Help:      "Checkout state transitions by source and target state.",
		}, []string{"from", "to"}),
		PaymentOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "payment_outcomes_total",
			Help:      "Payment submissions and retries by outcome.",
		}, []string{"path", "outcome"}),
		StoreFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "store_fallbacks_total",
			Help:      "Flows redirected to store pickup, by reason.",
		}, []string{"reason"}),
		CollaboratorCall: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collaborator",
			Name:      "request_duration_ms",
			Help:      "Collaborator request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"op", "result"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "active_sessions",
			Help:      "Checkout sessions currently held in memory.",
		}),
	}
	reg.MustRegister(m.Transitions, m.PaymentOutcomes, m.StoreFallbacks, m.CollaboratorCall, m.ActiveSessions)
	return m
}

// NewNop returns metrics registered on a throwaway registry.
func NewNop() *CheckoutMetrics {
	return NewCheckoutMetrics(prometheus.NewRegistry())
}

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
