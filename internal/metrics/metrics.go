package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "autoparts"

// Checkout holds the storefront's counters.
type Checkout struct {
	PriceCoercions  prometheus.Counter
	GuardRedirects  *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	OrderSubmits    *prometheus.CounterVec
	GatewayRequests *prometheus.CounterVec
}

func NewCheckout(reg prometheus.Registerer) *Checkout {
	m := &Checkout{
		PriceCoercions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "price_coercions_total",
			Help:      "Cart line items whose price was not numeric and was counted as zero.",
		}),
		GuardRedirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "guard_redirects_total",
			Help:      "Stage entries redirected because a prerequisite was missing.",
		}, []string{"view", "target"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "transitions_total",
			Help:      "Completed stage transitions.",
		}, []string{"to"}),
		OrderSubmits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "order_submissions_total",
			Help:      "Order creation requests by result.",
		}, []string{"result"}),
		GatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "gateway_requests_total",
			Help:      "Payment gateway calls by operation and result.",
		}, []string{"op", "result"}),
	}
	reg.MustRegister(m.PriceCoercions, m.GuardRedirects, m.Transitions, m.OrderSubmits, m.GatewayRequests)
	return m
}

// Backend holds the order API's counters.
type Backend struct {
	Requests        *prometheus.CounterVec
	LatencyMS       *prometheus.HistogramVec
	WebhookEvents   *prometheus.CounterVec
	OrderReplays    prometheus.Counter
	Reconciliations *prometheus.CounterVec
}

func NewBackend(reg prometheus.Registerer) *Backend {
	m := &Backend{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "webhook_events_total",
			Help:      "Payment webhook events by type and result.",
		}, []string{"event", "result"}),
		OrderReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "order_replays_total",
			Help:      "Order creation requests answered from an existing order.",
		}),
		Reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "reconciled_orders_total",
			Help:      "Stuck orders resolved by the reconciliation worker.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.Requests, m.LatencyMS, m.WebhookEvents, m.OrderReplays, m.Reconciliations)
	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}
