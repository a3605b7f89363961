package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutSessionTotal counts checkout session creation outcomes.
	CheckoutSessionTotal *prometheus.CounterVec
	// CheckoutQuantityTotal counts books pre-ordered through created sessions.
	CheckoutQuantityTotal prometheus.Counter
	// PaymentWebhookTotal counts inbound payment webhook processing outcomes.
	PaymentWebhookTotal *prometheus.CounterVec
	// GatewayLatency records payment provider call latency in milliseconds.
	GatewayLatency *prometheus.HistogramVec
	// LedgerWriteTotal counts order ledger writes by backend and outcome.
	LedgerWriteTotal *prometheus.CounterVec
	// BreakerState is the circuit state per guarded dependency: 0 closed, 1 open, 2 half-open.
	BreakerState *prometheus.GaugeVec
	// BreakerTransitionTotal counts circuit state changes.
	BreakerTransitionTotal *prometheus.CounterVec
	// BreakerOpenedTotal counts trips into the open state.
	BreakerOpenedTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics creates the checkout, webhook, gateway, ledger and
// breaker collectors. Only the first call has an effect; packages guard against the
// collectors being nil when it was never called.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutSessionTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_session_total",
			Help:      "Checkout session creation outcomes by provider.",
		}, []string{"provider", "result"}))
		CheckoutQuantityTotal = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_books_total",
			Help:      "Books included in created checkout sessions.",
		}))
		PaymentWebhookTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_total",
			Help:      "Payment webhooks by event type and outcome.",
		}, []string{"event", "result"}))
		GatewayLatency = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_gateway_duration_ms",
			Help:      "Latency of payment provider calls in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"operation", "result"}))
		LedgerWriteTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_write_total",
			Help:      "Order ledger writes by backend and outcome.",
		}, []string{"backend", "result"}))
		BreakerState = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gateway_breaker_state",
			Help:      "Circuit state per dependency: 0 closed, 1 open, 2 half-open.",
		}, []string{"target"}))
		BreakerTransitionTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_breaker_transition_total",
			Help:      "Circuit state changes per dependency.",
		}, []string{"target", "from", "to"}))
		BreakerOpenedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_breaker_opened_total",
			Help:      "Times a dependency's circuit tripped open.",
		}, []string{"target"}))
	})
}
