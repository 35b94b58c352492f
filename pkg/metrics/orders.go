package metrics

import "github.com/prometheus/client_golang/prometheus"

// OrderMetrics tracks order lifecycle and inventory consistency signals.
type OrderMetrics struct {
	transitions *prometheus.CounterVec
	conflicts   prometheus.Counter
	oversell    *prometheus.CounterVec
	reconciled  *prometheus.CounterVec
	notifyFail  *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on reg. A nil registerer yields a no-op recorder.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	m := &OrderMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Committed order status transitions.",
		}, []string{"from", "to"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_version_conflicts_total",
			Help:      "Order updates rejected by the optimistic version check.",
		}),
		oversell: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_oversell_total",
			Help:      "Stock reductions that were clamped at zero.",
		}, []string{"product_id"}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhooks_total",
			Help:      "Payment webhook reconciliations by gateway and outcome.",
		}, []string{"gateway", "outcome"}),
		notifyFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Post-commit notifications that failed to publish.",
		}, []string{"event"}),
	}
	reg.MustRegister(m.transitions, m.conflicts, m.oversell, m.reconciled, m.notifyFail)
	return m
}

func (m *OrderMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *OrderMetrics) IncVersionConflict() {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *OrderMetrics) IncOversell(productID string) {
	if m == nil || m.oversell == nil {
		return
	}
	m.oversell.WithLabelValues(normalizeLabel(productID)).Inc()
}

// IncWebhook records a reconciliation outcome such as approved, rejected, pending, duplicate or error.
func (m *OrderMetrics) IncWebhook(gateway, outcome string) {
	if m == nil || m.reconciled == nil {
		return
	}
	m.reconciled.WithLabelValues(normalizeLabel(gateway), normalizeLabel(outcome)).Inc()
}

func (m *OrderMetrics) IncNotificationFailure(event string) {
	if m == nil || m.notifyFail == nil {
		return
	}
	m.notifyFail.WithLabelValues(normalizeLabel(event)).Inc()
}
