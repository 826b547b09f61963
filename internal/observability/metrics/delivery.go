package metrics

import "github.com/prometheus/client_golang/prometheus"

// DeliveryMetrics covers payments and outbound notifications.
type DeliveryMetrics struct {
	paymentsTotal *prometheus.CounterVec
	refundsTotal  *prometheus.CounterVec
	outboxTotal   *prometheus.CounterVec
}

func NewDeliveryMetrics(reg prometheus.Registerer) *DeliveryMetrics {
	m := &DeliveryMetrics{
		paymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "payments_total",
			Help:      "Charge attempts by outcome",
		}, []string{"result"}),
		refundsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "refunds_total",
			Help:      "Refund attempts by reason and outcome",
		}, []string{"reason", "result"}),
		outboxTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "outbox_deliveries_total",
			Help:      "Outbox deliveries by event type and outcome",
		}, []string{"event_type", "result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.paymentsTotal, m.refundsTotal, m.outboxTotal)
	return m
}

func (m *DeliveryMetrics) ObservePayment(result string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(result).Inc()
}

func (m *DeliveryMetrics) ObserveRefund(reason, result string) {
	if m == nil {
		return
	}
	m.refundsTotal.WithLabelValues(reason, result).Inc()
}

func (m *DeliveryMetrics) ObserveOutbox(eventType, result string) {
	if m == nil {
		return
	}
	m.outboxTotal.WithLabelValues(eventType, result).Inc()
}
