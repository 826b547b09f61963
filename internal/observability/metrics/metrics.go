package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "tarot"

// SchedulingMetrics exposes counters/histograms for availability and booking flows.
type SchedulingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	cancelsTotal     *prometheus.CounterVec
	proposalsTotal   *prometheus.CounterVec
	slotQueryLatency *prometheus.HistogramVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts by source and outcome",
		}, []string{"source", "result"}),
		cancelsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "cancellations_total",
			Help:      "Booking cancellations that changed state",
		}, []string{"source"}),
		proposalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "window_proposals_total",
			Help:      "Availability window proposals by type and resulting state",
		}, []string{"type", "state"}),
		slotQueryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "slot_query_seconds",
			Help:      "Latency of slot generation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.cancelsTotal, m.proposalsTotal, m.slotQueryLatency)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(source, result string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(source, result).Inc()
}

func (m *SchedulingMetrics) ObserveCancel(source string) {
	if m == nil {
		return
	}
	m.cancelsTotal.WithLabelValues(source).Inc()
}

func (m *SchedulingMetrics) ObserveProposal(windowType, state string) {
	if m == nil {
		return
	}
	m.proposalsTotal.WithLabelValues(windowType, state).Inc()
}

func (m *SchedulingMetrics) ObserveSlotQuery(windowType string, seconds float64) {
	if m == nil {
		return
	}
	if windowType == "" {
		windowType = "all"
	}
	m.slotQueryLatency.WithLabelValues(windowType).Observe(seconds)
}
