package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking engine.
type BookingMetrics struct {
	requestsTotal    *prometheus.CounterVec
	resolutionsTotal *prometheus.CounterVec
	outboxTotal      *prometheus.CounterVec
	debitAmount      prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotleaf",
			Subsystem: "booking",
			Name:      "requests_total",
			Help:      "Total booking intake requests",
		}, []string{"status"}),
		resolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotleaf",
			Subsystem: "booking",
			Name:      "decision_resolutions_total",
			Help:      "Total decision token resolutions",
		}, []string{"outcome"}),
		outboxTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotleaf",
			Subsystem: "outbox",
			Name:      "deliveries_total",
			Help:      "Total outbox delivery attempts",
		}, []string{"status"}),
		debitAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "slotleaf",
			Subsystem: "giftcards",
			Name:      "debit_amount",
			Help:      "Amounts debited from gift cards",
			Buckets:   []float64{5, 10, 25, 50, 100, 250},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.resolutionsTotal, m.outboxTotal, m.debitAmount)
	return m
}

func (m *BookingMetrics) ObserveIntake(status string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveResolution(outcome string) {
	if m == nil {
		return
	}
	m.resolutionsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveOutboxDelivery(status string) {
	if m == nil {
		return
	}
	m.outboxTotal.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveDebit(amount float64) {
	if m == nil {
		return
	}
	m.debitAmount.Observe(amount)
}
