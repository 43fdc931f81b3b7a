package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking core.
type BookingMetrics struct {
	apiRequests       *prometheus.CounterVec
	apiLatency        *prometheus.HistogramVec
	pinSubmissions    *prometheus.CounterVec
	cyclePayments     *prometheus.CounterVec
	selectionRejected *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chefbook",
			Subsystem: "chefapi",
			Name:      "requests_total",
			Help:      "Total backend requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chefbook",
			Subsystem: "chefapi",
			Name:      "request_duration_seconds",
			Help:      "Latency of backend requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		pinSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chefbook",
			Subsystem: "wallet",
			Name:      "pin_submissions_total",
			Help:      "Wallet PIN submissions by result",
		}, []string{"result"}),
		cyclePayments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chefbook",
			Subsystem: "ledger",
			Name:      "cycle_payments_total",
			Help:      "Payment cycle payment attempts by outcome",
		}, []string{"outcome"}),
		selectionRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chefbook",
			Subsystem: "draft",
			Name:      "selection_rejections_total",
			Help:      "Rejected draft mutations by reason",
		}, []string{"reason"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.apiRequests, m.apiLatency, m.pinSubmissions, m.cyclePayments, m.selectionRejected)
	return m
}

func (m *BookingMetrics) ObserveRequest(endpoint, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(endpoint, outcome).Inc()
	m.apiLatency.WithLabelValues(endpoint).Observe(seconds)
}

func (m *BookingMetrics) ObservePinSubmission(result string) {
	if m == nil {
		return
	}
	m.pinSubmissions.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObserveCyclePayment(outcome string) {
	if m == nil {
		return
	}
	m.cyclePayments.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	m.selectionRejected.WithLabelValues(reason).Inc()
}
