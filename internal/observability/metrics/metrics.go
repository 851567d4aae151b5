package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for booking, cancellation, cleanup and notification flows.
type BookingMetrics struct {
	bookingsTotal       *prometheus.CounterVec
	cancellationsTotal  *prometheus.CounterVec
	reapedTotal         prometheus.Counter
	notificationsTotal  *prometheus.CounterVec
	notifyLatency       *prometheus.HistogramVec
	deliveryStatusTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "bookings",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"source", "outcome"}),
		cancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "bookings",
			Name:      "cancellations_total",
			Help:      "Customer cancellation attempts by outcome",
		}, []string{"outcome"}),
		reapedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "bookings",
			Name:      "reaped_total",
			Help:      "Past reservations deleted by the cleanup job",
		}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "notifications",
			Name:      "dispatch_total",
			Help:      "WhatsApp notification dispatches by kind and outcome",
		}, []string{"kind", "outcome"}),
		notifyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "notifications",
			Name:      "dispatch_latency_seconds",
			Help:      "Latency of WhatsApp provider calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		deliveryStatusTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "notifications",
			Name:      "delivery_status_total",
			Help:      "Provider delivery status callbacks",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.cancellationsTotal, m.reapedTotal, m.notificationsTotal, m.notifyLatency, m.deliveryStatusTotal)
	return m
}

func (m *BookingMetrics) ObserveBooking(source, outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(source, outcome).Inc()
}

func (m *BookingMetrics) ObserveCancellation(outcome string) {
	if m == nil {
		return
	}
	m.cancellationsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveReaped(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.reapedTotal.Add(float64(count))
}

func (m *BookingMetrics) ObserveNotification(kind, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(kind, outcome).Inc()
	if seconds > 0 {
		m.notifyLatency.WithLabelValues(kind).Observe(seconds)
	}
}

func (m *BookingMetrics) ObserveDeliveryStatus(status string) {
	if m == nil {
		return
	}
	m.deliveryStatusTotal.WithLabelValues(status).Inc()
}
