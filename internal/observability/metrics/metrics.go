package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the booking flows.
type SchedulingMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	conflictsTotal     prometheus.Counter
	cancellationsTotal prometheus.Counter
	slotQueryLatency   prometheus.Histogram
	calendarSyncTotal  *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vitalhub",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Total appointments booked, by type",
		}, []string{"type"}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vitalhub",
			Subsystem: "scheduling",
			Name:      "booking_conflicts_total",
			Help:      "Total booking attempts rejected for an unavailable window",
		}),
		cancellationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vitalhub",
			Subsystem: "scheduling",
			Name:      "cancellations_total",
			Help:      "Total appointments cancelled",
		}),
		slotQueryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vitalhub",
			Subsystem: "scheduling",
			Name:      "slot_query_latency_seconds",
			Help:      "Latency of available-slot listings",
			Buckets:   prometheus.DefBuckets,
		}),
		calendarSyncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vitalhub",
			Subsystem: "scheduling",
			Name:      "calendar_sync_total",
			Help:      "External calendar sync attempts, by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.conflictsTotal, m.cancellationsTotal, m.slotQueryLatency, m.calendarSyncTotal)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(appointmentType string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(appointmentType).Inc()
}

func (m *SchedulingMetrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflictsTotal.Inc()
}

func (m *SchedulingMetrics) ObserveCancellation() {
	if m == nil {
		return
	}
	m.cancellationsTotal.Inc()
}

func (m *SchedulingMetrics) ObserveSlotQueryLatency(seconds float64) {
	if m == nil {
		return
	}
	m.slotQueryLatency.Observe(seconds)
}

func (m *SchedulingMetrics) ObserveCalendarSync(outcome string) {
	if m == nil {
		return
	}
	m.calendarSyncTotal.WithLabelValues(outcome).Inc()
}
