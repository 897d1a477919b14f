package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks booking outcomes and the probe cache hit rate.
type Metrics struct {
	BookingsCreated   prometheus.Counter
	BookingConflicts  prometheus.Counter
	ProbeResults      *prometheus.CounterVec
	CreateDuration    prometheus.Histogram
	StatusTransitions *prometheus.CounterVec
}

// New registers the booking metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers on reg; tests pass a fresh prometheus.NewRegistry().
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BookingsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "tutorly_bookings_created_total",
			Help: "Total number of bookings reserved",
		}),
		BookingConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "tutorly_booking_conflicts_total",
			Help: "Booking attempts rejected because the slot was already held",
		}),
		ProbeResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorly_slot_probes_total",
			Help: "Slot probes by answering source and result",
		}, []string{"source", "available"}),
		CreateDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tutorly_booking_create_duration_seconds",
			Help:    "Duration of booking creation including the conflict gate",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tutorly_booking_status_transitions_total",
			Help: "Booking status transitions by target status",
		}, []string{"status"}),
	}
}

func (m *Metrics) IncrementCreated() {
	if m == nil {
		return
	}
	m.BookingsCreated.Inc()
}

func (m *Metrics) IncrementConflict() {
	if m == nil {
		return
	}
	m.BookingConflicts.Inc()
}

func (m *Metrics) ObserveProbe(source string, available bool) {
	if m == nil {
		return
	}
	v := "false"
	if available {
		v = "true"
	}
	m.ProbeResults.WithLabelValues(source, v).Inc()
}

// ObserveCreate records a creation attempt's duration. Call with time.Now() taken at the start.
func (m *Metrics) ObserveCreate(start time.Time) {
	if m == nil {
		return
	}
	m.CreateDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementTransition(status string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(status).Inc()
}
