package seatmonitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

const namespace = "zari"

// Metrics are the prometheus collectors of a Monitor.
type Metrics struct {
	sessionsActive prometheus.Gauge
	sessionsTotal  *prometheus.CounterVec
	cyclesTotal    *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	snapshotsTotal *prometheus.CounterVec
	seatsOccupied  prometheus.Gauge

	active atomic.Int64
}

// NewMetrics creates the monitor's collectors and registers them with reg. A nil reg leaves
// them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of streaming sessions currently holding the camera",
		}),
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of streaming sessions by outcome",
		}, []string{"outcome"}), // outcome: started, rejected
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of detection cycles by status",
		}, []string{"status"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a detection cycle from frame read to emitted payload",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		snapshotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Total number of seat snapshots by status",
		}, []string{"status"}),
		seatsOccupied: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "seats_occupied",
			Help:      "Occupied seats in the most recent cycle",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Collectors()...)
	}
	return m
}

// Collectors returns every collector for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.sessionsActive,
		m.sessionsTotal,
		m.cyclesTotal,
		m.cycleDuration,
		m.snapshotsTotal,
		m.seatsOccupied,
	}
}

// ActiveSessions returns the number of sessions currently streaming.
func (m *Metrics) ActiveSessions() int64 {
	return m.active.Load()
}

func (m *Metrics) sessionStarted() {
	m.sessionsTotal.WithLabelValues("started").Inc()
	m.sessionsActive.Set(float64(m.active.Inc()))
}

func (m *Metrics) sessionEnded() {
	m.sessionsActive.Set(float64(m.active.Dec()))
}

func (m *Metrics) sessionRejected() {
	m.sessionsTotal.WithLabelValues("rejected").Inc()
}

func (m *Metrics) recordCycle(err error, seconds float64, occupied int) {
	m.cyclesTotal.WithLabelValues(statusLabel(err)).Inc()
	if err == nil {
		m.cycleDuration.Observe(seconds)
		m.seatsOccupied.Set(float64(occupied))
	}
}

func (m *Metrics) recordSnapshot(err error) {
	m.snapshotsTotal.WithLabelValues(statusLabel(err)).Inc()
}

// statusLabel maps an error to a low cardinality label value.
func statusLabel(err error) string {
	switch Kind(err) {
	case nil:
		if err != nil {
			return "error"
		}
		return "ok"
	case ErrSourceUnavailable:
		return "source_unavailable"
	case ErrSourceRead:
		return "source_read"
	case ErrDetector:
		return "detector"
	default:
		return "client_gone"
	}
}
