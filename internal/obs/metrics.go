package obs

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	LockAcquireTotal *prometheus.CounterVec   // result=acquired|busy|error
	LockReleaseTotal *prometheus.CounterVec   // result=released|not_owner|error
	LockOpDuration   *prometheus.HistogramVec // op=acquire|release

	ConflictChecks *prometheus.CounterVec // outcome=free|conflict|self_healed|unverified|rejected
	BookingOps     *prometheus.CounterVec // op=create|cancel|update_status, result=ok|<error>
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LockAcquireTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_lock_acquire_total",
				Help: "Total lock acquire attempts by result",
			},
			[]string{"result"},
		),
		LockReleaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_lock_release_total",
				Help: "Total lock release attempts by result",
			},
			[]string{"result"},
		),
		LockOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "booking_lock_op_duration_seconds",
				Help:    "Latency of lock backend operations",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms .. ~1s
			},
			[]string{"op"},
		),
		ConflictChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_conflict_checks_total",
				Help: "Conflict checks by outcome",
			},
			[]string{"outcome"},
		),
		BookingOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_operations_total",
				Help: "Booking orchestrator operations by result",
			},
			[]string{"op", "result"},
		),
	}

	reg.MustRegister(
		m.LockAcquireTotal,
		m.LockReleaseTotal,
		m.LockOpDuration,
		m.ConflictChecks,
		m.BookingOps,
	)
	return m
}

func (m *Metrics) LockAcquired(result string, seconds float64) {
	if m == nil {
		return
	}
	m.LockAcquireTotal.WithLabelValues(result).Inc()
	m.LockOpDuration.WithLabelValues("acquire").Observe(seconds)
}

func (m *Metrics) LockReleased(result string, seconds float64) {
	if m == nil {
		return
	}
	m.LockReleaseTotal.WithLabelValues(result).Inc()
	m.LockOpDuration.WithLabelValues("release").Observe(seconds)
}

func (m *Metrics) ConflictCheck(outcome string) {
	if m == nil {
		return
	}
	m.ConflictChecks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) BookingOp(op, result string) {
	if m == nil {
		return
	}
	m.BookingOps.WithLabelValues(op, result).Inc()
}
