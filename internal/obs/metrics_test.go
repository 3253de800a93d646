package obs

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.LockAcquired("acquired", 0.001)
		m.LockReleased("released", 0.001)
		m.ConflictCheck("free")
		m.BookingOp("create", "ok")
	})
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.LockAcquired("acquired", 0.002)
	m.LockAcquired("busy", 0.001)
	m.LockAcquired("busy", 0.001)
	m.ConflictCheck("self_healed")
	m.BookingOp("cancel", "cancel_cutoff")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.LockAcquireTotal.WithLabelValues("acquired")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.LockAcquireTotal.WithLabelValues("busy")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConflictChecks.WithLabelValues("self_healed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BookingOps.WithLabelValues("cancel", "cancel_cutoff")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.LockOpDuration))
}

func TestNewMetricsRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
