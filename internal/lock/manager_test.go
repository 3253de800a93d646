package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/court-booking-engine/internal/kv"
	"github.com/nekogravitycat/court-booking-engine/internal/obs"
)

var (
	day    = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	ten    = day.Add(10 * time.Hour)
	eleven = day.Add(11 * time.Hour)
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(t *testing.T) (*Manager, *kv.Memory, *fakeClock, *obs.Metrics) {
	t.Helper()
	backend := kv.NewMemory()
	clock := &fakeClock{now: day}
	backend.SetClock(clock.Now)
	metrics := obs.NewMetrics(prometheus.NewRegistry())
	return NewManager(backend, 30*time.Second, metrics), backend, clock, metrics
}

func TestAcquireIsExclusivePerWindow(t *testing.T) {
	ctx := context.Background()
	m, _, _, metrics := newTestManager(t)

	token, ok, err := m.Acquire(ctx, "court-1", ten, eleven)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = m.Acquire(ctx, "court-1", ten, eleven)
	require.NoError(t, err)
	assert.False(t, ok, "identical window must be rejected while held")

	// Overlapping but not identical windows use a different key.
	_, ok, err = m.Acquire(ctx, "court-1", ten.Add(30*time.Minute), eleven.Add(30*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	// Same window on another court is independent.
	_, ok, err = m.Acquire(ctx, "court-2", ten, eleven)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.LockAcquireTotal.WithLabelValues("acquired")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.LockAcquireTotal.WithLabelValues("busy")))
}

func TestReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m, _, _, _ := newTestManager(t)

	token, ok, err := m.Acquire(ctx, "court-1", ten, eleven)
	require.NoError(t, err)
	require.True(t, ok)

	released, err := m.Release(ctx, "court-1", ten, eleven, token)
	require.NoError(t, err)
	assert.True(t, released)

	released, err = m.Release(ctx, "court-1", ten, eleven, token)
	require.NoError(t, err)
	assert.False(t, released, "second release is a no-op")

	_, ok, err = m.Acquire(ctx, "court-1", ten, eleven)
	require.NoError(t, err)
	assert.True(t, ok, "window is free after release")
}

func TestReleaseWithForeignTokenDoesNothing(t *testing.T) {
	ctx := context.Background()
	m, _, _, _ := newTestManager(t)

	_, ok, err := m.Acquire(ctx, "court-1", ten, eleven)
	require.NoError(t, err)
	require.True(t, ok)

	released, err := m.Release(ctx, "court-1", ten, eleven, "not-my-token")
	require.NoError(t, err)
	assert.False(t, released)

	released, err = m.Release(ctx, "court-1", ten, eleven, "")
	require.NoError(t, err)
	assert.False(t, released)

	_, ok, err = m.Acquire(ctx, "court-1", ten, eleven)
	require.NoError(t, err)
	assert.False(t, ok, "lock still held by its owner")
}

func TestExpiredLockIsNotStolenBack(t *testing.T) {
	ctx := context.Background()
	m, _, clock, _ := newTestManager(t)

	first, ok, err := m.Acquire(ctx, "court-1", ten, eleven)
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(31 * time.Second)

	second, ok, err := m.Acquire(ctx, "court-1", ten, eleven)
	require.NoError(t, err)
	require.True(t, ok, "expired lock can be re-acquired")

	released, err := m.Release(ctx, "court-1", ten, eleven, first)
	require.NoError(t, err)
	assert.False(t, released, "stale owner must not release the new holder's lock")

	released, err = m.Release(ctx, "court-1", ten, eleven, second)
	require.NoError(t, err)
	assert.True(t, released)
}

func TestConcurrentAcquireHasSingleWinner(t *testing.T) {
	ctx := context.Background()
	m, _, _, _ := newTestManager(t)

	const callers = 50
	results := make(chan bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := m.Acquire(ctx, "court-1", ten, eleven)
			results <- err == nil && ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestBackendFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	m, backend, _, metrics := newTestManager(t)
	backend.SetErr(errors.New("redis down"))

	_, ok, err := m.Acquire(ctx, "court-1", ten, eleven)
	require.Error(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, err, kv.ErrUnavailable)

	_, err = m.Release(ctx, "court-1", ten, eleven, "token")
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.LockAcquireTotal.WithLabelValues("error")))
}

func TestKeyUsesExactWindow(t *testing.T) {
	assert.Equal(t,
		"lock:booking:court-1:1772445600:1772449200",
		Key("court-1", ten, eleven),
	)
}
