package conflictcache

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/court-booking-engine/internal/kv"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func TestKeysAreAlignedAndHalfOpen(t *testing.T) {
	c := New(kv.NewMemory(), Options{})

	tests := []struct {
		name       string
		start, end time.Time
		want       int
	}{
		{"exact hour", at(10, 0), at(11, 0), 4},
		{"unaligned start", at(10, 10), at(11, 0), 4},
		{"unaligned end", at(10, 0), at(10, 50), 4},
		{"single sub-interval", at(10, 5), at(10, 10), 1},
		{"empty window", at(10, 0), at(10, 0), 0},
		{"reversed window", at(11, 0), at(10, 0), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, c.Keys("court-1", tt.start, tt.end), tt.want)
		})
	}

	keys := c.Keys("court-1", at(10, 0), at(10, 30))
	assert.Equal(t, []string{
		"conflict:court-1:" + itoa(at(10, 0).Unix()),
		"conflict:court-1:" + itoa(at(10, 15).Unix()),
	}, keys)
}

func TestCacheBookingMarksWindowAndMargin(t *testing.T) {
	ctx := context.Background()
	c := New(kv.NewMemory(), Options{})

	require.NoError(t, c.CacheBooking(ctx, "court-1", at(10, 0), at(11, 0), "b-1"))

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"same window", at(10, 0), at(11, 0), true},
		{"partial overlap", at(10, 30), at(11, 30), true},
		{"inside margin before", at(8, 0), at(9, 0), true},
		{"inside margin after", at(12, 0), at(12, 30), true},
		{"beyond margin", at(13, 0), at(14, 0), false},
		{"other court", at(10, 0), at(11, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resource := "court-1"
			if tt.name == "other court" {
				resource = "court-2"
			}
			hit, err := c.CheckConflict(ctx, resource, tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hit)
		})
	}
}

func TestRemoveBookingReopensWindow(t *testing.T) {
	ctx := context.Background()
	c := New(kv.NewMemory(), Options{})

	require.NoError(t, c.CacheBooking(ctx, "court-1", at(10, 0), at(11, 0), "b-1"))
	require.NoError(t, c.RemoveBooking(ctx, "court-1", at(10, 0), at(11, 0)))

	for _, w := range [][2]time.Time{{at(8, 0), at(9, 0)}, {at(10, 0), at(11, 0)}, {at(12, 30), at(13, 0)}} {
		hit, err := c.CheckConflict(ctx, "court-1", w[0], w[1])
		require.NoError(t, err)
		assert.False(t, hit)
	}
}

func TestEntriesExpire(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	now := day
	backend.SetClock(func() time.Time { return now })
	c := New(backend, Options{TTL: time.Minute})

	require.NoError(t, c.CacheBooking(ctx, "court-1", at(10, 0), at(11, 0), "b-1"))
	now = now.Add(2 * time.Minute)

	hit, err := c.CheckConflict(ctx, "court-1", at(10, 0), at(11, 0))
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestClearStaleOnlyTouchesCheckedWindow(t *testing.T) {
	ctx := context.Background()
	c := New(kv.NewMemory(), Options{Margin: -1})

	require.NoError(t, c.CacheBooking(ctx, "court-1", at(10, 0), at(12, 0), "b-1"))

	cleared, err := c.ClearStale(ctx, "court-1", at(10, 0), at(11, 0))
	require.NoError(t, err)
	assert.Equal(t, 4, cleared)

	hit, err := c.CheckConflict(ctx, "court-1", at(10, 0), at(11, 0))
	require.NoError(t, err)
	assert.False(t, hit)

	hit, err = c.CheckConflict(ctx, "court-1", at(11, 0), at(12, 0))
	require.NoError(t, err)
	assert.True(t, hit, "keys outside the checked window are kept")
}

func TestBackendErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	backend.SetErr(errors.New("down"))
	c := New(backend, Options{})

	_, err := c.CheckConflict(ctx, "court-1", at(10, 0), at(11, 0))
	assert.ErrorIs(t, err, kv.ErrUnavailable)

	err = c.CacheBooking(ctx, "court-1", at(10, 0), at(11, 0), "b-1")
	assert.ErrorIs(t, err, kv.ErrUnavailable)

	err = c.RemoveBooking(ctx, "court-1", at(10, 0), at(11, 0))
	assert.ErrorIs(t, err, kv.ErrUnavailable)
}

func TestLongWindowsNeverReachBackend(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	backend.SetErr(errors.New("must not be called"))
	c := New(backend, Options{})

	start := at(10, 0)
	end := start.AddDate(50, 0, 0)

	_, err := c.CheckConflict(ctx, "court-1", start, end)
	assert.ErrorIs(t, err, ErrSpanTooLong)
	assert.ErrorIs(t, c.CacheBooking(ctx, "court-1", start, end, "b-1"), ErrSpanTooLong)
	assert.ErrorIs(t, c.RemoveBooking(ctx, "court-1", start, end), ErrSpanTooLong)
	_, err = c.ClearStale(ctx, "court-1", start, end)
	assert.ErrorIs(t, err, ErrSpanTooLong)

	// A full day is still allowed.
	backend.SetErr(nil)
	_, err = c.CheckConflict(ctx, "court-1", day, day.Add(24*time.Hour))
	assert.NoError(t, err)
}

func TestMaxSpanOption(t *testing.T) {
	c := New(kv.NewMemory(), Options{MaxSpan: time.Hour})

	_, err := c.CheckConflict(context.Background(), "court-1", at(10, 0), at(11, 1))
	assert.ErrorIs(t, err, ErrSpanTooLong)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
