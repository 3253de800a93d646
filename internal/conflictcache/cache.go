// Package conflictcache keeps a best-effort index of booked windows in the kv backend.
//
// A booked window is stored as a run of fixed-width, aligned sub-interval keys
// spanning the window plus a margin on both sides. Checking a new window is a
// single EXISTS over its sub-interval keys. The index is never authoritative:
// entries expire on their own and callers confirm every answer against the
// booking store.
package conflictcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nekogravitycat/court-booking-engine/internal/kv"
)

const (
	DefaultTTL     = 5 * time.Minute
	DefaultWidth   = 15 * time.Minute
	DefaultMargin  = 2 * time.Hour
	DefaultMaxSpan = 24 * time.Hour

	keyPrefix = "conflict"
)

// ErrSpanTooLong is returned for windows longer than the configured MaxSpan.
var ErrSpanTooLong = errors.New("conflictcache: window too long")

// Options tunes the cache layout. Zero values fall back to the defaults;
// a negative Margin disables the margin.
type Options struct {
	TTL    time.Duration
	Width  time.Duration
	Margin time.Duration
	// MaxSpan bounds the window of any single operation, margin excluded.
	MaxSpan time.Duration
}

type Cache struct {
	backend kv.Backend
	ttl     time.Duration
	width   time.Duration
	margin  time.Duration
	maxSpan time.Duration
}

func New(backend kv.Backend, opts Options) *Cache {
	c := &Cache{
		backend: backend,
		ttl:     opts.TTL,
		width:   opts.Width,
		margin:  opts.Margin,
		maxSpan: opts.MaxSpan,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.width <= 0 {
		c.width = DefaultWidth
	}
	if c.maxSpan <= 0 {
		c.maxSpan = DefaultMaxSpan
	}
	switch {
	case c.margin < 0:
		c.margin = 0
	case c.margin == 0:
		c.margin = DefaultMargin
	}
	return c
}

// Keys returns the aligned sub-interval keys intersecting [start, end).
func (c *Cache) Keys(resourceID string, start, end time.Time) []string {
	if !end.After(start) {
		return nil
	}
	first := start.Truncate(c.width)
	keys := make([]string, 0, int(end.Sub(first)/c.width)+1)
	for t := first; t.Before(end); t = t.Add(c.width) {
		keys = append(keys, fmt.Sprintf("%s:%s:%d", keyPrefix, resourceID, t.Unix()))
	}
	return keys
}

func (c *Cache) checkSpan(start, end time.Time) error {
	if end.Sub(start) > c.maxSpan {
		return fmt.Errorf("%w: %s > %s", ErrSpanTooLong, end.Sub(start), c.maxSpan)
	}
	return nil
}

// expandedKeys covers the window plus the margin on both sides.
func (c *Cache) expandedKeys(resourceID string, start, end time.Time) []string {
	return c.Keys(resourceID, start.Add(-c.margin), end.Add(c.margin))
}

// CheckConflict reports whether any cached booking likely overlaps [start, end).
func (c *Cache) CheckConflict(ctx context.Context, resourceID string, start, end time.Time) (bool, error) {
	if err := c.checkSpan(start, end); err != nil {
		return false, err
	}
	keys := c.Keys(resourceID, start, end)
	if len(keys) == 0 {
		return false, nil
	}
	n, err := c.backend.Exists(ctx, keys...)
	if err != nil {
		return false, fmt.Errorf("check conflict cache: %w", err)
	}
	return n > 0, nil
}

// CacheBooking records a persisted booking. Call it only after the store write succeeded.
func (c *Cache) CacheBooking(ctx context.Context, resourceID string, start, end time.Time, bookingID string) error {
	if err := c.checkSpan(start, end); err != nil {
		return err
	}
	keys := c.expandedKeys(resourceID, start, end)
	entries := make(map[string]string, len(keys))
	for _, k := range keys {
		entries[k] = bookingID
	}
	if err := c.backend.SetMany(ctx, entries, c.ttl); err != nil {
		return fmt.Errorf("cache booking %s: %w", bookingID, err)
	}
	return nil
}

// RemoveBooking drops the keys written by CacheBooking for the same window,
// so a cancelled window reopens without waiting for expiry.
func (c *Cache) RemoveBooking(ctx context.Context, resourceID string, start, end time.Time) error {
	if err := c.checkSpan(start, end); err != nil {
		return err
	}
	keys := c.expandedKeys(resourceID, start, end)
	if _, err := c.backend.Del(ctx, keys...); err != nil {
		return fmt.Errorf("remove cached booking: %w", err)
	}
	return nil
}

// ClearStale deletes the keys inside [start, end) after the store proved them wrong.
// Each key is removed only if it still holds the value read here, so an entry
// written concurrently for a new booking survives.
func (c *Cache) ClearStale(ctx context.Context, resourceID string, start, end time.Time) (int, error) {
	if err := c.checkSpan(start, end); err != nil {
		return 0, err
	}
	present, err := c.backend.MGet(ctx, c.Keys(resourceID, start, end)...)
	if err != nil {
		return 0, fmt.Errorf("read stale conflict keys: %w", err)
	}

	cleared := 0
	for key, bookingID := range present {
		ok, err := c.backend.CompareAndDelete(ctx, key, bookingID)
		if err != nil {
			return cleared, fmt.Errorf("clear stale conflict key: %w", err)
		}
		if ok {
			cleared++
		}
	}
	return cleared, nil
}
