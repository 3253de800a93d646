// Package lock implements the booking window mutex on top of the shared kv backend.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nekogravitycat/court-booking-engine/internal/kv"
	"github.com/nekogravitycat/court-booking-engine/internal/obs"
)

// DefaultTTL bounds how long a crashed holder can block a window.
const DefaultTTL = 30 * time.Second

const keyPrefix = "lock:booking"

// Manager hands out exclusive, expiring locks keyed by the exact
// (resource, start, end) triple. Two identical windows serialize; windows that
// merely overlap get different keys and do not.
type Manager struct {
	backend kv.Backend
	ttl     time.Duration
	metrics *obs.Metrics
}

// NewManager creates a lock manager. A non-positive ttl falls back to DefaultTTL.
func NewManager(backend kv.Backend, ttl time.Duration, metrics *obs.Metrics) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{backend: backend, ttl: ttl, metrics: metrics}
}

// Key returns the backend key guarding a window.
func Key(resourceID string, start, end time.Time) string {
	return fmt.Sprintf("%s:%s:%d:%d", keyPrefix, resourceID, start.Unix(), end.Unix())
}

// TTL returns the expiry applied to every lock.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Acquire tries once to take the lock for the window.
// It returns the owner token and true on success, or "" and false if someone else holds it.
func (m *Manager) Acquire(ctx context.Context, resourceID string, start, end time.Time) (string, bool, error) {
	began := time.Now()
	token := uuid.NewString()

	ok, err := m.backend.SetNX(ctx, Key(resourceID, start, end), token, m.ttl)
	switch {
	case err != nil:
		m.metrics.LockAcquired("error", time.Since(began).Seconds())
		return "", false, fmt.Errorf("acquire lock: %w", err)
	case !ok:
		m.metrics.LockAcquired("busy", time.Since(began).Seconds())
		return "", false, nil
	}

	m.metrics.LockAcquired("acquired", time.Since(began).Seconds())
	return token, true, nil
}

// Release deletes the lock only if it is still owned by token.
// Releasing twice, or after the lock expired and was taken by someone else, is a no-op returning false.
func (m *Manager) Release(ctx context.Context, resourceID string, start, end time.Time, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	began := time.Now()

	ok, err := m.backend.CompareAndDelete(ctx, Key(resourceID, start, end), token)
	switch {
	case err != nil:
		m.metrics.LockReleased("error", time.Since(began).Seconds())
		return false, fmt.Errorf("release lock: %w", err)
	case !ok:
		m.metrics.LockReleased("not_owner", time.Since(began).Seconds())
		return false, nil
	}

	m.metrics.LockReleased("released", time.Since(began).Seconds())
	return true, nil
}
