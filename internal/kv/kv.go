// Package kv abstracts the shared cache/lock backend used by the booking engine.
//
// Every booking handler, in every process, talks to the same backend. The
// interface exposes only the primitives the lock manager and conflict cache
// need, so tests can run against the in-memory implementation with the same
// atomic semantics as Redis.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps any failure talking to the backend.
var ErrUnavailable = errors.New("kv backend unavailable")

// Backend is the distributed key/value store shared by all booking handlers.
// Implementations must be safe for concurrent use.
type Backend interface {
	// SetNX sets key to value with the given expiry only if key does not exist.
	// It reports whether the key was set.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// CompareAndDelete deletes key only if its current value equals value.
	// It reports whether the key was deleted.
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)

	// Exists returns how many of the given keys exist.
	Exists(ctx context.Context, keys ...string) (int64, error)

	// Set unconditionally sets key to value with the given expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetMany sets every entry with the same expiry in a single round trip.
	SetMany(ctx context.Context, entries map[string]string, ttl time.Duration) error

	// Get returns the value of key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// MGet returns the values of the keys that are present. Missing keys are omitted.
	MGet(ctx context.Context, keys ...string) (map[string]string, error)

	// Keys returns every key matching a glob-style pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Del deletes the given keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
