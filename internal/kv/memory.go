package kv

import (
	"context"
	"path"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// Memory is an in-process Backend with the same atomic semantics as Redis.
// It is only shared between goroutines of one process, so it suits tests and
// single-instance deployments.
type Memory struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time

	// Err, when set, is returned by every operation. Tests use it to simulate outages.
	Err error
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]entry), now: time.Now}
}

// SetClock overrides the clock used for expiry.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetErr makes every subsequent operation fail with err (nil restores normal behavior).
func (m *Memory) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

// lookup returns the live entry for key, evicting it if expired. Callers hold m.mu.
func (m *Memory) lookup(key string) (entry, bool) {
	e, ok := m.data[key]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.data, key)
		return entry{}, false
	}
	return e, true
}

func (m *Memory) put(key, value string, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.data[key] = e
}

func (m *Memory) fail(op string) error {
	if m.Err != nil {
		return unavailable(op, m.Err)
	}
	return nil
}

func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("setnx"); err != nil {
		return false, err
	}
	if _, ok := m.lookup(key); ok {
		return false, nil
	}
	m.put(key, value, ttl)
	return true, nil
}

func (m *Memory) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("compare and delete"); err != nil {
		return false, err
	}
	e, ok := m.lookup(key)
	if !ok || e.value != value {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

func (m *Memory) Exists(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("exists"); err != nil {
		return 0, err
	}
	var n int64
	for _, k := range keys {
		if _, ok := m.lookup(k); ok {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("set"); err != nil {
		return err
	}
	m.put(key, value, ttl)
	return nil
}

func (m *Memory) SetMany(_ context.Context, entries map[string]string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("pipelined set"); err != nil {
		return err
	}
	for k, v := range entries {
		m.put(k, v, ttl)
	}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("get"); err != nil {
		return "", false, err
	}
	e, ok := m.lookup(key)
	return e.value, ok, nil
}

func (m *Memory) MGet(_ context.Context, keys ...string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("mget"); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if e, ok := m.lookup(k); ok {
			out[k] = e.value
		}
	}
	return out, nil
}

func (m *Memory) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("scan"); err != nil {
		return nil, err
	}
	var keys []string
	for k := range m.data {
		if _, ok := m.lookup(k); !ok {
			continue
		}
		if matched, _ := path.Match(pattern, k); matched {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *Memory) Del(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("del"); err != nil {
		return 0, err
	}
	var n int64
	for _, k := range keys {
		if _, ok := m.lookup(k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fail("ping")
}

func (m *Memory) Close() error { return nil }
