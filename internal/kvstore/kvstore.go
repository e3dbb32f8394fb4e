// Package kvstore provides the small expiring key-value store used for
// per-user usage counters and similar short-lived client state. It is an
// explicit dependency injected into the components that need it, never
// ambient global state.
package kvstore

import (
	"sync"
	"time"
)

// Store is a key-value store with per-key TTL.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration)
	Incr(key string, n int, ttl time.Duration) int
	Delete(key string)
}

type entry struct {
	value   string
	count   int
	expires time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// Memory is an in-memory Store. Expired entries are dropped lazily on access
// and in bulk by Sweep.
type Memory struct {
	mu    sync.RWMutex
	items map[string]entry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]entry),
	}
}

// Get returns the live value for key.
func (m *Memory) Get(key string) (string, bool) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()

	if !ok || e.expired(time.Now()) {
		return "", false
	}
	return e.value, true
}

// Set stores value under key. A zero ttl means the key never expires.
func (m *Memory) Set(key, value string, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.items[key] = e
	m.mu.Unlock()
}

// Incr adds n to the counter stored under key and returns the new count.
// The TTL is only set when the key is created; later increments keep the
// original expiry so a daily counter resets on schedule.
func (m *Memory) Incr(key string, n int, ttl time.Duration) int {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok || e.expired(now) {
		e = entry{}
		if ttl > 0 {
			e.expires = now.Add(ttl)
		}
	}
	e.count += n
	m.items[key] = e
	return e.count
}

// Delete removes key.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

// Sweep drops every expired entry. Call it periodically from a janitor
// goroutine to keep the map from growing on write-once keys.
func (m *Memory) Sweep() {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, e := range m.items {
		if e.expired(now) {
			delete(m.items, key)
		}
	}
}
