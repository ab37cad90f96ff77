// Package cache provides a TTL-keyed in-memory store addressed by
// deterministic request fingerprints. The cache is advisory: every consumer
// must be able to recompute a missing value, and a hit whose backing
// artifact has gone stale is treated as a miss by the caller.
package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Store maps fingerprint keys to values with per-entry expiry. Expired
// entries are lazily evicted on lookup; there is no background sweep.
// Concurrent writers to the same key race benignly: last write wins.
type Store[V any] struct {
	clock   clockwork.Clock
	mu      sync.Mutex
	entries map[string]entry[V]
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// New creates a Store using the given time source. Pass a fake clock in
// tests to make expiry deterministic.
func New[V any](clock clockwork.Clock) *Store[V] {
	return &Store[V]{
		clock:   clock,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the value for key. An expired entry is evicted and never
// returned.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !s.clock.Now().Before(e.expiresAt) {
		delete(s.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for ttl. Overwriting a key discards the prior
// value immediately.
func (s *Store[V]) Set(key string, value V, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[V]{value: value, expiresAt: s.clock.Now().Add(ttl)}
}

// Delete removes key if present.
func (s *Store[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Len reports the number of entries including any not yet lazily evicted.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
