package memoize

import (
	"context"
	"sync"
)

// Entry is one cached result together with the fingerprint it was computed
// under. Fingerprint equality is the sole gate for reuse; the value itself is
// never compared.
type Entry[V any] struct {
	Fingerprint string
	Value       V
}

// MemoryStore is the volatile in-process store. Entries live for the process
// lifetime; there is no eviction and no persistence.
//
// Writes replace whole entries under the lock, so a concurrent reader never
// observes a fingerprint without its value.
type MemoryStore[V any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[V]
}

// NewMemoryStore creates an empty volatile store.
func NewMemoryStore[V any]() *MemoryStore[V] {
	return &MemoryStore[V]{
		entries: make(map[string]Entry[V]),
	}
}

// Get retrieves an entry. Returns (zero, false) on miss.
func (s *MemoryStore[V]) Get(_ context.Context, key string) (Entry[V], bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	return entry, ok
}

// Put stores an entry, replacing any prior entry for the key.
func (s *MemoryStore[V]) Put(_ context.Context, key string, entry Entry[V]) {
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
}

// Delete removes an entry. Idempotent - no effect on miss.
func (s *MemoryStore[V]) Delete(_ context.Context, key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Len reports the number of stored entries.
func (s *MemoryStore[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
