// Package dedup tracks which papers have already been shown, globally
// and per session, so selection can be steered away from repeats.
//
// The sets are advisory only. A key missing from a set never breaks
// correctness; at worst a player sees the same paper twice.
package dedup

import "sync"

// DefaultCapacity bounds the global seen set.
const DefaultCapacity = 1000

// SeenSet is a bounded, mutex-protected set of cache keys. When the
// capacity is exceeded, a random quarter of the entries is evicted so
// eviction work is amortized across many inserts. Go's randomized map
// iteration order supplies the randomness.
type SeenSet struct {
	mu       sync.Mutex
	capacity int
	keys     map[string]struct{}
}

// NewSeenSet creates a set bounded to capacity entries. A non-positive
// capacity falls back to DefaultCapacity.
func NewSeenSet(capacity int) *SeenSet {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &SeenSet{
		capacity: capacity,
		keys:     make(map[string]struct{}),
	}
}

// Add marks key as seen, evicting if the set is over capacity.
func (s *SeenSet) Add(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys[key] = struct{}{}
	if len(s.keys) <= s.capacity {
		return
	}

	evict := s.capacity / 4
	if evict < 1 {
		evict = 1
	}
	for k := range s.keys {
		delete(s.keys, k)
		evict--
		if evict == 0 {
			break
		}
	}
}

// Contains reports whether key has been seen.
func (s *SeenSet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

// Len returns the current number of tracked keys.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Snapshot returns a point-in-time copy of the set. Callers may consult
// the copy without holding the set's lock across their own work.
func (s *SeenSet) Snapshot() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]struct{}, len(s.keys))
	for k := range s.keys {
		out[k] = struct{}{}
	}
	return out
}
