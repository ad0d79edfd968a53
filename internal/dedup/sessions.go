package dedup

import "sync"

const (
	// DefaultSessionCapacity bounds each per-session seen set.
	DefaultSessionCapacity = 200

	// DefaultMaxSessions bounds the number of sessions tracked at once.
	DefaultMaxSessions = 10000
)

// SessionRegistry maps session IDs to their per-session seen sets.
// Sessions are created lazily on first access and evicted at random when
// the registry grows past its bound, mirroring the partial-eviction
// policy of SeenSet itself.
type SessionRegistry struct {
	mu              sync.Mutex
	sessions        map[string]*SeenSet
	sessionCapacity int
	maxSessions     int
}

// NewSessionRegistry creates a registry whose per-session sets hold up
// to sessionCapacity keys, tracking at most maxSessions sessions.
// Non-positive arguments fall back to the package defaults.
func NewSessionRegistry(sessionCapacity, maxSessions int) *SessionRegistry {
	if sessionCapacity <= 0 {
		sessionCapacity = DefaultSessionCapacity
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &SessionRegistry{
		sessions:        make(map[string]*SeenSet),
		sessionCapacity: sessionCapacity,
		maxSessions:     maxSessions,
	}
}

// Session returns the seen set for sessionID, creating it if needed.
func (r *SessionRegistry) Session(sessionID string) *SeenSet {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok := r.sessions[sessionID]; ok {
		return set
	}

	if len(r.sessions) >= r.maxSessions {
		evict := r.maxSessions / 4
		if evict < 1 {
			evict = 1
		}
		for id := range r.sessions {
			delete(r.sessions, id)
			evict--
			if evict == 0 {
				break
			}
		}
	}

	set := NewSeenSet(r.sessionCapacity)
	r.sessions[sessionID] = set
	return set
}

// Len returns the number of tracked sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
