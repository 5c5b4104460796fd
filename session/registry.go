package session

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/witanlabs/gridcmd/sheet"
)

// Registry tracks live sessions by ID. Each session keeps its own store;
// nothing is shared between them.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      *zap.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{sessions: make(map[string]*Session), log: log}
}

// Create starts and registers a session over store.
func (r *Registry) Create(store *sheet.Store) *Session {
	s := New(store, r.log)
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	r.log.Info("session created", zap.String("session", s.ID))
	return s
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Delete ends a session. It reports whether the session existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		r.log.Info("session deleted", zap.String("session", id))
	}
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Expire drops sessions idle since before cutoff and returns how many were
// removed.
func (r *Registry) Expire(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.LastUsed().Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	if n > 0 {
		r.log.Info("sessions expired", zap.Int("count", n))
	}
	return n
}
