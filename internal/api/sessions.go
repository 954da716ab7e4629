package api

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/treesim/internal/engine"
)

// ErrTooManySessions is returned when the store is full.
var ErrTooManySessions = errors.New("session limit reached")

// Session is one viewer's simulation. mu serializes every access to Model:
// the model itself has no locking.
type Session struct {
	ID      string
	RunID   string // Archive run, empty without a database
	Created time.Time

	mu    sync.Mutex
	Model *engine.CityModel
}

// SessionStore holds live sessions in memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	limit    int
}

// NewSessionStore creates a store allowing at most limit sessions (0 = no limit).
func NewSessionStore(limit int) *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session), limit: limit}
}

// Add registers a freshly built model under a new ID.
func (st *SessionStore) Add(m *engine.CityModel) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.limit > 0 && len(st.sessions) >= st.limit {
		return nil, ErrTooManySessions
	}
	s := &Session{ID: uuid.NewString(), Created: time.Now(), Model: m}
	st.sessions[s.ID] = s
	return s, nil
}

// Get returns a session by ID.
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Delete drops a session. Returns false if it did not exist.
func (st *SessionStore) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	return ok
}

// IDs lists session IDs, oldest first.
func (st *SessionStore) IDs() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	all := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Created.Before(all[j].Created) })

	ids := make([]string, len(all))
	for i, s := range all {
		ids[i] = s.ID
	}
	return ids
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
