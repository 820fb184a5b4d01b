package api

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/growthsim/internal/engine"
	"github.com/talgya/growthsim/internal/scenario"
)

// ErrSessionLimit means the manager is full and no idle session could be
// evicted.
var ErrSessionLimit = errors.New("session limit reached")

// Session is one live simulation run, addressed by a UUID. The engine carries
// its own lock; the manager only guards the map.
type Session struct {
	ID        string
	Engine    *engine.Engine
	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionManager tracks live runs and evicts abandoned ones.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	max      int
	ttl      time.Duration
}

// NewSessionManager creates a manager holding at most max sessions, dropping
// sessions idle longer than ttl.
func NewSessionManager(max int, ttl time.Duration) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		max:      max,
		ttl:      ttl,
	}
}

// Create starts a new run over the shared scenario at the given baseline.
func (m *SessionManager) Create(sc *scenario.Scenario, baselineFollowers int64) (*Session, error) {
	e, err := engine.New(sc)
	if err != nil {
		return nil, err
	}
	if err := e.Start(baselineFollowers); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()

	if len(m.sessions) >= m.max {
		return nil, fmt.Errorf("%w (%d)", ErrSessionLimit, m.max)
	}

	now := time.Now()
	s := &Session{
		ID:        uuid.NewString(),
		Engine:    e,
		CreatedAt: now,
		lastSeen:  now,
	}
	m.sessions[s.ID] = s
	return s, nil
}

// Get looks up a run and marks it active.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()

	if ok {
		s.touch()
	}
	return s, ok
}

// Remove drops a run.
func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Count returns the number of live runs.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *SessionManager) pruneLocked() {
	if m.ttl <= 0 {
		return
	}
	cutoff := time.Now().Add(-m.ttl)
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}
