// Package session tracks per-visitor dashboard state: the scan catalog, the
// pending upload slot, recent simulations, and the live chat socket.
package session

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/sonar-hub/internal/catalog"
	"github.com/ashureev/sonar-hub/internal/domain"
	"github.com/ashureev/sonar-hub/internal/upload"
)

// maxRememberedSimulations bounds how many generated records a session keeps
// around so they can be added to the catalog after the fact.
const maxRememberedSimulations = 20

// State is the in-memory state of one visitor session.
type State struct {
	UserID    string
	SessionID string
	Catalog   *catalog.Catalog
	Uploads   *upload.Tracker

	turnMu sync.Mutex

	mu          sync.Mutex
	lastSeen    time.Time
	simulations []*domain.ScanRecord
	conn        *websocket.Conn
}

func newState(userID, sessionID string, now time.Time) *State {
	return &State{
		UserID:    userID,
		SessionID: sessionID,
		Catalog:   catalog.NewSessionCatalog(),
		Uploads:   upload.NewTracker(),
		lastSeen:  now,
	}
}

// LockTurn serializes chat turns within the session. The returned func
// releases the lock.
func (s *State) LockTurn() func() {
	s.turnMu.Lock()
	return s.turnMu.Unlock
}

// LastSeen returns the time the session was last touched.
func (s *State) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *State) touch(now time.Time) {
	s.mu.Lock()
	if now.After(s.lastSeen) {
		s.lastSeen = now
	}
	s.mu.Unlock()
}

// RememberSimulation keeps rec addressable by ID even when it is not in the
// catalog, dropping the oldest entry past the limit.
func (s *State) RememberSimulation(rec *domain.ScanRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.simulations {
		if r.ScanID == rec.ScanID {
			s.simulations[i] = rec
			return
		}
	}
	s.simulations = append(s.simulations, rec)
	if len(s.simulations) > maxRememberedSimulations {
		s.simulations = s.simulations[len(s.simulations)-maxRememberedSimulations:]
	}
}

// Simulation returns a remembered simulation record, falling back to the
// catalog. IDs match case-insensitively, as catalog lookups do.
func (s *State) Simulation(scanID string) (*domain.ScanRecord, bool) {
	s.mu.Lock()
	for _, r := range s.simulations {
		if strings.EqualFold(r.ScanID, scanID) {
			s.mu.Unlock()
			return r, true
		}
	}
	s.mu.Unlock()

	rec, ok := s.Catalog.Get(scanID)
	if !ok || !rec.IsSimulated() {
		return nil, false
	}
	return rec, true
}

// Key identifies a session.
type Key struct {
	UserID    string
	SessionID string
}

// Manager holds the states of all live sessions.
type Manager struct {
	mu     sync.RWMutex
	states map[string]map[string]*State
	now    func() time.Time
}

// NewManager creates a new session manager.
func NewManager() *Manager {
	return &Manager{
		states: make(map[string]map[string]*State),
		now:    time.Now,
	}
}

// Get returns the state for a user and session, creating it on first use.
func (m *Manager) Get(userID, sessionID string) *State {
	now := m.now()

	m.mu.RLock()
	st := m.states[userID][sessionID]
	m.mu.RUnlock()
	if st != nil {
		st.touch(now)
		return st
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.states[userID]; !exists {
		m.states[userID] = make(map[string]*State)
	}
	if st = m.states[userID][sessionID]; st != nil {
		st.touch(now)
		return st
	}
	st = newState(userID, sessionID, now)
	m.states[userID][sessionID] = st
	slog.Debug("Session state created", "user_id", userID, "session_id", sessionID)
	return st
}

// Lookup returns the state for a user and session without creating it.
func (m *Manager) Lookup(userID, sessionID string) (*State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[userID][sessionID]
	return st, ok
}

// Live reports whether the session is currently held by the manager.
func (m *Manager) Live(userID, sessionID string) bool {
	_, ok := m.Lookup(userID, sessionID)
	return ok
}

// Remove drops a session and closes its chat socket, if any.
func (m *Manager) Remove(userID, sessionID string) {
	m.mu.Lock()
	st := m.states[userID][sessionID]
	if st != nil {
		delete(m.states[userID], sessionID)
		if len(m.states[userID]) == 0 {
			delete(m.states, userID)
		}
	}
	m.mu.Unlock()

	if st == nil {
		return
	}
	st.mu.Lock()
	conn := st.conn
	st.conn = nil
	st.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusGoingAway, "session expired")
	}
}

// Idle returns the sessions not touched within ttl.
func (m *Manager) Idle(ttl time.Duration) []Key {
	cutoff := m.now().Add(-ttl)

	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []Key
	for userID, sessions := range m.states {
		for sessionID, st := range sessions {
			if st.LastSeen().Before(cutoff) {
				keys = append(keys, Key{UserID: userID, SessionID: sessionID})
			}
		}
	}
	return keys
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sessions := range m.states {
		n += len(sessions)
	}
	return n
}

// RegisterConn attaches a chat socket to the session, closing any socket it
// replaces.
func (m *Manager) RegisterConn(userID, sessionID string, conn *websocket.Conn) {
	st := m.Get(userID, sessionID)
	st.mu.Lock()
	existing := st.conn
	st.conn = conn
	st.mu.Unlock()

	if existing != nil && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}
	slog.Info("Chat socket registered", "user_id", userID, "session_id", sessionID)
}

// UnregisterConn detaches conn if it is still the session's active socket.
func (m *Manager) UnregisterConn(userID, sessionID string, conn *websocket.Conn) {
	st, ok := m.Lookup(userID, sessionID)
	if !ok {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.conn == conn {
		st.conn = nil
		slog.Info("Chat socket unregistered", "user_id", userID, "session_id", sessionID)
	}
}

// ActiveConn returns the session's chat socket, or nil.
func (m *Manager) ActiveConn(userID, sessionID string) *websocket.Conn {
	st, ok := m.Lookup(userID, sessionID)
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.conn
}
