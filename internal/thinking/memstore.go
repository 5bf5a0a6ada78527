package thinking

import (
	"sync"
	"time"
)

const (
	// MaxEntriesPerAgent bounds each (session, agent) ring.
	MaxEntriesPerAgent = 50
	// MaxSessions bounds the number of live sessions; least recently
	// updated sessions are evicted first.
	MaxSessions = 10
)

type session struct {
	agents    map[string][]Process // per-agent FIFO ring, oldest first
	lastTouch time.Time
}

// MemoryStore is the in-memory Store. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*session), now: time.Now}
}

// SetClock overrides the store's clock. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) { s.now = now }

func (s *MemoryStore) Store(sessionID, agentID string, p Process) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		if len(s.sessions) >= MaxSessions {
			s.evictOldestLocked()
		}
		sess = &session{agents: make(map[string][]Process)}
		s.sessions[sessionID] = sess
	}
	sess.lastTouch = s.now()

	ring := append(sess.agents[agentID], p)
	if len(ring) > MaxEntriesPerAgent {
		ring = ring[len(ring)-MaxEntriesPerAgent:]
	}
	sess.agents[agentID] = ring
}

func (s *MemoryStore) History(sessionID, agentID string, limit int) []Process {
	if limit <= 0 {
		limit = 10
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	ring := sess.agents[agentID]
	if len(ring) == 0 {
		return nil
	}
	if limit > len(ring) {
		limit = len(ring)
	}
	out := make([]Process, 0, limit)
	for i := len(ring) - 1; i >= len(ring)-limit; i-- {
		out = append(out, ring[i])
	}
	return out
}

func (s *MemoryStore) ClearSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func (s *MemoryStore) Count(sessionID, agentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return 0
	}
	return len(sess.agents[agentID])
}

// SessionCount returns the number of live sessions.
func (s *MemoryStore) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemoryStore) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	first := true
	for id, sess := range s.sessions {
		if first || sess.lastTouch.Before(oldest) {
			oldestID = id
			oldest = sess.lastTouch
			first = false
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
	}
}
