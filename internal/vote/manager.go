// Package vote aggregates spectator votes into fixed-length windows and
// resolves each window to at most one action per agent.
package vote

import "time"

// Vote is one spectator's suggestion for one agent.
type Vote struct {
	AgentID  string `json:"agentId"`
	Action   string `json:"action"`
	PlayerID string `json:"playerId"`
}

// ActionCount is one ranked tally line in the published state.
type ActionCount struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}

// State is the ballot as published to spectators.
type State struct {
	WindowID        int                      `json:"windowId"`
	TimeRemainingMs int64                    `json:"timeRemainingMs"`
	AgentVotes      map[string][]ActionCount `json:"agentVotes"`
}

// Resolver receives the winning action per agent when a window closes.
type Resolver func(winners map[string]string)

type ballot struct {
	votes       map[string]string // playerID -> action
	actionOrder []string          // first-seen order, breaks ties
}

// Manager collects votes for the current window and resolves on Tick. Not
// safe for concurrent use; the world owner drives it.
type Manager struct {
	window   time.Duration
	windowID int
	started  time.Time
	agents   map[string]*ballot
	resolver Resolver
	now      func() time.Time
}

// NewManager creates a manager whose first window starts immediately.
func NewManager(window time.Duration, resolver Resolver) *Manager {
	m := &Manager{
		window:   window,
		agents:   make(map[string]*ballot),
		resolver: resolver,
		now:      time.Now,
	}
	m.started = m.now()
	return m
}

// SetClock overrides the manager's clock. Test hook.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// WindowID returns the current window's identifier.
func (m *Manager) WindowID() int { return m.windowID }

// Submit records a vote. A player has one pending vote per agent; a second
// submission within the window overwrites the first.
func (m *Manager) Submit(v Vote) {
	if v.AgentID == "" || v.Action == "" || v.PlayerID == "" {
		return
	}
	b, ok := m.agents[v.AgentID]
	if !ok {
		b = &ballot{votes: make(map[string]string)}
		m.agents[v.AgentID] = b
	}
	b.votes[v.PlayerID] = v.Action
	if !containsString(b.actionOrder, v.Action) {
		b.actionOrder = append(b.actionOrder, v.Action)
	}
}

// Tick resolves the window if it has elapsed: each voted-on agent gets the
// plurality action, ties broken by first submission order. The resolver runs
// with the winners, then a fresh window opens.
func (m *Manager) Tick() {
	now := m.now()
	if now.Sub(m.started) < m.window {
		return
	}

	winners := make(map[string]string)
	for agentID, b := range m.agents {
		if action, ok := b.winner(); ok {
			winners[agentID] = action
		}
	}
	if len(winners) > 0 && m.resolver != nil {
		m.resolver(winners)
	}

	m.windowID++
	m.started = now
	m.agents = make(map[string]*ballot)
}

// GetState returns the current ballot with counts per agent, sorted
// descending, count ties in first-seen action order.
func (m *Manager) GetState() State {
	remaining := m.window - m.now().Sub(m.started)
	if remaining < 0 {
		remaining = 0
	}
	st := State{
		WindowID:        m.windowID,
		TimeRemainingMs: remaining.Milliseconds(),
		AgentVotes:      make(map[string][]ActionCount),
	}
	for agentID, b := range m.agents {
		st.AgentVotes[agentID] = b.ranked()
	}
	return st
}

func (b *ballot) counts() map[string]int {
	n := make(map[string]int)
	for _, action := range b.votes {
		n[action]++
	}
	return n
}

// winner picks the most-voted action, first-seen order breaking ties.
func (b *ballot) winner() (string, bool) {
	n := b.counts()
	best, bestCount := "", 0
	for _, action := range b.actionOrder {
		if c := n[action]; c > bestCount {
			best, bestCount = action, c
		}
	}
	return best, bestCount > 0
}

// ranked returns the tally sorted by count descending. Iterating the
// first-seen order keeps equal counts stable.
func (b *ballot) ranked() []ActionCount {
	n := b.counts()
	out := make([]ActionCount, 0, len(n))
	for _, action := range b.actionOrder {
		c := n[action]
		if c == 0 {
			continue
		}
		i := len(out)
		for i > 0 && out[i-1].Count < c {
			i--
		}
		out = append(out, ActionCount{})
		copy(out[i+1:], out[i:])
		out[i] = ActionCount{Action: action, Count: c}
	}
	return out
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
