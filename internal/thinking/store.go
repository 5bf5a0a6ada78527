// Package thinking stores recent reasoning artifacts per (session, agent) so
// spectators can inspect why an agent acted the way it did.
package thinking

import "time"

// Process is one reasoning artifact captured alongside a decision. Prompt and
// RawResponse are only present for LLM-backed decisions.
type Process struct {
	Action      string `json:"action"`
	Reasoning   string `json:"reasoning"`
	Prompt      string `json:"prompt,omitempty"`
	RawResponse string `json:"rawResponse,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// NewProcess stamps a reasoning artifact with the current wall clock.
func NewProcess(action, reasoning string) *Process {
	return &Process{Action: action, Reasoning: reasoning, Timestamp: time.Now().UnixMilli()}
}

// Store keeps bounded reasoning history. Implementations are accessed only
// from the world owner, except reads from the publisher which each
// implementation serializes itself.
type Store interface {
	// Store appends an artifact for the given session and agent.
	Store(sessionID, agentID string, p Process)
	// History returns up to limit artifacts, newest first.
	History(sessionID, agentID string, limit int) []Process
	// ClearSession drops everything recorded under the session.
	ClearSession(sessionID string)
	// Count returns the number of stored artifacts for the agent.
	Count(sessionID, agentID string) int
}

// NullStore discards everything. It is the safe default when persistence of
// reasoning is disabled.
type NullStore struct{}

func (NullStore) Store(string, string, Process)         {}
func (NullStore) History(string, string, int) []Process { return nil }
func (NullStore) ClearSession(string)                   {}
func (NullStore) Count(string, string) int              { return 0 }
