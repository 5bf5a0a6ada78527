package pub

import (
	"encoding/json"

	"github.com/dkettler/gridroyale/internal/agent"
	"github.com/dkettler/gridroyale/internal/thinking"
	"github.com/dkettler/gridroyale/internal/vote"
	"github.com/dkettler/gridroyale/internal/world"
	"github.com/dkettler/gridroyale/internal/worldmap"
)

// Outbound message kinds.
const (
	MsgSyncFull        = "sync.full"
	MsgSyncWorld       = "sync.world"
	MsgSyncAgents      = "sync.agents"
	MsgSyncEvents      = "sync.events"
	MsgSyncPaths       = "sync.paths"
	MsgVoteState       = "vote.state"
	MsgAgentDetail     = "agent.detail"
	MsgThinkingHistory = "thinking.history"
)

// Inbound message kinds.
const (
	MsgVoteSubmit      = "vote.submit"
	MsgAgentInspect    = "agent.inspect"
	MsgAgentFollow     = "agent.follow"
	MsgThinkingRequest = "thinking.request"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Tick int             `json:"tick,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// fullSyncMsg is the connect-time snapshot. TileMap carries the binary map
// encoding, base64 inside JSON.
type fullSyncMsg struct {
	world.FullSync
	TileMap []byte `json:"tileMap"`
}

// agentsMsg carries either the full roster or a delta of changed agents.
type agentsMsg struct {
	Delta  bool           `json:"delta"`
	Agents []*agent.Agent `json:"agents"`
}

type pathsMsg struct {
	Paths map[string][]worldmap.Waypoint `json:"paths"`
}

type thinkingMsg struct {
	AgentID string             `json:"agentId"`
	History []thinking.Process `json:"history"`
}

// Inbound payloads.

type voteSubmitMsg struct {
	AgentID string `json:"agentId"`
	Action  string `json:"action"`
}

type agentInspectMsg struct {
	AgentID string `json:"agentId"`
}

type agentFollowMsg struct {
	AgentID *string `json:"agentId"` // null clears the follow
}

type thinkingRequestMsg struct {
	AgentID string `json:"agentId"`
	Limit   int    `json:"limit"`
}

// Intent is one inbound request, queued for the world owner to service on
// the next tick.
type Intent struct {
	Sub     *Subscriber
	Kind    string
	Vote    vote.Vote
	AgentID string
	Limit   int
	Follow  *string
}

func encode(msgType string, tick int, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Tick: tick, Data: data})
}
