// Package decision turns an agent's view of the world into one action per
// tick. Two backends share the contract: a deterministic rule table and an
// LLM-backed variant that falls back to the rules on any failure.
package decision

import (
	"context"

	"github.com/dkettler/gridroyale/internal/agent"
	"github.com/dkettler/gridroyale/internal/memory"
	"github.com/dkettler/gridroyale/internal/thinking"
)

// Type enumerates the actions an agent can take.
type Type string

const (
	Attack  Type = "attack"
	Flee    Type = "flee"
	Ally    Type = "ally"
	Betray  Type = "betray"
	Loot    Type = "loot"
	Explore Type = "explore"
	Rest    Type = "rest"
)

// Decision is the outcome of one decide call. TargetID names an agent for
// attack/ally/betray and an item for loot.
type Decision struct {
	Type     Type
	TargetID string
	Reason   string
	Thinking *thinking.Process
}

// WorldInfo is the slice of global state a backend may consult.
type WorldInfo struct {
	Tick         int
	AliveCount   int
	ShrinkBorder int
	Phase        string
}

// Context is everything a backend sees for one agent on one tick. It is
// built on the world owner's goroutine before the decision fan-out and is
// read-only afterwards.
type Context struct {
	Agent      *agent.Agent
	Nearby     []agent.NearbyAgent
	Items      []agent.Item
	World      WorldInfo
	Memories   []memory.Entry
	InnerVoice string
}

// ReflectContext feeds the periodic reflection pass.
type ReflectContext struct {
	Agent    *agent.Agent
	Memories []memory.Entry
}

// Backend decides actions for agents. Decide and Reflect may be called
// concurrently across agents and must be safe for that.
type Backend interface {
	Decide(ctx context.Context, dc *Context) (Decision, error)
	// Reflect distills recent memories into an insight, or returns ""
	// when nothing is worth reflecting on.
	Reflect(ctx context.Context, rc *ReflectContext) (string, error)
}
