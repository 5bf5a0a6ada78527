package world

import "time"

// EventKind classifies a game event.
type EventKind string

const (
	EventKill       EventKind = "kill"
	EventAlliance   EventKind = "alliance"
	EventBetrayal   EventKind = "betrayal"
	EventCombat     EventKind = "combat"
	EventLoot       EventKind = "loot"
	EventZoneShrink EventKind = "zone_shrink"
	EventVote       EventKind = "vote"
	EventGameOver   EventKind = "game_over"
	EventAgentSpawn EventKind = "agent_spawn"
)

// Event is one thing that happened during a tick. Events are appended in
// occurrence order and never mutated after the tick publishes them.
type Event struct {
	Kind      EventKind `json:"kind"`
	Tick      int       `json:"tick"`
	Message   string    `json:"message"`
	AgentIDs  []string  `json:"agentIds,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

func (w *World) emit(kind EventKind, message string, agentIDs ...string) {
	ev := Event{
		Kind:      kind,
		Tick:      w.tick,
		Message:   message,
		AgentIDs:  agentIDs,
		Timestamp: time.Now().UnixMilli(),
	}
	w.pendingEvents = append(w.pendingEvents, ev)
	w.recentEvents = append(w.recentEvents, ev)
	if len(w.recentEvents) > maxRecentEvents {
		w.recentEvents = w.recentEvents[len(w.recentEvents)-maxRecentEvents:]
	}
}
