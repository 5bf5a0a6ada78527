// Package world owns the simulation state and the tick loop. All mutation
// happens on a single owner goroutine; the decision fan-out is the only
// concurrent step and its results are applied sequentially.
package world

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/dkettler/gridroyale/internal/agent"
	"github.com/dkettler/gridroyale/internal/config"
	"github.com/dkettler/gridroyale/internal/decision"
	"github.com/dkettler/gridroyale/internal/thinking"
	"github.com/dkettler/gridroyale/internal/vote"
	"github.com/dkettler/gridroyale/internal/worldmap"
)

// Phase is the coarse lifecycle of a game.
type Phase string

const (
	PhaseWaiting  Phase = "waiting_to_start"
	PhaseRunning  Phase = "running"
	PhaseFinished Phase = "finished"
)

const (
	maxRecentEvents = 20

	itemSpawnEveryTicks = 10
	itemSpawnBatch      = 3
	initialItems        = 5

	reflectEveryTicks = 5

	zoneDamage = 10

	// innerVoiceWindow bounds how long a delivered vote stays audible.
	innerVoiceWindow = 30 * time.Second
)

var itemTypes = []struct {
	Type  string
	Bonus int
}{
	{"rusty sword", 3},
	{"hunting bow", 4},
	{"battle axe", 5},
	{"spiked club", 2},
	{"steel spear", 6},
}

type fingerprint struct {
	x, y, hp int
	alive    bool
	state    agent.ActionState
}

// World is the authoritative simulation state.
type World struct {
	cfg config.Config
	log *slog.Logger

	SessionID string

	tick         int
	phase        Phase
	aliveCount   int
	shrinkBorder int
	zoneCenterX  int
	zoneCenterY  int
	winnerID     string

	agents     []*agent.Agent
	agentsByID map[string]*agent.Agent
	items      []agent.Item
	nextItemID int

	tileMap *worldmap.TileMap

	pendingEvents []Event
	recentEvents  []Event
	agentPaths    map[string][]worldmap.Waypoint
	fingerprints  map[string]fingerprint

	backend  decision.Backend
	votes    *vote.Manager
	thoughts thinking.Store

	rng *rand.Rand
	now func() time.Time
}

// New creates an uninitialized world. Call Init before ticking.
func New(cfg config.Config, backend decision.Backend, thoughts thinking.Store, log *slog.Logger) *World {
	if log == nil {
		log = slog.Default()
	}
	if thoughts == nil {
		thoughts = thinking.NullStore{}
	}
	w := &World{
		cfg:      cfg,
		log:      log,
		phase:    PhaseWaiting,
		backend:  backend,
		thoughts: thoughts,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
	w.votes = vote.NewManager(
		time.Duration(cfg.VotingWindowMs)*time.Millisecond,
		w.deliverVotes,
	)
	return w
}

// SetSeed reseeds the world's random source. Test hook.
func (w *World) SetSeed(seed int64) { w.rng = rand.New(rand.NewSource(seed)) }

// Votes exposes the vote manager for inbound submissions.
func (w *World) Votes() *vote.Manager { return w.votes }

// Thinking exposes the reasoning history store.
func (w *World) Thinking() thinking.Store { return w.thoughts }

// TileMap returns the generated map.
func (w *World) TileMap() *worldmap.TileMap { return w.tileMap }

// Tick returns the current tick counter.
func (w *World) Tick() int { return w.tick }

// Phase returns the current lifecycle phase.
func (w *World) Phase() Phase { return w.phase }

// Agent looks up an agent by id.
func (w *World) Agent(id string) (*agent.Agent, bool) {
	a, ok := w.agentsByID[id]
	return a, ok
}

// Init builds the map, spawns agents and seeds items. A previous game's
// state, including thinking history, is discarded.
func (w *World) Init() error {
	w.thoughts.ClearSession(w.SessionID)
	w.SessionID = uuid.NewString()

	size := w.cfg.GridSize
	w.tileMap = worldmap.New(size, size)

	seed := w.cfg.MapSeed
	if seed == 0 {
		seed = w.rng.Int63()
	}
	switch w.cfg.MapStyle {
	case "noise":
		worldmap.AddNoiseObstacles(w.tileMap, w.cfg.ObstacleDensity, seed)
	default:
		worldmap.AddRandomObstacles(w.tileMap, w.cfg.ObstacleDensity, seed)
	}

	w.tick = 0
	w.phase = PhaseRunning
	w.shrinkBorder = size
	w.zoneCenterX, w.zoneCenterY = size/2, size/2
	w.winnerID = ""
	w.items = nil
	w.nextItemID = 0
	w.pendingEvents = nil
	w.recentEvents = nil
	w.agentPaths = make(map[string][]worldmap.Waypoint)
	w.fingerprints = make(map[string]fingerprint)
	w.agents = nil
	w.agentsByID = make(map[string]*agent.Agent)

	for i := 0; i < w.cfg.AgentCount; i++ {
		tpl := DefaultTemplates[i%len(DefaultTemplates)]
		x, y, ok := w.randomPassable()
		if !ok {
			return fmt.Errorf("no passable tile for agent %d: map too crowded (density %.2f)",
				i, w.cfg.ObstacleDensity)
		}
		a := agent.New(fmt.Sprintf("agent-%d", i), tpl, x, y, w.rng)
		w.agents = append(w.agents, a)
		w.agentsByID[a.ID] = a
		w.emit(EventAgentSpawn, fmt.Sprintf("%s enters the arena", a.Name), a.ID)
	}
	w.aliveCount = len(w.agents)

	for i := 0; i < initialItems; i++ {
		w.spawnItem()
	}

	w.log.Info("world initialized",
		"session", w.SessionID,
		"agents", len(w.agents),
		"grid", size,
		"passable", w.tileMap.PassableCount(),
	)
	return nil
}

// randomPassable picks a random unoccupied passable tile, giving up after
// 2·gridSize² tries.
func (w *World) randomPassable() (int, int, bool) {
	size := w.cfg.GridSize
	for try := 0; try < 2*size*size; try++ {
		x, y := w.rng.Intn(size), w.rng.Intn(size)
		if !w.tileMap.IsPassable(x, y) {
			continue
		}
		if w.occupied(x, y) {
			continue
		}
		return x, y, true
	}
	return 0, 0, false
}

func (w *World) occupied(x, y int) bool {
	for _, a := range w.agents {
		if a.Alive && a.X == x && a.Y == y {
			return true
		}
	}
	return false
}

func (w *World) spawnItem() {
	x, y, ok := w.randomPassable()
	if !ok {
		w.log.Warn("item spawn skipped, no free tile")
		return
	}
	kind := itemTypes[w.rng.Intn(len(itemTypes))]
	w.nextItemID++
	w.items = append(w.items, agent.Item{
		ID:    w.nextItemID,
		X:     x,
		Y:     y,
		Type:  kind.Type,
		Bonus: kind.Bonus,
	})
}

// deliverVotes is the vote manager's resolver: each winning action becomes
// an inner voice for its agent, live agents only.
func (w *World) deliverVotes(winners map[string]string) {
	for agentID, action := range winners {
		a, ok := w.agentsByID[agentID]
		if !ok || !a.Alive {
			continue
		}
		a.HearInnerVoice(action)
		w.emit(EventVote, fmt.Sprintf("The crowd urges %s: %s", a.Name, action), a.ID)
	}
}

// ZoneCenter returns the safe zone's center.
func (w *World) ZoneCenter() (int, int) { return w.zoneCenterX, w.zoneCenterY }

// outsideZone reports whether (x,y) lies outside the centered safe square of
// side shrinkBorder. Integer halving matches the zone's visual rendering.
func (w *World) outsideZone(x, y int) bool {
	half := w.shrinkBorder / 2
	return absInt(x-w.zoneCenterX) > half || absInt(y-w.zoneCenterY) > half
}

// WorldState is the per-tick global snapshot.
type WorldState struct {
	Tick         int    `json:"tick"`
	AliveCount   int    `json:"aliveCount"`
	ShrinkBorder int    `json:"shrinkBorder"`
	Phase        Phase  `json:"phase"`
	ZoneCenterX  int    `json:"zoneCenterX"`
	ZoneCenterY  int    `json:"zoneCenterY"`
	Winner       string `json:"winner,omitempty"`
}

// GetWorldState snapshots the global counters.
func (w *World) GetWorldState() WorldState {
	return WorldState{
		Tick:         w.tick,
		AliveCount:   w.aliveCount,
		ShrinkBorder: w.shrinkBorder,
		Phase:        w.phase,
		ZoneCenterX:  w.zoneCenterX,
		ZoneCenterY:  w.zoneCenterY,
		Winner:       w.winnerID,
	}
}

// Agents returns the full agent list. Callers must not mutate.
func (w *World) Agents() []*agent.Agent { return w.agents }

// Items returns the live item list. Callers must not mutate.
func (w *World) Items() []agent.Item { return w.items }

// AgentPaths returns the current published path per agent.
func (w *World) AgentPaths() map[string][]worldmap.Waypoint { return w.agentPaths }

// RecentEvents returns up to the last 20 events.
func (w *World) RecentEvents() []Event { return w.recentEvents }

// ComputeAgentDelta returns the agents whose (x,y,hp,alive,actionState)
// tuple changed since the previous call, updating the fingerprint map.
func (w *World) ComputeAgentDelta() []*agent.Agent {
	var changed []*agent.Agent
	for _, a := range w.agents {
		fp := fingerprint{x: a.X, y: a.Y, hp: a.HP, alive: a.Alive, state: a.State}
		if prev, ok := w.fingerprints[a.ID]; !ok || prev != fp {
			changed = append(changed, a)
			w.fingerprints[a.ID] = fp
		}
	}
	return changed
}

// FullSync is the connect-time snapshot.
type FullSync struct {
	World  WorldState                     `json:"world"`
	Agents []*agent.Agent                 `json:"agents"`
	Items  []agent.Item                   `json:"items"`
	Votes  vote.State                     `json:"votes"`
	Events []Event                        `json:"events"`
	Paths  map[string][]worldmap.Waypoint `json:"paths"`
}

// GetFullSync assembles everything a fresh subscriber needs.
func (w *World) GetFullSync() FullSync {
	return FullSync{
		World:  w.GetWorldState(),
		Agents: w.agents,
		Items:  w.items,
		Votes:  w.votes.GetState(),
		Events: w.recentEvents,
		Paths:  w.agentPaths,
	}
}

// serializedWorld is the versioned persistence form.
type serializedWorld struct {
	Version int            `json:"version"`
	Saved   int64          `json:"savedAt"`
	World   WorldState     `json:"world"`
	Agents  []*agent.Agent `json:"agents"`
	Items   []agent.Item   `json:"items"`
	TileMap []byte         `json:"tileMap"`
}

// Serialize renders the world as opaque versioned JSON for persistence.
func (w *World) Serialize() ([]byte, error) {
	return json.Marshal(serializedWorld{
		Version: 1,
		Saved:   w.now().UnixMilli(),
		World:   w.GetWorldState(),
		Agents:  w.agents,
		Items:   w.items,
		TileMap: worldmap.Marshal(w.tileMap),
	})
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
