package world

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkettler/gridroyale/internal/agent"
	"github.com/dkettler/gridroyale/internal/config"
	"github.com/dkettler/gridroyale/internal/decision"
	"github.com/dkettler/gridroyale/internal/thinking"
	"github.com/dkettler/gridroyale/internal/worldmap"
)

// scriptedBackend decides via a fixed function.
type scriptedBackend struct {
	fn func(dc *decision.Context) decision.Decision
}

func (s scriptedBackend) Decide(_ context.Context, dc *decision.Context) (decision.Decision, error) {
	return s.fn(dc), nil
}

func (s scriptedBackend) Reflect(context.Context, *decision.ReflectContext) (string, error) {
	return "", nil
}

func restBackend() scriptedBackend {
	return scriptedBackend{fn: func(*decision.Context) decision.Decision {
		return decision.Decision{Type: decision.Rest, Reason: "holding still"}
	}}
}

func testConfig(size int) config.Config {
	cfg := config.Default()
	cfg.GridSize = size
	cfg.ObstacleDensity = 0
	cfg.ShrinkInterval = 0
	cfg.VotingWindowMs = 60_000
	return cfg
}

// blankWorld builds a running world on an empty map with no agents, so tests
// can place combatants exactly.
func blankWorld(cfg config.Config, backend decision.Backend) *World {
	w := New(cfg, backend, thinking.NewMemoryStore(), nil)
	w.SetSeed(1)
	w.SessionID = "test-session"
	w.tileMap = worldmap.New(cfg.GridSize, cfg.GridSize)
	w.phase = PhaseRunning
	w.shrinkBorder = cfg.GridSize
	w.zoneCenterX, w.zoneCenterY = cfg.GridSize/2, cfg.GridSize/2
	w.agentsByID = make(map[string]*agent.Agent)
	w.agentPaths = make(map[string][]worldmap.Waypoint)
	w.fingerprints = make(map[string]fingerprint)
	return w
}

func placeAgent(w *World, id string, x, y, hp, attack, defense int) *agent.Agent {
	a := agent.New(id, agent.Template{
		Name:        id,
		Personality: "cautious",
		Description: "A fighter.",
		Base:        agent.Stats{HP: hp, Attack: attack, Defense: defense},
	}, x, y, rand.New(rand.NewSource(1)))
	a.HP, a.MaxHP = hp, hp
	a.Attack, a.Defense = attack, defense
	w.agents = append(w.agents, a)
	w.agentsByID[id] = a
	w.aliveCount++
	return a
}

func TestAdjacentKill(t *testing.T) {
	// Everyone fights so nobody wanders out of position mid-tick.
	backend := scriptedBackend{fn: func(dc *decision.Context) decision.Decision {
		switch dc.Agent.ID {
		case "A":
			return decision.Decision{Type: decision.Attack, TargetID: "B", Reason: "finishing it"}
		case "B":
			return decision.Decision{Type: decision.Attack, TargetID: "A", Reason: "cornered"}
		default:
			return decision.Decision{Type: decision.Attack, TargetID: "B", Reason: "piling on"}
		}
	}}
	w := blankWorld(testConfig(3), backend)
	a := placeAgent(w, "A", 0, 0, 50, 20, 0)
	b := placeAgent(w, "B", 1, 0, 5, 5, 0)
	c := placeAgent(w, "C", 2, 2, 50, 5, 0)
	c.Alliances["B"] = struct{}{}
	b.Alliances["C"] = struct{}{}

	events := w.RunTick(context.Background())

	assert.False(t, b.Alive)
	assert.Equal(t, 0, b.HP)
	assert.Equal(t, agent.StateDead, b.State)
	assert.Equal(t, 1, a.KillCount)
	assert.Equal(t, 2, w.aliveCount)
	assert.NotContains(t, c.Alliances, "B", "the dead leave every alliance set")

	kinds := make(map[EventKind]bool)
	for _, ev := range events {
		kinds[ev.Kind] = true
	}
	assert.True(t, kinds[EventCombat])
	assert.True(t, kinds[EventKill])
}

func TestAttackAtRangeWalksPath(t *testing.T) {
	backend := scriptedBackend{fn: func(dc *decision.Context) decision.Decision {
		if dc.Agent.ID == "A" {
			return decision.Decision{Type: decision.Attack, TargetID: "B", Reason: "hunting"}
		}
		return decision.Decision{Type: decision.Rest}
	}}
	cfg := testConfig(5)
	w := blankWorld(cfg, backend)
	// Wall along x=2 with an opening at (2,4).
	for y := 0; y < 4; y++ {
		w.tileMap.Set(2, y, worldmap.Tile{Type: worldmap.Blocked})
	}
	a := placeAgent(w, "A", 0, 0, 50, 10, 0)
	b := placeAgent(w, "B", 4, 0, 50, 10, 0)

	w.RunTick(context.Background())

	require.NotEmpty(t, w.agentPaths["A"], "a routed attack publishes its path")
	assert.NotEqual(t, [2]int{0, 0}, [2]int{a.X, a.Y}, "attacker stepped along the path")
	for _, wp := range w.agentPaths["A"] {
		assert.True(t, w.tileMap.IsPassable(wp.X, wp.Y))
	}
	assert.True(t, b.Alive, "no contact yet at this range")
}

func TestZoneDamageOutsideSafeSquare(t *testing.T) {
	cfg := testConfig(20)
	cfg.ShrinkInterval = 1
	w := blankWorld(cfg, restBackend())
	edge := placeAgent(w, "edge", 0, 0, 100, 10, 0)
	center := placeAgent(w, "center", 10, 10, 100, 10, 0)

	w.RunTick(context.Background())

	assert.Equal(t, 19, w.shrinkBorder)
	assert.Equal(t, 90, edge.HP, "outside the 19-wide square costs exactly 10")
	assert.Equal(t, 100, center.HP)
}

func TestZoneBorderNeverBelowMin(t *testing.T) {
	cfg := testConfig(8)
	cfg.ShrinkInterval = 1
	cfg.MinBorder = 6
	w := blankWorld(cfg, restBackend())
	placeAgent(w, "a", 4, 4, 500, 10, 0)
	placeAgent(w, "b", 3, 4, 500, 10, 0)

	prev := w.shrinkBorder
	for i := 0; i < 10; i++ {
		w.RunTick(context.Background())
		assert.LessOrEqual(t, w.shrinkBorder, prev, "border is monotonically non-increasing")
		prev = w.shrinkBorder
	}
	assert.Equal(t, 6, w.shrinkBorder)
}

func TestZoneKillCreditsStorm(t *testing.T) {
	cfg := testConfig(20)
	cfg.ShrinkInterval = 1
	w := blankWorld(cfg, restBackend())
	doomed := placeAgent(w, "doomed", 0, 0, 10, 10, 0)
	placeAgent(w, "safe", 10, 10, 100, 10, 0)

	events := w.RunTick(context.Background())

	assert.False(t, doomed.Alive)
	assert.Equal(t, 1, w.aliveCount)
	var sawKill bool
	for _, ev := range events {
		if ev.Kind == EventKill {
			sawKill = true
			assert.Contains(t, ev.Message, "storm")
		}
	}
	assert.True(t, sawKill)
}

func TestLootAdjacentItem(t *testing.T) {
	backend := scriptedBackend{fn: func(dc *decision.Context) decision.Decision {
		if dc.Agent.ID == "A" {
			return decision.Decision{Type: decision.Loot, TargetID: "1", Reason: "need a weapon"}
		}
		return decision.Decision{Type: decision.Rest}
	}}
	w := blankWorld(testConfig(5), backend)
	a := placeAgent(w, "A", 1, 1, 50, 10, 0)
	placeAgent(w, "B", 4, 4, 50, 10, 0)
	w.items = []agent.Item{{ID: 1, X: 1, Y: 2, Type: "battle axe", Bonus: 5}}
	w.nextItemID = 1

	events := w.RunTick(context.Background())

	assert.Equal(t, 15, a.Attack)
	assert.Equal(t, "battle axe", a.Weapon)
	assert.Empty(t, w.items)
	var sawLoot bool
	for _, ev := range events {
		sawLoot = sawLoot || ev.Kind == EventLoot
	}
	assert.True(t, sawLoot)
}

func TestBetrayalBreaksAllianceBothWays(t *testing.T) {
	backend := scriptedBackend{fn: func(dc *decision.Context) decision.Decision {
		if dc.Agent.ID == "A" {
			return decision.Decision{Type: decision.Betray, TargetID: "B", Reason: "opportunity"}
		}
		return decision.Decision{Type: decision.Rest}
	}}
	w := blankWorld(testConfig(5), backend)
	a := placeAgent(w, "A", 1, 1, 50, 10, 0)
	b := placeAgent(w, "B", 1, 2, 50, 10, 4)
	a.Alliances["B"] = struct{}{}
	b.Alliances["A"] = struct{}{}

	w.RunTick(context.Background())

	assert.NotContains(t, a.Alliances, "B")
	assert.NotContains(t, b.Alliances, "A")
	assert.Contains(t, a.Enemies, "B")
	assert.Contains(t, b.Enemies, "A")
	// max(1, 10 + 5 - 4/2) = 13
	assert.Equal(t, 37, b.HP)
}

func TestVoteDeliveryOnlyToLiving(t *testing.T) {
	w := blankWorld(testConfig(5), restBackend())
	alive := placeAgent(w, "alive", 1, 1, 50, 10, 0)
	dead := placeAgent(w, "dead", 2, 2, 50, 10, 0)
	dead.Alive = false
	w.aliveCount--
	deadMems := dead.Memory.Len()

	w.deliverVotes(map[string]string{"alive": "flee", "dead": "attack", "ghost": "rest"})

	voice, ok := alive.InnerVoice(innerVoiceWindow)
	require.True(t, ok)
	assert.Equal(t, "flee", voice)
	assert.Equal(t, deadMems, dead.Memory.Len(), "no inner voice for the dead")
}

func TestWinnerDeclaredWhenOneRemains(t *testing.T) {
	w := blankWorld(testConfig(5), restBackend())
	survivor := placeAgent(w, "survivor", 1, 1, 50, 10, 0)
	loser := placeAgent(w, "loser", 2, 2, 5, 10, 0)

	w.applyDamage(loser, 50, "the storm", nil)
	events := w.RunTick(context.Background())

	assert.Equal(t, PhaseFinished, w.phase)
	assert.Equal(t, survivor.ID, w.winnerID)
	var sawOver bool
	for _, ev := range events {
		sawOver = sawOver || ev.Kind == EventGameOver
	}
	assert.True(t, sawOver)

	// Finished worlds do not tick further.
	tick := w.tick
	assert.Nil(t, w.RunTick(context.Background()))
	assert.Equal(t, tick, w.tick)
}

func TestComputeAgentDelta(t *testing.T) {
	w := blankWorld(testConfig(5), restBackend())
	a := placeAgent(w, "A", 1, 1, 50, 10, 0)
	placeAgent(w, "B", 3, 3, 50, 10, 0)

	first := w.ComputeAgentDelta()
	assert.Len(t, first, 2, "every agent is new on the first pass")

	assert.Empty(t, w.ComputeAgentDelta(), "nothing changed")

	a.HP -= 5
	second := w.ComputeAgentDelta()
	require.Len(t, second, 1)
	assert.Equal(t, "A", second[0].ID)
}

func TestInitSpawnsOnPassableTiles(t *testing.T) {
	cfg := testConfig(10)
	cfg.AgentCount = 8
	cfg.ObstacleDensity = 0.2
	cfg.MapSeed = 11
	w := New(cfg, restBackend(), thinking.NewMemoryStore(), nil)
	w.SetSeed(5)
	require.NoError(t, w.Init())

	assert.Equal(t, 8, w.aliveCount)
	assert.NotEmpty(t, w.SessionID)
	seen := make(map[[2]int]bool)
	for _, a := range w.agents {
		assert.True(t, w.tileMap.IsPassable(a.X, a.Y))
		assert.False(t, seen[[2]int{a.X, a.Y}], "no two agents share a spawn tile")
		seen[[2]int{a.X, a.Y}] = true
	}
	assert.Len(t, w.items, initialItems)
}

func TestInitFailsWhenMapFull(t *testing.T) {
	cfg := testConfig(3)
	cfg.AgentCount = 10
	w := New(cfg, restBackend(), thinking.NewMemoryStore(), nil)
	w.SetSeed(5)
	// Block everything so no spawn tile exists.
	w.cfg.ObstacleDensity = 0.99
	w.cfg.MapSeed = 1
	err := w.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crowded")
}

func TestInvariantsHoldOverManyTicks(t *testing.T) {
	cfg := testConfig(12)
	cfg.AgentCount = 6
	cfg.ObstacleDensity = 0.1
	cfg.ShrinkInterval = 5
	cfg.MapSeed = 3
	w := New(cfg, decision.NewRuleBased(2), thinking.NewMemoryStore(), nil)
	w.SetSeed(9)
	require.NoError(t, w.Init())

	for i := 0; i < 40 && w.phase == PhaseRunning; i++ {
		w.RunTick(context.Background())

		aliveSeen := 0
		for _, a := range w.agents {
			if a.Alive {
				aliveSeen++
			}
			assert.True(t, w.tileMap.InBounds(a.X, a.Y))
			if a.Alive {
				assert.True(t, w.tileMap.IsPassable(a.X, a.Y))
			}
			assert.GreaterOrEqual(t, a.HP, 0)
			assert.LessOrEqual(t, a.HP, a.MaxHP)
			assert.Equal(t, a.HP > 0, a.Alive)
			for id := range a.Alliances {
				_, alsoEnemy := a.Enemies[id]
				assert.False(t, alsoEnemy, "alliances and enemies must stay disjoint")
				assert.NotEqual(t, a.ID, id)
			}
			if !a.Alive {
				for _, other := range w.agents {
					assert.NotContains(t, other.Alliances, a.ID)
				}
			}
		}
		assert.Equal(t, aliveSeen, w.aliveCount)

		for _, path := range w.agentPaths {
			for j, wp := range path {
				assert.True(t, w.tileMap.IsPassable(wp.X, wp.Y))
				if j > 0 {
					assert.Equal(t, 1, worldmap.ManhattanDist(path[j-1], wp))
				}
			}
		}
	}
}

func TestThinkingStoredPerDecision(t *testing.T) {
	w := blankWorld(testConfig(5), restBackend())
	placeAgent(w, "A", 1, 1, 50, 10, 0)
	placeAgent(w, "B", 3, 3, 50, 10, 0)

	w.RunTick(context.Background())

	history := w.thoughts.History(w.SessionID, "A", 5)
	require.Len(t, history, 1)
	assert.Equal(t, "rest", history[0].Action)
	assert.Equal(t, "holding still", history[0].Reasoning)
}

func TestSerializeVersioned(t *testing.T) {
	w := blankWorld(testConfig(4), restBackend())
	placeAgent(w, "A", 1, 1, 50, 10, 0)
	placeAgent(w, "B", 2, 2, 50, 10, 0)

	data, err := w.Serialize()
	require.NoError(t, err)

	var out struct {
		Version int               `json:"version"`
		World   WorldState        `json:"world"`
		Agents  []json.RawMessage `json:"agents"`
		TileMap []byte            `json:"tileMap"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, 1, out.Version)
	assert.Len(t, out.Agents, 2)

	m, err := worldmap.Unmarshal(out.TileMap)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Width)
}

func TestItemsSpawnOnSchedule(t *testing.T) {
	w := blankWorld(testConfig(10), restBackend())
	placeAgent(w, "A", 1, 1, 500, 10, 0)
	placeAgent(w, "B", 8, 8, 500, 10, 0)

	for i := 0; i < itemSpawnEveryTicks; i++ {
		w.RunTick(context.Background())
	}
	assert.Len(t, w.items, itemSpawnBatch)
	for _, it := range w.items {
		assert.True(t, w.tileMap.IsPassable(it.X, it.Y))
	}
}
