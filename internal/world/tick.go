package world

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dkettler/gridroyale/internal/agent"
	"github.com/dkettler/gridroyale/internal/decision"
	"github.com/dkettler/gridroyale/internal/memory"
	"github.com/dkettler/gridroyale/internal/pathfind"
	"github.com/dkettler/gridroyale/internal/thinking"
	"github.com/dkettler/gridroyale/internal/worldmap"
)

// decisionDeadline returns the per-decide timeout: configured, or the tick
// interval minus a publishing margin.
func (w *World) decisionDeadline() time.Duration {
	if w.cfg.DecisionTimeout > 0 {
		return time.Duration(w.cfg.DecisionTimeout) * time.Millisecond
	}
	d := time.Duration(w.cfg.TickIntervalMs-200) * time.Millisecond
	if d < 100*time.Millisecond {
		d = 100 * time.Millisecond
	}
	return d
}

// RunTick advances the simulation one step and returns the events it
// produced. Must be called from the single owner goroutine.
func (w *World) RunTick(ctx context.Context) []Event {
	if w.phase != PhaseRunning {
		return nil
	}

	w.tick++
	w.pendingEvents = nil

	w.shrinkZone()
	if w.tick%itemSpawnEveryTicks == 0 {
		for i := 0; i < itemSpawnBatch; i++ {
			w.spawnItem()
		}
	}
	w.votes.Tick()
	w.agentPass(ctx)
	w.checkWin()

	return w.pendingEvents
}

func (w *World) shrinkZone() {
	if w.cfg.ShrinkInterval > 0 && w.tick%w.cfg.ShrinkInterval == 0 && w.shrinkBorder > w.cfg.MinBorder {
		w.shrinkBorder--
		w.emit(EventZoneShrink, fmt.Sprintf("The safe zone shrinks to %d", w.shrinkBorder))
	}
	for _, a := range w.agents {
		if !a.Alive || !w.outsideZone(a.X, a.Y) {
			continue
		}
		w.applyDamage(a, zoneDamage, "the storm", nil)
	}
}

// decided pairs an agent with the outcome of its fan-out calls.
type decided struct {
	agent      *agent.Agent
	decision   decision.Decision
	reflection string
}

// agentPass runs the decision fan-out over a consistent pre-tick snapshot,
// then applies results sequentially in randomized order.
func (w *World) agentPass(ctx context.Context) {
	live := make([]*agent.Agent, 0, w.aliveCount)
	for _, a := range w.agents {
		if a.Alive {
			live = append(live, a)
		}
	}
	w.rng.Shuffle(len(live), func(i, j int) { live[i], live[j] = live[j], live[i] })

	contexts := make([]*decision.Context, len(live))
	for i, a := range live {
		contexts[i] = w.buildContext(a)
	}
	reflecting := w.tick%reflectEveryTicks == 0

	results := make([]decided, len(live))
	g, gctx := errgroup.WithContext(ctx)
	for i := range live {
		i := i
		g.Go(func() error {
			a, dc := live[i], contexts[i]
			callCtx, cancel := context.WithTimeout(gctx, w.decisionDeadline())
			defer cancel()

			d, err := w.backend.Decide(callCtx, dc)
			if err != nil {
				w.log.Warn("decide failed", "agent", a.ID, "error", err)
				d = decision.Decision{Type: decision.Explore, Reason: "hesitating"}
			}
			results[i] = decided{agent: a, decision: d}

			if reflecting {
				text, err := w.backend.Reflect(callCtx, &decision.ReflectContext{
					Agent:    a,
					Memories: dc.Memories,
				})
				if err == nil {
					results[i].reflection = text
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		w.log.Warn("decision pass aborted", "error", err)
		return
	}
	if ctx.Err() != nil {
		// Shutdown mid-tick: discard this tick's decisions.
		return
	}

	for _, r := range results {
		if !r.agent.Alive {
			continue
		}
		w.applyDecision(r.agent, r.decision)
		if r.reflection != "" {
			r.agent.Memory.Add(r.reflection, 7, memory.Reflection)
		}
	}
}

// buildContext snapshots what one agent may consult while deciding. The
// inner voice is attached only while the delivery window is open.
func (w *World) buildContext(a *agent.Agent) *decision.Context {
	p := a.Perceive(w.agents, w.items, w.cfg.VisionRange)
	dc := &decision.Context{
		Agent:  a,
		Nearby: p.Agents,
		Items:  p.Items,
		World: decision.WorldInfo{
			Tick:         w.tick,
			AliveCount:   w.aliveCount,
			ShrinkBorder: w.shrinkBorder,
			Phase:        string(w.phase),
		},
		Memories: a.Memory.Recent(5),
	}
	if voice, ok := a.InnerVoice(innerVoiceWindow); ok {
		dc.InnerVoice = voice
	}
	return dc
}

// applyDecision executes one decision against live state. Targets may have
// moved or died since the context snapshot; every branch revalidates.
func (w *World) applyDecision(a *agent.Agent, d decision.Decision) {
	a.CurrentAction = d.Reason
	th := d.Thinking
	if th == nil {
		th = thinking.NewProcess(string(d.Type), d.Reason)
	}
	a.Thinking = th
	w.thoughts.Store(w.SessionID, a.ID, *th)

	switch d.Type {
	case decision.Attack:
		w.executeAttack(a, d.TargetID)
	case decision.Ally:
		w.executeAlly(a, d.TargetID)
	case decision.Betray:
		w.executeBetray(a, d.TargetID)
	case decision.Loot:
		w.executeLoot(a, d.TargetID)
	case decision.Flee:
		w.executeFlee(a)
	default:
		a.State = agent.StateExploring
		a.ClearPath()
		delete(w.agentPaths, a.ID)
		a.MoveRandom(w.tileMap, w.rng)
	}
}

func (w *World) executeAttack(a *agent.Agent, targetID string) {
	t, ok := w.agentsByID[targetID]
	if !ok || !t.Alive {
		a.State = agent.StateExploring
		a.MoveRandom(w.tileMap, w.rng)
		return
	}
	a.State = agent.StateFighting
	if manhattan(a, t) > 1 {
		w.moveAgentToward(a, t.X, t.Y)
		return
	}

	dmg := a.Attack - t.Defense/2 + w.rng.Intn(5)
	if dmg < 1 {
		dmg = 1
	}
	a.Enemies[t.ID] = struct{}{}
	t.Enemies[a.ID] = struct{}{}
	delete(a.Alliances, t.ID)
	delete(t.Alliances, a.ID)
	w.emit(EventCombat, fmt.Sprintf("%s strikes %s for %d", a.Name, t.Name, dmg), a.ID, t.ID)
	w.applyDamage(t, dmg, a.Name, a)
}

func (w *World) executeAlly(a *agent.Agent, targetID string) {
	t, ok := w.agentsByID[targetID]
	if !ok || !t.Alive {
		a.State = agent.StateExploring
		a.MoveRandom(w.tileMap, w.rng)
		return
	}
	a.State = agent.StateAllying
	if manhattan(a, t) > 2 {
		w.moveAgentToward(a, t.X, t.Y)
		return
	}

	_, hostile := t.Enemies[a.ID]
	if !hostile && w.rng.Float64() < 0.6 {
		delete(a.Enemies, t.ID)
		delete(t.Enemies, a.ID)
		a.Alliances[t.ID] = struct{}{}
		t.Alliances[a.ID] = struct{}{}
		a.Memory.Add(fmt.Sprintf("Formed an alliance with %s.", t.Name), 7, memory.Observation)
		t.Memory.Add(fmt.Sprintf("Formed an alliance with %s.", a.Name), 7, memory.Observation)
		w.emit(EventAlliance, fmt.Sprintf("%s and %s form an alliance", a.Name, t.Name), a.ID, t.ID)
	}
}

func (w *World) executeBetray(a *agent.Agent, targetID string) {
	t, ok := w.agentsByID[targetID]
	if !ok || !t.Alive {
		a.State = agent.StateExploring
		a.MoveRandom(w.tileMap, w.rng)
		return
	}
	a.State = agent.StateBetraying

	delete(a.Alliances, t.ID)
	delete(t.Alliances, a.ID)
	a.Enemies[t.ID] = struct{}{}
	t.Enemies[a.ID] = struct{}{}

	dmg := a.Attack + 5 - t.Defense/2
	if dmg < 1 {
		dmg = 1
	}
	t.Memory.Add(fmt.Sprintf("%s betrayed me!", a.Name), 9, memory.Observation)
	w.emit(EventBetrayal, fmt.Sprintf("%s betrays %s", a.Name, t.Name), a.ID, t.ID)
	w.applyDamage(t, dmg, a.Name, a)
}

func (w *World) executeLoot(a *agent.Agent, itemID string) {
	id, err := strconv.Atoi(itemID)
	if err != nil {
		a.State = agent.StateExploring
		a.MoveRandom(w.tileMap, w.rng)
		return
	}
	idx := -1
	for i := range w.items {
		if w.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		a.State = agent.StateExploring
		a.MoveRandom(w.tileMap, w.rng)
		return
	}
	it := w.items[idx]
	a.State = agent.StateLooting
	if absInt(a.X-it.X)+absInt(a.Y-it.Y) > 1 {
		w.moveAgentToward(a, it.X, it.Y)
		return
	}

	a.Attack += it.Bonus
	a.Weapon = it.Type
	w.items = append(w.items[:idx], w.items[idx+1:]...)
	a.Memory.Add(fmt.Sprintf("Picked up a %s (+%d attack).", it.Type, it.Bonus), 5, memory.Observation)
	w.emit(EventLoot, fmt.Sprintf("%s picks up a %s", a.Name, it.Type), a.ID)
}

func (w *World) executeFlee(a *agent.Agent) {
	a.State = agent.StateFleeing
	a.ClearPath()
	delete(w.agentPaths, a.ID)

	p := a.Perceive(w.agents, w.items, w.cfg.VisionRange)
	if len(p.Agents) == 0 {
		a.MoveRandom(w.tileMap, w.rng)
		return
	}
	cx, cy := 0, 0
	for _, n := range p.Agents {
		cx += n.Agent.X
		cy += n.Agent.Y
	}
	a.MoveAwayFrom(cx/len(p.Agents), cy/len(p.Agents), w.tileMap)
}

// moveAgentToward routes via the pathfinder, publishing the path; when no
// path exists it degrades to a greedy step and clears any stale path.
func (w *World) moveAgentToward(a *agent.Agent, tx, ty int) {
	path := pathfind.Find(w.tileMap,
		worldmap.Waypoint{X: a.X, Y: a.Y},
		worldmap.Waypoint{X: tx, Y: ty},
	)
	if path != nil && len(path.Waypoints) > 1 {
		a.SetPath(path.Waypoints)
		a.FollowPath(w.tileMap)
		w.agentPaths[a.ID] = path.Waypoints
		return
	}
	delete(w.agentPaths, a.ID)
	a.ClearPath()
	a.MoveToward(tx, ty, w.tileMap)
}

// applyDamage routes all damage, combat and zone alike, through one place so
// death bookkeeping cannot be skipped. killer is nil for zone damage.
func (w *World) applyDamage(t *agent.Agent, dmg int, source string, killer *agent.Agent) {
	t.TakeDamage(dmg, source)
	if t.Alive {
		return
	}

	w.aliveCount--
	t.ClearPath()
	delete(w.agentPaths, t.ID)
	for _, other := range w.agents {
		delete(other.Alliances, t.ID)
	}
	if killer != nil {
		killer.KillCount++
		killer.Memory.Add(fmt.Sprintf("I killed %s.", t.Name), 9, memory.Observation)
		w.emit(EventKill, fmt.Sprintf("%s has slain %s", killer.Name, t.Name), killer.ID, t.ID)
		return
	}
	w.emit(EventKill, fmt.Sprintf("%s perished in the storm", t.Name), t.ID)
}

func (w *World) checkWin() {
	if w.aliveCount > 1 {
		return
	}
	w.phase = PhaseFinished
	for _, a := range w.agents {
		if a.Alive {
			w.winnerID = a.ID
			w.emit(EventGameOver, fmt.Sprintf("%s wins the game", a.Name), a.ID)
			return
		}
	}
	w.emit(EventGameOver, "No one survived")
}

func manhattan(a, b *agent.Agent) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y)
}
