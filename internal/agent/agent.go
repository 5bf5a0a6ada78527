// Package agent provides the combatant entity: stats, position,
// relationships, perception, and grid movement.
package agent

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/dkettler/gridroyale/internal/memory"
	"github.com/dkettler/gridroyale/internal/thinking"
	"github.com/dkettler/gridroyale/internal/worldmap"
)

// ActionState tags what an agent is visibly doing this tick.
type ActionState string

const (
	StateIdle      ActionState = "idle"
	StateExploring ActionState = "exploring"
	StateFighting  ActionState = "fighting"
	StateFleeing   ActionState = "fleeing"
	StateLooting   ActionState = "looting"
	StateAllying   ActionState = "allying"
	StateBetraying ActionState = "betraying"
	StateDead      ActionState = "dead"
)

// InnerVoicePrefix marks memories that came from spectator votes. The prefix
// is stripped before the text reaches a decision backend.
const InnerVoicePrefix = "[inner voice] "

// Item is a lootable pickup sitting on a passable tile. IDs are strictly
// increasing within a world lifetime.
type Item struct {
	ID    int    `json:"id"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Type  string `json:"type"`
	Bonus int    `json:"bonus"`
}

// Stats is the template baseline an agent's instance stats jitter around.
type Stats struct {
	HP      int `json:"hp" yaml:"hp"`
	Attack  int `json:"attack" yaml:"attack"`
	Defense int `json:"defense" yaml:"defense"`
}

// Template describes a character archetype agents are stamped from.
type Template struct {
	Name        string `json:"name" yaml:"name"`
	Personality string `json:"personality" yaml:"personality"`
	Description string `json:"description" yaml:"description"`
	Base        Stats  `json:"baseStats" yaml:"baseStats"`
}

// Agent is a single combatant. All mutation happens on the world owner's
// goroutine.
type Agent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Personality string `json:"personality"`
	Description string `json:"description"`

	HP        int    `json:"hp"`
	MaxHP     int    `json:"maxHp"`
	Attack    int    `json:"attack"`
	Defense   int    `json:"defense"`
	Weapon    string `json:"weapon,omitempty"`
	KillCount int    `json:"killCount"`

	X     int         `json:"x"`
	Y     int         `json:"y"`
	Alive bool        `json:"alive"`
	State ActionState `json:"actionState"`

	Alliances map[string]struct{} `json:"-"`
	Enemies   map[string]struct{} `json:"-"`

	CurrentAction string `json:"currentAction,omitempty"`

	Memory *memory.Stream `json:"-"`

	Waypoints     []worldmap.Waypoint `json:"-"`
	WaypointIndex int                 `json:"-"`

	Thinking *thinking.Process `json:"thinking,omitempty"`
}

// New stamps an agent from a template at (x,y). Instance stats jitter by
// small offsets so two agents from the same template are not identical.
func New(id string, tpl Template, x, y int, rng *rand.Rand) *Agent {
	hp := tpl.Base.HP + rng.Intn(11) - 5
	if hp < 1 {
		hp = 1
	}
	atk := tpl.Base.Attack + rng.Intn(5) - 2
	if atk < 1 {
		atk = 1
	}
	def := tpl.Base.Defense + rng.Intn(3) - 1
	if def < 0 {
		def = 0
	}

	a := &Agent{
		ID:          id,
		Name:        tpl.Name,
		Personality: tpl.Personality,
		Description: tpl.Description,
		HP:          hp,
		MaxHP:       hp,
		Attack:      atk,
		Defense:     def,
		X:           x,
		Y:           y,
		Alive:       true,
		State:       StateIdle,
		Alliances:   make(map[string]struct{}),
		Enemies:     make(map[string]struct{}),
		Memory:      memory.NewStream(),
	}
	a.Memory.Add(
		fmt.Sprintf("I am %s. %s My personality: %s.", a.Name, a.Description, a.Personality),
		8, memory.Observation,
	)
	return a
}

// NearbyAgent pairs a perceived agent with its Manhattan distance.
type NearbyAgent struct {
	Agent    *Agent
	Distance int
}

// Perception is what an agent can see this tick.
type Perception struct {
	Agents []NearbyAgent
	Items  []Item
}

// Perceive returns the live agents and items within visionRange Manhattan
// distance, excluding the perceiver and the dead.
func (a *Agent) Perceive(all []*Agent, items []Item, visionRange int) Perception {
	var p Perception
	for _, other := range all {
		if other.ID == a.ID || !other.Alive {
			continue
		}
		d := manhattan(a.X, a.Y, other.X, other.Y)
		if d <= visionRange {
			p.Agents = append(p.Agents, NearbyAgent{Agent: other, Distance: d})
		}
	}
	for _, it := range items {
		if manhattan(a.X, a.Y, it.X, it.Y) <= visionRange {
			p.Items = append(p.Items, it)
		}
	}
	return p
}

// MoveToward steps one cell toward (tx,ty) in each axis, clamped to the map.
// The agent stays put if the destination tile is blocked.
func (a *Agent) MoveToward(tx, ty int, m *worldmap.TileMap) {
	nx := clamp(a.X+sign(tx-a.X), 0, m.Width-1)
	ny := clamp(a.Y+sign(ty-a.Y), 0, m.Height-1)
	if m.IsPassable(nx, ny) {
		a.X, a.Y = nx, ny
	}
}

// MoveAwayFrom steps one cell away from (fx,fy). A zero delta on an axis
// defaults to +1 so the agent always tries to open distance.
func (a *Agent) MoveAwayFrom(fx, fy int, m *worldmap.TileMap) {
	dx := -sign(fx - a.X)
	if dx == 0 {
		dx = 1
	}
	dy := -sign(fy - a.Y)
	if dy == 0 {
		dy = 1
	}
	nx := clamp(a.X+dx, 0, m.Width-1)
	ny := clamp(a.Y+dy, 0, m.Height-1)
	if m.IsPassable(nx, ny) {
		a.X, a.Y = nx, ny
	}
}

// MoveRandom tries up to 8 random one-cell offsets and takes the first
// passable one.
func (a *Agent) MoveRandom(m *worldmap.TileMap, rng *rand.Rand) {
	for i := 0; i < 8; i++ {
		nx := clamp(a.X+rng.Intn(3)-1, 0, m.Width-1)
		ny := clamp(a.Y+rng.Intn(3)-1, 0, m.Height-1)
		if (nx != a.X || ny != a.Y) && m.IsPassable(nx, ny) {
			a.X, a.Y = nx, ny
			return
		}
	}
}

// SetPath installs a waypoint run for FollowPath to consume.
func (a *Agent) SetPath(waypoints []worldmap.Waypoint) {
	a.Waypoints = waypoints
	a.WaypointIndex = 0
}

// ClearPath drops any installed waypoints.
func (a *Agent) ClearPath() {
	a.Waypoints = nil
	a.WaypointIndex = 0
}

// HasPath reports whether waypoints remain to be walked.
func (a *Agent) HasPath() bool {
	return a.WaypointIndex < len(a.Waypoints)
}

// FollowPath advances one step toward the current waypoint, x-axis first. On
// arrival it advances to the next waypoint and recurses. A blocked step
// clears the whole path.
func (a *Agent) FollowPath(m *worldmap.TileMap) {
	if !a.HasPath() {
		a.ClearPath()
		return
	}
	wp := a.Waypoints[a.WaypointIndex]
	if a.X == wp.X && a.Y == wp.Y {
		a.WaypointIndex++
		a.FollowPath(m)
		return
	}

	nx, ny := a.X, a.Y
	if a.X != wp.X {
		nx = a.X + sign(wp.X-a.X)
	} else {
		ny = a.Y + sign(wp.Y-a.Y)
	}
	if !m.IsPassable(nx, ny) {
		a.ClearPath()
		return
	}
	a.X, a.Y = nx, ny
}

// TakeDamage applies damage, clamping HP at zero. A lethal hit flips the
// agent to dead. The experience is remembered.
func (a *Agent) TakeDamage(amount int, source string) {
	if amount < 0 {
		amount = 0
	}
	a.HP -= amount
	if a.HP <= 0 {
		a.HP = 0
		a.Alive = false
		a.State = StateDead
		a.Memory.Add(fmt.Sprintf("I was killed by %s.", source), 10, memory.Observation)
		return
	}
	a.Memory.Add(fmt.Sprintf("Took %d damage from %s.", amount, source), 6, memory.Observation)
}

// HearInnerVoice records a resolved spectator vote as a high-importance
// memory the next decision may consult.
func (a *Agent) HearInnerVoice(message string) {
	a.Memory.Add(InnerVoicePrefix+message, 9, memory.InnerVoice)
}

// InnerVoice returns the stripped text of an inner-voice memory no older
// than maxAge, or false when none is pending.
func (a *Agent) InnerVoice(maxAge time.Duration) (string, bool) {
	e, ok := a.Memory.LatestOfKind(memory.InnerVoice, maxAge)
	if !ok {
		return "", false
	}
	text := e.Text
	if len(text) >= len(InnerVoicePrefix) && text[:len(InnerVoicePrefix)] == InnerVoicePrefix {
		text = text[len(InnerVoicePrefix):]
	}
	return text, true
}

func manhattan(x1, y1, x2, y2 int) int {
	return abs(x1-x2) + abs(y1-y2)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
