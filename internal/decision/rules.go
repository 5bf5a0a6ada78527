package decision

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/dkettler/gridroyale/internal/agent"
)

// RuleBased is the default backend: a fixed priority table driven by
// perception, hp and personality. Deterministic apart from a few explicit
// dice rolls.
type RuleBased struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRuleBased creates a rule-based backend with its own seeded source.
func NewRuleBased(seed int64) *RuleBased {
	return &RuleBased{rng: rand.New(rand.NewSource(seed))}
}

func (r *RuleBased) roll() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// Decide walks the priority table, first match wins.
func (r *RuleBased) Decide(_ context.Context, dc *Context) (Decision, error) {
	a := dc.Agent

	// Spectator guidance outranks everything.
	if dc.InnerVoice != "" {
		if d, ok := r.parseInnerVoice(dc); ok {
			return d, nil
		}
	}

	if len(dc.Items) > 0 {
		it := dc.Items[0]
		return Decision{
			Type:     Loot,
			TargetID: fmt.Sprintf("%d", it.ID),
			Reason:   fmt.Sprintf("Spotted a %s nearby", it.Type),
		}, nil
	}

	if a.HP < (3*a.MaxHP)/10 && len(dc.Nearby) > 0 {
		return Decision{Type: Flee, Reason: "Badly hurt, breaking away"}, nil
	}

	if d, ok := r.personalityMove(dc); ok {
		return d, nil
	}

	return Decision{Type: Explore, Reason: "Nothing pressing, scouting"}, nil
}

// parseInnerVoice maps a voted action onto a concrete decision, matching
// targets by name substring among the agents in view.
func (r *RuleBased) parseInnerVoice(dc *Context) (Decision, bool) {
	voice := strings.ToLower(dc.InnerVoice)
	reason := "The voice in my head says: " + dc.InnerVoice

	switch {
	case strings.Contains(voice, "attack"):
		if t := matchByName(voice, dc.Nearby); t != nil {
			return Decision{Type: Attack, TargetID: t.ID, Reason: reason}, true
		}
		if t := weakest(dc.Nearby, nil); t != nil {
			return Decision{Type: Attack, TargetID: t.ID, Reason: reason}, true
		}
	case strings.Contains(voice, "flee") || strings.Contains(voice, "run"):
		return Decision{Type: Flee, Reason: reason}, true
	case strings.Contains(voice, "ally"):
		if t := matchByName(voice, dc.Nearby); t != nil {
			return Decision{Type: Ally, TargetID: t.ID, Reason: reason}, true
		}
		if len(dc.Nearby) > 0 {
			return Decision{Type: Ally, TargetID: dc.Nearby[0].Agent.ID, Reason: reason}, true
		}
	}
	return Decision{}, false
}

func (r *RuleBased) personalityMove(dc *Context) (Decision, bool) {
	a := dc.Agent
	if len(dc.Nearby) == 0 {
		return Decision{}, false
	}
	p := strings.ToLower(a.Personality)

	switch {
	case containsAny(p, "aggressive", "brave", "impulsive"):
		if t := weakest(dc.Nearby, a.Alliances); t != nil {
			return Decision{
				Type: Attack, TargetID: t.ID,
				Reason: fmt.Sprintf("%s looks weak", t.Name),
			}, true
		}

	case containsAny(p, "cautious", "strategic", "loyal"):
		allies := 0
		for _, n := range dc.Nearby {
			if _, ok := a.Alliances[n.Agent.ID]; ok {
				allies++
			}
		}
		outnumbered := len(dc.Nearby)-allies > allies
		if outnumbered {
			if t := neutral(dc.Nearby, a); t != nil {
				return Decision{
					Type: Ally, TargetID: t.ID,
					Reason: fmt.Sprintf("Outnumbered, proposing a pact with %s", t.Name),
				}, true
			}
		}
		for _, n := range dc.Nearby {
			if _, ok := a.Enemies[n.Agent.ID]; ok && !outnumbered {
				return Decision{
					Type: Attack, TargetID: n.Agent.ID,
					Reason: fmt.Sprintf("Numbers favor us against %s", n.Agent.Name),
				}, true
			}
		}

	case containsAny(p, "treacherous", "cunning"):
		if r.roll() < 0.2 {
			for _, n := range dc.Nearby {
				if _, ok := a.Alliances[n.Agent.ID]; ok && n.Agent.HP < 40 {
					return Decision{
						Type: Betray, TargetID: n.Agent.ID,
						Reason: fmt.Sprintf("%s has outlived their usefulness", n.Agent.Name),
					}, true
				}
			}
		}
		if t := neutral(dc.Nearby, a); t != nil {
			return Decision{
				Type: Attack, TargetID: t.ID,
				Reason: fmt.Sprintf("Striking %s before they organize", t.Name),
			}, true
		}

	case strings.Contains(p, "resourceful"):
		if t := neutral(dc.Nearby, a); t != nil {
			return Decision{
				Type: Ally, TargetID: t.ID,
				Reason: fmt.Sprintf("An alliance with %s could pay off", t.Name),
			}, true
		}
	}
	return Decision{}, false
}

// Reflect distills the recent stream into a short insight, or "" when the
// pattern thresholds are not met.
func (r *RuleBased) Reflect(_ context.Context, rc *ReflectContext) (string, error) {
	a := rc.Agent
	combat, alliance := 0, 0
	for _, e := range rc.Memories {
		lower := strings.ToLower(e.Text)
		if strings.Contains(lower, "damage") || strings.Contains(lower, "attack") {
			combat++
		}
		if strings.Contains(lower, "alliance") || strings.Contains(lower, "ally") {
			alliance++
		}
	}
	switch {
	case combat >= 3:
		return "Combat follows me everywhere. I need to pick my fights more carefully.", nil
	case alliance >= 2:
		return "Alliances have shaped my path here. I should tend to the ones I have.", nil
	case a.HP < (2*a.MaxHP)/5:
		return "I am running out of strength. Survival has to come before glory.", nil
	default:
		return "", nil
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// matchByName finds the first nearby agent whose lowercased name appears in
// the text.
func matchByName(text string, nearby []agent.NearbyAgent) *agent.Agent {
	for _, n := range nearby {
		if strings.Contains(text, strings.ToLower(n.Agent.Name)) {
			return n.Agent
		}
	}
	return nil
}

// weakest returns the lowest-hp nearby agent, skipping allies when an
// alliance set is given.
func weakest(nearby []agent.NearbyAgent, allies map[string]struct{}) *agent.Agent {
	var best *agent.Agent
	for _, n := range nearby {
		if allies != nil {
			if _, ok := allies[n.Agent.ID]; ok {
				continue
			}
		}
		if best == nil || n.Agent.HP < best.HP {
			best = n.Agent
		}
	}
	return best
}

// neutral returns the first nearby agent that is neither ally nor enemy.
func neutral(nearby []agent.NearbyAgent, a *agent.Agent) *agent.Agent {
	for _, n := range nearby {
		if _, ok := a.Alliances[n.Agent.ID]; ok {
			continue
		}
		if _, ok := a.Enemies[n.Agent.ID]; ok {
			continue
		}
		return n.Agent
	}
	return nil
}
