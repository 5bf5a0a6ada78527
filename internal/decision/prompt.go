package decision

import (
	"fmt"
	"strings"
)

func buildSystemPrompt(dc *Context) string {
	a := dc.Agent
	return fmt.Sprintf(
		`You are %s, a fighter in a shrinking-zone battle royale on a tile grid.
%s Your personality: %s.

Respond with exactly two lines:
ACTION: <attack|flee|ally|betray|loot|explore|rest> [target name or item]
REASON: <one sentence in character>`,
		a.Name, a.Description, a.Personality,
	)
}

func buildUserPrompt(dc *Context) string {
	a := dc.Agent
	var b strings.Builder

	fmt.Fprintf(&b, "Tick %d. %d fighters remain. Safe zone border: %d.\n",
		dc.World.Tick, dc.World.AliveCount, dc.World.ShrinkBorder)
	fmt.Fprintf(&b, "You are at (%d,%d) with %d/%d hp, attack %d, defense %d.\n\n",
		a.X, a.Y, a.HP, a.MaxHP, a.Attack, a.Defense)

	if len(dc.Nearby) > 0 {
		b.WriteString("Fighters in view:\n")
		for _, n := range dc.Nearby {
			rel := "neutral"
			if _, ok := a.Alliances[n.Agent.ID]; ok {
				rel = "ally"
			} else if _, ok := a.Enemies[n.Agent.ID]; ok {
				rel = "enemy"
			}
			fmt.Fprintf(&b, "- %s (%s, %d hp, distance %d)\n",
				n.Agent.Name, rel, n.Agent.HP, n.Distance)
		}
		b.WriteString("\n")
	}

	if len(dc.Items) > 0 {
		b.WriteString("Items in view:\n")
		for _, it := range dc.Items {
			fmt.Fprintf(&b, "- %s (+%d) at (%d,%d)\n", it.Type, it.Bonus, it.X, it.Y)
		}
		b.WriteString("\n")
	}

	if len(dc.Memories) > 0 {
		b.WriteString("Recent memories:\n")
		for _, m := range dc.Memories {
			fmt.Fprintf(&b, "- %s\n", m.Text)
		}
		b.WriteString("\n")
	}

	if dc.InnerVoice != "" {
		fmt.Fprintf(&b, "A voice in your head urges: %q\n\n", dc.InnerVoice)
	}

	b.WriteString("What do you do this tick?")
	return b.String()
}

func buildReflectPrompt(rc *ReflectContext) (string, string) {
	a := rc.Agent
	system := fmt.Sprintf(
		`You are %s. Personality: %s. Distill your recent experiences into one
short reflective insight, in character. Respond with a single sentence, or
NOTHING if there is nothing worth reflecting on.`,
		a.Name, a.Personality,
	)

	var b strings.Builder
	b.WriteString("Recent experiences:\n")
	for _, m := range rc.Memories {
		fmt.Fprintf(&b, "- %s\n", m.Text)
	}
	return system, b.String()
}
