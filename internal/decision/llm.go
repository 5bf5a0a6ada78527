package decision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/dkettler/gridroyale/internal/agent"
	"github.com/dkettler/gridroyale/internal/thinking"
)

const (
	decideMaxTokens  = 150
	reflectMaxTokens = 100
	llmTemperature   = 0.7

	// DefaultMaxConcurrency bounds in-flight completion calls.
	DefaultMaxConcurrency = 10
)

// LLM is the completion-backed variant. Every call acquires a concurrency
// gate; any failure past the gate falls back to the rule-based delegate with
// the same context, so a tick always gets a decision.
type LLM struct {
	client      Completer
	fallback    *RuleBased
	gate        *semaphore.Weighted
	temperature float64
}

// NewLLM wraps a completer with a gate of maxConcurrency permits.
func NewLLM(client Completer, fallback *RuleBased, maxConcurrency int) *LLM {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &LLM{
		client:      client,
		fallback:    fallback,
		gate:        semaphore.NewWeighted(int64(maxConcurrency)),
		temperature: llmTemperature,
	}
}

// SetTemperature overrides the sampling temperature.
func (l *LLM) SetTemperature(t float64) {
	if t > 0 {
		l.temperature = t
	}
}

// Decide asks the model for an action, falling back to the rules on any
// error. The reasoning artifact records the prompt and raw response when the
// model answered.
func (l *LLM) Decide(ctx context.Context, dc *Context) (Decision, error) {
	if err := l.gate.Acquire(ctx, 1); err != nil {
		return l.delegate(ctx, dc, fmt.Errorf("acquire gate: %w", err))
	}

	system := buildSystemPrompt(dc)
	user := buildUserPrompt(dc)
	raw, err := l.client.Complete(ctx, system, user, decideMaxTokens, l.temperature)
	l.gate.Release(1)
	if err != nil {
		return l.delegate(ctx, dc, err)
	}

	d := parseDecision(raw, dc)
	d.Thinking = thinking.NewProcess(string(d.Type), d.Reason)
	d.Thinking.Prompt = user
	d.Thinking.RawResponse = raw
	return d, nil
}

// Reflect asks the model for an insight with the same gate-and-fallback
// shape. A bare NOTHING answer means no reflection.
func (l *LLM) Reflect(ctx context.Context, rc *ReflectContext) (string, error) {
	if err := l.gate.Acquire(ctx, 1); err != nil {
		return l.fallback.Reflect(ctx, rc)
	}

	system, user := buildReflectPrompt(rc)
	raw, err := l.client.Complete(ctx, system, user, reflectMaxTokens, l.temperature)
	l.gate.Release(1)
	if err != nil {
		slog.Debug("reflection fell back to rules", "agent", rc.Agent.ID, "error", err)
		return l.fallback.Reflect(ctx, rc)
	}

	text := strings.TrimSpace(raw)
	if text == "" || strings.EqualFold(text, "NOTHING") {
		return "", nil
	}
	return text, nil
}

func (l *LLM) delegate(ctx context.Context, dc *Context, cause error) (Decision, error) {
	slog.Debug("decision fell back to rules", "agent", dc.Agent.ID, "error", cause)
	return l.fallback.Decide(ctx, dc)
}

// parseDecision extracts ACTION/REASON lines from a completion. Matching is
// tolerant: verbs are case-insensitive, targets match by name substring, and
// an unmatched verb degrades to explore with the model's reason intact.
func parseDecision(raw string, dc *Context) Decision {
	var actionLine, reason string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "ACTION:"):
			actionLine = strings.TrimSpace(line[len("ACTION:"):])
		case strings.HasPrefix(upper, "REASON:"):
			reason = strings.TrimSpace(line[len("REASON:"):])
		}
	}
	if reason == "" {
		reason = strings.TrimSpace(raw)
	}
	if actionLine == "" {
		return Decision{Type: Explore, Reason: reason}
	}

	fields := strings.Fields(strings.ToLower(actionLine))
	verb := fields[0]
	rest := strings.TrimSpace(strings.ToLower(actionLine[len(fields[0]):]))

	switch verb {
	case "attack", "betray", "ally":
		t := matchByName(rest, dc.Nearby)
		if t == nil && rest == "" && len(dc.Nearby) > 0 {
			t = dc.Nearby[0].Agent
		}
		if t == nil {
			return Decision{Type: Explore, Reason: reason}
		}
		return Decision{Type: Type(verb), TargetID: t.ID, Reason: reason}
	case "flee", "run":
		return Decision{Type: Flee, Reason: reason}
	case "loot":
		if it := matchItem(rest, dc.Items); it != nil {
			return Decision{Type: Loot, TargetID: fmt.Sprintf("%d", it.ID), Reason: reason}
		}
		if len(dc.Items) > 0 {
			return Decision{Type: Loot, TargetID: fmt.Sprintf("%d", dc.Items[0].ID), Reason: reason}
		}
		return Decision{Type: Explore, Reason: reason}
	case "rest":
		return Decision{Type: Rest, Reason: reason}
	case "explore":
		return Decision{Type: Explore, Reason: reason}
	default:
		return Decision{Type: Explore, Reason: reason}
	}
}

// matchItem finds the first item whose type appears in the text.
func matchItem(text string, items []agent.Item) *agent.Item {
	for i := range items {
		if strings.Contains(text, strings.ToLower(items[i].Type)) {
			return &items[i]
		}
	}
	return nil
}
