// Command royaled runs the authoritative battle-royale simulation server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dkettler/gridroyale/internal/config"
	"github.com/dkettler/gridroyale/internal/decision"
	"github.com/dkettler/gridroyale/internal/pub"
	"github.com/dkettler/gridroyale/internal/thinking"
	"github.com/dkettler/gridroyale/internal/world"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfgPath := os.Getenv("ROYALE_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	thoughts, closeThoughts, err := buildThinkingStore(cfg)
	if err != nil {
		slog.Error("thinking store unavailable", "error", err)
		os.Exit(1)
	}
	defer closeThoughts()

	backend := buildBackend(cfg)

	w := world.New(cfg, backend, thoughts, logger)
	if err := w.Init(); err != nil {
		slog.Error("world init failed", "error", err)
		os.Exit(1)
	}

	hub := pub.NewHub(cfg.CORSOrigins, logger)

	var statusCache atomic.Value
	statusCache.Store([]byte(`{}`))

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/v1/status", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.Write(statusCache.Load().([]byte))
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		slog.Info("http server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	start := time.Now()
	ticker := time.NewTicker(time.Duration(cfg.TickIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	slog.Info("simulation starting",
		"agents", cfg.AgentCount,
		"grid", cfg.GridSize,
		"tick_interval_ms", cfg.TickIntervalMs,
		"backend", cfg.Backend,
	)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			tickStart := time.Now()

			applyIntents(hub, w)
			events := w.RunTick(ctx)
			hub.BroadcastTick(w, events, cfg.BroadcastDeltas)

			statusCache.Store(renderStatus(w, hub, start))

			if elapsed := time.Since(tickStart); elapsed > time.Duration(cfg.TickIntervalMs)*time.Millisecond {
				slog.Warn("tick overran its interval", "tick", w.Tick(), "elapsed", elapsed)
			}
			if w.Tick()%60 == 0 {
				st := w.GetWorldState()
				slog.Info("simulation status",
					"tick", humanize.Comma(int64(st.Tick)),
					"alive", st.AliveCount,
					"border", st.ShrinkBorder,
					"subscribers", hub.SubscriberCount(),
					"running_since", humanize.Time(start),
				)
			}
			if w.Phase() == world.PhaseFinished {
				st := w.GetWorldState()
				slog.Info("game over", "tick", st.Tick, "winner", st.Winner)
				break loop
			}
		}
	}

	hub.Shutdown()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
	slog.Info("simulation stopped", "uptime", time.Since(start).Round(time.Second))
}

// applyIntents services queued subscriber requests on the owner goroutine
// before the tick mutates state.
func applyIntents(hub *pub.Hub, w *world.World) {
	for _, in := range hub.DrainIntents() {
		switch in.Kind {
		case "connect":
			hub.SendFullSync(in.Sub, w)
		case pub.MsgVoteSubmit:
			w.Votes().Submit(in.Vote)
		case pub.MsgAgentInspect:
			if a, ok := w.Agent(in.AgentID); ok {
				hub.SendAgentDetail(in.Sub, w.Tick(), a)
			}
		case pub.MsgAgentFollow:
			hub.SetFollow(in.Sub, in.Follow)
			if in.Follow != nil {
				if a, ok := w.Agent(*in.Follow); ok {
					hub.SendAgentDetail(in.Sub, w.Tick(), a)
				}
			}
		case pub.MsgThinkingRequest:
			history := w.Thinking().History(w.SessionID, in.AgentID, in.Limit)
			hub.SendThinkingHistory(in.Sub, w.Tick(), in.AgentID, history)
		}
	}
}

func renderStatus(w *world.World, hub *pub.Hub, start time.Time) []byte {
	st := w.GetWorldState()
	out, err := json.Marshal(map[string]any{
		"tick":         st.Tick,
		"phase":        st.Phase,
		"aliveCount":   st.AliveCount,
		"shrinkBorder": st.ShrinkBorder,
		"winner":       st.Winner,
		"subscribers":  hub.SubscriberCount(),
		"uptime":       time.Since(start).Round(time.Second).String(),
	})
	if err != nil {
		return []byte(`{}`)
	}
	return out
}

func buildThinkingStore(cfg config.Config) (thinking.Store, func(), error) {
	switch cfg.ThinkingStorage {
	case "sqlite":
		store, err := thinking.OpenSQLite(cfg.ThinkingDBPath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("thinking history persisted", "path", cfg.ThinkingDBPath)
		return store, func() { store.Close() }, nil
	case "null":
		return thinking.NullStore{}, func() {}, nil
	default:
		return thinking.NewMemoryStore(), func() {}, nil
	}
}

func buildBackend(cfg config.Config) decision.Backend {
	rules := decision.NewRuleBased(time.Now().UnixNano())
	if cfg.Backend != "llm" {
		return rules
	}
	client := decision.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
	if !client.Enabled() {
		slog.Warn("LLM_API_KEY not set, falling back to rule-based backend")
		return rules
	}
	slog.Info("LLM backend enabled", "model", cfg.LLM.Model, "max_concurrency", cfg.LLM.MaxConcurrency)
	llm := decision.NewLLM(client, rules, cfg.LLM.MaxConcurrency)
	llm.SetTemperature(cfg.LLM.Temperature)
	return llm
}
