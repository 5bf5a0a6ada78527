// Package config loads simulation settings from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LLM configures the completion-backed decision backend.
type LLM struct {
	APIKey         string  `yaml:"apiKey"`
	BaseURL        string  `yaml:"baseURL"`
	Model          string  `yaml:"model"`
	MaxConcurrency int     `yaml:"maxConcurrency"`
	Temperature    float64 `yaml:"temperature"`
}

// Config is the full runtime configuration.
type Config struct {
	Port            int      `yaml:"port"`
	CORSOrigins     []string `yaml:"corsOrigins"`
	GridSize        int      `yaml:"gridSize"`
	AgentCount      int      `yaml:"agentCount"`
	TickIntervalMs  int      `yaml:"tickIntervalMs"`
	VotingWindowMs  int      `yaml:"votingWindowMs"`
	ShrinkInterval  int      `yaml:"shrinkIntervalTicks"`
	ObstacleDensity float64  `yaml:"obstacleDensity"`
	MapStyle        string   `yaml:"mapStyle"` // "random" or "noise"
	MapSeed         int64    `yaml:"mapSeed"`  // 0 means time-derived
	VisionRange     int      `yaml:"visionRange"`
	MinBorder       int      `yaml:"minBorder"`
	Backend         string   `yaml:"backend"` // "rule-based" or "llm"
	LLM             LLM      `yaml:"llm"`
	DecisionTimeout int      `yaml:"decisionTimeoutMs"` // 0 means tickIntervalMs-200
	ThinkingStorage string   `yaml:"thinkingStorage"`   // "in-memory", "sqlite" or "null"
	ThinkingDBPath  string   `yaml:"thinkingDBPath"`
	BroadcastDeltas bool     `yaml:"broadcastDeltas"`
}

// Default returns the configuration used when no file or overrides apply.
func Default() Config {
	return Config{
		Port:            8080,
		CORSOrigins:     []string{"*"},
		GridSize:        20,
		AgentCount:      10,
		TickIntervalMs:  1000,
		VotingWindowMs:  30000,
		ShrinkInterval:  30,
		ObstacleDensity: 0.15,
		MapStyle:        "random",
		VisionRange:     4,
		MinBorder:       6,
		Backend:         "rule-based",
		LLM: LLM{
			BaseURL:        "https://api.deepseek.com",
			Model:          "deepseek-chat",
			MaxConcurrency: 10,
			Temperature:    0.7,
		},
		ThinkingStorage: "in-memory",
		ThinkingDBPath:  "thinking.db",
		BroadcastDeltas: true,
	}
}

// Load reads path (if non-empty and present) over the defaults, then applies
// environment overrides, then validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	envInt("PORT", &c.Port)
	envInt("GRID_SIZE", &c.GridSize)
	envInt("AGENT_COUNT", &c.AgentCount)
	envInt("TICK_INTERVAL_MS", &c.TickIntervalMs)
	envInt("VOTING_WINDOW_MS", &c.VotingWindowMs)
	envStr("BACKEND", &c.Backend)
	envStr("LLM_API_KEY", &c.LLM.APIKey)
	envStr("LLM_BASE_URL", &c.LLM.BaseURL)
	envStr("LLM_MODEL", &c.LLM.Model)
	envStr("THINKING_STORAGE", &c.ThinkingStorage)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		if len(origins) > 0 {
			c.CORSOrigins = origins
		}
	}
}

// Validate rejects configurations the simulation cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.GridSize < 3:
		return fmt.Errorf("gridSize %d too small, need at least 3", c.GridSize)
	case c.AgentCount < 1:
		return fmt.Errorf("agentCount must be positive, got %d", c.AgentCount)
	case c.TickIntervalMs < 50:
		return fmt.Errorf("tickIntervalMs %d too small, need at least 50", c.TickIntervalMs)
	case c.ObstacleDensity < 0 || c.ObstacleDensity >= 1:
		return fmt.Errorf("obstacleDensity %.2f outside [0,1)", c.ObstacleDensity)
	case c.MinBorder < 1 || c.MinBorder > c.GridSize:
		return fmt.Errorf("minBorder %d outside [1,%d]", c.MinBorder, c.GridSize)
	}
	switch c.Backend {
	case "rule-based", "llm":
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	switch c.MapStyle {
	case "random", "noise":
	default:
		return fmt.Errorf("unknown mapStyle %q", c.MapStyle)
	}
	switch c.ThinkingStorage {
	case "in-memory", "sqlite", "null":
	default:
		return fmt.Errorf("unknown thinkingStorage %q", c.ThinkingStorage)
	}
	return nil
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
