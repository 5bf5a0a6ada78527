package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 20, cfg.GridSize)
	assert.Equal(t, 10, cfg.AgentCount)
	assert.Equal(t, 1000, cfg.TickIntervalMs)
	assert.Equal(t, 30000, cfg.VotingWindowMs)
	assert.Equal(t, 0.15, cfg.ObstacleDensity)
	assert.Equal(t, 4, cfg.VisionRange)
	assert.Equal(t, 6, cfg.MinBorder)
	assert.Equal(t, "rule-based", cfg.Backend)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.Equal(t, 10, cfg.LLM.MaxConcurrency)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().GridSize, cfg.GridSize)
}

func TestLoadYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
gridSize: 32
agentCount: 4
backend: llm
llm:
  apiKey: sk-test
  maxConcurrency: 3
corsOrigins:
  - https://arena.example.com
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.GridSize)
	assert.Equal(t, 4, cfg.AgentCount)
	assert.Equal(t, "llm", cfg.Backend)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 3, cfg.LLM.MaxConcurrency)
	assert.Equal(t, []string{"https://arena.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 1000, cfg.TickIntervalMs, "unset keys keep defaults")
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("GRID_SIZE", "25")
	t.Setenv("BACKEND", "llm")
	t.Setenv("LLM_API_KEY", "sk-env")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.GridSize)
	assert.Equal(t, "llm", cfg.Backend)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"tiny grid", func(c *Config) { c.GridSize = 2 }},
		{"no agents", func(c *Config) { c.AgentCount = 0 }},
		{"tick too fast", func(c *Config) { c.TickIntervalMs = 10 }},
		{"density out of range", func(c *Config) { c.ObstacleDensity = 1.0 }},
		{"minBorder above grid", func(c *Config) { c.MinBorder = 99 }},
		{"unknown backend", func(c *Config) { c.Backend = "psychic" }},
		{"unknown map style", func(c *Config) { c.MapStyle = "maze" }},
		{"unknown thinking storage", func(c *Config) { c.ThinkingStorage = "postgres" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gridSize: [nope"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
