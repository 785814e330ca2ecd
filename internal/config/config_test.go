package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `
app:
  env: prod
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":9985", cfg.App.HTTPAddr)
	assert.Equal(t, "binance", cfg.Market.Name)
	assert.Equal(t, "15m", cfg.Market.Interval)
	assert.Equal(t, 200, cfg.Market.KlineLimit)
	assert.Equal(t, 120, cfg.Models.TimeoutSeconds)
	assert.Equal(t, "configs/units.yaml", cfg.Units.RosterPath)
	assert.Equal(t, float64(10000), cfg.Account.Equity)
}

func TestLoadExplicitValuesWinOverDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `
market:
  interval: 1h
  kline_limit: 500
account:
  equity: 250000
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1h", cfg.Market.Interval)
	assert.Equal(t, 500, cfg.Market.KlineLimit)
	assert.Equal(t, float64(250000), cfg.Account.Equity)
}

func TestLoadResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", `
app:
  env: base
  log_level: debug
market:
  interval: 1h
`)
	path := writeConfig(t, dir, "config.yaml", `
include:
  - base.yaml
app:
  env: prod
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.App.Env, "including file overrides included values")
	assert.Equal(t, "debug", cfg.App.LogLevel, "untouched included values survive the merge")
	assert.Equal(t, "1h", cfg.Market.Interval)
}

func TestLoadDetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "include: [b.yaml]\n")
	path := writeConfig(t, dir, "b.yaml", "include: [a.yaml]\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestLoadFailsFastOnInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"bad interval": `
market:
  interval: soon
`,
		"bad engine weights": `
engine:
  weights:
    a: 0.4
    b: 0.4
`,
		"model endpoint without url": `
models:
  endpoints:
    - id: broken
      enabled: true
      model: some-model
`,
		"telegram without token": `
notify:
  telegram:
    enabled: true
`,
		"scheduler without symbols": `
scheduler:
  enabled: true
  interval: 15m
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "config.yaml", content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadAllowsWeightsFromRoster(t *testing.T) {
	// Leaving engine.weights for the unit roster must not fail validation.
	path := writeConfig(t, t.TempDir(), "config.yaml", `
engine:
  per_unit_timeout_seconds: 30
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Engine.Weights)
}

func TestLoadMissingFileAndEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
	_, err = Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEngineConfigToEngineOverlay(t *testing.T) {
	e := EngineConfig{
		Weights:               map[string]float64{"a": 1},
		PerUnitTimeoutSeconds: 30,
		RiskPerTrade:          0.02,
	}
	cfg := e.ToEngine()
	assert.Equal(t, 30*time.Second, cfg.PerUnitTimeout)
	assert.Equal(t, 30*time.Second, cfg.DecisionDeadline, "total deadline follows the per-unit timeout")
	assert.Equal(t, 0.02, cfg.RiskPerTrade)
	assert.Equal(t, 0.25, cfg.ExposureCap, "unset fields keep engine defaults")
}

func TestModelsConfigToProviderPreservesEntries(t *testing.T) {
	m := ModelsConfig{
		TimeoutSeconds: 60,
		Endpoints: []ModelEntry{
			{ID: "live", Enabled: true, Model: "m1", APIURL: "https://api.example.com/v1"},
			{ID: "dark", Enabled: false, Model: "m2", APIURL: "https://api.example.com/v1"},
		},
	}
	cfgs := m.ToProvider()
	require.Len(t, cfgs, 2, "disabled entries pass through, the factory skips them")
	assert.Equal(t, "live", cfgs[0].ID)
	assert.True(t, cfgs[0].Enabled)
	assert.False(t, cfgs[1].Enabled)
}

func TestLoadExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("QUORUM_TEST_API_KEY", "sk-live-123")
	path := writeConfig(t, t.TempDir(), "config.yaml", `
models:
  endpoints:
    - id: deepseek-chat
      provider: deepseek
      api_url: https://api.deepseek.com/v1
      api_key: ${QUORUM_TEST_API_KEY}
      model: deepseek-chat
      enabled: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Models.Endpoints, 1)
	assert.Equal(t, "sk-live-123", cfg.Models.Endpoints[0].APIKey)
}

func TestLoadKeepsUnsetEnvPlaceholderLiteral(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `
models:
  endpoints:
    - id: deepseek-chat
      provider: deepseek
      api_url: https://api.deepseek.com/v1
      api_key: ${QUORUM_TEST_UNSET_KEY}
      model: deepseek-chat
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Models.Endpoints, 1)
	assert.Equal(t, "${QUORUM_TEST_UNSET_KEY}", cfg.Models.Endpoints[0].APIKey,
		"a missing secret must stay visible, not collapse to empty")
}
