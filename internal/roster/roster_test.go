package roster

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"quorum/internal/engine"
	"quorum/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rosterYAML = `units:
  aggressive-momentum:
    role: aggressive
    kind: builtin
    weight: 0.4
  defensive-risk:
    role: defensive
    kind: builtin
    weight: 0.35
  informational-flows:
    role: informational
    kind: builtin
    weight: 0.25
  disabled-model:
    role: aggressive
    kind: model
    provider: fake:model
    disabled: true
    weight: 0.1
`

func writeRoster(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "units.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewRegistryLoadsRoster(t *testing.T) {
	reg, err := NewRegistry(writeRoster(t, rosterYAML), false)
	require.NoError(t, err)

	snap := reg.Snapshot()
	assert.EqualValues(t, 1, snap.Version)
	assert.Len(t, snap.Entries, 4)
	assert.Equal(t, "builtin", snap.Entries["aggressive-momentum"].Kind)
	assert.True(t, snap.Entries["disabled-model"].Disabled)
}

func TestSnapshotWeightsSkipDisabled(t *testing.T) {
	reg, err := NewRegistry(writeRoster(t, rosterYAML), false)
	require.NoError(t, err)

	weights := reg.Snapshot().Weights()
	assert.Equal(t, map[string]float64{
		"aggressive-momentum": 0.4,
		"defensive-risk":      0.35,
		"informational-flows": 0.25,
	}, weights)
}

func TestNewRegistryRejectsBadRosters(t *testing.T) {
	cases := map[string]string{
		"empty path":    "",
		"no units":      "units: {}\n",
		"unknown role":  "units:\n  x:\n    role: oracle\n    weight: 1.0\n",
		"unknown field": "units:\n  x:\n    role: aggressive\n    weihgt: 1.0\n",
		"model without provider": "units:\n  x:\n    role: aggressive\n    kind: model\n    weight: 1.0\n",
		"negative weight":        "units:\n  x:\n    role: aggressive\n    weight: -0.1\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := content
			if name != "empty path" {
				path = writeRoster(t, content)
			}
			_, err := NewRegistry(path, false)
			assert.Error(t, err)
		})
	}
}

func TestNormalizeEntryFallsBackToMapKey(t *testing.T) {
	e, err := normalizeEntry("my-unit", Entry{Role: "Aggressive"})
	require.NoError(t, err)
	assert.Equal(t, "my-unit", e.ID)
	assert.Equal(t, "aggressive", e.Role)
	assert.Equal(t, "builtin", e.Kind)
}

type rosterFakeProvider struct {
	id      string
	enabled bool
}

func (p *rosterFakeProvider) ID() string    { return p.id }
func (p *rosterFakeProvider) Enabled() bool { return p.enabled }
func (p *rosterFakeProvider) Call(ctx context.Context, payload provider.ChatPayload) (string, error) {
	return "", nil
}

func TestBuildUnitsSortedAndTyped(t *testing.T) {
	reg, err := NewRegistry(writeRoster(t, rosterYAML), false)
	require.NoError(t, err)

	built, err := BuildUnits(reg.Snapshot(), nil)
	require.NoError(t, err)
	require.Len(t, built, 3, "disabled entries are skipped")
	assert.Equal(t, "aggressive-momentum", built[0].ID())
	assert.Equal(t, "defensive-risk", built[1].ID())
	assert.Equal(t, "informational-flows", built[2].ID())
	assert.Equal(t, engine.RoleDefensive, built[1].Role())
}

func TestBuildUnitsModelEntry(t *testing.T) {
	yaml := `units:
  model-agg:
    role: aggressive
    kind: model
    provider: fake:model
    weight: 1.0
`
	reg, err := NewRegistry(writeRoster(t, yaml), false)
	require.NoError(t, err)

	providers := map[string]provider.ModelProvider{
		"fake:model": &rosterFakeProvider{id: "fake:model", enabled: true},
	}
	built, err := BuildUnits(reg.Snapshot(), providers)
	require.NoError(t, err)
	require.Len(t, built, 1)
	assert.Equal(t, "model-agg", built[0].ID())

	// Missing and disabled providers both fail the build.
	_, err = BuildUnits(reg.Snapshot(), nil)
	assert.Error(t, err)
	_, err = BuildUnits(reg.Snapshot(), map[string]provider.ModelProvider{
		"fake:model": &rosterFakeProvider{id: "fake:model"},
	})
	assert.Error(t, err)
}

func TestRegistryReloadBumpsVersion(t *testing.T) {
	path := writeRoster(t, rosterYAML)
	reg, err := NewRegistry(path, false)
	require.NoError(t, err)
	require.EqualValues(t, 1, reg.Snapshot().Version)

	updated := `units:
  defensive-risk:
    role: defensive
    weight: 1.0
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.NoError(t, reg.reload())

	snap := reg.Snapshot()
	assert.EqualValues(t, 2, snap.Version)
	assert.Len(t, snap.Entries, 1)
}

func TestRegistryReloadKeepsOldSnapshotOnError(t *testing.T) {
	path := writeRoster(t, rosterYAML)
	reg, err := NewRegistry(path, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("units: {}\n"), 0o644))
	require.Error(t, reg.reload())

	snap := reg.Snapshot()
	assert.EqualValues(t, 1, snap.Version, "failed reloads leave the roster untouched")
	assert.Len(t, snap.Entries, 4)
}
