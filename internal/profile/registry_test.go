package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbiter/internal/snapshot"
)

func writeProfiles(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validProfiles = `
risk_profiles:
  conservative_baseline:
    max_position_pct: 5
    max_trade_risk_pct: 2
    trial_enabled: false
    min_cash_floor_pct: 30
  aggressive_default:
    max_position_pct: 10
    max_trade_risk_pct: 5
    trial_enabled: true
    min_cash_floor_pct: 10
`

func TestNewRegistryLoadsProfiles(t *testing.T) {
	path := writeProfiles(t, t.TempDir(), validProfiles)

	r, err := NewRegistry(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"aggressive_default", "conservative_baseline"}, r.Names())

	p, ok := r.Get("aggressive_default")
	require.True(t, ok)
	assert.Equal(t, 10.0, p.MaxPositionPct)
	assert.True(t, p.TrialEnabled)

	_, ok = r.Get("missing")
	assert.False(t, ok)

	snap := r.Snapshot()
	assert.Equal(t, int64(1), snap.Version)
	assert.Len(t, snap.Profiles, 2)
}

func TestNewRegistryRejectsInvalidProfile(t *testing.T) {
	path := writeProfiles(t, t.TempDir(), `
risk_profiles:
  broken:
    max_position_pct: 150
    max_trade_risk_pct: 2
`)
	_, err := NewRegistry(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestNewRegistryRequiresPath(t *testing.T) {
	_, err := NewRegistry("  ")
	assert.Error(t, err)

	_, err = NewRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBaselineFromFile(t *testing.T) {
	path := writeProfiles(t, t.TempDir(), `
risk_profiles:
  conservative_baseline:
    max_position_pct: 4
    max_trade_risk_pct: 1.5
    trial_enabled: false
    min_cash_floor_pct: 40
`)
	r, err := NewRegistry(path)
	require.NoError(t, err)

	baseline := r.Baseline()
	assert.Equal(t, snapshot.BaselineProfileName, baseline.Name)
	assert.Equal(t, 4.0, baseline.MaxPositionPct)
	assert.Equal(t, 40.0, baseline.MinCashFloorPct)
}

// 文件里没有基线画像或 registry 为空时退回内置值。
func TestBaselineFallback(t *testing.T) {
	path := writeProfiles(t, t.TempDir(), `
risk_profiles:
  other:
    max_position_pct: 9
    max_trade_risk_pct: 3
`)
	r, err := NewRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, snapshot.BaselineProfile(), r.Baseline())

	var nilRegistry *Registry
	assert.Equal(t, snapshot.BaselineProfile(), nilRegistry.Baseline())
}

func TestSnapshotIsACopy(t *testing.T) {
	path := writeProfiles(t, t.TempDir(), validProfiles)
	r, err := NewRegistry(path)
	require.NoError(t, err)

	snap := r.Snapshot()
	snap.Profiles["injected"] = Profile{}
	_, ok := r.Get("injected")
	assert.False(t, ok)
}
