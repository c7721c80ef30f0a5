package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbiter/internal/snapshot"
)

func mv(v float64) *float64 { return &v }

func TestSectorExposureHighCapsNewPositions(t *testing.T) {
	acct := &snapshot.Account{
		ID:     "main",
		Equity: 1000000,
		Positions: []*snapshot.Position{
			{Symbol: "2330", Sector: "半导体", MarketValue: mv(300000)},
			{Symbol: "2454", Sector: "半导体", MarketValue: mv(150000)},
			{Symbol: "2603", Sector: "航运", MarketValue: mv(100000)},
		},
	}

	res := SectorExposure(acct, DefaultOverlayParams())
	assert.False(t, res.Skipped)
	assert.Equal(t, "半导体", res.TopSector)
	assert.InDelta(t, 45.0, res.TopPct, 0.001)
	require.NotNil(t, res.CapPct)
	assert.Equal(t, 2.0, *res.CapPct)
	require.Len(t, res.Signals, 1)
	assert.Contains(t, res.Signals[0], "SECTOR_HIGH")
}

func TestSectorExposureWarnOnly(t *testing.T) {
	acct := &snapshot.Account{
		ID:     "main",
		Equity: 1000000,
		Positions: []*snapshot.Position{
			{Symbol: "2330", Sector: "半导体", MarketValue: mv(360000)},
		},
	}

	res := SectorExposure(acct, DefaultOverlayParams())
	assert.InDelta(t, 36.0, res.TopPct, 0.001)
	assert.Nil(t, res.CapPct)
	require.Len(t, res.Signals, 1)
	assert.Contains(t, res.Signals[0], "SECTOR_WARN")
}

func TestSectorExposureBelowThresholds(t *testing.T) {
	acct := &snapshot.Account{
		ID:     "main",
		Equity: 1000000,
		Positions: []*snapshot.Position{
			{Symbol: "2330", Sector: "半导体", MarketValue: mv(100000)},
		},
	}

	res := SectorExposure(acct, DefaultOverlayParams())
	assert.Nil(t, res.CapPct)
	assert.Empty(t, res.Signals)
	assert.InDelta(t, 10.0, res.Exposures["半导体"], 0.001)
}

func TestSectorExposureSkipsNonPositiveEquity(t *testing.T) {
	acct := &snapshot.Account{ID: "broke", Equity: 0,
		Positions: []*snapshot.Position{{Symbol: "2330", Sector: "半导体", MarketValue: mv(1)}}}

	res := SectorExposure(acct, DefaultOverlayParams())
	assert.True(t, res.Skipped)
	require.Len(t, res.Signals, 1)
	assert.Contains(t, res.Signals[0], "SECTOR_SKIP")
	assert.Nil(t, res.CapPct)
}

func TestSectorExposureFallbackValueAndUnclassified(t *testing.T) {
	acct := &snapshot.Account{
		ID:     "main",
		Equity: 100000,
		Positions: []*snapshot.Position{
			// 无显式市值：退回 股数×均价 = 2000×30 = 60000。
			{Symbol: "9999", Shares: 2000, AvgCost: 30},
		},
	}

	res := SectorExposure(acct, DefaultOverlayParams())
	assert.Equal(t, "UNCLASSIFIED", res.TopSector)
	assert.InDelta(t, 60.0, res.TopPct, 0.001)
	require.NotNil(t, res.CapPct)
}

func TestSectorExposureNoPositions(t *testing.T) {
	acct := &snapshot.Account{ID: "main", Equity: 100000, Positions: []*snapshot.Position{}}
	res := SectorExposure(acct, DefaultOverlayParams())
	assert.False(t, res.Skipped)
	assert.Empty(t, res.Exposures)
	assert.Empty(t, res.Signals)
}
