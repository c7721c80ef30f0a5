package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbiter/internal/decision"
	"arbiter/internal/engine"
	"arbiter/internal/health"
	"arbiter/internal/snapshot"
)

func sampleResult() *engine.Result {
	return &engine.Result{
		Timestamp:    time.Date(2026, 3, 2, 13, 45, 0, 0, time.FixedZone("CST", 8*3600)),
		MarketStatus: health.StatusNormal,
		Accounts: map[string]engine.AccountResult{
			"main": {
				Mode: string(snapshot.ModeConservative),
				Decisions: []decision.Decision{
					{Symbol: "2330", Action: decision.ActionBuy, SizePct: 5},
					{Symbol: "2603", Action: decision.ActionIgnore},
				},
			},
		},
	}
}

func TestRenderDecisionPieOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleResult(), nil))

	html := buf.String()
	assert.Contains(t, html, "决策分布 main")
	assert.Contains(t, html, "BUY")
	// 无快照时不输出敞口柱状图。
	assert.NotContains(t, html, "行业敞口")
}

func TestRenderWithExposure(t *testing.T) {
	mv := func(v float64) *float64 { return &v }
	snap := &snapshot.Snapshot{
		Accounts: []*snapshot.Account{{
			ID:     "main",
			Equity: 1000000,
			Positions: []*snapshot.Position{
				{Symbol: "2330", Shares: 1000, AvgCost: 600, MarketValue: mv(620000), Sector: "半导体"},
			},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleResult(), snap))
	assert.Contains(t, buf.String(), "行业敞口 main")
}

func TestRenderRejectsNilAndEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Render(&buf, nil, nil))

	empty := &engine.Result{Timestamp: time.Now(), Accounts: map[string]engine.AccountResult{}}
	assert.Error(t, Render(&buf, empty, nil))
}
