package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbiter/internal/snapshot"
)

func healthySnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Header: snapshot.MarketHeader{
			Timestamp:          time.Date(2026, 3, 2, 13, 45, 0, 0, time.UTC),
			TradingDate:        "2026-03-02",
			InstitutionalDate:  "2026-03-02",
			InstitutionalState: snapshot.InstitutionalReady,
			FlagsPresent:       true,
		},
		Accounts: []*snapshot.Account{{
			ID:        "main",
			Mode:      snapshot.ModeConservative,
			Cash:      100,
			Equity:    200,
			HasCash:   true,
			HasEquity: true,
			Risk:      snapshot.BaselineProfile(),
			Positions: []*snapshot.Position{},
		}},
		Symbols: []*snapshot.SymbolRecord{{
			Symbol:     "2330",
			Price:      620,
			HasPrice:   true,
			HasRanking: true,
			HasCaps:    true,
			Institutional: snapshot.Institutional{
				Ready: true, Streak3: 3, Direction: "positive",
			},
		}},
	}
}

func TestEvaluateHealthy(t *testing.T) {
	report := Evaluate(healthySnapshot())
	assert.Equal(t, StatusNormal, report.Status)
	assert.False(t, report.Degraded())
	assert.Empty(t, report.Failures)
}

func TestEvaluateSchemaFailures(t *testing.T) {
	snap := healthySnapshot()
	snap.Header.Timestamp = time.Time{}
	snap.Accounts[0].HasCash = false
	snap.Symbols[0].HasRanking = false

	report := Evaluate(snap)
	assert.Equal(t, StatusDegraded, report.Status)
	require.Len(t, report.Failures, 3)
	assert.Contains(t, report.Failures[0], "SCHEMA_FAIL: header 缺少 timestamp")
	assert.Contains(t, report.Failures[1], "缺少 cash")
	assert.Contains(t, report.Failures[2], "缺少 ranking")
}

func TestEvaluateSemanticFailures(t *testing.T) {
	t.Run("日期不一致", func(t *testing.T) {
		snap := healthySnapshot()
		snap.Header.InstitutionalDate = "2026-03-01"
		report := Evaluate(snap)
		assert.True(t, report.Degraded())
		require.Len(t, report.Failures, 1)
		assert.Contains(t, report.Failures[0], "HEALTH_FAIL: trading_date")
	})

	t.Run("kill_switch", func(t *testing.T) {
		snap := healthySnapshot()
		snap.Header.KillSwitch = true
		report := Evaluate(snap)
		require.Len(t, report.Failures, 1)
		assert.Contains(t, report.Failures[0], "kill_switch")
	})

	t.Run("法人未就绪", func(t *testing.T) {
		snap := healthySnapshot()
		snap.Header.InstitutionalState = "stale"
		report := Evaluate(snap)
		require.Len(t, report.Failures, 1)
		assert.Contains(t, report.Failures[0], "法人数据未就绪")
	})

	t.Run("方向 missing 哨兵", func(t *testing.T) {
		snap := healthySnapshot()
		snap.Symbols[0].Institutional.Direction = snapshot.DirectionMissing
		report := Evaluate(snap)
		require.Len(t, report.Failures, 1)
		assert.Contains(t, report.Failures[0], "missing 哨兵")
	})
}

// 降级是快照级的：任何一个账户或标的失败都拖累整体状态。
func TestEvaluateSnapshotLevelDegrade(t *testing.T) {
	snap := healthySnapshot()
	snap.Symbols = append(snap.Symbols, &snapshot.SymbolRecord{
		Symbol: "2603", HasPrice: true, HasRanking: true, HasCaps: false,
	})
	report := Evaluate(snap)
	assert.True(t, report.Degraded())
}

func TestEvaluateFailureOrder(t *testing.T) {
	snap := healthySnapshot()
	snap.Header.KillSwitch = true
	snap.Symbols[0].HasPrice = false

	report := Evaluate(snap)
	require.Len(t, report.Failures, 2)
	// 结构检查固定在语义检查之前。
	assert.Contains(t, report.Failures[0], "SCHEMA_FAIL")
	assert.Contains(t, report.Failures[1], "HEALTH_FAIL")
}
