package runstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbiter/internal/decision"
	"arbiter/internal/engine"
	"arbiter/internal/health"
	"arbiter/internal/portfolio"
	"arbiter/internal/risk"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleResult(ts time.Time) *engine.Result {
	return &engine.Result{
		Timestamp:    ts,
		MarketStatus: health.StatusNormal,
		Accounts: map[string]engine.AccountResult{
			"main": {
				Mode:    "Conservative",
				Summary: portfolio.Summary{Exposure: portfolio.ExposureMed, ActiveAlerts: []string{}},
				Decisions: []decision.Decision{
					{Symbol: "2330", Action: decision.ActionBuy, SizePct: 5, ReasonCode: decision.ReasonBuyConfirmed},
					{Symbol: "2603", Action: decision.ActionIgnore, ReasonCode: decision.ReasonNotInPool},
				},
				AuditLog: []risk.Event{},
			},
		},
	}
}

func TestSaveAndGetByTrace(t *testing.T) {
	s := newTestStore(t)
	ts := time.Date(2026, 3, 2, 13, 45, 0, 0, time.UTC)

	rec, err := s.Save(context.Background(), sampleResult(ts))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.TraceID)
	assert.Equal(t, "2026-03-02", rec.TradingDate)
	assert.Equal(t, 1, rec.AccountCount)
	assert.Equal(t, 2, rec.DecisionCount)

	res, got, err := s.GetByTrace(context.Background(), rec.TraceID)
	require.NoError(t, err)
	assert.Equal(t, rec.TraceID, got.TraceID)
	assert.Equal(t, health.StatusNormal, res.MarketStatus)
	require.Len(t, res.Accounts["main"].Decisions, 2)
	assert.Equal(t, decision.ActionBuy, res.Accounts["main"].Decisions[0].Action)
}

func TestGetByTraceNotFound(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.GetByTrace(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	var traces []string
	for i := 0; i < 3; i++ {
		rec, err := s.Save(context.Background(), sampleResult(base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
		traces = append(traces, rec.TraceID)
	}

	records, err := s.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, traces[2], records[0].TraceID)
	assert.Equal(t, traces[1], records[1].TraceID)
}

func TestSaveAssignsUniqueTraces(t *testing.T) {
	s := newTestStore(t)
	ts := time.Now()
	a, err := s.Save(context.Background(), sampleResult(ts))
	require.NoError(t, err)
	b, err := s.Save(context.Background(), sampleResult(ts))
	require.NoError(t, err)
	assert.NotEqual(t, a.TraceID, b.TraceID)
}

func TestSaveNilResult(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Save(context.Background(), nil)
	assert.Error(t, err)
}
