package auditlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbiter/internal/engine"
	"arbiter/internal/health"
	"arbiter/internal/risk"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendRunAndList(t *testing.T) {
	s := newTestStore(t)
	res := &engine.Result{
		Timestamp:    time.Now(),
		MarketStatus: health.StatusDegraded,
		GateFailures: []string{
			"SCHEMA_FAIL: header 缺少 timestamp",
			"HEALTH_FAIL: kill_switch 已触发",
		},
		Accounts: map[string]engine.AccountResult{
			"main": {AuditLog: []risk.Event{
				{Type: "NEEDS_REVIEW", Symbol: "2603", Detail: "峰值回撤 35.0%"},
				{Type: "WATERMARK", Symbol: "2330", Detail: "峰值水位线 0.00 → 620.00"},
			}},
		},
	}

	require.NoError(t, s.AppendRun(context.Background(), "trace-1", res))

	events, err := s.List(context.Background(), Query{TraceID: "trace-1"})
	require.NoError(t, err)
	require.Len(t, events, 4)

	kinds, err := s.List(context.Background(), Query{TraceID: "trace-1", Kind: "SCHEMA_FAIL"})
	require.NoError(t, err)
	require.Len(t, kinds, 1)
	assert.Contains(t, kinds[0].Detail, "timestamp")

	bySymbol, err := s.List(context.Background(), Query{TraceID: "trace-1", Symbol: "2603"})
	require.NoError(t, err)
	require.Len(t, bySymbol, 1)
	assert.Equal(t, "NEEDS_REVIEW", bySymbol[0].Kind)
	assert.Equal(t, "main", bySymbol[0].AccountID)
}

func TestListFiltersByAccount(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Append(context.Background(), []EventRecord{
		{TraceID: "t", AccountID: "a", Kind: "WATERMARK", Detail: "x"},
		{TraceID: "t", AccountID: "b", Kind: "WATERMARK", Detail: "y"},
	}))

	events, err := s.List(context.Background(), Query{TraceID: "t", AccountID: "b"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "y", events[0].Detail)
}

func TestListNewestFirstWithLimit(t *testing.T) {
	s := newTestStore(t)
	var records []EventRecord
	for i := 0; i < 5; i++ {
		records = append(records, EventRecord{TraceID: "t", Kind: "SIGNAL", Detail: string(rune('a' + i))})
	}
	require.NoError(t, s.Append(context.Background(), records))

	events, err := s.List(context.Background(), Query{TraceID: "t", Limit: 2})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e", events[0].Detail)
	assert.Equal(t, "d", events[1].Detail)
}

func TestAppendRunNilResult(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.AppendRun(context.Background(), "t", nil))
	events, err := s.List(context.Background(), Query{TraceID: "t"})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestKindOfPrefixes(t *testing.T) {
	assert.Equal(t, "SCHEMA_FAIL", kindOf("SCHEMA_FAIL: x"))
	assert.Equal(t, "HEALTH_FAIL", kindOf("HEALTH_FAIL: y"))
	assert.Equal(t, "NORMALIZE", kindOf("normalize: z"))
	assert.Equal(t, "SIGNAL", kindOf("SECTOR_WARN: w"))
}
