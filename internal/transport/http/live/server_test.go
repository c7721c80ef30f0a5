package livehttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbiter/internal/engine"
	"arbiter/internal/store/auditlog"
	"arbiter/internal/store/runstore"
)

const evaluatePayload = `{
	"market": {
		"timestamp": "2026-03-02T13:45:00+08:00",
		"trading_date": "2026-03-02",
		"institutional_date": "2026-03-02",
		"institutional_ready": "ready",
		"kill_switch": false, "legacy_watch": false, "degraded_mode": false
	},
	"accounts": [{
		"id": "main", "mode": "Conservative", "cash": 500000, "equity": 1000000,
		"risk_profile": {"name": "conservative_baseline", "max_position_pct": 5, "max_trade_risk_pct": 2, "trial_enabled": false, "min_cash_floor_pct": 30},
		"positions": []
	}],
	"stocks": [{
		"symbol": "2330", "price": 620,
		"ranking": {"tier": "A", "rank": 1, "in_top20": true},
		"technical": {"bias": 2.5, "volume_ratio": 1.3, "score": 88, "tag": "突破(確認)", "positive_signals": 3, "alerts": []},
		"institutional": {"ready": true, "streak_3d": 4, "net_3d": "positive"},
		"structural": {"operating_margin": 42, "revenue_growth": 12, "sector": "半导体", "sector_margin_benchmark": 30},
		"caps": {"max_position_pct": 10, "max_trade_risk_pct": 3, "trial_enabled": true}
	}]
}`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	runs, err := runstore.New(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = runs.Close() })
	audit, err := auditlog.New(filepath.Join(dir, "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = audit.Close() })

	srv, err := NewServer(ServerConfig{
		Engine: engine.Default(),
		Runs:   runs,
		Audit:  audit,
	})
	require.NoError(t, err)
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	w := doRequest(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEvaluateRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/live/evaluate", evaluatePayload)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		TraceID string `json:"trace_id"`
		Result  struct {
			MarketStatus string `json:"market_status"`
			Accounts     map[string]struct {
				Decisions []struct {
					Symbol string `json:"symbol"`
					Action string `json:"decision"`
				} `json:"decisions"`
			} `json:"accounts"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.TraceID)
	assert.Equal(t, "NORMAL", resp.Result.MarketStatus)
	require.Len(t, resp.Result.Accounts["main"].Decisions, 1)
	assert.Equal(t, "BUY", resp.Result.Accounts["main"].Decisions[0].Action)

	// run 已落库，可按 trace 取回。
	w = doRequest(t, srv, http.MethodGet, "/api/live/runs/"+resp.TraceID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, http.MethodGet, "/api/live/runs", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), resp.TraceID)

	// 报告渲染为 HTML。
	w = doRequest(t, srv, http.MethodGet, "/api/live/report/"+resp.TraceID, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "决策分布")
}

func TestEvaluateMalformedReturns400(t *testing.T) {
	srv := newTestServer(t)
	w := doRequest(t, srv, http.MethodPost, "/api/live/evaluate", `{"market": {}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunNotFound(t *testing.T) {
	srv := newTestServer(t)
	w := doRequest(t, srv, http.MethodGet, "/api/live/runs/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEvaluateWithoutStores(t *testing.T) {
	srv, err := NewServer(ServerConfig{Engine: engine.Default()})
	require.NoError(t, err)

	w := doRequest(t, srv, http.MethodPost, "/api/live/evaluate", evaluatePayload)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"trace_id":""`)

	// 未配置 run store 时查询路由不挂载。
	w = doRequest(t, srv, http.MethodGet, "/api/live/runs", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewServerRequiresEngine(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}
