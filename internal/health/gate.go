package health

import (
	"fmt"

	"arbiter/internal/snapshot"
)

// 中文说明：
// 健康门对标准化后的快照做两层检查：
//   - 结构检查（SCHEMA_FAIL:）逐项枚举表头/账户/标的的必填字段；
//   - 语义检查（HEALTH_FAIL:）校验日期一致性、各开关与法人数据就绪。
// 任一失败即把整个快照判为 DEGRADED，但评估继续进行（降级而非中止），
// 降级是快照级的，从不按标的局部降级。

// Status 快照健康状态。
type Status string

const (
	StatusNormal   Status = "NORMAL"
	StatusDegraded Status = "DEGRADED"
)

// Report 健康门输出：状态加有序失败清单。
type Report struct {
	Status   Status   `json:"status"`
	Failures []string `json:"failures,omitempty"`
}

// Degraded 快照是否处于降级态。
func (r Report) Degraded() bool { return r.Status == StatusDegraded }

// Evaluate 对快照分级。失败清单的顺序固定：先表头、再账户、再标的，
// 结构检查在前、语义检查在后。
func Evaluate(snap *snapshot.Snapshot) Report {
	var failures []string
	fail := func(format string, args ...any) {
		failures = append(failures, fmt.Sprintf(format, args...))
	}

	h := snap.Header
	if h.Timestamp.IsZero() {
		fail("SCHEMA_FAIL: header 缺少 timestamp")
	}
	if h.TradingDate == "" {
		fail("SCHEMA_FAIL: header 缺少 trading_date")
	}
	if h.InstitutionalDate == "" {
		fail("SCHEMA_FAIL: header 缺少 institutional_date")
	}
	if h.InstitutionalState == "" {
		fail("SCHEMA_FAIL: header 缺少 institutional_ready")
	}
	if !h.FlagsPresent {
		fail("SCHEMA_FAIL: header 缺少 kill_switch/legacy_watch/degraded_mode 开关")
	}

	for _, acct := range snap.Accounts {
		if acct.ID == "" {
			fail("SCHEMA_FAIL: account 缺少 id")
		}
		if !acct.HasCash {
			fail("SCHEMA_FAIL: account[%s] 缺少 cash", acct.ID)
		}
		if !acct.HasEquity {
			fail("SCHEMA_FAIL: account[%s] 缺少 equity", acct.ID)
		}
		if acct.Positions == nil {
			fail("SCHEMA_FAIL: account[%s] 缺少 positions", acct.ID)
		}
		if acct.Risk.Name == "" && acct.Risk.MaxPositionPct == 0 {
			fail("SCHEMA_FAIL: account[%s] 缺少 risk_profile", acct.ID)
		}
	}

	for _, sym := range snap.Symbols {
		if sym.Symbol == "" {
			fail("SCHEMA_FAIL: stock 缺少 symbol")
			continue
		}
		if !sym.HasPrice {
			fail("SCHEMA_FAIL: stock[%s] 缺少 price", sym.Symbol)
		}
		if !sym.HasRanking {
			fail("SCHEMA_FAIL: stock[%s] 缺少 ranking", sym.Symbol)
		}
		if !sym.HasCaps {
			fail("SCHEMA_FAIL: stock[%s] 缺少 risk caps", sym.Symbol)
		}
	}

	// 语义检查。
	if h.TradingDate != "" && h.InstitutionalDate != "" && h.TradingDate != h.InstitutionalDate {
		fail("HEALTH_FAIL: trading_date=%s 与 institutional_date=%s 不一致", h.TradingDate, h.InstitutionalDate)
	}
	if h.KillSwitch {
		fail("HEALTH_FAIL: kill_switch 已触发")
	}
	if h.LegacyWatch {
		fail("HEALTH_FAIL: legacy_watch 已触发")
	}
	if h.DegradedMode {
		fail("HEALTH_FAIL: degraded_mode 已标记")
	}
	if h.InstitutionalState != "" && h.InstitutionalState != snapshot.InstitutionalReady {
		fail("HEALTH_FAIL: 法人数据未就绪 (%s)", h.InstitutionalState)
	}
	for _, sym := range snap.Symbols {
		if sym.Institutional.Direction == snapshot.DirectionMissing {
			fail("HEALTH_FAIL: stock[%s] 法人方向为 missing 哨兵", sym.Symbol)
		}
	}

	status := StatusNormal
	if len(failures) > 0 {
		status = StatusDegraded
	}
	return Report{Status: status, Failures: failures}
}
