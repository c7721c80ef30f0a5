package engine

import (
	"time"

	"arbiter/internal/decision"
	"arbiter/internal/health"
	"arbiter/internal/portfolio"
	"arbiter/internal/risk"
)

// AccountResult 单账户的评估产出。decisions 与输入标的一一对应且保
// 持输入顺序。
type AccountResult struct {
	Mode      string              `json:"account_mode"`
	Summary   portfolio.Summary   `json:"portfolio_summary"`
	Decisions []decision.Decision `json:"decisions"`
	AuditLog  []risk.Event        `json:"audit_log"`
}

// Result 一次完整评估的输出信封。时间戳回显自输入表头，整个文档即
// 完整契约边界，不存在部分/流式输出。
type Result struct {
	Timestamp    time.Time                `json:"timestamp"`
	MarketStatus health.Status            `json:"market_status"`
	GateFailures []string                 `json:"gate_failures,omitempty"`
	Accounts     map[string]AccountResult `json:"accounts"`
}
