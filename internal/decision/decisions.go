package decision

import (
	"fmt"
	"strings"

	"arbiter/internal/snapshot"
)

// 中文说明：
// 决策词汇是封闭的七元集合。级联内部若算出集合之外的值，属于程序缺
// 陷，必须在离开引擎前强制改写为 WATCH 并带上保留的 ENUM_VIOLATION
// 原因码，绝不向外传播。

// Action 决策动作。
type Action string

const (
	ActionBuy    Action = "BUY"
	ActionTrial  Action = "TRIAL"
	ActionHold   Action = "HOLD"
	ActionWatch  Action = "WATCH"
	ActionReduce Action = "REDUCE"
	ActionSell   Action = "SELL"
	ActionIgnore Action = "IGNORE"
)

var validActions = map[Action]bool{
	ActionBuy: true, ActionTrial: true, ActionHold: true, ActionWatch: true,
	ActionReduce: true, ActionSell: true, ActionIgnore: true,
}

// 原因码。
const (
	ReasonNotInPool          = "NOT_IN_POOL"
	ReasonDegradedNoBuyTrial = "DATA_DEGRADED_NO_BUY_TRIAL"
	ReasonDegradedOverride   = "DEGRADED_OVERRIDE"
	ReasonReduceWeakening    = "REDUCE_WEAKENING"
	ReasonHoldPosition       = "HOLD_POSITION"
	ReasonConsTierReject     = "CONS_TIER_REJECT"
	ReasonConsInstNotReady   = "CONS_INST_NOT_READY"
	ReasonConsCriteriaUnmet  = "CONS_CRITERIA_UNMET"
	ReasonBuyConfirmed       = "BUY_CONFIRMED"
	ReasonAggNotInPool       = "AGG_NOT_IN_POOL"
	ReasonAggTrialDisabled   = "AGG_TRIAL_DISABLED"
	ReasonVolLowRejectTrial  = "VOL_LOW_REJECT_TRIAL"
	ReasonVolMidNeedSignals  = "VOL_MID_NEED_SIGNALS"
	ReasonTrialNotEligible   = "TRIAL_NOT_ELIGIBLE"
	ReasonTrialNoSignal      = "TRIAL_NO_SIGNAL"
	ReasonTrialMajorAlert    = "TRIAL_MAJOR_ALERT"
	ReasonTrialInstNegative  = "TRIAL_INST_NEGATIVE"
	ReasonTrialConfirmed     = "TRIAL_CONFIRMED"
	ReasonLotTooSmall        = "LOT_TOO_SMALL"
	ReasonLiqNoEquity        = "LIQ_NO_EQUITY"
	ReasonLiqTooSmall        = "LIQ_TOO_SMALL"
	ReasonUnknownMode        = "UNKNOWN_MODE"
	ReasonEnumViolation      = "ENUM_VIOLATION"
	ReasonInstExceptionOff   = "INST_EXCEPTION_DISABLED"
)

// Rationale 三段式依据说明。
type Rationale struct {
	Technical     string `json:"technical"`
	Institutional string `json:"institutional"`
	Structural    string `json:"structural"`
}

// Decision 单个 (账户, 标的) 的最终裁定。SizePct 带符号，减仓为负。
type Decision struct {
	Symbol     string    `json:"symbol"`
	Action     Action    `json:"decision"`
	SizePct    float64   `json:"size_pct"`
	RefPrice   float64   `json:"ref_price"`
	ReasonCode string    `json:"reason_code"`
	Rationale  Rationale `json:"rationale"`
	RiskNote   string    `json:"risk_note,omitempty"`
}

// Coerce 把词汇之外的动作强制改写为 WATCH。返回是否发生了改写。
func Coerce(d *Decision) bool {
	if validActions[d.Action] {
		return false
	}
	d.Action = ActionWatch
	d.SizePct = 0
	d.ReasonCode = ReasonEnumViolation
	d.RiskNote = "决策值越出封闭词汇，已强制改写"
	return true
}

// 重大技术警示码集合。
var majorAlerts = map[string]bool{
	"BREAK_SUPPORT":   true,
	"DEAD_CROSS":      true,
	"LIMIT_DOWN":      true,
	"VOLUME_COLLAPSE": true,
}

// IsMajorAlert 判定单个警示码是否属于重大级别。
func IsMajorAlert(code string) bool {
	return majorAlerts[strings.ToUpper(strings.TrimSpace(code))]
}

func hasMajorAlert(sym *snapshot.SymbolRecord) bool {
	for _, code := range sym.Technical.Alerts {
		if IsMajorAlert(code) {
			return true
		}
	}
	return false
}

// institutionalConfirmed 法人硬规则：就绪 + 三日连买 ≥3 + 三日净向为正。
// 两种账户模式共用同一次计算。
func institutionalConfirmed(sym *snapshot.SymbolRecord) bool {
	return sym.Institutional.Ready &&
		sym.Institutional.Streak3 >= 3 &&
		sym.Institutional.Direction == "positive"
}

func buildRationale(sym *snapshot.SymbolRecord) Rationale {
	tech := fmt.Sprintf("乖离 %+.1f%%，量比 %.2f，正向信号 %d 个，标签「%s」",
		sym.Technical.Bias, sym.Technical.VolumeRatio, sym.Technical.PositiveSignals, sym.Technical.Tag)
	if len(sym.Technical.Alerts) > 0 {
		tech += "，警示 " + strings.Join(sym.Technical.Alerts, ",")
	}
	inst := fmt.Sprintf("法人就绪=%v，三日连买 %d 天，三日净向 %s",
		sym.Institutional.Ready, sym.Institutional.Streak3, orDash(sym.Institutional.Direction))
	structural := fmt.Sprintf("营业利益率 %.1f%%（板块基准 %.1f%%），营收增长 %+.1f%%，板块 %s",
		sym.Structural.OperatingMargin, sym.Structural.SectorBenchmark,
		sym.Structural.RevenueGrowth, orDash(sym.Structural.Sector))
	return Rationale{Technical: tech, Institutional: inst, Structural: structural}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
