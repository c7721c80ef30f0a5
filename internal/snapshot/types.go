package snapshot

import (
	"strings"
	"time"
)

// 中文说明：
// 本文件定义仲裁引擎的标准化输入模型。来自扫描/缓存层的原始快照经
// Normalize 整理成这里的结构后，引擎各阶段只依赖这一份模型。

// Mode 账户运行模式。
type Mode string

const (
	ModeConservative Mode = "Conservative"
	ModeAggressive   Mode = "Aggressive"
)

// PositionStatus 持仓生命周期状态。
type PositionStatus string

const (
	PositionNormal PositionStatus = "NORMAL"
	PositionTrial  PositionStatus = "TRIAL"
)

// InstitutionalReady 表头中法人数据就绪的期望值。
const InstitutionalReady = "ready"

// DirectionMissing 法人三日方向的显式缺失哨兵。
const DirectionMissing = "missing"

// Snapshot 单次评估的完整输入（评估期间不可变；引擎只通过补丁回写
// needs_review 与 peak_price 两个派生字段）。
type Snapshot struct {
	Header       MarketHeader    `json:"market"`
	Accounts     []*Account      `json:"accounts"`
	Symbols      []*SymbolRecord `json:"stocks"`
	MultiAccount bool            `json:"multi_account"`
}

// MarketHeader 市场健康表头。
type MarketHeader struct {
	Timestamp          time.Time `json:"timestamp"`
	TradingDate        string    `json:"trading_date"`        // YYYY-MM-DD
	InstitutionalDate  string    `json:"institutional_date"`  // 法人数据实际来源日
	InstitutionalState string    `json:"institutional_ready"` // 期望为 "ready"
	KillSwitch         bool      `json:"kill_switch"`
	LegacyWatch        bool      `json:"legacy_watch"`
	DegradedMode       bool      `json:"degraded_mode"`

	// FlagsPresent 记录三个开关字段是否出现在原始文档中（结构检查用）。
	FlagsPresent bool `json:"-"`
}

// AsOf 返回评估基准日：优先交易日，缺失时退回表头时间戳。
func (h MarketHeader) AsOf() time.Time {
	if d, err := ParseDate(h.TradingDate); err == nil {
		return d
	}
	return h.Timestamp
}

// RiskProfile 账户风险画像。
type RiskProfile struct {
	Name            string  `json:"name"`
	MaxPositionPct  float64 `json:"max_position_pct"`
	MaxTradeRiskPct float64 `json:"max_trade_risk_pct"`
	TrialEnabled    bool    `json:"trial_enabled"`
	MinCashFloorPct float64 `json:"min_cash_floor_pct"`
}

// Account 单个账户的资金与持仓。
type Account struct {
	ID        string      `json:"id"`
	Mode      Mode        `json:"mode"`
	Cash      float64     `json:"cash"`
	Equity    float64     `json:"equity"`
	Risk      RiskProfile `json:"risk_profile"`
	Positions []*Position `json:"positions"`

	HasCash   bool `json:"-"`
	HasEquity bool `json:"-"`
}

// HeldSymbols 返回当前持仓代码集合。
func (a *Account) HeldSymbols() map[string]bool {
	held := make(map[string]bool, len(a.Positions))
	for _, p := range a.Positions {
		if p != nil && p.Symbol != "" {
			held[p.Symbol] = true
		}
	}
	return held
}

// Position 持仓记录。PeakPrice 为观察到的最高价水位线，首次观察时由
// max(平均成本, 现价) 确定。
type Position struct {
	Symbol              string         `json:"symbol"`
	Shares              float64        `json:"shares"`
	AvgCost             float64        `json:"avg_cost"`
	MarketValue         *float64       `json:"market_value,omitempty"`
	EntryDate           string         `json:"entry_date"`
	Status              PositionStatus `json:"status"`
	InstitutionalStreak int            `json:"institutional_streak"`
	PeakPrice           float64        `json:"peak_price"`
	Sector              string         `json:"sector"`
	NeedsReview         bool           `json:"needs_review"`
}

// Value 返回持仓市值，未提供显式市值时退回 股数×均价。
func (p *Position) Value() float64 {
	if p.MarketValue != nil {
		return *p.MarketValue
	}
	return p.Shares * p.AvgCost
}

// Ranking 选股排名信息。
type Ranking struct {
	Tier    string `json:"tier"`
	Rank    int    `json:"rank"`
	InTop20 bool   `json:"in_top20"`
}

// Technical 技术面信号组。
type Technical struct {
	Bias            float64  `json:"bias"`
	VolumeRatio     float64  `json:"volume_ratio"`
	Score           float64  `json:"score"`
	Tag             string   `json:"tag"`
	PositiveSignals int      `json:"positive_signals"`
	Alerts          []string `json:"alerts"`
}

// Institutional 法人（筹码）信号组。
type Institutional struct {
	Ready     bool   `json:"ready"`
	Streak3   int    `json:"streak_3d"`
	Direction string `json:"net_3d"` // positive | negative | flat | missing
}

// Structural 基本面/结构信号组。
type Structural struct {
	OperatingMargin float64 `json:"operating_margin"`
	RevenueGrowth   float64 `json:"revenue_growth"`
	Sector          string  `json:"sector"`
	SectorBenchmark float64 `json:"sector_margin_benchmark"`
}

// RiskCaps 标的级风险上限。
type RiskCaps struct {
	MaxPositionPct  float64 `json:"max_position_pct"`
	MaxTradeRiskPct float64 `json:"max_trade_risk_pct"`
	TrialEligible   bool    `json:"trial_enabled"`
}

// SymbolRecord 单一标的的完整信号记录。
type SymbolRecord struct {
	Symbol        string        `json:"symbol"`
	Name          string        `json:"name"`
	Price         float64       `json:"price"`
	Ranking       Ranking       `json:"ranking"`
	Technical     Technical     `json:"technical"`
	Institutional Institutional `json:"institutional"`
	Structural    Structural    `json:"structural"`
	Caps          RiskCaps      `json:"caps"`

	TechnicalWeakening  bool `json:"technical_weakening"`
	StructuralWeakening bool `json:"structural_weakening"`
	OrphanHolding       bool `json:"orphan_holding"`

	HasPrice   bool `json:"-"`
	HasRanking bool `json:"-"`
	HasCaps    bool `json:"-"`
}

// 确认类标签标记（突破确认 / 主力确认）。
const (
	TagBreakoutConfirmed      = "突破(確認)"
	TagInstitutionalConfirmed = "主力(確認)"
)

// HasConfirmedTag 标签是否带有突破确认或主力确认标记。
func (t Technical) HasConfirmedTag() bool {
	return strings.Contains(t.Tag, TagBreakoutConfirmed) ||
		strings.Contains(t.Tag, TagInstitutionalConfirmed)
}

// ParseDate 解析 YYYY-MM-DD（兼容斜线写法）。
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse("2006/01/02", s)
}
