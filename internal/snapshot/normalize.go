package snapshot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// 中文说明：
// Normalize 把来源宽松的原始快照（旧字段拼写、单数 account、布尔/字符串
// 混用）整理成标准模型。每一次兜底补值都会产出一条 notice，后续作为
// 风险提示带入输出，绝不静默丢弃。缺失的法人数据日期不做推断，留给
// 健康门判定。

// ErrMalformedSnapshot 表示输入完全无法标准化，必须整体失败。
var ErrMalformedSnapshot = errors.New("snapshot 无法标准化")

// BaselineProfileName 内置保守基线画像名。
const BaselineProfileName = "conservative_baseline"

// BaselineProfile 返回内置的保守基线风险画像。
func BaselineProfile() RiskProfile {
	return RiskProfile{
		Name:            BaselineProfileName,
		MaxPositionPct:  5,
		MaxTradeRiskPct: 2,
		TrialEnabled:    false,
		MinCashFloorPct: 30,
	}
}

// Option 调整标准化行为。
type Option func(*normalizer)

// WithBaseline 覆盖缺省风险画像（通常来自 profile registry）。
func WithBaseline(p RiskProfile) Option {
	return func(n *normalizer) { n.baseline = p }
}

type normalizer struct {
	baseline RiskProfile
	notices  []string
}

func (n *normalizer) notef(format string, args ...any) {
	n.notices = append(n.notices, "normalize: "+fmt.Sprintf(format, args...))
}

// Normalize 解析并标准化原始快照文档。
// 硬失败（返回 error）仅限：非法 JSON、根节点不是对象、accounts/stocks
// 顶层集合完全缺失。其余缺陷一律降级处理并产出 notice。
func Normalize(raw []byte, opts ...Option) (*Snapshot, []string, error) {
	n := &normalizer{baseline: BaselineProfile()}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	if !gjson.ValidBytes(raw) {
		return nil, nil, fmt.Errorf("%w: 非法 JSON", ErrMalformedSnapshot)
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, nil, fmt.Errorf("%w: 根节点必须是对象", ErrMalformedSnapshot)
	}

	snap := &Snapshot{}
	snap.Header = n.header(pick(root, "market", "header", "market_health"))

	accounts, multi, err := n.accounts(root)
	if err != nil {
		return nil, nil, err
	}
	snap.Accounts = accounts
	snap.MultiAccount = multi

	stocksRaw := pick(root, "stocks", "symbols", "stock_list")
	if !stocksRaw.Exists() {
		return nil, nil, fmt.Errorf("%w: 缺少 stocks 集合", ErrMalformedSnapshot)
	}
	if !stocksRaw.IsArray() {
		return nil, nil, fmt.Errorf("%w: stocks 必须是数组", ErrMalformedSnapshot)
	}
	snap.Symbols = []*SymbolRecord{}
	stocksRaw.ForEach(func(_, item gjson.Result) bool {
		snap.Symbols = append(snap.Symbols, n.symbol(item))
		return true
	})

	return snap, n.notices, nil
}

func (n *normalizer) header(raw gjson.Result) MarketHeader {
	var h MarketHeader
	if !raw.Exists() || !raw.IsObject() {
		return h
	}
	if ts := pick(raw, "timestamp", "ts", "generated_at"); ts.Exists() {
		h.Timestamp = parseTimestamp(ts.String())
	}
	h.TradingDate = normalizeDate(pick(raw, "trading_date", "date").String())
	// 法人数据日期缺失时保持为空，由健康门报失败，绝不推断。
	h.InstitutionalDate = normalizeDate(pick(raw, "institutional_date", "chip_date", "inst_date").String())
	if ready := pick(raw, "institutional_ready", "chip_ready", "ready"); ready.Exists() {
		h.InstitutionalState = readiness(ready)
	}
	kill := pick(raw, "kill_switch", "killswitch", "halt")
	legacy := pick(raw, "legacy_watch", "watch_legacy")
	degraded := pick(raw, "degraded_mode", "degraded")
	h.KillSwitch = kill.Bool()
	h.LegacyWatch = legacy.Bool()
	h.DegradedMode = degraded.Bool()
	h.FlagsPresent = kill.Exists() && legacy.Exists() && degraded.Exists()
	return h
}

func (n *normalizer) accounts(root gjson.Result) ([]*Account, bool, error) {
	if list := pick(root, "accounts"); list.Exists() {
		if !list.IsArray() {
			return nil, false, fmt.Errorf("%w: accounts 必须是数组", ErrMalformedSnapshot)
		}
		out := []*Account{}
		idx := 0
		list.ForEach(func(_, item gjson.Result) bool {
			out = append(out, n.account(item, idx))
			idx++
			return true
		})
		return out, true, nil
	}
	if single := pick(root, "account"); single.Exists() && single.IsObject() {
		n.notef("单数 account 记录已提升为 accounts 列表")
		return []*Account{n.account(single, 0)}, true, nil
	}
	return nil, false, fmt.Errorf("%w: 缺少 accounts 集合", ErrMalformedSnapshot)
}

func (n *normalizer) account(raw gjson.Result, idx int) *Account {
	a := &Account{}
	a.ID = strings.TrimSpace(pick(raw, "id", "account_id", "name").String())
	if a.ID == "" {
		a.ID = fmt.Sprintf("acct_%d", idx+1)
		n.notef("account[%d] 缺少 id，已補 %s", idx, a.ID)
	}

	mode := strings.TrimSpace(pick(raw, "mode", "style", "account_mode").String())
	switch strings.ToLower(mode) {
	case "conservative":
		a.Mode = ModeConservative
	case "aggressive":
		a.Mode = ModeAggressive
	case "":
		a.Mode = ModeConservative
		n.notef("account[%s] 缺少 mode，默认 Conservative", a.ID)
	default:
		// 未知模式原样保留，由决策级联按未知模式处理。
		a.Mode = Mode(mode)
	}

	if cash := pick(raw, "cash", "cash_balance"); cash.Exists() {
		a.Cash = cash.Float()
		a.HasCash = true
	}
	if eq := pick(raw, "equity", "total_equity", "total_assets"); eq.Exists() {
		a.Equity = eq.Float()
		a.HasEquity = true
	}

	if prof := pick(raw, "risk_profile", "risk"); prof.Exists() && prof.IsObject() {
		a.Risk = n.riskProfile(prof)
	} else {
		a.Risk = n.baseline
		n.notef("account[%s] 缺少 risk_profile，套用基线 %s", a.ID, n.baseline.Name)
	}

	if positions := pick(raw, "positions", "holdings"); positions.Exists() && positions.IsArray() {
		a.Positions = []*Position{}
		positions.ForEach(func(_, item gjson.Result) bool {
			a.Positions = append(a.Positions, n.position(item))
			return true
		})
	} else {
		a.Positions = []*Position{}
		n.notef("account[%s] 缺少 positions，视为空仓", a.ID)
	}
	return a
}

func (n *normalizer) riskProfile(raw gjson.Result) RiskProfile {
	return RiskProfile{
		Name:            strings.TrimSpace(pick(raw, "name", "profile").String()),
		MaxPositionPct:  pick(raw, "max_position_pct", "position_cap_pct").Float(),
		MaxTradeRiskPct: pick(raw, "max_trade_risk_pct", "trade_risk_pct").Float(),
		TrialEnabled:    pick(raw, "trial_enabled", "allow_trial").Bool(),
		MinCashFloorPct: pick(raw, "min_cash_floor_pct", "cash_floor_pct").Float(),
	}
}

func (n *normalizer) position(raw gjson.Result) *Position {
	p := &Position{
		Symbol:              strings.TrimSpace(pick(raw, "symbol", "stock_id", "code").String()),
		Shares:              pick(raw, "shares", "quantity", "qty").Float(),
		AvgCost:             pick(raw, "avg_cost", "average_cost", "cost").Float(),
		EntryDate:           normalizeDate(pick(raw, "entry_date", "buy_date").String()),
		InstitutionalStreak: int(pick(raw, "institutional_streak", "inst_streak", "chip_streak").Int()),
		PeakPrice:           pick(raw, "peak_price", "high_watermark").Float(),
		Sector:              strings.TrimSpace(pick(raw, "sector", "industry").String()),
		NeedsReview:         pick(raw, "needs_review").Bool(),
	}
	if mv := pick(raw, "market_value", "value"); mv.Exists() {
		v := mv.Float()
		p.MarketValue = &v
	}
	switch strings.ToUpper(strings.TrimSpace(pick(raw, "status", "state").String())) {
	case string(PositionTrial):
		p.Status = PositionTrial
	default:
		p.Status = PositionNormal
	}
	return p
}

func (n *normalizer) symbol(raw gjson.Result) *SymbolRecord {
	s := &SymbolRecord{
		Symbol: strings.TrimSpace(pick(raw, "symbol", "stock_id", "code").String()),
		Name:   strings.TrimSpace(pick(raw, "name", "display_name").String()),
	}
	if price := pick(raw, "price", "close", "current_price"); price.Exists() {
		s.Price = price.Float()
		s.HasPrice = true
	}

	if ranking := pick(raw, "ranking", "rank_info"); ranking.Exists() && ranking.IsObject() {
		s.Ranking = Ranking{
			Tier:    strings.ToUpper(strings.TrimSpace(pick(ranking, "tier", "grade").String())),
			Rank:    int(pick(ranking, "rank").Int()),
			InTop20: pick(ranking, "in_top20", "top20", "in_pool").Bool(),
		}
		s.HasRanking = true
	} else if tier := pick(raw, "tier"); tier.Exists() {
		// 旧格式：排名字段摊平在标的根节点。
		s.Ranking = Ranking{
			Tier:    strings.ToUpper(strings.TrimSpace(tier.String())),
			Rank:    int(pick(raw, "rank").Int()),
			InTop20: pick(raw, "in_top20", "top20").Bool(),
		}
		s.HasRanking = true
	}

	if tech := pick(raw, "technical", "tech"); tech.Exists() && tech.IsObject() {
		s.Technical = Technical{
			Bias:            pick(tech, "bias", "ma_bias").Float(),
			VolumeRatio:     pick(tech, "volume_ratio", "vol_ratio").Float(),
			Score:           pick(tech, "score", "composite_score").Float(),
			Tag:             strings.TrimSpace(pick(tech, "tag", "label").String()),
			PositiveSignals: int(pick(tech, "positive_signals", "signal_count").Int()),
		}
		if alerts := pick(tech, "alerts", "alert_codes"); alerts.Exists() && alerts.IsArray() {
			alerts.ForEach(func(_, item gjson.Result) bool {
				if code := strings.TrimSpace(item.String()); code != "" {
					s.Technical.Alerts = append(s.Technical.Alerts, code)
				}
				return true
			})
		}
	}

	if inst := pick(raw, "institutional", "chips", "chip"); inst.Exists() && inst.IsObject() {
		s.Institutional = Institutional{
			Ready:     truthy(pick(inst, "ready")),
			Streak3:   int(pick(inst, "streak_3d", "streak", "buy_streak").Int()),
			Direction: direction(pick(inst, "net_3d", "net", "direction").String()),
		}
	}

	if structural := pick(raw, "structural", "fundamental", "fundamentals"); structural.Exists() && structural.IsObject() {
		s.Structural = Structural{
			OperatingMargin: pick(structural, "operating_margin", "op_margin").Float(),
			RevenueGrowth:   pick(structural, "revenue_growth", "rev_growth").Float(),
			Sector:          strings.TrimSpace(pick(structural, "sector", "industry").String()),
			SectorBenchmark: pick(structural, "sector_margin_benchmark", "sector_benchmark").Float(),
		}
	}

	if caps := pick(raw, "caps", "risk_caps", "limits"); caps.Exists() && caps.IsObject() {
		s.Caps = RiskCaps{
			MaxPositionPct:  pick(caps, "max_position_pct", "position_cap_pct").Float(),
			MaxTradeRiskPct: pick(caps, "max_trade_risk_pct", "trade_risk_pct").Float(),
			TrialEligible:   pick(caps, "trial_enabled", "trial_ok").Bool(),
		}
		s.HasCaps = true
	}

	s.TechnicalWeakening = pick(raw, "technical_weakening", "tech_weakening").Bool()
	s.StructuralWeakening = pick(raw, "structural_weakening", "struct_weakening").Bool()
	s.OrphanHolding = pick(raw, "orphan_holding", "orphan").Bool()
	return s
}

// pick 返回首个存在的字段（按标准拼写优先的顺序）。
func pick(parent gjson.Result, keys ...string) gjson.Result {
	for _, key := range keys {
		if v := parent.Get(key); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if t, err := ParseDate(s); err == nil {
		return t.Format("2006-01-02")
	}
	return s
}

// readiness 兼容布尔与字符串两种就绪表示。
func readiness(v gjson.Result) string {
	if v.Type == gjson.True {
		return InstitutionalReady
	}
	if v.Type == gjson.False {
		return "not_ready"
	}
	return strings.ToLower(strings.TrimSpace(v.String()))
}

func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.String:
		s := strings.ToLower(strings.TrimSpace(v.String()))
		return s == "true" || s == "ready" || s == "yes" || s == "1"
	case gjson.Number:
		return v.Float() != 0
	default:
		return false
	}
}

// direction 统一法人三日方向词汇；显式 missing 哨兵原样保留。
func direction(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "positive", "buy", "net_buy", "+":
		return "positive"
	case "negative", "sell", "net_sell", "-":
		return "negative"
	case "flat", "neutral", "none", "0":
		return "flat"
	case DirectionMissing:
		return DirectionMissing
	default:
		return s
	}
}
