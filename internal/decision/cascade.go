package decision

import (
	"fmt"
	"strings"

	"arbiter/internal/snapshot"
)

// 中文说明：
// 决策级联。每个 (账户, 标的) 独立评估，除行业暴露上限与持仓集合外
// 不依赖任何跨标的状态。规则按固定顺序排列，首个命中的守卫产出终局
// 决策，之后绝不回头。

// Params 级联参数。
type Params struct {
	BaseSizePct   float64 // 新仓暂定比例
	VolumeLow     float64 // 量比下限，低于则拒绝试仓
	VolumeOK      float64 // 量比放行线
	MinLotShares  float64 // 有效单位：低于该股数的试仓不发
	ReduceMajor   float64 // 重大警示/双弱化时的减仓比例
	ReduceMinor   float64 // 一般弱化时的减仓比例
	Liquidity     LiquidityParams
}

// DefaultParams 返回默认级联参数。
func DefaultParams() Params {
	return Params{
		BaseSizePct:  5,
		VolumeLow:    0.8,
		VolumeOK:     1.0,
		MinLotShares: 1000,
		ReduceMajor:  10,
		ReduceMinor:  5,
		Liquidity:    DefaultLiquidityParams(),
	}
}

// Input 级联的单标的输入。
type Input struct {
	Account    *snapshot.Account
	Symbol     *snapshot.SymbolRecord
	Degraded   bool
	OverlayCap *float64 // 行业暴露监控给出的新仓上限（可空）
	Held       bool
}

type ruleContext struct {
	in            Input
	params        Params
	majorAlert    bool
	instConfirmed bool
}

func (c *ruleContext) heldOrOrphan() bool {
	return c.in.Held || c.in.Symbol.OrphanHolding
}

// rule 有序守卫→终局态规则。守卫是标准记录上的纯谓词，终局态构造一
// 个 Decision。
type rule struct {
	name string
	when func(*ruleContext) bool
	emit func(*ruleContext) Decision
}

// Evaluate 运行级联并返回唯一决策。输出必然落在封闭词汇内（越界值
// 由 Coerce 改写）。
func Evaluate(in Input, params Params) Decision {
	ctx := &ruleContext{
		in:            in,
		params:        params,
		majorAlert:    hasMajorAlert(in.Symbol),
		instConfirmed: institutionalConfirmed(in.Symbol),
	}
	for _, r := range cascadeRules {
		if r.when(ctx) {
			d := r.emit(ctx)
			Coerce(&d)
			return d
		}
	}
	// 规则表以恒真守卫收尾，到不了这里。
	d := Decision{Symbol: in.Symbol.Symbol, Action: ActionWatch, ReasonCode: ReasonUnknownMode}
	Coerce(&d)
	return d
}

var cascadeRules = []rule{
	{
		name: "pool_gate",
		when: func(c *ruleContext) bool {
			return !c.in.Symbol.Ranking.InTop20 && !c.in.Symbol.OrphanHolding && !c.in.Held
		},
		emit: func(c *ruleContext) Decision {
			return c.watch(ActionIgnore, ReasonNotInPool, "不在前二十池、非孤儿持仓、亦未持有")
		},
	},
	{
		name: "degraded_gate",
		when: func(c *ruleContext) bool { return c.in.Degraded },
		emit: func(c *ruleContext) Decision {
			if c.heldOrOrphan() {
				return c.positionOutcome()
			}
			return c.watch(ActionWatch, ReasonDegradedNoBuyTrial, "快照降级，禁止新的 BUY/TRIAL")
		},
	},
	{
		// 持仓与孤儿持仓先于任何进场规则处理，两种模式共用。
		name: "position_gate",
		when: func(c *ruleContext) bool { return c.heldOrOrphan() },
		emit: func(c *ruleContext) Decision { return c.positionOutcome() },
	},
	{
		name: "conservative_entry",
		when: func(c *ruleContext) bool { return c.in.Account.Mode == snapshot.ModeConservative },
		emit: func(c *ruleContext) Decision { return c.conservativeOutcome() },
	},
	{
		name: "aggressive_pool",
		when: func(c *ruleContext) bool {
			return c.in.Account.Mode == snapshot.ModeAggressive && !c.in.Symbol.Ranking.InTop20
		},
		emit: func(c *ruleContext) Decision {
			return c.watch(ActionWatch, ReasonAggNotInPool, "新仓要求前二十池成员")
		},
	},
	{
		name: "aggressive_profile",
		when: func(c *ruleContext) bool {
			return c.in.Account.Mode == snapshot.ModeAggressive && !c.in.Account.Risk.TrialEnabled
		},
		emit: func(c *ruleContext) Decision {
			return c.watch(ActionWatch, ReasonAggTrialDisabled, "账户风险画像未开启试仓")
		},
	},
	{
		name: "aggressive_vol_low",
		when: func(c *ruleContext) bool {
			return c.in.Account.Mode == snapshot.ModeAggressive &&
				c.in.Symbol.Technical.VolumeRatio < c.params.VolumeLow
		},
		emit: func(c *ruleContext) Decision {
			return c.watch(ActionWatch, ReasonVolLowRejectTrial,
				fmt.Sprintf("量比 %.2f 低于 %.2f，拒绝试仓", c.in.Symbol.Technical.VolumeRatio, c.params.VolumeLow))
		},
	},
	{
		name: "aggressive_vol_mid",
		when: func(c *ruleContext) bool {
			return c.in.Account.Mode == snapshot.ModeAggressive &&
				c.in.Symbol.Technical.VolumeRatio < c.params.VolumeOK &&
				c.in.Symbol.Technical.PositiveSignals < 2
		},
		emit: func(c *ruleContext) Decision {
			return c.watch(ActionWatch, ReasonVolMidNeedSignals,
				"量比介于 0.8–1.0，需至少 2 个正向技术信号")
		},
	},
	{
		// 法人例外通道（单日强力买超直通试仓）：规格已备但所需字段
		// 尚未进快照，守卫恒假，规则显式保留不删。
		name: "aggressive_inst_exception",
		when: func(c *ruleContext) bool { return false },
		emit: func(c *ruleContext) Decision {
			return c.watch(ActionWatch, ReasonInstExceptionOff, "法人例外通道未启用")
		},
	},
	{
		name: "aggressive_trial_flag",
		when: func(c *ruleContext) bool {
			return c.in.Account.Mode == snapshot.ModeAggressive && !c.in.Symbol.Caps.TrialEligible
		},
		emit: func(c *ruleContext) Decision {
			return c.watch(ActionWatch, ReasonTrialNotEligible, "标的未标记可试仓")
		},
	},
	{
		name: "aggressive_trial_signal",
		when: func(c *ruleContext) bool {
			return c.in.Account.Mode == snapshot.ModeAggressive && c.in.Symbol.Technical.PositiveSignals < 1
		},
		emit: func(c *ruleContext) Decision {
			return c.watch(ActionWatch, ReasonTrialNoSignal, "缺少正向技术信号")
		},
	},
	{
		name: "aggressive_trial_alert",
		when: func(c *ruleContext) bool {
			return c.in.Account.Mode == snapshot.ModeAggressive && c.majorAlert
		},
		emit: func(c *ruleContext) Decision {
			return c.watch(ActionWatch, ReasonTrialMajorAlert, "存在重大技术警示")
		},
	},
	{
		name: "aggressive_trial_inst",
		when: func(c *ruleContext) bool {
			return c.in.Account.Mode == snapshot.ModeAggressive &&
				c.in.Symbol.Institutional.Direction == "negative"
		},
		emit: func(c *ruleContext) Decision {
			return c.watch(ActionWatch, ReasonTrialInstNegative, "法人三日净向为负")
		},
	},
	{
		name: "aggressive_trial",
		when: func(c *ruleContext) bool { return c.in.Account.Mode == snapshot.ModeAggressive },
		emit: func(c *ruleContext) Decision { return c.trialOutcome() },
	},
	{
		// 未知模式一律 WATCH：引擎不替账户猜规则集。
		name: "unknown_mode",
		when: func(c *ruleContext) bool { return true },
		emit: func(c *ruleContext) Decision {
			return c.watch(ActionWatch, ReasonUnknownMode,
				fmt.Sprintf("未知账户模式 %q", c.in.Account.Mode))
		},
	},
}

// RuleNames 返回级联规则的固定顺序（诊断/测试用）。
func RuleNames() []string {
	names := make([]string, 0, len(cascadeRules))
	for _, r := range cascadeRules {
		names = append(names, r.name)
	}
	return names
}

func (c *ruleContext) watch(action Action, reason, note string) Decision {
	return Decision{
		Symbol:     c.in.Symbol.Symbol,
		Action:     action,
		RefPrice:   c.in.Symbol.Price,
		ReasonCode: reason,
		Rationale:  buildRationale(c.in.Symbol),
		RiskNote:   note,
	}
}

// positionOutcome 持仓/孤儿持仓的弱化处理：弱化或重大警示触发减仓，
// 否则继续持有。
func (c *ruleContext) positionOutcome() Decision {
	sym := c.in.Symbol
	weakening := sym.TechnicalWeakening || sym.StructuralWeakening
	if !weakening && !c.majorAlert {
		return c.watch(ActionHold, ReasonHoldPosition, "持仓无弱化迹象")
	}
	size := -c.params.ReduceMinor
	if c.majorAlert || (sym.TechnicalWeakening && sym.StructuralWeakening) {
		size = -c.params.ReduceMajor
	}
	d := c.watch(ActionReduce, ReasonReduceWeakening, "持仓出现弱化或重大警示")
	d.SizePct = size
	return d
}

// conservativeOutcome 保守模式：存疑即拒，拒绝时把未满足条款一次说清。
func (c *ruleContext) conservativeOutcome() Decision {
	sym := c.in.Symbol
	if sym.Ranking.Tier != "A" || !sym.Ranking.InTop20 {
		return c.watch(ActionWatch, ReasonConsTierReject,
			fmt.Sprintf("要求 A 级且在前二十池（当前 %s/top20=%v）", orDash(sym.Ranking.Tier), sym.Ranking.InTop20))
	}
	if !sym.Institutional.Ready {
		return c.watch(ActionWatch, ReasonConsInstNotReady, "法人数据未就绪")
	}

	var unmet []string
	if !sym.Technical.HasConfirmedTag() {
		unmet = append(unmet, "标签缺少突破/主力确认标记")
	}
	if sym.Technical.Bias <= 0 {
		unmet = append(unmet, fmt.Sprintf("均线乖离 %+.1f%% 非正", sym.Technical.Bias))
	}
	if sym.Technical.PositiveSignals < 2 {
		unmet = append(unmet, fmt.Sprintf("正向技术信号仅 %d 个（需 ≥2）", sym.Technical.PositiveSignals))
	}
	if c.majorAlert {
		unmet = append(unmet, "存在重大技术警示")
	}
	if sym.Structural.RevenueGrowth < 0 {
		unmet = append(unmet, fmt.Sprintf("营收增长 %+.1f%% 为负", sym.Structural.RevenueGrowth))
	}
	if sym.Structural.OperatingMargin < sym.Structural.SectorBenchmark {
		unmet = append(unmet, fmt.Sprintf("营业利益率 %.1f%% 低于板块基准 %.1f%%",
			sym.Structural.OperatingMargin, sym.Structural.SectorBenchmark))
	}
	if !c.instConfirmed {
		unmet = append(unmet, "法人硬规则未达成（就绪+三日连买≥3+净向为正）")
	}
	if len(unmet) > 0 {
		return c.watch(ActionWatch, ReasonConsCriteriaUnmet, strings.Join(unmet, "；"))
	}

	size, note, rejected := c.applySizing(c.params.BaseSizePct)
	if rejected != "" {
		return c.watch(ActionWatch, rejected, note)
	}
	d := c.watch(ActionBuy, ReasonBuyConfirmed, note)
	d.SizePct = size
	return d
}

// trialOutcome 进取模式所有前置守卫通过后的试仓定量。
func (c *ruleContext) trialOutcome() Decision {
	size, note, rejected := c.applySizing(c.params.BaseSizePct)
	if rejected != "" {
		return c.watch(ActionWatch, rejected, note)
	}
	shares := EstimateShares(c.in.Account.Equity, size, c.in.Symbol.Price)
	if shares < c.params.MinLotShares {
		return c.watch(ActionWatch, ReasonLotTooSmall,
			fmt.Sprintf("估算可成交 %.0f 股，低于有效单位 %.0f 股", shares, c.params.MinLotShares))
	}
	d := c.watch(ActionTrial, ReasonTrialConfirmed, note)
	d.SizePct = size
	return d
}

// applySizing 依次套用行业暴露上限与流动性检查。返回最终比例、风险
// 备注；被拒绝时第三个返回值为对应原因码。
func (c *ruleContext) applySizing(base float64) (float64, string, string) {
	size := base
	var notes []string
	if c.in.OverlayCap != nil && *c.in.OverlayCap < size {
		size = *c.in.OverlayCap
		notes = append(notes, fmt.Sprintf("行业暴露上限压缩至 %.0f%%", size))
	}
	liq := CheckLiquidity(c.in.Account.Equity, c.in.Account.Cash, size, c.params.Liquidity)
	if liq.Note != "" {
		notes = append(notes, liq.Note)
	}
	if liq.Rejected {
		return 0, strings.Join(notes, "；"), liq.ReasonCode
	}
	return liq.SizePct, strings.Join(notes, "；"), ""
}
