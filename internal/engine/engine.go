package engine

import (
	"golang.org/x/sync/errgroup"

	"arbiter/internal/decision"
	"arbiter/internal/health"
	"arbiter/internal/logger"
	"arbiter/internal/portfolio"
	"arbiter/internal/risk"
	"arbiter/internal/snapshot"
)

// 中文说明：
// 运行编排器。顺序：标准化 → 健康门（整个快照一次）→ 逐账户执行
// 行业暴露 → 生命周期审计（先套水位线补丁）→ 按输入顺序跑决策级联
// → 组合概要。全部账户完成后做最后一道兜底：快照降级时把漏网的
// BUY/TRIAL 无条件改写为 WATCH。账户间彼此独立，可并行评估，输出与
// 串行严格一致。

// Options 引擎参数。零值字段取各自默认。
type Options struct {
	Overlay  risk.OverlayParams
	Auditor  risk.AuditorParams
	Cascade  decision.Params
	Baseline snapshot.RiskProfile
	Parallel bool
}

// Engine 仲裁引擎。纯计算，不做任何网络或文件 I/O。
type Engine struct {
	opts Options
}

// New 构建引擎，补齐缺省参数。
func New(opts Options) *Engine {
	if opts.Overlay == (risk.OverlayParams{}) {
		opts.Overlay = risk.DefaultOverlayParams()
	}
	if opts.Auditor == (risk.AuditorParams{}) {
		opts.Auditor = risk.DefaultAuditorParams()
	}
	if opts.Cascade == (decision.Params{}) {
		opts.Cascade = decision.DefaultParams()
	}
	if opts.Baseline == (snapshot.RiskProfile{}) {
		opts.Baseline = snapshot.BaselineProfile()
	}
	return &Engine{opts: opts}
}

// Default 返回全默认参数的引擎。
func Default() *Engine { return New(Options{}) }

// Run 标准化原始快照并评估。标准化硬失败时整体返回错误，不产出任何
// 部分结果。
func (e *Engine) Run(raw []byte) (*Result, error) {
	snap, notices, err := snapshot.Normalize(raw, snapshot.WithBaseline(e.opts.Baseline))
	if err != nil {
		return nil, err
	}
	return e.Evaluate(snap, notices), nil
}

// Evaluate 评估一份已标准化的快照。notices 为标准化阶段的提示，会并
// 入各账户的风险信号。
func (e *Engine) Evaluate(snap *snapshot.Snapshot, notices []string) *Result {
	report := health.Evaluate(snap)
	if report.Degraded() {
		logger.Warnf("快照降级，原因 %d 条", len(report.Failures))
	}

	symbols := indexSymbols(snap.Symbols)

	baseSignals := make([]string, 0, len(notices)+len(report.Failures))
	baseSignals = append(baseSignals, notices...)
	baseSignals = append(baseSignals, report.Failures...)

	results := make([]AccountResult, len(snap.Accounts))
	if e.opts.Parallel && len(snap.Accounts) > 1 {
		var group errgroup.Group
		for i, acct := range snap.Accounts {
			i, acct := i, acct
			group.Go(func() error {
				results[i] = e.evaluateAccount(snap, acct, report, symbols, baseSignals)
				return nil
			})
		}
		_ = group.Wait()
	} else {
		for i, acct := range snap.Accounts {
			results[i] = e.evaluateAccount(snap, acct, report, symbols, baseSignals)
		}
	}

	res := &Result{
		Timestamp:    snap.Header.Timestamp,
		MarketStatus: report.Status,
		GateFailures: report.Failures,
		Accounts:     make(map[string]AccountResult, len(snap.Accounts)),
	}
	for i, acct := range snap.Accounts {
		res.Accounts[acct.ID] = results[i]
	}

	// 最后一道兜底：与级联降级规则刻意重复，防级联缺陷放行。
	if report.Degraded() {
		e.enforceDegraded(res)
	}
	return res
}

func (e *Engine) evaluateAccount(snap *snapshot.Snapshot, acct *snapshot.Account, report health.Report, symbols map[string]*snapshot.SymbolRecord, baseSignals []string) AccountResult {
	overlay := risk.SectorExposure(acct, e.opts.Overlay)

	// 审计（含水位线推进）必须先于级联读取其余风险信号。
	audit := risk.AuditPositions(acct, symbols, snap.Header.AsOf(), e.opts.Auditor)
	auditLog := risk.ApplyPatches(acct, audit.Patches)
	auditLog = append(auditLog, audit.Events...)
	if auditLog == nil {
		auditLog = []risk.Event{}
	}

	held := acct.HeldSymbols()
	decisions := make([]decision.Decision, 0, len(snap.Symbols))
	for _, sym := range snap.Symbols {
		decisions = append(decisions, decision.Evaluate(decision.Input{
			Account:    acct,
			Symbol:     sym,
			Degraded:   report.Degraded(),
			OverlayCap: overlay.CapPct,
			Held:       held[sym.Symbol],
		}, e.opts.Cascade))
	}

	signals := make([]string, 0, len(baseSignals)+len(overlay.Signals))
	signals = append(signals, baseSignals...)
	signals = append(signals, overlay.Signals...)

	return AccountResult{
		Mode:      string(acct.Mode),
		Summary:   portfolio.Summarize(acct, signals),
		Decisions: decisions,
		AuditLog:  auditLog,
	}
}

func (e *Engine) enforceDegraded(res *Result) {
	for id, acct := range res.Accounts {
		changed := false
		for i := range acct.Decisions {
			d := &acct.Decisions[i]
			if d.Action == decision.ActionBuy || d.Action == decision.ActionTrial {
				logger.Warnf("降级兜底：account=%s symbol=%s %s 改写为 WATCH", id, d.Symbol, d.Action)
				d.Action = decision.ActionWatch
				d.SizePct = 0
				d.ReasonCode = decision.ReasonDegradedOverride
				d.RiskNote = "快照降级，终局兜底改写"
				changed = true
			}
		}
		if changed {
			res.Accounts[id] = acct
		}
	}
}

// indexSymbols 建立代码到记录的索引，重复代码以首次出现为准。
func indexSymbols(list []*snapshot.SymbolRecord) map[string]*snapshot.SymbolRecord {
	index := make(map[string]*snapshot.SymbolRecord, len(list))
	for _, sym := range list {
		if sym == nil || sym.Symbol == "" {
			continue
		}
		if _, ok := index[sym.Symbol]; !ok {
			index[sym.Symbol] = sym
		}
	}
	return index
}
