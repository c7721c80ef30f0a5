package risk

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"arbiter/internal/snapshot"
)

// 中文说明：
// 持仓生命周期审计。两个相互独立的扫描：
//   - 试仓停滞：TRIAL 持仓满观察期且携带法人连买天数为零；
//   - 回撤/陈旧：先推高峰值水位线，再按峰值回撤与持有天数判定。
// 审计不直接改输入，全部修改以补丁形式返回，由编排器统一套用并写入
// 审计日志。快照里找不到现价的持仓直接跳过，绝不拿旧价当现价。

// 审计事件类型。
const (
	EventTrialStagnation = "TRIAL_STAGNATION"
	EventNeedsReview     = "NEEDS_REVIEW"
	EventWatermark       = "WATERMARK"
)

// AuditorParams 生命周期审计阈值。
type AuditorParams struct {
	TrialStaleDays   int     // 试仓停滞观察天数
	DrawdownPct      float64 // 峰值回撤触发百分比
	StaleDays        int     // 无确认标签的陈旧持有天数
	VolumeRatioFloor float64 // 回撤触发所需的量能下限
}

// DefaultAuditorParams 返回默认阈值（5 天 / 15% / 15 天 / 0.8）。
func DefaultAuditorParams() AuditorParams {
	return AuditorParams{TrialStaleDays: 5, DrawdownPct: 15, StaleDays: 15, VolumeRatioFloor: 0.8}
}

// Event 一条审计事件。
type Event struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
	Detail string `json:"detail"`
}

// Patch 审计对单个持仓的派生字段修改（由编排器套用）。
type Patch struct {
	Symbol      string
	PeakPrice   float64
	NeedsReview bool
}

// AuditResult 审计输出。
type AuditResult struct {
	Events  []Event
	Patches []Patch
}

// AuditPositions 扫描账户持仓。symbols 为标的代码到记录的索引，asOf
// 为评估基准日。
func AuditPositions(acct *snapshot.Account, symbols map[string]*snapshot.SymbolRecord, asOf time.Time, params AuditorParams) AuditResult {
	var res AuditResult
	for _, pos := range acct.Positions {
		if pos == nil || pos.Symbol == "" {
			continue
		}
		sym, ok := symbols[pos.Symbol]
		if !ok || !sym.HasPrice {
			continue
		}
		price := sym.Price

		peak := pos.PeakPrice
		if peak <= 0 {
			peak = pos.AvgCost
			if price > peak {
				peak = price
			}
		}
		if price > peak {
			peak = price
		}

		age := -1
		if entry, err := snapshot.ParseDate(pos.EntryDate); err == nil {
			age = int(asOf.Sub(entry).Hours() / 24)
		}

		needsReview := false

		if pos.Status == snapshot.PositionTrial && age >= params.TrialStaleDays && pos.InstitutionalStreak == 0 {
			needsReview = true
			res.Events = append(res.Events, Event{
				Type:   EventTrialStagnation,
				Symbol: pos.Symbol,
				Detail: fmt.Sprintf("试仓已持有 %d 天且法人连买天数为 0", age),
			})
		}

		drawdown := drawdownPct(peak, price)
		var reasons []string
		if drawdown >= params.DrawdownPct &&
			(sym.Institutional.Direction == "negative" || sym.Technical.VolumeRatio < params.VolumeRatioFloor) {
			reasons = append(reasons,
				fmt.Sprintf("峰值回撤 %.1f%% 且法人转弱或量能不足 (vol_ratio=%.2f)", drawdown, sym.Technical.VolumeRatio))
		}
		if age >= params.StaleDays && !sym.Technical.HasConfirmedTag() {
			reasons = append(reasons,
				fmt.Sprintf("持有 %d 天且标签无突破/主力确认", age))
		}
		if len(reasons) > 0 {
			needsReview = true
			res.Events = append(res.Events, Event{
				Type:   EventNeedsReview,
				Symbol: pos.Symbol,
				Detail: strings.Join(reasons, "；"),
			})
		}

		if peak != pos.PeakPrice || needsReview {
			res.Patches = append(res.Patches, Patch{
				Symbol:      pos.Symbol,
				PeakPrice:   peak,
				NeedsReview: needsReview || pos.NeedsReview,
			})
		}
	}
	return res
}

// ApplyPatches 把审计补丁套用到账户持仓上，并为每次水位线推进返回一
// 条 WATERMARK 事件（派生字段的回写必须进审计日志）。
func ApplyPatches(acct *snapshot.Account, patches []Patch) []Event {
	var events []Event
	bySymbol := make(map[string]Patch, len(patches))
	for _, p := range patches {
		bySymbol[p.Symbol] = p
	}
	for _, pos := range acct.Positions {
		patch, ok := bySymbol[pos.Symbol]
		if !ok {
			continue
		}
		if patch.PeakPrice != pos.PeakPrice {
			events = append(events, Event{
				Type:   EventWatermark,
				Symbol: pos.Symbol,
				Detail: fmt.Sprintf("峰值水位线 %.2f → %.2f", pos.PeakPrice, patch.PeakPrice),
			})
			pos.PeakPrice = patch.PeakPrice
		}
		if patch.NeedsReview && !pos.NeedsReview {
			pos.NeedsReview = true
		}
	}
	return events
}

func drawdownPct(peak, price float64) float64 {
	if peak <= 0 {
		return 0
	}
	p := decimal.NewFromFloat(peak)
	dd, _ := p.Sub(decimal.NewFromFloat(price)).
		Mul(decimal.NewFromInt(100)).
		Div(p).
		Round(4).Float64()
	if dd < 0 {
		return 0
	}
	return dd
}
