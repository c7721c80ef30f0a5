package risk

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"arbiter/internal/snapshot"
)

// 中文说明：
// 行业集中度监控。按板块汇总持仓市值（无显式市值时退回 股数×均价），
// 除以总权益得到各板块暴露比例。超过高位阈值则对该账户的新仓位出安
// 全上限；落在预警区间只给提示；权益非正时整体跳过，绝不除零或猜测
// 权益数字。

// OverlayParams 行业暴露阈值。
type OverlayParams struct {
	HighPct float64 // 超过则压上限
	WarnPct float64 // 进入则仅预警
	CapPct  float64 // 压缩后的新仓位上限
}

// DefaultOverlayParams 返回默认阈值（40% / 35% / 2%）。
func DefaultOverlayParams() OverlayParams {
	return OverlayParams{HighPct: 40, WarnPct: 35, CapPct: 2}
}

// OverlayResult 单账户的行业暴露结论。
type OverlayResult struct {
	Exposures map[string]float64 `json:"exposures,omitempty"`
	TopSector string             `json:"top_sector,omitempty"`
	TopPct    float64            `json:"top_pct,omitempty"`
	CapPct    *float64           `json:"cap_pct,omitempty"`
	Skipped   bool               `json:"skipped,omitempty"`
	Signals   []string           `json:"signals,omitempty"`
}

// SectorExposure 计算账户的行业集中度并推导新仓位上限。
func SectorExposure(acct *snapshot.Account, params OverlayParams) OverlayResult {
	res := OverlayResult{}
	if acct.Equity <= 0 {
		res.Skipped = true
		res.Signals = append(res.Signals,
			fmt.Sprintf("SECTOR_SKIP: account[%s] 权益非正，跳过行业暴露计算", acct.ID))
		return res
	}

	totals := make(map[string]decimal.Decimal)
	for _, pos := range acct.Positions {
		if pos == nil {
			continue
		}
		sector := pos.Sector
		if sector == "" {
			sector = "UNCLASSIFIED"
		}
		totals[sector] = totals[sector].Add(decimal.NewFromFloat(pos.Value()))
	}
	if len(totals) == 0 {
		return res
	}

	equity := decimal.NewFromFloat(acct.Equity)
	hundred := decimal.NewFromInt(100)
	res.Exposures = make(map[string]float64, len(totals))

	sectors := make([]string, 0, len(totals))
	for sector := range totals {
		sectors = append(sectors, sector)
	}
	sort.Strings(sectors)

	for _, sector := range sectors {
		pct, _ := totals[sector].Mul(hundred).Div(equity).Round(4).Float64()
		res.Exposures[sector] = pct
		if pct > res.TopPct {
			res.TopPct = pct
			res.TopSector = sector
		}
	}

	switch {
	case res.TopPct > params.HighPct:
		cap := params.CapPct
		res.CapPct = &cap
		res.Signals = append(res.Signals,
			fmt.Sprintf("SECTOR_HIGH: account[%s] %s 暴露 %.1f%% 超过 %.0f%%，新仓位上限压至 %.0f%%",
				acct.ID, res.TopSector, res.TopPct, params.HighPct, params.CapPct))
	case res.TopPct >= params.WarnPct:
		res.Signals = append(res.Signals,
			fmt.Sprintf("SECTOR_WARN: account[%s] %s 暴露 %.1f%% 接近 %.0f%% 阈值",
				acct.ID, res.TopSector, res.TopPct, params.HighPct))
	}
	return res
}
