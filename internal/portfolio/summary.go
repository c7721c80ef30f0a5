package portfolio

import (
	"github.com/shopspring/decimal"

	"arbiter/internal/snapshot"
)

// 中文说明：
// 组合概要：从现金/权益推导现金比例与粗粒度风险暴露档位，并把标准
// 化、健康门、行业暴露各阶段收集到的风险信号作为 active_alerts 一并
// 带出，供报表侧展示。

// Exposure 风险暴露档位。
type Exposure string

const (
	ExposureLow  Exposure = "LOW"
	ExposureMed  Exposure = "MED"
	ExposureHigh Exposure = "HIGH"
)

// Summary 单账户组合概要。
type Summary struct {
	CashPct      *float64 `json:"cash_pct"` // 权益非正时为 null
	Exposure     Exposure `json:"risk_exposure"`
	ActiveAlerts []string `json:"active_alerts"`
}

// Summarize 计算账户概要。alerts 为前置阶段累计的风险信号，按收集
// 顺序原样带出。
func Summarize(acct *snapshot.Account, alerts []string) Summary {
	s := Summary{Exposure: ExposureHigh, ActiveAlerts: alerts}
	if s.ActiveAlerts == nil {
		s.ActiveAlerts = []string{}
	}
	if acct.Equity <= 0 {
		return s
	}
	pct, _ := decimal.NewFromFloat(acct.Cash).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromFloat(acct.Equity)).
		Round(4).Float64()
	s.CashPct = &pct
	switch {
	case pct >= 70:
		s.Exposure = ExposureLow
	case pct >= 40:
		s.Exposure = ExposureMed
	default:
		s.Exposure = ExposureHigh
	}
	return s
}
