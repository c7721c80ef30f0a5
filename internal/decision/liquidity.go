package decision

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// 中文说明：
// 流动性检查（两种模式共用）。权益非正直接拒绝；名义金额超过现金时
// 把比例缩到 floor(cash/equity×100) 的整数位；缩完低于最小比例则拒
// 绝，不发象征性的小单。

// LiquidityParams 流动性检查参数。
type LiquidityParams struct {
	MinSizePct float64 // 缩减后的最小可接受比例
}

// DefaultLiquidityParams 返回默认参数（2%）。
func DefaultLiquidityParams() LiquidityParams {
	return LiquidityParams{MinSizePct: 2}
}

// LiquidityResult 流动性检查结论。
type LiquidityResult struct {
	SizePct    float64 // 最终比例；拒绝时为 0
	Rejected   bool
	ReasonCode string // 拒绝时的原因码
	Note       string // 发生缩减时的说明
}

// CheckLiquidity 按账户现金约束修正暂定比例。
func CheckLiquidity(equity, cash, sizePct float64, params LiquidityParams) LiquidityResult {
	if equity <= 0 {
		return LiquidityResult{Rejected: true, ReasonCode: ReasonLiqNoEquity}
	}
	eq := decimal.NewFromFloat(equity)
	hundred := decimal.NewFromInt(100)
	notional := eq.Mul(decimal.NewFromFloat(sizePct)).Div(hundred)
	if notional.Cmp(decimal.NewFromFloat(cash)) <= 0 {
		return LiquidityResult{SizePct: sizePct}
	}
	shrunk, _ := decimal.NewFromFloat(cash).Mul(hundred).Div(eq).Floor().Float64()
	if shrunk < params.MinSizePct {
		return LiquidityResult{Rejected: true, ReasonCode: ReasonLiqTooSmall,
			Note: fmt.Sprintf("现金仅够 %.0f%%，低于最小 %.0f%%", shrunk, params.MinSizePct)}
	}
	return LiquidityResult{SizePct: shrunk,
		Note: fmt.Sprintf("现金约束：比例 %.0f%% 缩至 %.0f%%", sizePct, shrunk)}
}

// EstimateShares 估算可成交股数（有效单位过滤用）。
func EstimateShares(equity, sizePct, price float64) float64 {
	if price <= 0 {
		return 0
	}
	shares, _ := decimal.NewFromFloat(equity).
		Mul(decimal.NewFromFloat(sizePct)).
		Div(decimal.NewFromInt(100)).
		Div(decimal.NewFromFloat(price)).
		Floor().Float64()
	return shares
}
