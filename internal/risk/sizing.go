// Package risk implements the signal-to-order admission pipeline: position
// sizing against account equity, and the ordered set of checks a signal must
// clear before it becomes an order.
package risk

import (
	"github.com/shopspring/decimal"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

// SizingInput is everything ComputeOrderSize needs to size one OPEN/ADD/
// REVERSE signal.
type SizingInput struct {
	Equity              decimal.Decimal
	FreeCash            decimal.Decimal
	RiskPerTrade        decimal.Decimal
	MaxDrawdownFraction decimal.Decimal
	LotSize             int64
	EntryPrice          decimal.Decimal
	StopLoss            decimal.Decimal
	SizeMode            domain.SizeMode
	SizeValue           decimal.Decimal
}

// SizingResult is the outcome of ComputeOrderSize: either SizeLots is
// positive and Reason is "ok", or the signal must be rejected with Reason.
type SizingResult struct {
	OK       bool
	Reason   string
	SizeLots int64
}

var (
	zero = decimal.Zero
	one  = decimal.NewFromInt(1)
)

// clampFraction clamps v to [0, 1].
func clampFraction(v decimal.Decimal) decimal.Decimal {
	if v.LessThan(zero) {
		return zero
	}
	if v.GreaterThan(one) {
		return one
	}
	return v
}

// ComputeOrderSize applies the risk-fraction sizing formula: risk_span is the
// stop's distance from entry as a fraction of entry price; the position is
// sized so that a stop-out loses at most risk_per_trade * equity *
// size_value. Every rejection path returns a specific machine-readable
// reason so it can be logged without a human in the loop.
func ComputeOrderSize(in SizingInput) SizingResult {
	if in.SizeMode != domain.SizeModeRiskFraction {
		return SizingResult{Reason: "unsupported_size_mode"}
	}
	if in.EntryPrice.LessThanOrEqual(zero) {
		return SizingResult{Reason: "invalid_entry_price"}
	}
	if in.StopLoss.LessThanOrEqual(zero) {
		return SizingResult{Reason: "stop_loss_required"}
	}

	riskSpan := in.EntryPrice.Sub(in.StopLoss).Abs().Div(in.EntryPrice)
	if riskSpan.LessThanOrEqual(zero) {
		return SizingResult{Reason: "invalid_risk_span"}
	}
	if in.MaxDrawdownFraction.IsPositive() && riskSpan.GreaterThan(in.MaxDrawdownFraction) {
		return SizingResult{Reason: "too_wide_stop"}
	}
	if in.RiskPerTrade.LessThanOrEqual(zero) {
		return SizingResult{Reason: "invalid_risk_per_trade"}
	}

	maxLossMoney := in.Equity.Mul(in.RiskPerTrade)
	sizeFraction := clampFraction(in.SizeValue)
	effectiveLoss := maxLossMoney.Mul(sizeFraction)

	sizeMoney := effectiveLoss.Div(riskSpan)
	if sizeMoney.LessThanOrEqual(zero) {
		return SizingResult{Reason: "size_money_non_positive"}
	}

	sizeUnits := sizeMoney.Div(in.EntryPrice)

	var sizeLots int64
	if in.LotSize > 0 {
		sizeLots = sizeUnits.Div(decimal.NewFromInt(in.LotSize)).IntPart()
	} else {
		sizeLots = sizeUnits.IntPart()
	}
	if sizeLots <= 0 {
		return SizingResult{Reason: "size_too_small"}
	}

	requiredCash := decimal.NewFromInt(sizeLots).Mul(decimal.NewFromInt(in.LotSize)).Mul(in.EntryPrice)
	if requiredCash.GreaterThan(in.FreeCash) {
		return SizingResult{Reason: "insufficient_cash"}
	}

	return SizingResult{OK: true, Reason: "ok", SizeLots: sizeLots}
}
