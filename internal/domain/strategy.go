package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PositionInfo is the read-only view of a strategy universe's current
// position, as seen by on_bar.
type PositionInfo struct {
	Quantity  decimal.Decimal
	AvgPrice  decimal.Decimal
	Direction Direction
	GapMode   bool
}

// OrderInfo is the read-only view of a strategy universe's outstanding
// (non-terminal) orders, as seen by on_bar.
type OrderInfo struct {
	ID       int64
	Side     OrderSide
	Status   OrderStatus
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// StrategyContext is everything a strategy needs to make one on_bar
// decision: the just-closed bar, preceding history, its current position
// and outstanding orders, its configured parameters, and the risk
// parameters it should embed into any OPEN/ADD signal it emits.
type StrategyContext struct {
	Ctx                  context.Context
	SymbolID             int64
	Ticker               string
	Timeframe            Timeframe
	Bar                  AggregatedCandle
	History              []AggregatedCandle // oldest first, newest is the bar immediately before Bar
	Position             *PositionInfo       // nil when flat
	Orders               []OrderInfo
	Params               map[string]any
	RiskPerTrade         float64
	MaxDrawdownFraction  float64
	GapThresholdFraction float64
}

// Strategy is the plug-in interface every built-in and registered strategy
// implements. A strategy is stateless between calls: all state it needs is
// reconstructed from StrategyContext on every invocation, so a restart never
// loses or corrupts strategy-side state.
type Strategy interface {
	// OnBar inspects ctx and returns a signal payload to emit, or nil for
	// "no action this bar".
	OnBar(ctx *StrategyContext) (*SignalPayload, error)
}

// StrategyFactory builds a fresh Strategy instance for a given set of
// strategy_universe parameters.
type StrategyFactory func(params map[string]any) (Strategy, error)
