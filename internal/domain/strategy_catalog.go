package domain

import "github.com/shopspring/decimal"

// StrategyCatalogEntry is a registered strategy implementation: the key the
// runner's registry resolves to a factory, independent of any particular
// symbol/timeframe assignment.
type StrategyCatalogEntry struct {
	ID            int64
	Name          string
	LiveClassKey  string // registry key, e.g. "sma_trend1"
	DefaultParams map[string]any
	Enabled       bool
}

// StrategyMode is the deployment mode a strategy universe row runs under.
// Only paper and live rows are eligible for live bar dispatch; a backtest
// row is scheduled and graded elsewhere, never dispatched here.
type StrategyMode string

const (
	StrategyModePaper    StrategyMode = "paper"
	StrategyModeLive     StrategyMode = "live"
	StrategyModeBacktest StrategyMode = "backtest"
)

// Dispatchable reports whether a strategy universe in this mode should
// receive live bar dispatch.
func (m StrategyMode) Dispatchable() bool {
	return m == StrategyModePaper || m == StrategyModeLive
}

// StrategyUniverse assigns one catalog entry to one symbol/timeframe pair
// with its own risk parameters and admission limits.
type StrategyUniverse struct {
	ID                       int64
	StrategyCatalogID        int64
	SymbolID                 int64
	Timeframe                Timeframe
	Mode                     StrategyMode
	Params                   map[string]any
	RiskPerTrade             decimal.Decimal
	MaxDrawdownFraction      decimal.Decimal
	MaxPositionsPerStrategy  int
	MaxTotalPositions        int
	GapThresholdFraction     decimal.Decimal
	Enabled                  bool
}
