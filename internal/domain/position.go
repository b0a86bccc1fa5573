package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the current open (or flat) holding for one strategy universe.
// One row per strategy_universe_id; FLAT rows are kept rather than deleted so
// the risk engine can tell "never opened" apart from "closed".
type Position struct {
	ID                 int64
	StrategyUniverseID int64
	SymbolID           int64
	Direction          Direction
	Quantity           decimal.Decimal
	AvgPrice           decimal.Decimal
	LastPrice          decimal.Decimal
	RealizedPnL        decimal.Decimal
	UnrealizedPnL      decimal.Decimal
	GapMode            bool
	UpdatedAt          time.Time
}

// IsOpen reports whether this position currently holds any quantity.
func (p Position) IsOpen() bool {
	return p.Direction != DirectionFlat && p.Direction != ""
}
