package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalType is the intent a strategy emits from on_bar.
type SignalType string

const (
	SignalTypeOpen         SignalType = "OPEN"
	SignalTypeAdd          SignalType = "ADD"
	SignalTypeReverse      SignalType = "REVERSE"
	SignalTypeClose        SignalType = "CLOSE"
	SignalTypeManualClose  SignalType = "MANUAL_CLOSE"
	SignalTypeForcedClose  SignalType = "FORCED_CLOSE"
)

// Direction is the position side a signal or position is on.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
	DirectionFlat  Direction = "FLAT"
)

// EntryType is how the broker adapter should price a new order.
type EntryType string

const (
	EntryTypeMarket EntryType = "MARKET"
	EntryTypeLimit  EntryType = "LIMIT"
	EntryTypeStop   EntryType = "STOP"
)

// Valid reports whether t is one of the order types the broker adapter
// knows how to price and fill.
func (t EntryType) Valid() bool {
	switch t {
	case EntryTypeMarket, EntryTypeLimit, EntryTypeStop:
		return true
	default:
		return false
	}
}

// SizeMode selects the position-sizing formula the risk engine applies.
// RISK_FRACTION is the only mode implemented; others are rejected.
type SizeMode string

const (
	SizeModeRiskFraction SizeMode = "RISK_FRACTION"
)

// Signal is a row in live_signals: a strategy's on_bar output, not yet
// admitted or rejected by the risk engine.
type Signal struct {
	ID                 int64
	StrategyUniverseID int64
	SymbolID           int64
	SignalTimestamp    time.Time
	Payload            SignalPayload
	Processed          bool
}

// SignalPayload is the JSON-shaped body a strategy's on_bar call returns,
// stored as signal_json and interpreted by the risk engine.
type SignalPayload struct {
	Type        SignalType       `json:"type"`
	Direction   Direction        `json:"direction,omitempty"`
	EntryType   EntryType        `json:"entry_type,omitempty"`
	EntryPrice  decimal.Decimal  `json:"entry_price,omitempty"`
	StopLoss    decimal.Decimal  `json:"stop_loss,omitempty"`
	TakeProfit  decimal.Decimal  `json:"take_profit,omitempty"`
	SizeMode    SizeMode         `json:"size_mode,omitempty"`
	SizeValue   decimal.Decimal  `json:"size_value,omitempty"`
	Comment     string           `json:"comment,omitempty"`
}
