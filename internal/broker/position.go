// Package broker implements the simulated fill engine: it prices NEW orders
// off the latest closed 1-minute candle, applies a flat fee, mutates the
// owning strategy's position, and updates the account's cash/equity.
package broker

import (
	"github.com/shopspring/decimal"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

// ApplyFill runs the position state machine for one fill: weighted-average
// growth on a same-direction fill, realized-PnL plus partial/ full close on
// an opposite-direction fill, auto-flattening to FLAT when quantity nets to
// zero, and reopening in the new direction from FLAT.
//
// existing may be nil (no prior row): the position is opened fresh.
func ApplyFill(existing *domain.Position, side domain.OrderSide, quantity, price decimal.Decimal, strategyUniverseID, symbolID int64) domain.Position {
	if existing == nil || existing.Direction == "" || existing.Direction == domain.DirectionFlat {
		direction := domain.DirectionLong
		if side == domain.OrderSideSell {
			direction = domain.DirectionShort
		}
		return domain.Position{
			ID:                 positionID(existing),
			StrategyUniverseID: strategyUniverseID,
			SymbolID:           symbolID,
			Direction:          direction,
			Quantity:           quantity,
			AvgPrice:           price,
			LastPrice:          price,
			RealizedPnL:        decimalOrZero(existing),
			UnrealizedPnL:      decimal.Zero,
			GapMode:            false,
		}
	}

	pos := *existing
	pos.LastPrice = price

	sameDirection := (pos.Direction == domain.DirectionLong && side == domain.OrderSideBuy) ||
		(pos.Direction == domain.DirectionShort && side == domain.OrderSideSell)

	if sameDirection {
		newQty := pos.Quantity.Add(quantity)
		pos.AvgPrice = pos.AvgPrice.Mul(pos.Quantity).Add(price.Mul(quantity)).Div(newQty)
		pos.Quantity = newQty
		return pos
	}

	// Opposite-direction fill: closes up to the current quantity and
	// realizes PnL on the closed portion.
	closeQty := decimal.Min(pos.Quantity, quantity)
	if pos.Direction == domain.DirectionLong {
		pos.RealizedPnL = pos.RealizedPnL.Add(price.Sub(pos.AvgPrice).Mul(closeQty))
	} else {
		pos.RealizedPnL = pos.RealizedPnL.Add(pos.AvgPrice.Sub(price).Mul(closeQty))
	}
	pos.Quantity = pos.Quantity.Sub(closeQty)

	if pos.Quantity.IsZero() {
		pos.Direction = domain.DirectionFlat
		pos.AvgPrice = decimal.Zero
	}
	return pos
}

func positionID(existing *domain.Position) int64 {
	if existing == nil {
		return 0
	}
	return existing.ID
}

func decimalOrZero(existing *domain.Position) decimal.Decimal {
	if existing == nil {
		return decimal.Zero
	}
	return existing.RealizedPnL
}
