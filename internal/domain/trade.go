package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an executed fill recorded by the broker adapter.
type Trade struct {
	ID         int64
	OrderID    int64
	SymbolID   int64
	Side       OrderSide
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Fee        decimal.Decimal
	TradeType  string // "FILL"
	ExecutedAt time.Time
}
