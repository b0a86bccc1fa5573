package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the direction of an order at the broker.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderStatus tracks an order's lifecycle through the broker adapter.
type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "NEW"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusRejected OrderStatus = "REJECTED"
)

// Order is a row in live_orders, admitted by the risk engine and awaiting
// (or having received) a fill from the broker adapter.
type Order struct {
	ID                 int64
	StrategyUniverseID int64
	SymbolID           int64
	Side               OrderSide
	Type               EntryType
	Quantity           decimal.Decimal
	Price              decimal.Decimal // zero/invalid for MARKET orders
	Status             OrderStatus
	BrokerOrderID       string
	CreatedAt          time.Time
	FilledAt           *time.Time
	RejectedAt         *time.Time
}

// IsTerminal reports whether this order can no longer transition.
func (o Order) IsTerminal() bool {
	return o.Status == OrderStatusFilled || o.Status == OrderStatusRejected
}
