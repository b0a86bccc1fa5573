package domain

import "github.com/shopspring/decimal"

// AccountState is the single-row (id=1) account snapshot the broker adapter
// maintains: free cash available for new orders, equity as free cash plus
// used margin (margin tracking is a rough placeholder, per the broker
// adapter's simulated fill model).
type AccountState struct {
	ID         int64
	Equity     decimal.Decimal
	FreeCash   decimal.Decimal
	UsedMargin decimal.Decimal
}
