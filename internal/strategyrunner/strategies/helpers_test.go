package strategies

import "github.com/shopspring/decimal"

func oneUnit() decimal.Decimal {
	return decimal.NewFromInt(1)
}

func decFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
