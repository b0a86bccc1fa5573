package strategies

import "github.com/shopspring/decimal"

// decimalFromFloat builds a decimal.Decimal from a float64 literal or
// computed ratio, used where strategies express percentages and multipliers
// the original backtests wrote as plain floats.
func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// paramFloat reads a float64 parameter from a strategy_universe's params_json
// map, falling back to def when absent or of an unexpected type.
func paramFloat(params map[string]any, key string, def float64) float64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return def
	}
}

// paramInt reads an int parameter from a strategy_universe's params_json map,
// falling back to def when absent or of an unexpected type.
func paramInt(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return def
	}
}
