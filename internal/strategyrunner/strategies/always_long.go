package strategies

import "github.com/anatolysokolov293-max/stock-pg/internal/domain"

// AlwaysLong is the smoke-test strategy: it opens LONG at market whenever it
// is flat with no outstanding orders, with a fixed 2% stop and 4% target.
// Ported from test_always_long.py, used to exercise the pipeline end to end.
type AlwaysLong struct{}

// NewAlwaysLong satisfies domain.StrategyFactory.
func NewAlwaysLong(params map[string]any) (domain.Strategy, error) {
	return AlwaysLong{}, nil
}

func (AlwaysLong) OnBar(ctx *domain.StrategyContext) (*domain.SignalPayload, error) {
	if ctx.Position != nil && ctx.Position.Direction == domain.DirectionLong {
		return nil, nil
	}
	if len(ctx.Orders) > 0 {
		return nil, nil
	}

	price := ctx.Bar.Close
	slPrice := price.Mul(decimalFromFloat(0.98))
	tpPrice := price.Mul(decimalFromFloat(1.04))

	return &domain.SignalPayload{
		Type:       domain.SignalTypeOpen,
		Direction:  domain.DirectionLong,
		EntryType:  domain.EntryTypeMarket,
		EntryPrice: price,
		StopLoss:   slPrice,
		TakeProfit: tpPrice,
		SizeMode:   domain.SizeModeRiskFraction,
		SizeValue:  decimalFromFloat(1.0),
		Comment:    "test_always_long",
	}, nil
}
