package strategies

import "github.com/anatolysokolov293-max/stock-pg/internal/domain"

// SMATrend1 opens LONG when the fast SMA crosses above the slow SMA and
// closes on the reverse cross. Ported from sma_trend1_live.py; sizing is left
// to the risk engine via RISK_FRACTION.
type SMATrend1 struct {
	FastPeriod int
	SlowPeriod int
	SLPct      float64
	TPPct      float64
}

// NewSMATrend1 satisfies domain.StrategyFactory.
func NewSMATrend1(params map[string]any) (domain.Strategy, error) {
	return SMATrend1{
		FastPeriod: paramInt(params, "fast_period", 20),
		SlowPeriod: paramInt(params, "slow_period", 100),
		SLPct:      paramFloat(params, "sl_pct", 2.0),
		TPPct:      paramFloat(params, "tp_pct", 4.0),
	}, nil
}

func (s SMATrend1) OnBar(ctx *domain.StrategyContext) (*domain.SignalPayload, error) {
	price := ctx.Bar.Close
	cl := closes(ctx.History, ctx.Bar)

	fastPrev, okFP := sma(cl[:len(cl)-1], s.FastPeriod)
	slowPrev, okSP := sma(cl[:len(cl)-1], s.SlowPeriod)
	fastCur, okFC := sma(cl, s.FastPeriod)
	slowCur, okSC := sma(cl, s.SlowPeriod)
	if !okFP || !okSP || !okFC || !okSC {
		return nil, nil
	}

	hasLong := ctx.Position != nil && ctx.Position.Direction == domain.DirectionLong && ctx.Position.Quantity.Sign() > 0

	if hasLong && fastPrev > slowPrev && fastCur <= slowCur {
		return &domain.SignalPayload{
			Type:    domain.SignalTypeClose,
			Comment: "sma_trend1_live: close on fast<slow",
		}, nil
	}

	if hasLong || len(ctx.Orders) > 0 {
		return nil, nil
	}

	if fastPrev < slowPrev && fastCur >= slowCur {
		priceF := price.InexactFloat64()
		slPrice := decimalFromFloat(priceF * (1.0 - s.SLPct/100.0))
		tpPrice := decimalFromFloat(priceF * (1.0 + s.TPPct/100.0))

		return &domain.SignalPayload{
			Type:       domain.SignalTypeOpen,
			Direction:  domain.DirectionLong,
			EntryType:  domain.EntryTypeMarket,
			EntryPrice: price,
			StopLoss:   slPrice,
			TakeProfit: tpPrice,
			SizeMode:   domain.SizeModeRiskFraction,
			SizeValue:  decimalFromFloat(ctx.RiskPerTrade),
			Comment:    "sma_trend1_live: open long on fast>slow",
		}, nil
	}

	return nil, nil
}
