package strategies

import "github.com/anatolysokolov293-max/stock-pg/internal/domain"

// ATRTrailTrend trades the sign of price relative to a trend moving average,
// sizing its stop from ATR. The original backtest strategy pins a trailing
// stop that tightens on every bar; a live on_bar call is stateless, so this
// adaptation substitutes a trend-MA-reversal exit recomputed fresh each
// bar — the position closes as soon as price crosses back through the trend
// MA instead of through a remembered trailing level. Ported from
// atr_trail_trend.py.
type ATRTrailTrend struct {
	TrendMAPeriod int
	ATRPeriod     int
	ATRMult       float64
}

// NewATRTrailTrend satisfies domain.StrategyFactory.
func NewATRTrailTrend(params map[string]any) (domain.Strategy, error) {
	return ATRTrailTrend{
		TrendMAPeriod: paramInt(params, "trend_ma_period", 100),
		ATRPeriod:     paramInt(params, "atr_period", 14),
		ATRMult:       paramFloat(params, "atr_mult", 3.0),
	}, nil
}

func (s ATRTrailTrend) OnBar(ctx *domain.StrategyContext) (*domain.SignalPayload, error) {
	price := ctx.Bar.Close
	priceF := price.InexactFloat64()

	highs, lows, cl, _ := highsLowsCloses(ctx.History, ctx.Bar)
	trendMA, okMA := sma(cl, s.TrendMAPeriod)
	atrVal, okATR := atr(highs, lows, cl, s.ATRPeriod)
	if !okMA || !okATR {
		return nil, nil
	}

	upTrend := priceF > trendMA
	downTrend := priceF < trendMA

	if ctx.Position != nil && ctx.Position.Direction != domain.DirectionFlat && ctx.Position.Quantity.Sign() > 0 {
		switch ctx.Position.Direction {
		case domain.DirectionLong:
			if !upTrend {
				return &domain.SignalPayload{Type: domain.SignalTypeClose, Comment: "atr_trail_trend: close long on trend reversal"}, nil
			}
		case domain.DirectionShort:
			if !downTrend {
				return &domain.SignalPayload{Type: domain.SignalTypeClose, Comment: "atr_trail_trend: close short on trend reversal"}, nil
			}
		}
		return nil, nil
	}

	if len(ctx.Orders) > 0 {
		return nil, nil
	}

	switch {
	case upTrend:
		slPrice := decimalFromFloat(priceF - s.ATRMult*atrVal)
		return &domain.SignalPayload{
			Type:       domain.SignalTypeOpen,
			Direction:  domain.DirectionLong,
			EntryType:  domain.EntryTypeMarket,
			EntryPrice: price,
			StopLoss:   slPrice,
			SizeMode:   domain.SizeModeRiskFraction,
			SizeValue:  decimalFromFloat(ctx.RiskPerTrade),
			Comment:    "atr_trail_trend: open long, price above trend ma",
		}, nil
	case downTrend:
		slPrice := decimalFromFloat(priceF + s.ATRMult*atrVal)
		return &domain.SignalPayload{
			Type:       domain.SignalTypeOpen,
			Direction:  domain.DirectionShort,
			EntryType:  domain.EntryTypeMarket,
			EntryPrice: price,
			StopLoss:   slPrice,
			SizeMode:   domain.SizeModeRiskFraction,
			SizeValue:  decimalFromFloat(ctx.RiskPerTrade),
			Comment:    "atr_trail_trend: open short, price below trend ma",
		}, nil
	}

	return nil, nil
}
