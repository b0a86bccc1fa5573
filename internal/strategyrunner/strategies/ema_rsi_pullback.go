package strategies

import "github.com/anatolysokolov293-max/stock-pg/internal/domain"

// EMARSIPullback trades mean-reversion pullbacks against an EMA trend
// filter, confirmed by RSI extremes. Fully stateless already: every exit and
// entry condition is re-evaluated from the current bar and EMA/RSI values.
// Ported from ema_rsi_pullback.py.
type EMARSIPullback struct {
	EMAPeriod     int
	RSIPeriod     int
	RSIOversold   float64
	RSIOverbought float64
	SLPct         float64
	TPPct         float64
}

// NewEMARSIPullback satisfies domain.StrategyFactory.
func NewEMARSIPullback(params map[string]any) (domain.Strategy, error) {
	return EMARSIPullback{
		EMAPeriod:     paramInt(params, "ema_period", 50),
		RSIPeriod:     paramInt(params, "rsi_period", 14),
		RSIOversold:   paramFloat(params, "rsi_oversold", 30),
		RSIOverbought: paramFloat(params, "rsi_overbought", 70),
		SLPct:         paramFloat(params, "sl_pct", 1.5),
		TPPct:         paramFloat(params, "tp_pct", 3.0),
	}, nil
}

func (s EMARSIPullback) OnBar(ctx *domain.StrategyContext) (*domain.SignalPayload, error) {
	price := ctx.Bar.Close
	priceF := price.InexactFloat64()
	cl := closes(ctx.History, ctx.Bar)

	if len(cl) < s.EMAPeriod || len(cl) < s.RSIPeriod+1 {
		return nil, nil
	}
	emaVal := emaSeries(cl, s.EMAPeriod)[len(cl)-1]
	rsiVal := rsiSeries(cl, s.RSIPeriod)[len(cl)-1]

	if ctx.Position != nil && ctx.Position.Direction != domain.DirectionFlat && ctx.Position.Quantity.Sign() > 0 {
		switch ctx.Position.Direction {
		case domain.DirectionLong:
			if priceF > emaVal && rsiVal > s.RSIOverbought {
				return &domain.SignalPayload{Type: domain.SignalTypeClose, Comment: "ema_rsi_pullback: long exit overbought"}, nil
			}
		case domain.DirectionShort:
			if priceF < emaVal && rsiVal < s.RSIOversold {
				return &domain.SignalPayload{Type: domain.SignalTypeClose, Comment: "ema_rsi_pullback: short exit oversold"}, nil
			}
		}
		return nil, nil
	}

	if len(ctx.Orders) > 0 {
		return nil, nil
	}

	switch {
	case priceF <= emaVal && rsiVal <= s.RSIOversold:
		sl := decimalFromFloat(priceF * (1 - s.SLPct/100.0))
		tp := decimalFromFloat(priceF * (1 + s.TPPct/100.0))
		return &domain.SignalPayload{
			Type:       domain.SignalTypeOpen,
			Direction:  domain.DirectionLong,
			EntryType:  domain.EntryTypeMarket,
			EntryPrice: price,
			StopLoss:   sl,
			TakeProfit: tp,
			SizeMode:   domain.SizeModeRiskFraction,
			SizeValue:  decimalFromFloat(ctx.RiskPerTrade),
			Comment:    "ema_rsi_pullback: long pullback entry",
		}, nil
	case priceF >= emaVal && rsiVal >= s.RSIOverbought:
		sl := decimalFromFloat(priceF * (1 + s.SLPct/100.0))
		tp := decimalFromFloat(priceF * (1 - s.TPPct/100.0))
		return &domain.SignalPayload{
			Type:       domain.SignalTypeOpen,
			Direction:  domain.DirectionShort,
			EntryType:  domain.EntryTypeMarket,
			EntryPrice: price,
			StopLoss:   sl,
			TakeProfit: tp,
			SizeMode:   domain.SizeModeRiskFraction,
			SizeValue:  decimalFromFloat(ctx.RiskPerTrade),
			Comment:    "ema_rsi_pullback: short pullback entry",
		}, nil
	}

	return nil, nil
}
