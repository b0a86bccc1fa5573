package strategies

import "github.com/anatolysokolov293-max/stock-pg/internal/domain"

// BreakoutDonchian enters on a Donchian channel breakout and exits at a
// fixed stop/target distance from its entry. The original backtest
// strategy's trailing-stop variant keeps per-bar mutable state; this port
// implements only its non-trailing fixed-SL/TP mode, which fits the
// stateless on_bar contract directly: the exit levels are recomputed every
// bar from the position's persisted AvgPrice rather than from any
// remembered trailing value. Ported from breakout_donchian.py.
type BreakoutDonchian struct {
	ChannelPeriod int
	SLPct         float64
	TPPct         float64
}

// NewBreakoutDonchian satisfies domain.StrategyFactory.
func NewBreakoutDonchian(params map[string]any) (domain.Strategy, error) {
	return BreakoutDonchian{
		ChannelPeriod: paramInt(params, "channel_period", 55),
		SLPct:         paramFloat(params, "sl_pct", 2.0),
		TPPct:         paramFloat(params, "tp_pct", 4.0),
	}, nil
}

func (s BreakoutDonchian) OnBar(ctx *domain.StrategyContext) (*domain.SignalPayload, error) {
	price := ctx.Bar.Close
	priceF := price.InexactFloat64()

	highs, lows := highsLows(ctx.History)
	upper, lower, ok := donchian(highs, lows, s.ChannelPeriod)
	if !ok {
		return nil, nil
	}

	if ctx.Position != nil && ctx.Position.Direction != domain.DirectionFlat && ctx.Position.Quantity.Sign() > 0 {
		avg := ctx.Position.AvgPrice.InexactFloat64()
		switch ctx.Position.Direction {
		case domain.DirectionLong:
			tp := avg * (1 + s.TPPct/100.0)
			sl := avg * (1 - s.SLPct/100.0)
			if priceF >= tp || priceF <= sl {
				return &domain.SignalPayload{Type: domain.SignalTypeClose, Comment: "breakout_donchian: fixed sl/tp hit"}, nil
			}
		case domain.DirectionShort:
			tp := avg * (1 - s.TPPct/100.0)
			sl := avg * (1 + s.SLPct/100.0)
			if priceF <= tp || priceF >= sl {
				return &domain.SignalPayload{Type: domain.SignalTypeClose, Comment: "breakout_donchian: fixed sl/tp hit"}, nil
			}
		}
		return nil, nil
	}

	if len(ctx.Orders) > 0 {
		return nil, nil
	}

	switch {
	case priceF > upper:
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
			Comment:    "breakout_donchian: long breakout above channel",
		}, nil
	case priceF < lower:
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
			Comment:    "breakout_donchian: short breakout below channel",
		}, nil
	}

	return nil, nil
}
