package strategies

import "github.com/anatolysokolov293-max/stock-pg/internal/domain"

// BollMFIReversal fades Bollinger band extremes confirmed by Money Flow
// Index, exiting back at the midline. Fully stateless already. Ported from
// boll_mfi_reversal.py.
type BollMFIReversal struct {
	BollPeriod  int
	BollStdMult float64
	MFIPeriod   int
	MFILow      float64
	MFIHigh     float64
	SLPct       float64
	TPPct       float64
}

// NewBollMFIReversal satisfies domain.StrategyFactory.
func NewBollMFIReversal(params map[string]any) (domain.Strategy, error) {
	return BollMFIReversal{
		BollPeriod:  paramInt(params, "boll_period", 20),
		BollStdMult: paramFloat(params, "boll_std_mult", 2.0),
		MFIPeriod:   paramInt(params, "mfi_period", 14),
		MFILow:      paramFloat(params, "mfi_low", 20),
		MFIHigh:     paramFloat(params, "mfi_high", 80),
		SLPct:       paramFloat(params, "sl_pct", 1.5),
		TPPct:       paramFloat(params, "tp_pct", 3.0),
	}, nil
}

func (s BollMFIReversal) OnBar(ctx *domain.StrategyContext) (*domain.SignalPayload, error) {
	price := ctx.Bar.Close
	priceF := price.InexactFloat64()

	highs, lows, cl, vol := highsLowsCloses(ctx.History, ctx.Bar)
	mid, upper, lower, okBoll := bollinger(cl, s.BollPeriod, s.BollStdMult)
	mfiVal, okMFI := mfi(highs, lows, cl, vol, s.MFIPeriod)
	if !okBoll || !okMFI {
		return nil, nil
	}

	if ctx.Position != nil && ctx.Position.Direction != domain.DirectionFlat && ctx.Position.Quantity.Sign() > 0 {
		switch ctx.Position.Direction {
		case domain.DirectionLong:
			if priceF >= mid {
				return &domain.SignalPayload{Type: domain.SignalTypeClose, Comment: "boll_mfi_reversal: long exit at midline"}, nil
			}
		case domain.DirectionShort:
			if priceF <= mid {
				return &domain.SignalPayload{Type: domain.SignalTypeClose, Comment: "boll_mfi_reversal: short exit at midline"}, nil
			}
		}
		return nil, nil
	}

	if len(ctx.Orders) > 0 {
		return nil, nil
	}

	switch {
	case priceF <= lower && mfiVal <= s.MFILow:
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
			Comment:    "boll_mfi_reversal: long reversal at lower band",
		}, nil
	case priceF >= upper && mfiVal >= s.MFIHigh:
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
			Comment:    "boll_mfi_reversal: short reversal at upper band",
		}, nil
	}

	return nil, nil
}
