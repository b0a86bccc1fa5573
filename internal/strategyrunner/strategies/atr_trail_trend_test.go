package strategies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

func flatHistory(n int, price float64) []domain.AggregatedCandle {
	out := make([]domain.AggregatedCandle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, candle(price, price+1, price-1, price, 10))
	}
	return out
}

func TestATRTrailTrend_OpensLongAboveTrendMA(t *testing.T) {
	s := ATRTrailTrend{TrendMAPeriod: 5, ATRPeriod: 3, ATRMult: 2.0}
	history := flatHistory(10, 100)
	ctx := &domain.StrategyContext{
		History:      history,
		Bar:          candle(110, 112, 109, 111, 10),
		RiskPerTrade: 1.0,
	}

	sig, err := s.OnBar(ctx)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, domain.SignalTypeOpen, sig.Type)
	assert.Equal(t, domain.DirectionLong, sig.Direction)
}

func TestATRTrailTrend_ClosesLongOnTrendReversal(t *testing.T) {
	s := ATRTrailTrend{TrendMAPeriod: 5, ATRPeriod: 3, ATRMult: 2.0}
	history := flatHistory(10, 100)
	ctx := &domain.StrategyContext{
		History: history,
		Bar:     candle(80, 82, 79, 80, 10), // price now below the trend MA
		Position: &domain.PositionInfo{
			Direction: domain.DirectionLong,
			Quantity:  oneUnit(),
		},
	}

	sig, err := s.OnBar(ctx)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, domain.SignalTypeClose, sig.Type)
}

func TestATRTrailTrend_NoSignalWithoutEnoughHistory(t *testing.T) {
	s := ATRTrailTrend{TrendMAPeriod: 100, ATRPeriod: 14, ATRMult: 3.0}
	ctx := &domain.StrategyContext{Bar: candle(10, 11, 9, 10, 1)}

	sig, err := s.OnBar(ctx)
	require.NoError(t, err)
	assert.Nil(t, sig)
}
