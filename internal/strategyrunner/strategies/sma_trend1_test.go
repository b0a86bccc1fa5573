package strategies

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

func risingHistory(n int, start float64) []domain.AggregatedCandle {
	out := make([]domain.AggregatedCandle, 0, n)
	for i := 0; i < n; i++ {
		v := start + float64(i)
		out = append(out, candle(v, v+1, v-1, v, 10))
	}
	return out
}

func TestSMATrend1_NoSignalWithoutEnoughHistory(t *testing.T) {
	s := SMATrend1{FastPeriod: 3, SlowPeriod: 5, SLPct: 2, TPPct: 4}
	ctx := &domain.StrategyContext{
		History: risingHistory(3, 1),
		Bar:     candle(4, 5, 3, 4, 10),
	}

	sig, err := s.OnBar(ctx)
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestSMATrend1_OpensLongOnGoldenCross(t *testing.T) {
	s := SMATrend1{FastPeriod: 2, SlowPeriod: 4, SLPct: 2, TPPct: 4}
	// closes: 10,9,8,7 then bar=20 -> fast(2)=(7+20)/2=13.5 slow(4)=(9+8+7+20)/4=11
	// prev fast(2)=(8+7)/2=7.5 prev slow(4)=(10+9+8+7)/4=8.5 -> crosses up
	history := []domain.AggregatedCandle{
		candle(10, 10, 10, 10, 1),
		candle(9, 9, 9, 9, 1),
		candle(8, 8, 8, 8, 1),
		candle(7, 7, 7, 7, 1),
	}
	ctx := &domain.StrategyContext{
		History:      history,
		Bar:          candle(20, 20, 20, 20, 1),
		RiskPerTrade: 1.0,
	}

	sig, err := s.OnBar(ctx)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, domain.SignalTypeOpen, sig.Type)
	assert.Equal(t, domain.DirectionLong, sig.Direction)
}

func TestSMATrend1_ClosesOnDeadCrossWhileLong(t *testing.T) {
	s := SMATrend1{FastPeriod: 2, SlowPeriod: 4, SLPct: 2, TPPct: 4}
	// closes 5,6,7,8 then a drop to 1: fast(2) falls from 7.5 to 4.5 while
	// slow(4) only falls from 6.5 to 5.5, crossing fast below slow.
	history := []domain.AggregatedCandle{
		candle(5, 5, 5, 5, 1),
		candle(6, 6, 6, 6, 1),
		candle(7, 7, 7, 7, 1),
		candle(8, 8, 8, 8, 1),
	}
	ctx := &domain.StrategyContext{
		History: history,
		Bar:     candle(1, 1, 1, 1, 1),
		Position: &domain.PositionInfo{
			Direction: domain.DirectionLong,
			Quantity:  decimal.NewFromInt(1),
		},
	}

	sig, err := s.OnBar(ctx)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, domain.SignalTypeClose, sig.Type)
}
