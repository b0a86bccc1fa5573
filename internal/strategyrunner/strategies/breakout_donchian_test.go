package strategies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

func channelHistory(n int) []domain.AggregatedCandle {
	out := make([]domain.AggregatedCandle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, candle(100, 105, 95, 100, 10))
	}
	return out
}

func TestBreakoutDonchian_OpensLongOnUpsideBreakout(t *testing.T) {
	s := BreakoutDonchian{ChannelPeriod: 5, SLPct: 2, TPPct: 4}
	ctx := &domain.StrategyContext{
		History:      channelHistory(10),
		Bar:          candle(106, 110, 105, 108, 10), // closes above the 105 channel high
		RiskPerTrade: 1.0,
	}

	sig, err := s.OnBar(ctx)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, domain.SignalTypeOpen, sig.Type)
	assert.Equal(t, domain.DirectionLong, sig.Direction)
}

func TestBreakoutDonchian_ClosesLongOnFixedTakeProfit(t *testing.T) {
	s := BreakoutDonchian{ChannelPeriod: 5, SLPct: 2, TPPct: 4}
	ctx := &domain.StrategyContext{
		History: channelHistory(10),
		Bar:     candle(104, 105, 103, 104, 10),
		Position: &domain.PositionInfo{
			Direction: domain.DirectionLong,
			Quantity:  oneUnit(),
			AvgPrice:  decFromFloat(100),
		},
	}

	sig, err := s.OnBar(ctx)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, domain.SignalTypeClose, sig.Type)
}
