package strategies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

func TestAlwaysLong_OpensWhenFlat(t *testing.T) {
	s := AlwaysLong{}
	ctx := &domain.StrategyContext{Bar: candle(100, 101, 99, 100, 10)}

	sig, err := s.OnBar(ctx)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, domain.SignalTypeOpen, sig.Type)
	assert.Equal(t, domain.DirectionLong, sig.Direction)
	assert.True(t, sig.StopLoss.LessThan(sig.EntryPrice))
	assert.True(t, sig.TakeProfit.GreaterThan(sig.EntryPrice))
}

func TestAlwaysLong_NoSignalWhenAlreadyLong(t *testing.T) {
	s := AlwaysLong{}
	ctx := &domain.StrategyContext{
		Bar:      candle(100, 101, 99, 100, 10),
		Position: &domain.PositionInfo{Direction: domain.DirectionLong},
	}

	sig, err := s.OnBar(ctx)
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestAlwaysLong_NoSignalWithOutstandingOrders(t *testing.T) {
	s := AlwaysLong{}
	ctx := &domain.StrategyContext{
		Bar:    candle(100, 101, 99, 100, 10),
		Orders: []domain.OrderInfo{{ID: 1}},
	}

	sig, err := s.OnBar(ctx)
	require.NoError(t, err)
	assert.Nil(t, sig)
}
