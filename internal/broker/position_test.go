package broker

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestApplyFill_OpensFreshPosition(t *testing.T) {
	pos := ApplyFill(nil, domain.OrderSideBuy, d("10"), d("100"), 1, 42)
	assert.Equal(t, domain.DirectionLong, pos.Direction)
	assert.True(t, pos.Quantity.Equal(d("10")))
	assert.True(t, pos.AvgPrice.Equal(d("100")))
}

func TestApplyFill_SameDirectionAveragesUp(t *testing.T) {
	existing := &domain.Position{Direction: domain.DirectionLong, Quantity: d("10"), AvgPrice: d("100")}
	pos := ApplyFill(existing, domain.OrderSideBuy, d("10"), d("120"), 1, 42)
	// new_avg = (100*10 + 120*10) / 20 = 110
	assert.True(t, pos.AvgPrice.Equal(d("110")), "got %s", pos.AvgPrice)
	assert.True(t, pos.Quantity.Equal(d("20")))
}

func TestApplyFill_OppositeDirectionPartialCloseRealizesPnL(t *testing.T) {
	existing := &domain.Position{Direction: domain.DirectionLong, Quantity: d("10"), AvgPrice: d("100"), RealizedPnL: d("0")}
	pos := ApplyFill(existing, domain.OrderSideSell, d("4"), d("110"), 1, 42)
	// realized = (110-100)*4 = 40
	assert.True(t, pos.RealizedPnL.Equal(d("40")), "got %s", pos.RealizedPnL)
	assert.True(t, pos.Quantity.Equal(d("6")))
	assert.Equal(t, domain.DirectionLong, pos.Direction)
}

func TestApplyFill_OppositeDirectionFullCloseGoesFlat(t *testing.T) {
	existing := &domain.Position{Direction: domain.DirectionLong, Quantity: d("10"), AvgPrice: d("100")}
	pos := ApplyFill(existing, domain.OrderSideSell, d("10"), d("90"), 1, 42)
	assert.Equal(t, domain.DirectionFlat, pos.Direction)
	assert.True(t, pos.Quantity.IsZero())
	assert.True(t, pos.AvgPrice.IsZero())
	// realized = (90-100)*10 = -100
	assert.True(t, pos.RealizedPnL.Equal(d("-100")), "got %s", pos.RealizedPnL)
}

func TestApplyFill_ShortPositionRealizesOnBuyToCover(t *testing.T) {
	existing := &domain.Position{Direction: domain.DirectionShort, Quantity: d("10"), AvgPrice: d("100")}
	pos := ApplyFill(existing, domain.OrderSideBuy, d("10"), d("90"), 1, 42)
	// realized = (100-90)*10 = 100
	assert.True(t, pos.RealizedPnL.Equal(d("100")), "got %s", pos.RealizedPnL)
	assert.Equal(t, domain.DirectionFlat, pos.Direction)
}

func TestApplyFill_ReopensFromFlat(t *testing.T) {
	existing := &domain.Position{ID: 7, Direction: domain.DirectionFlat, Quantity: d("0"), RealizedPnL: d("50")}
	pos := ApplyFill(existing, domain.OrderSideSell, d("5"), d("200"), 1, 42)
	assert.Equal(t, domain.DirectionShort, pos.Direction)
	assert.True(t, pos.Quantity.Equal(d("5")))
	assert.True(t, pos.AvgPrice.Equal(d("200")))
	assert.Equal(t, int64(7), pos.ID, "reopening should keep the same position row")
	assert.True(t, pos.RealizedPnL.Equal(d("50")), "cumulative realized PnL should survive a flat reopen")
}
