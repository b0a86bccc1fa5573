package strategies

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

func candle(o, h, l, c, v float64) domain.AggregatedCandle {
	return domain.AggregatedCandle{
		Open:   decimal.NewFromFloat(o),
		High:   decimal.NewFromFloat(h),
		Low:    decimal.NewFromFloat(l),
		Close:  decimal.NewFromFloat(c),
		Volume: decimal.NewFromFloat(v),
	}
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	got, ok := sma(values, 3)
	assert.True(t, ok)
	assert.InDelta(t, 4.0, got, 1e-9) // (3+4+5)/3

	_, ok = sma(values, 10)
	assert.False(t, ok)
}

func TestEMASeries_SeededWithFirstValue(t *testing.T) {
	out := emaSeries([]float64{10, 20, 30}, 2)
	assert.Equal(t, 10.0, out[0])
	// alpha = 2/3: 10 + 2/3*(20-10) = 16.666...
	assert.InDelta(t, 16.6666667, out[1], 1e-6)
}

func TestRSISeries_InsufficientHistory(t *testing.T) {
	out := rsiSeries([]float64{1, 2, 3}, 14)
	for _, v := range out {
		assert.Zero(t, v)
	}
}

func TestRSISeries_AllGainsIsMax(t *testing.T) {
	values := make([]float64, 0, 15)
	for i := 0; i < 15; i++ {
		values = append(values, float64(i))
	}
	out := rsiSeries(values, 14)
	assert.InDelta(t, 100.0, out[len(out)-1], 1e-3)
}

func TestDonchian(t *testing.T) {
	highs := []float64{10, 12, 11, 15, 9}
	lows := []float64{8, 9, 7, 10, 6}
	upper, lower, ok := donchian(highs, lows, 3)
	assert.True(t, ok)
	assert.Equal(t, 15.0, upper)
	assert.Equal(t, 6.0, lower)
}

func TestBollinger(t *testing.T) {
	values := []float64{10, 10, 10, 10, 10}
	mid, upper, lower, ok := bollinger(values, 5, 2.0)
	assert.True(t, ok)
	assert.Equal(t, 10.0, mid)
	assert.Equal(t, 10.0, upper) // zero variance collapses bands to the mean
	assert.Equal(t, 10.0, lower)
}

func TestATR_NotEnoughHistory(t *testing.T) {
	_, ok := atr([]float64{1, 2}, []float64{0, 1}, []float64{1, 2}, 14)
	assert.False(t, ok)
}

func TestMFI_AllPositiveFlow(t *testing.T) {
	highs := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	lows := highs
	closes := highs
	vols := make([]float64, len(highs))
	for i := range vols {
		vols[i] = 100
	}
	got, ok := mfi(highs, lows, closes, vols, 14)
	assert.True(t, ok)
	assert.InDelta(t, 100.0, got, 1e-3)
}

func TestCloses_AppendsCurrentBar(t *testing.T) {
	history := []domain.AggregatedCandle{candle(1, 2, 0, 1.5, 10)}
	bar := candle(1.5, 3, 1, 2.5, 20)
	out := closes(history, bar)
	assert.Equal(t, []float64{1.5, 2.5}, out)
}
