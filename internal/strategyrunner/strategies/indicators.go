// Package strategies holds the built-in live strategy adapters: stateless
// ports of the original backtest strategies that derive every decision from
// the StrategyContext a single on_bar call receives.
package strategies

import (
	"math"

	"github.com/anatolysokolov293-max/stock-pg/internal/domain"
)

// closes extracts Close prices (oldest first) from history plus the
// just-closed bar.
func closes(history []domain.AggregatedCandle, bar domain.AggregatedCandle) []float64 {
	out := make([]float64, 0, len(history)+1)
	for _, c := range history {
		out = append(out, c.Close.InexactFloat64())
	}
	out = append(out, bar.Close.InexactFloat64())
	return out
}

// highsLows extracts High/Low series from history only, not including the
// just-closed bar: used for channel indicators where the breakout is judged
// against the range of preceding bars.
func highsLows(history []domain.AggregatedCandle) (highs, lows []float64) {
	highs = make([]float64, 0, len(history))
	lows = make([]float64, 0, len(history))
	for _, c := range history {
		highs = append(highs, c.High.InexactFloat64())
		lows = append(lows, c.Low.InexactFloat64())
	}
	return
}

func highsLowsCloses(history []domain.AggregatedCandle, bar domain.AggregatedCandle) (highs, lows, cl, vol []float64) {
	n := len(history) + 1
	highs = make([]float64, 0, n)
	lows = make([]float64, 0, n)
	cl = make([]float64, 0, n)
	vol = make([]float64, 0, n)
	for _, c := range history {
		highs = append(highs, c.High.InexactFloat64())
		lows = append(lows, c.Low.InexactFloat64())
		cl = append(cl, c.Close.InexactFloat64())
		vol = append(vol, c.Volume.InexactFloat64())
	}
	highs = append(highs, bar.High.InexactFloat64())
	lows = append(lows, bar.Low.InexactFloat64())
	cl = append(cl, bar.Close.InexactFloat64())
	vol = append(vol, bar.Volume.InexactFloat64())
	return
}

// sma computes the simple moving average of the last `period` values in
// values, or (0, false) when there isn't enough history yet.
func sma(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

// emaSeries computes an exponential moving average series over values with
// the standard span-based smoothing factor alpha = 2/(span+1), seeded with
// the first value (matching pandas' adjust=False convention).
func emaSeries(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// rsiSeries computes Wilder-style RSI over values using a simple rolling
// average of gains/losses, matching the original's pandas rolling-mean
// approximation (not the exponential Wilder smoothing).
func rsiSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) < period+1 {
		return out
	}
	gains := make([]float64, len(values))
	losses := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}
	for i := period; i < len(values); i++ {
		avgGain := meanOf(gains[i-period+1 : i+1])
		avgLoss := meanOf(losses[i-period+1 : i+1])
		if avgLoss == 0 {
			avgLoss = 1e-8
		}
		rs := avgGain / avgLoss
		out[i] = 100 - (100 / (1 + rs))
	}
	return out
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// atr computes the Average True Range over the last `period`+1 bars using a
// simple rolling mean of true range, matching the original's pandas
// implementation.
func atr(highs, lows, closes []float64, period int) (float64, bool) {
	n := len(closes)
	if n < period+1 {
		return 0, false
	}
	trs := make([]float64, 0, period)
	for i := n - period; i < n; i++ {
		tr := highs[i] - lows[i]
		if i > 0 {
			hc := math.Abs(highs[i] - closes[i-1])
			lc := math.Abs(lows[i] - closes[i-1])
			if hc > tr {
				tr = hc
			}
			if lc > tr {
				tr = lc
			}
		}
		trs = append(trs, tr)
	}
	return meanOf(trs), true
}

// donchian computes the rolling high/low channel over the last `period`
// bars.
func donchian(highs, lows []float64, period int) (upper, lower float64, ok bool) {
	n := len(highs)
	if n < period {
		return 0, 0, false
	}
	upper, lower = highs[n-period], lows[n-period]
	for i := n - period; i < n; i++ {
		if highs[i] > upper {
			upper = highs[i]
		}
		if lows[i] < lower {
			lower = lows[i]
		}
	}
	return upper, lower, true
}

// bollinger computes the middle/upper/lower Bollinger bands over the last
// `period` closes.
func bollinger(values []float64, period int, mult float64) (mid, upper, lower float64, ok bool) {
	if len(values) < period {
		return 0, 0, 0, false
	}
	window := values[len(values)-period:]
	mid = meanOf(window)
	variance := 0.0
	for _, v := range window {
		d := v - mid
		variance += d * d
	}
	stdDev := math.Sqrt(variance / float64(period-1))
	return mid, mid + mult*stdDev, mid - mult*stdDev, true
}

// mfi computes the Money Flow Index over the last `period`+1 bars.
func mfi(highs, lows, closesIn, volumes []float64, period int) (float64, bool) {
	n := len(closesIn)
	if n < period+1 {
		return 0, false
	}
	typicalPrice := make([]float64, n)
	moneyFlow := make([]float64, n)
	for i := 0; i < n; i++ {
		typicalPrice[i] = (highs[i] + lows[i] + closesIn[i]) / 3.0
		moneyFlow[i] = typicalPrice[i] * volumes[i]
	}

	var posSum, negSum float64
	for i := n - period; i < n; i++ {
		delta := typicalPrice[i] - typicalPrice[i-1]
		switch {
		case delta > 0:
			posSum += moneyFlow[i]
		case delta < 0:
			negSum += moneyFlow[i]
		}
	}
	if negSum == 0 {
		negSum = 1e-8
	}
	ratio := posSum / negSum
	return 100 - (100 / (1 + ratio)), true
}
