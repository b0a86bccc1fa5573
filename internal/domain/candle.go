package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Timeframe names one of the aggregated bucket widths the aggregator
// maintains above the raw 1-minute feed.
type Timeframe string

const (
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// BucketMinutes maps each maintained timeframe to its width in minutes.
// 1d (1440) is the day-boundary special case handled by internal/bucket.
var BucketMinutes = map[Timeframe]int{
	Timeframe5m:  5,
	Timeframe15m: 15,
	Timeframe30m: 30,
	Timeframe1h:  60,
	Timeframe4h:  240,
	Timeframe1d:  1440,
}

// Timeframes lists every maintained timeframe in a fixed, deterministic order.
var Timeframes = []Timeframe{Timeframe5m, Timeframe15m, Timeframe30m, Timeframe1h, Timeframe4h, Timeframe1d}

// TableName returns the candles_<tf> table this timeframe is stored in.
func (tf Timeframe) TableName() string {
	switch tf {
	case Timeframe5m:
		return "candles_5m"
	case Timeframe15m:
		return "candles_15m"
	case Timeframe30m:
		return "candles_30m"
	case Timeframe1h:
		return "candles_1h"
	case Timeframe4h:
		return "candles_4h"
	case Timeframe1d:
		return "candles_1d"
	default:
		return ""
	}
}

// Candle1m is a single closed one-minute bar from the raw feed.
type Candle1m struct {
	SymbolID  int64
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// AggregatedCandle is a closed bar in one of the derived timeframes, carrying
// the gap-detection result computed when the bar closed.
type AggregatedCandle struct {
	SymbolID  int64
	Timestamp time.Time // bucket end, matching the original aggregator's convention
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	IsGap     bool
	GapDir    string // "UP" or "DOWN", empty when IsGap is false
}
