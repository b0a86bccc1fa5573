package domain

import "time"

// DatafeedState is the aggregator's persisted watermark: the timestamp of
// the last raw 1-minute bar fully processed, so a restart resumes instead of
// reprocessing or skipping.
type DatafeedState struct {
	ID               int64
	Last1mTimestamp  time.Time
}

// BarState is a daemon's persisted per-timeframe watermark: the timestamp of
// the last closed bar it has fully dispatched, keyed by the owning service so
// the strategy runner's per-timeframe loops each resume independently.
type BarState struct {
	ServiceName      string
	Timeframe        Timeframe
	LastBarTimestamp time.Time
}
