// Package bucket implements the timeframe bucket algebra the aggregator uses
// to fold raw 1-minute bars into 5m/15m/30m/1h/4h/1d bars: which bucket a
// timestamp belongs to, and when that bucket closes.
package bucket

import "time"

// FloorToBucket returns the start of the bucket of the given width (in
// minutes) that ts falls into. Widths of 1440 (one day) or more floor to
// the UTC day boundary; narrower widths floor within the day using
// minutes-since-midnight.
func FloorToBucket(ts time.Time, widthMinutes int) time.Time {
	ts = ts.UTC()
	if widthMinutes >= 1440 {
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	}
	minutesSinceMidnight := ts.Hour()*60 + ts.Minute()
	flooredMinutes := (minutesSinceMidnight / widthMinutes) * widthMinutes
	dayStart := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	return dayStart.Add(time.Duration(flooredMinutes) * time.Minute)
}

// BucketEnd returns the exclusive end of the bucket that starts at
// bucketStart with the given width.
func BucketEnd(bucketStart time.Time, widthMinutes int) time.Time {
	return bucketStart.Add(time.Duration(widthMinutes) * time.Minute)
}
