package bucket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return ts
}

func TestFloorToBucket_SubDayWidths(t *testing.T) {
	cases := []struct {
		name   string
		ts     string
		width  int
		want   string
	}{
		{"5m exact boundary", "2024-01-01T10:05:00Z", 5, "2024-01-01T10:05:00Z"},
		{"5m mid bucket", "2024-01-01T10:07:30Z", 5, "2024-01-01T10:05:00Z"},
		{"15m mid bucket", "2024-01-01T10:07:00Z", 15, "2024-01-01T10:00:00Z"},
		{"30m mid bucket", "2024-01-01T10:44:00Z", 30, "2024-01-01T10:30:00Z"},
		{"1h mid bucket", "2024-01-01T10:59:59Z", 60, "2024-01-01T10:00:00Z"},
		{"4h mid bucket", "2024-01-01T13:10:00Z", 240, "2024-01-01T12:00:00Z"},
		{"4h day start", "2024-01-01T00:00:00Z", 240, "2024-01-01T00:00:00Z"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FloorToBucket(mustParse(t, tc.ts), tc.width)
			assert.Equal(t, mustParse(t, tc.want), got)
		})
	}
}

func TestFloorToBucket_DayWidth(t *testing.T) {
	got := FloorToBucket(mustParse(t, "2024-01-01T13:45:00Z"), 1440)
	assert.Equal(t, mustParse(t, "2024-01-01T00:00:00Z"), got)

	got = FloorToBucket(mustParse(t, "2024-01-01T00:00:00Z"), 1440)
	assert.Equal(t, mustParse(t, "2024-01-01T00:00:00Z"), got)
}

func TestBucketEnd(t *testing.T) {
	start := mustParse(t, "2024-01-01T10:00:00Z")
	assert.Equal(t, mustParse(t, "2024-01-01T10:05:00Z"), BucketEnd(start, 5))
	assert.Equal(t, mustParse(t, "2024-01-02T10:00:00Z"), BucketEnd(start, 1440))
}
