// Package timeline turns the backend's raw activity feed into the
// local-time buckets behind the activity dashboard: symbolic range
// resolution, local calendar re-bucketing, periodic polling, and
// per-bucket drill-down.
package timeline

import (
	"fmt"
	"time"
)

// Range is a coarse user-selected time range. The concrete query window is
// derived from it and the current wall clock.
type Range string

const (
	// RangePeriod covers the current part of the day: morning, afternoon
	// or evening, split at 00:00 / 12:00 / 18:00 local time.
	RangePeriod Range = "period"

	// RangeToday covers the current local calendar day.
	RangeToday Range = "today"

	// RangeWeek covers the last seven local calendar days, inclusive.
	RangeWeek Range = "week"
)

// ParseRange validates a range string from a query parameter or client
// message.
func ParseRange(s string) (Range, error) {
	switch Range(s) {
	case RangePeriod, RangeToday, RangeWeek:
		return Range(s), nil
	}
	return "", fmt.Errorf("timeline: unknown range %q", s)
}

func (r Range) String() string { return string(r) }

// Window is the concrete backend query window derived from a symbolic range:
// the boundary to fetch from and the backend-side bucket width.
type Window struct {
	Since         time.Time `json:"since"`
	BucketMinutes int       `json:"bucket_minutes"`
}

// Window resolves the symbolic range against a wall-clock instant. The
// boundary is computed in now's location. Callers are expected to resolve
// once per range change and reuse the result across poll ticks; deriving it
// fresh on every tick would move the window mid-session.
func (r Range) Window(now time.Time) Window {
	year, month, day := now.Date()
	loc := now.Location()

	switch r {
	case RangeToday:
		return Window{
			Since:         time.Date(year, month, day, 0, 0, 0, 0, loc),
			BucketMinutes: 60,
		}
	case RangeWeek:
		return Window{
			Since:         time.Date(year, month, day-6, 0, 0, 0, 0, loc),
			BucketMinutes: 360,
		}
	}

	// period: start of the current morning, afternoon or evening.
	boundary := 0
	switch hour := now.Hour(); {
	case hour < 12:
		boundary = 0
	case hour < 18:
		boundary = 12
	default:
		boundary = 18
	}
	return Window{
		Since:         time.Date(year, month, day, boundary, 0, 0, 0, loc),
		BucketMinutes: 30,
	}
}

// BucketDuration is the span one aggregated bucket covers, and therefore the
// extent of a drill-down query: one hour for period and today, one day for
// week.
func (r Range) BucketDuration() time.Duration {
	if r == RangeWeek {
		return 24 * time.Hour
	}
	return time.Hour
}

// byDay reports whether aggregation groups by local calendar day rather than
// hour.
func (r Range) byDay() bool { return r == RangeWeek }
