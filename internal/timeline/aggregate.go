package timeline

import (
	"sort"
	"time"

	"github.com/diptoe/collective-memory-sub000/internal/api"
)

// Bucket is one aggregated local-time bucket: the canonical start of a local
// calendar hour or day, with summed totals.
type Bucket struct {
	Start  time.Time      `json:"start"`
	Total  int            `json:"total"`
	Counts map[string]int `json:"counts"`
}

// Count returns the count for one activity type.
func (b Bucket) Count(activityType string) int { return b.Counts[activityType] }

// Aggregate collapses backend timeline points into one bucket per local
// calendar hour (period, today) or day (week). The backend's bucket
// boundaries are UTC-aligned and fixed-width; re-bucketing by local calendar
// time keeps labels stable across timezone and daylight-saving boundaries.
//
// Points mapping to the same local hour or day are merged by summing total
// and every per-type count. The emitted bucket carries the canonical start of
// its hour or day, not the first input timestamp, so bucket identity does not
// depend on backend alignment. Output is sorted ascending. No filtering
// happens here; heartbeat-only buckets are a rendering concern.
func Aggregate(points []api.TimelineBucket, r Range, loc *time.Location) []Bucket {
	if loc == nil {
		loc = time.Local
	}

	merged := make(map[int64]*Bucket, len(points))
	for _, p := range points {
		start := bucketStart(p.Timestamp.In(loc), r)
		key := start.Unix()

		b, ok := merged[key]
		if !ok {
			b = &Bucket{Start: start, Counts: make(map[string]int, len(p.Counts))}
			merged[key] = b
		}
		b.Total += p.Total
		for typ, n := range p.Counts {
			b.Counts[typ] += n
		}
	}

	out := make([]Bucket, 0, len(merged))
	for _, b := range merged {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// bucketStart truncates a local instant to the start of its grouping unit.
func bucketStart(t time.Time, r Range) time.Time {
	year, month, day := t.Date()
	if r.byDay() {
		return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
	}
	return time.Date(year, month, day, t.Hour(), 0, 0, 0, t.Location())
}
