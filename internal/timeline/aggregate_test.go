package timeline

import (
	"testing"
	"time"

	"github.com/diptoe/collective-memory-sub000/internal/api"
)

func point(ts time.Time, counts map[string]int) api.TimelineBucket {
	total := 0
	for _, n := range counts {
		total += n
	}
	return api.TimelineBucket{Timestamp: ts, Total: total, Counts: counts}
}

// TestAggregateMergesSameHour collapses two half-hour backend points into
// one local-hour bucket with summed counts and a canonical start.
func TestAggregateMergesSameHour(t *testing.T) {
	points := []api.TimelineBucket{
		point(time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC), map[string]int{api.TypeMessageSent: 3}),
		point(time.Date(2024, 1, 1, 10, 45, 0, 0, time.UTC), map[string]int{api.TypeMessageSent: 2}),
	}

	out := Aggregate(points, RangeToday, time.UTC)
	if len(out) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(out))
	}

	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if !out[0].Start.Equal(want) {
		t.Errorf("start = %v, want %v", out[0].Start, want)
	}
	if out[0].Total != 5 {
		t.Errorf("total = %d, want 5", out[0].Total)
	}
	if out[0].Count(api.TypeMessageSent) != 5 {
		t.Errorf("message_sent = %d, want 5", out[0].Count(api.TypeMessageSent))
	}
}

// TestAggregateCanonicalStart verifies the emitted timestamp is the start of
// the hour even when the backend's bucket is offset into it.
func TestAggregateCanonicalStart(t *testing.T) {
	points := []api.TimelineBucket{
		point(time.Date(2024, 1, 1, 10, 45, 0, 0, time.UTC), map[string]int{api.TypeLogin: 1}),
	}

	out := Aggregate(points, RangePeriod, time.UTC)
	if len(out) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(out))
	}
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if !out[0].Start.Equal(want) {
		t.Errorf("start = %v, want %v", out[0].Start, want)
	}
}

func TestAggregateByDay(t *testing.T) {
	points := []api.TimelineBucket{
		point(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), map[string]int{api.TypeLogin: 1}),
		point(time.Date(2024, 1, 1, 21, 0, 0, 0, time.UTC), map[string]int{api.TypeLogin: 2}),
		point(time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC), map[string]int{api.TypeLogin: 4}),
	}

	out := Aggregate(points, RangeWeek, time.UTC)
	if len(out) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(out))
	}
	if !out[0].Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first start = %v", out[0].Start)
	}
	if out[0].Total != 3 || out[1].Total != 4 {
		t.Errorf("totals = %d, %d, want 3, 4", out[0].Total, out[1].Total)
	}
}

// TestAggregateLocalCalendar re-buckets UTC-aligned points by the viewer's
// calendar: two points on different UTC days can share a local day.
func TestAggregateLocalCalendar(t *testing.T) {
	points := []api.TimelineBucket{
		point(time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC), map[string]int{api.TypeLogin: 1}),
		point(time.Date(2024, 1, 2, 0, 30, 0, 0, time.UTC), map[string]int{api.TypeLogin: 1}),
	}

	if out := Aggregate(points, RangeWeek, time.UTC); len(out) != 2 {
		t.Errorf("UTC viewer: expected 2 buckets, got %d", len(out))
	}

	loc := time.FixedZone("UTC+2", 2*3600)
	out := Aggregate(points, RangeWeek, loc)
	if len(out) != 1 {
		t.Fatalf("UTC+2 viewer: expected 1 bucket, got %d", len(out))
	}
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, loc)
	if !out[0].Start.Equal(want) {
		t.Errorf("start = %v, want %v", out[0].Start, want)
	}
	if out[0].Total != 2 {
		t.Errorf("total = %d, want 2", out[0].Total)
	}
}

// TestAggregatePreservesCounts checks no event is dropped or double-counted
// across the merge.
func TestAggregatePreservesCounts(t *testing.T) {
	points := []api.TimelineBucket{
		point(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), map[string]int{api.TypeMessageSent: 3, api.TypeHeartbeat: 5}),
		point(time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC), map[string]int{api.TypeMessageSent: 2, api.TypeEntityCreated: 1}),
		point(time.Date(2024, 1, 1, 11, 30, 0, 0, time.UTC), map[string]int{api.TypeHeartbeat: 1}),
		point(time.Date(2024, 1, 2, 0, 15, 0, 0, time.UTC), map[string]int{api.TypeLogin: 7}),
	}

	inTotals := map[string]int{}
	inTotal := 0
	for _, p := range points {
		inTotal += p.Total
		for typ, n := range p.Counts {
			inTotals[typ] += n
		}
	}

	out := Aggregate(points, RangeToday, time.UTC)

	outTotals := map[string]int{}
	outTotal := 0
	for _, b := range out {
		outTotal += b.Total
		for typ, n := range b.Counts {
			outTotals[typ] += n
		}
	}

	if outTotal != inTotal {
		t.Errorf("total = %d, want %d", outTotal, inTotal)
	}
	for typ, n := range inTotals {
		if outTotals[typ] != n {
			t.Errorf("%s = %d, want %d", typ, outTotals[typ], n)
		}
	}
}

func TestAggregateSortedAscending(t *testing.T) {
	points := []api.TimelineBucket{
		point(time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC), map[string]int{api.TypeLogin: 1}),
		point(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), map[string]int{api.TypeLogin: 1}),
		point(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), map[string]int{api.TypeLogin: 1}),
	}

	out := Aggregate(points, RangeToday, time.UTC)
	if len(out) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if !out[i-1].Start.Before(out[i].Start) {
			t.Errorf("buckets out of order at %d: %v >= %v", i, out[i-1].Start, out[i].Start)
		}
	}
}

func TestAggregateEmpty(t *testing.T) {
	if out := Aggregate(nil, RangeToday, time.UTC); len(out) != 0 {
		t.Errorf("expected no buckets, got %d", len(out))
	}
}
