package timeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/diptoe/collective-memory-sub000/internal/api"
)

// fakeBackend is an in-memory Backend with switchable failure and latency.
type fakeBackend struct {
	mu         sync.Mutex
	timeline   []api.TimelineBucket
	summary    map[string]int
	total      int
	activities []api.Activity
	err        error
	delay      time.Duration

	lastList      api.ListQuery
	timelineCalls int
}

func (f *fakeBackend) wait(ctx context.Context) error {
	f.mu.Lock()
	d := f.delay
	f.mu.Unlock()
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeBackend) Summary(ctx context.Context, since time.Time) (*api.SummaryResponse, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &api.SummaryResponse{Summary: f.summary, Total: f.total}, nil
}

func (f *fakeBackend) Timeline(ctx context.Context, since time.Time, bucketMinutes int) (*api.TimelineResponse, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timelineCalls++
	if f.err != nil {
		return nil, f.err
	}
	return &api.TimelineResponse{Timeline: append([]api.TimelineBucket(nil), f.timeline...)}, nil
}

func (f *fakeBackend) List(ctx context.Context, q api.ListQuery) (*api.ListResponse, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = q
	if f.err != nil {
		return nil, f.err
	}
	return &api.ListResponse{Activities: append([]api.Activity(nil), f.activities...)}, nil
}

func (f *fakeBackend) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeBackend) listQuery() api.ListQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastList
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot notification")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testNow() time.Time {
	return time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
}

func TestFetchAggregates(t *testing.T) {
	fb := &fakeBackend{
		timeline: []api.TimelineBucket{
			{Timestamp: time.Date(2024, 3, 15, 10, 15, 0, 0, time.UTC), Total: 3, Counts: map[string]int{api.TypeMessageSent: 3}},
			{Timestamp: time.Date(2024, 3, 15, 10, 45, 0, 0, time.UTC), Total: 2, Counts: map[string]int{api.TypeMessageSent: 2}},
		},
		summary:    map[string]int{api.TypeMessageSent: 5},
		total:      5,
		activities: []api.Activity{{ActivityKey: "a1", ActivityType: api.TypeMessageSent}},
	}

	w := RangeToday.Window(testNow())
	snap, err := Fetch(context.Background(), fb, RangeToday, w, time.UTC, 7)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if len(snap.Buckets) != 1 || snap.Buckets[0].Total != 5 {
		t.Errorf("unexpected buckets: %+v", snap.Buckets)
	}
	if snap.Total != 5 || snap.Summary[api.TypeMessageSent] != 5 {
		t.Errorf("unexpected summary: total=%d %v", snap.Total, snap.Summary)
	}
	if len(snap.Recent) != 1 || snap.Recent[0].ActivityKey != "a1" {
		t.Errorf("unexpected recent list: %+v", snap.Recent)
	}

	q := fb.listQuery()
	if q.Limit != 7 {
		t.Errorf("recent limit = %d, want 7", q.Limit)
	}
	if !q.Since.Equal(w.Since) {
		t.Errorf("recent since = %v, want %v", q.Since, w.Since)
	}
}

func TestFetchPropagatesError(t *testing.T) {
	fb := &fakeBackend{err: errors.New("backend down")}
	w := RangeToday.Window(testNow())
	if _, err := Fetch(context.Background(), fb, RangeToday, w, time.UTC, 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestPollerSnapshotBeforeFirstCycle(t *testing.T) {
	p := NewPoller(&fakeBackend{}, RangeToday, nil, Options{Now: testNow, Location: time.UTC})

	snap := p.Snapshot()
	if snap.Generation != 0 {
		t.Errorf("generation = %d, want 0", snap.Generation)
	}
	if snap.Range != RangeToday || snap.Window.BucketMinutes != 60 {
		t.Errorf("unexpected initial snapshot: %+v", snap)
	}
	if len(snap.Buckets) != 0 {
		t.Errorf("expected no buckets before first cycle")
	}
}

// TestPollerPublishesSnapshot runs one immediate cycle and verifies
// subscribers are notified and the snapshot carries generation 1.
func TestPollerPublishesSnapshot(t *testing.T) {
	fb := &fakeBackend{
		timeline: []api.TimelineBucket{
			{Timestamp: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), Total: 2, Counts: map[string]int{api.TypeLogin: 2}},
		},
		summary: map[string]int{api.TypeLogin: 2},
		total:   2,
	}
	p := NewPoller(fb, RangeToday, zap.NewNop(), Options{
		Interval: time.Hour, // only the immediate cycle should run
		Location: time.UTC,
		Now:      testNow,
	})

	ch, unsubscribe := p.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	waitSignal(t, ch)

	snap := p.Snapshot()
	if snap.Generation != 1 {
		t.Errorf("generation = %d, want 1", snap.Generation)
	}
	if len(snap.Buckets) != 1 || snap.Buckets[0].Total != 2 {
		t.Errorf("unexpected buckets: %+v", snap.Buckets)
	}
	if !snap.FetchedAt.Equal(testNow()) {
		t.Errorf("fetched at = %v, want injected clock", snap.FetchedAt)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}

// TestPollerSetRangeRefreshes switches the range and verifies a fresh cycle
// publishes a re-resolved window without waiting for the next tick.
func TestPollerSetRangeRefreshes(t *testing.T) {
	fb := &fakeBackend{summary: map[string]int{}}
	p := NewPoller(fb, RangeToday, zap.NewNop(), Options{
		Interval: time.Hour,
		Location: time.UTC,
		Now:      testNow,
	})

	ch, unsubscribe := p.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	waitSignal(t, ch) // initial cycle

	p.SetRange(RangeWeek)
	waitSignal(t, ch) // cycle triggered by the range change

	snap := p.Snapshot()
	if snap.Range != RangeWeek {
		t.Errorf("range = %q, want week", snap.Range)
	}
	wantSince := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	if !snap.Window.Since.Equal(wantSince) {
		t.Errorf("window since = %v, want %v", snap.Window.Since, wantSince)
	}
	if snap.Generation != 2 {
		t.Errorf("generation = %d, want 2", snap.Generation)
	}
}

func TestPollerSetRangeSameIsNoop(t *testing.T) {
	p := NewPoller(&fakeBackend{}, RangeToday, nil, Options{Now: testNow, Location: time.UTC})
	before := p.Snapshot().Window

	p.SetRange(RangeToday)

	select {
	case <-p.kick:
		t.Error("unchanged range should not schedule a refresh")
	default:
	}
	if after := p.Snapshot().Window; !after.Since.Equal(before.Since) {
		t.Error("unchanged range re-resolved the window")
	}
}

// TestPollerRetainsLastGoodOnFailure makes the second cycle fail and checks
// the published snapshot is untouched.
func TestPollerRetainsLastGoodOnFailure(t *testing.T) {
	fb := &fakeBackend{
		timeline: []api.TimelineBucket{
			{Timestamp: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), Total: 1, Counts: map[string]int{api.TypeLogin: 1}},
		},
		summary: map[string]int{api.TypeLogin: 1},
		total:   1,
	}

	core, logs := observer.New(zap.WarnLevel)
	p := NewPoller(fb, RangeToday, zap.New(core), Options{
		Interval: time.Hour,
		Location: time.UTC,
		Now:      testNow,
	})

	ch, unsubscribe := p.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	waitSignal(t, ch)
	good := p.Snapshot()

	fb.setErr(errors.New("backend down"))
	p.SetRange(RangeWeek)

	waitFor(t, "poll failure log", func() bool {
		return logs.FilterMessage("activity poll failed").Len() > 0
	})

	snap := p.Snapshot()
	if snap.Generation != good.Generation {
		t.Errorf("generation = %d, want %d (failed cycle must not publish)", snap.Generation, good.Generation)
	}
	if snap.Range != RangeToday {
		t.Errorf("range = %q, want the last good cycle's range", snap.Range)
	}
	if len(snap.Buckets) != 1 {
		t.Errorf("buckets = %+v, want last good buckets", snap.Buckets)
	}
}

// TestPollerStaleCycleDiscarded starts a slow cycle, supersedes it with a
// range change, and verifies only the newer cycle publishes.
func TestPollerStaleCycleDiscarded(t *testing.T) {
	fb := &fakeBackend{
		summary: map[string]int{},
		delay:   500 * time.Millisecond,
	}
	p := NewPoller(fb, RangeToday, zap.NewNop(), Options{
		Interval: time.Hour,
		Location: time.UTC,
		Now:      testNow,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	// Let the slow initial cycle get in flight, then supersede it. The
	// range change cancels the in-flight fetch, so the superseding cycle
	// publishes first and alone.
	time.Sleep(100 * time.Millisecond)
	p.SetRange(RangeWeek)

	waitFor(t, "superseding cycle to publish", func() bool {
		return p.Snapshot().Range == RangeWeek
	})

	if gen := p.Snapshot().Generation; gen != 1 {
		t.Errorf("generation = %d, want 1 (stale cycle must not publish)", gen)
	}
}
