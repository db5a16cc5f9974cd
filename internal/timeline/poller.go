package timeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/diptoe/collective-memory-sub000/internal/api"
)

// Backend is the slice of the activities API the timeline needs.
// *api.ActivitiesService implements it.
type Backend interface {
	Summary(ctx context.Context, since time.Time) (*api.SummaryResponse, error)
	Timeline(ctx context.Context, since time.Time, bucketMinutes int) (*api.TimelineResponse, error)
	List(ctx context.Context, q api.ListQuery) (*api.ListResponse, error)
}

const (
	// DefaultPollInterval is how often the poller refreshes the feed.
	DefaultPollInterval = 10 * time.Second

	// DefaultRecentLimit is how many raw recent activities one cycle fetches
	// for the dashboard's activity list.
	DefaultRecentLimit = 20
)

// Snapshot is one published view of the activity feed: the aggregated
// buckets plus the summary and recent-activity sidecars, all fetched in the
// same cycle. Slices and maps are shared with the poller's copy; treat them
// as read-only.
type Snapshot struct {
	Range     Range          `json:"range"`
	Window    Window         `json:"window"`
	Buckets   []Bucket       `json:"buckets"`
	Summary   map[string]int `json:"summary"`
	Total     int            `json:"total"`
	Recent    []api.Activity `json:"recent"`
	FetchedAt time.Time      `json:"fetched_at"`

	// Generation increases by one per published snapshot and lets pollers'
	// consumers detect change without diffing.
	Generation uint64 `json:"generation"`
}

// Fetch performs one synchronous fetch-and-aggregate pass: timeline, summary
// and recent list in parallel, then local re-bucketing. It is the one-shot
// sibling of the Poller's periodic cycle; Generation is left for the caller.
func Fetch(ctx context.Context, backend Backend, r Range, w Window, loc *time.Location, recentLimit int) (Snapshot, error) {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}

	var (
		tl     *api.TimelineResponse
		sum    *api.SummaryResponse
		recent *api.ListResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tl, err = backend.Timeline(gctx, w.Since, w.BucketMinutes)
		return err
	})
	g.Go(func() error {
		var err error
		sum, err = backend.Summary(gctx, w.Since)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = backend.List(gctx, api.ListQuery{Since: w.Since, Limit: recentLimit})
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Range:     r,
		Window:    w,
		Buckets:   Aggregate(tl.Timeline, r, loc),
		Summary:   sum.Summary,
		Total:     sum.Total,
		Recent:    recent.Activities,
		FetchedAt: time.Now(),
	}, nil
}

// Options tunes a Poller. The zero value is fully usable.
type Options struct {
	// Interval between refresh cycles. Zero means DefaultPollInterval.
	Interval time.Duration

	// Location for local-time bucketing. Nil means time.Local.
	Location *time.Location

	// RecentLimit bounds the recent-activity list per cycle. Zero means
	// DefaultRecentLimit.
	RecentLimit int

	// Now overrides the wall clock, for tests.
	Now func() time.Time
}

// Poller periodically refreshes one viewer's activity feed. Each browser
// connection owns a Poller bound to that session's credentials via the
// context passed to Run; the poller stops when that context is cancelled.
//
// A refresh cycle is tagged with a monotonic sequence number when issued.
// Changing the range invalidates the sequence and cancels the in-flight
// cycle, so a slow stale response can never overwrite a fresher window.
type Poller struct {
	backend     Backend
	log         *zap.Logger
	interval    time.Duration
	loc         *time.Location
	now         func() time.Time
	recentLimit int

	// seq is the latest issued cycle; results from any other cycle are
	// discarded on arrival.
	seq atomic.Uint64

	// generation counts published snapshots for change detection.
	generation atomic.Uint64

	mu             sync.RWMutex
	rng            Range
	window         Window
	snap           Snapshot
	cancelInFlight context.CancelFunc

	// kick wakes the run loop for an immediate out-of-band refresh.
	kick chan struct{}

	// Subscriber notification for push streaming (e.g. WebSocket).
	subscriberMu     sync.Mutex
	subscribers      map[uint64]chan struct{}
	nextSubscriberID uint64
}

// NewPoller builds a Poller for the given symbolic range. The concrete query
// window is resolved here and again on every SetRange, never per tick.
func NewPoller(backend Backend, r Range, logger *zap.Logger, opts Options) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	recentLimit := opts.RecentLimit
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}

	window := r.Window(now())
	return &Poller{
		backend:     backend,
		log:         logger.Named("timeline"),
		interval:    interval,
		loc:         loc,
		now:         now,
		recentLimit: recentLimit,
		rng:         r,
		window:      window,
		snap:        Snapshot{Range: r, Window: window, Summary: map[string]int{}},
		kick:        make(chan struct{}, 1),
		subscribers: make(map[uint64]chan struct{}),
	}
}

// Run blocks, refreshing immediately and then on every tick or kick, until
// ctx is cancelled. Backend calls inherit ctx, so credentials attached to it
// ride along with every cycle.
func (p *Poller) Run(ctx context.Context) {
	p.refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			if p.cancelInFlight != nil {
				p.cancelInFlight()
			}
			p.mu.Unlock()
			return
		case <-ticker.C:
			p.refresh(ctx)
		case <-p.kick:
			p.refresh(ctx)
		}
	}
}

// SetRange switches the symbolic range. The window is re-resolved once, the
// in-flight cycle is invalidated and cancelled, and an immediate refresh is
// scheduled.
func (p *Poller) SetRange(r Range) {
	p.mu.Lock()
	if r == p.rng {
		p.mu.Unlock()
		return
	}
	p.rng = r
	p.window = r.Window(p.now())
	p.seq.Add(1)
	if p.cancelInFlight != nil {
		p.cancelInFlight()
	}
	p.mu.Unlock()

	select {
	case p.kick <- struct{}{}:
	default:
		// A refresh is already pending; it will pick up the new window.
	}
}

// Range returns the current symbolic range.
func (p *Poller) Range() Range {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rng
}

// Snapshot returns the latest published snapshot. Before the first
// successful cycle it is empty with Generation zero.
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Generation returns the current snapshot generation.
func (p *Poller) Generation() uint64 {
	return p.generation.Load()
}

// Subscribe returns a notification channel and an unsubscribe function. The
// channel receives a signal whenever a new snapshot is published; it is
// buffered with capacity 1 to coalesce rapid updates.
func (p *Poller) Subscribe() (<-chan struct{}, func()) {
	p.subscriberMu.Lock()
	defer p.subscriberMu.Unlock()

	id := p.nextSubscriberID
	p.nextSubscriberID++

	ch := make(chan struct{}, 1)
	p.subscribers[id] = ch

	unsubscribe := func() {
		p.subscriberMu.Lock()
		defer p.subscriberMu.Unlock()
		delete(p.subscribers, id)
	}

	return ch, unsubscribe
}

// notifySubscribers sends a non-blocking signal to all subscriber channels.
func (p *Poller) notifySubscribers() {
	p.subscriberMu.Lock()
	defer p.subscriberMu.Unlock()

	for _, ch := range p.subscribers {
		select {
		case ch <- struct{}{}:
		default:
			// Channel already has a pending notification; skip to coalesce.
		}
	}
}

// refresh runs one fetch cycle. A failed cycle keeps the last good snapshot;
// a stale cycle (superseded by SetRange or a newer tick) is discarded.
func (p *Poller) refresh(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	seq := p.seq.Add(1)
	if p.cancelInFlight != nil {
		p.cancelInFlight()
	}
	p.cancelInFlight = cancel
	rng, window := p.rng, p.window
	p.mu.Unlock()

	snap, err := Fetch(cctx, p.backend, rng, window, p.loc, p.recentLimit)
	if err != nil {
		p.log.Warn("activity poll failed",
			zap.String("range", rng.String()), zap.Error(err))
		return
	}

	p.mu.Lock()
	if seq != p.seq.Load() {
		p.mu.Unlock()
		p.log.Debug("discarding stale poll result", zap.Uint64("seq", seq))
		return
	}
	snap.Generation = p.generation.Add(1)
	snap.FetchedAt = p.now()
	p.snap = snap
	p.mu.Unlock()

	p.notifySubscribers()
}
