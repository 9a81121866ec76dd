package ranking

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/leaderboard/internal/domain/model"
	"github.com/okian/leaderboard/pkg/logger"
	"github.com/okian/leaderboard/pkg/metrics"
)

const (
	defaultRebuildTimeout  = 5 * time.Second
	defaultRefreshInterval = time.Second
	rebuildKey             = "rebuild"
)

// Source is the full, ordered read of the score store an index is built from.
type Source interface {
	List(ctx context.Context) ([]model.User, error)
}

// Coordinator owns the published rank index and decides when to rebuild it.
//
// Every mutation bumps a version counter. Reads ask for an index at least as
// new as the version they observed; concurrent rebuilds collapse into one.
// The index pointer only moves forward, so readers never see an older build
// replace a newer one.
type Coordinator struct {
	source   Source
	policy   Policy
	timeout  time.Duration
	interval time.Duration
	logger   logger.Logger

	current atomic.Pointer[Index]
	version atomic.Uint64
	group   singleflight.Group

	nudge     chan struct{}
	stopChan  chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// NewCoordinator returns a coordinator over source. It starts stale with an
// empty index, so the first read loads the store.
func NewCoordinator(source Source, opts ...Option) *Coordinator {
	c := &Coordinator{
		source:   source,
		policy:   PolicyLazy,
		timeout:  defaultRebuildTimeout,
		interval: defaultRefreshInterval,
		nudge:    make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Named("ranking")
	}

	c.current.Store(Build(nil, 0))
	c.version.Store(1)
	return c
}

// Policy returns the configured refresh policy.
func (c *Coordinator) Policy() Policy { return c.policy }

// Current returns the published index without checking freshness.
func (c *Coordinator) Current() *Index { return c.current.Load() }

// Version returns the latest store version the coordinator knows about.
func (c *Coordinator) Version() uint64 { return c.version.Load() }

// Stale reports whether the published index lags the store.
func (c *Coordinator) Stale() bool {
	return c.current.Load().Version() < c.version.Load()
}

// MarkStale records that the store changed and returns the new version.
func (c *Coordinator) MarkStale() uint64 {
	v := c.version.Add(1)
	metrics.UpdateIndexStale(true)
	return v
}

// Invalidate marks the index stale after a committed write. Under the eager
// policy it also rebuilds and returns the rebuild error; the write stays
// committed either way.
func (c *Coordinator) Invalidate(ctx context.Context) error {
	c.MarkStale()
	if c.policy != PolicyEager {
		return nil
	}
	_, err := c.Fresh(ctx)
	return err
}

// Nudge asks the background loop to rebuild soon. It never blocks.
func (c *Coordinator) Nudge() {
	select {
	case c.nudge <- struct{}{}:
	default:
	}
}

// Fresh returns an index that reflects at least every write marked before
// the call, rebuilding when needed.
func (c *Coordinator) Fresh(ctx context.Context) (*Index, error) {
	want := c.version.Load()
	for {
		if ix := c.current.Load(); ix.Version() >= want {
			return ix, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ix, err := c.rebuild(ctx)
		if err != nil {
			return nil, err
		}
		// A shared rebuild may have read the store before want was marked.
		if ix.Version() >= want {
			return ix, nil
		}
	}
}

// Rebuild forces a full recompute from the store and publishes it.
func (c *Coordinator) Rebuild(ctx context.Context) (*Index, error) {
	c.MarkStale()
	return c.Fresh(ctx)
}

// rebuild joins the in-flight rebuild or starts one. The rebuild itself is
// detached from ctx so an impatient caller cannot fail it for the others.
func (c *Coordinator) rebuild(ctx context.Context) (*Index, error) {
	ch := c.group.DoChan(rebuildKey, func() (interface{}, error) {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.build(bctx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Index), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Coordinator) build(ctx context.Context) (*Index, error) {
	start := time.Now()
	version := c.version.Load()

	users, err := c.source.List(ctx)
	if err != nil {
		ms := float64(time.Since(start).Milliseconds())
		metrics.RecordIndexRebuild(metrics.ResultFailure, ms)
		metrics.RecordErrorByComponent("ranking", "rebuild_failed")
		c.logger.Error(ctx, "rank index rebuild failed",
			logger.Uint64("version", version),
			logger.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrRebuildFailed, err)
	}

	published := c.publish(Build(users, version))

	ms := float64(time.Since(start).Milliseconds())
	metrics.RecordIndexRebuild(metrics.ResultSuccess, ms)
	metrics.UpdateIndexPublished(published.Version(), published.Len(), published.BuiltAt().Unix())
	metrics.UpdateIndexStale(c.Stale())
	c.logger.Debug(ctx, "rank index rebuilt",
		logger.Uint64("version", published.Version()),
		logger.Int("entries", published.Len()),
		logger.Float64("duration_ms", ms),
	)
	return published, nil
}

// publish swaps next in unless a newer index is already published, and
// returns whichever index ends up current.
func (c *Coordinator) publish(next *Index) *Index {
	for {
		cur := c.current.Load()
		if cur.Version() > next.Version() {
			return cur
		}
		if c.current.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// Start launches the background refresh loop. It rebuilds on every tick and
// nudge while the index is stale. Calling Start more than once is a no-op.
func (c *Coordinator) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go c.loop(ctx)
	})
}

func (c *Coordinator) loop(ctx context.Context) {
	defer c.wg.Done()

	var tick <-chan time.Time
	if c.interval > 0 {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-tick:
		case <-c.nudge:
		}
		if !c.Stale() {
			continue
		}
		if _, err := c.Fresh(ctx); err != nil {
			c.logger.Warn(ctx, "background refresh failed", logger.Error(err))
		}
	}
}

// Close stops the background loop and waits for it to exit.
func (c *Coordinator) Close() error {
	c.closeOnce.Do(func() { close(c.stopChan) })
	c.wg.Wait()
	return nil
}
