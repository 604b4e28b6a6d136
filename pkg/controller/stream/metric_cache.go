package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"LiveCounter/pkg/source"

	"github.com/pingcap-incubator/tinykv/log"
)

// Metric is the last known-valid value of the polled metric.
type Metric struct {
	Value     int
	FetchedAt time.Time
	Valid     bool
}

// Reading is the result of a max-age lookup.
type Reading struct {
	Value     int
	FetchedAt time.Time
	// FromCache is false when the value came from a synchronous fetch made
	// for this lookup.
	FromCache bool
}

// CacheStats exposes fetch counters for status reporting.
type CacheStats struct {
	Fetches             uint64
	Failures            uint64
	ConsecutiveFailures uint64
	LastError           string
	LastErrorAt         time.Time
}

// MetricCache keeps the last valid metric value, refreshed by a background
// poller. A failed fetch never overwrites a valid value.
type MetricCache struct {
	source       source.MetricSource
	interval     time.Duration
	fetchTimeout time.Duration
	stopWait     time.Duration

	mu     sync.RWMutex
	metric Metric
	stats  CacheStats

	// serializes synchronous fetches so a burst of cold reads costs one call
	fetchMu sync.Mutex

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool
}

func NewMetricCache(src source.MetricSource, interval, fetchTimeout, stopWait time.Duration) *MetricCache {
	return &MetricCache{
		source:       src,
		interval:     interval,
		fetchTimeout: fetchTimeout,
		stopWait:     stopWait,
	}
}

// Start launches the poller if it is not already running.
func (c *MetricCache) Start() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running.Store(true)
	go c.pollLoop(ctx, c.done)
	log.Infof("[metric_cache] poller started, interval=%s", c.interval)
}

// Stop signals the poller to exit and waits for it, at most stopWait.
func (c *MetricCache) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cancel == nil {
		return
	}
	c.cancel()
	select {
	case <-c.done:
	case <-time.After(c.stopWait):
		log.Warnf("[metric_cache] poller did not exit within %s", c.stopWait)
	}
	c.cancel = nil
	c.done = nil
	c.running.Store(false)
	log.Infof("[metric_cache] poller stopped")
}

// Running reports whether the poller is active.
func (c *MetricCache) Running() bool {
	return c.running.Load()
}

func (c *MetricCache) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		c.refresh(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// refresh performs one fetch and stores the result on success.
func (c *MetricCache) refresh(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()
	value, err := c.source.FetchMetric(fetchCtx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Fetches++
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.stats.Failures++
		c.stats.ConsecutiveFailures++
		c.stats.LastError = err.Error()
		c.stats.LastErrorAt = time.Now()
		log.Warnf("[metric_cache] fetch failed (%d in a row): %v", c.stats.ConsecutiveFailures, err)
		return err
	}
	c.stats.ConsecutiveFailures = 0
	c.metric = Metric{Value: value, FetchedAt: time.Now(), Valid: true}
	return nil
}

// Snapshot returns the stored metric without fetching.
func (c *MetricCache) Snapshot() Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metric
}

// Stats returns the fetch counters.
func (c *MetricCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Get returns the last valid value. The data source is only called when no
// value has ever been fetched; if that cold fetch fails, ok is false.
func (c *MetricCache) Get(ctx context.Context) (int, bool) {
	if m := c.Snapshot(); m.Valid {
		return m.Value, true
	}
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()
	if m := c.Snapshot(); m.Valid {
		return m.Value, true
	}
	if err := c.refresh(ctx); err != nil {
		return 0, false
	}
	return c.Snapshot().Value, true
}

// Lookup returns the cached value when it is younger than maxAge, otherwise
// it refetches once. A failed refetch falls back to the stale value; an error
// is returned only when no value has ever been obtained.
func (c *MetricCache) Lookup(ctx context.Context, maxAge time.Duration) (Reading, error) {
	if m := c.Snapshot(); m.Valid && time.Since(m.FetchedAt) <= maxAge {
		return Reading{Value: m.Value, FetchedAt: m.FetchedAt, FromCache: true}, nil
	}
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()
	// another caller may have refreshed while we waited
	if m := c.Snapshot(); m.Valid && time.Since(m.FetchedAt) <= maxAge {
		return Reading{Value: m.Value, FetchedAt: m.FetchedAt, FromCache: true}, nil
	}
	err := c.refresh(ctx)
	m := c.Snapshot()
	if err == nil {
		return Reading{Value: m.Value, FetchedAt: m.FetchedAt, FromCache: false}, nil
	}
	if m.Valid {
		return Reading{Value: m.Value, FetchedAt: m.FetchedAt, FromCache: true}, nil
	}
	return Reading{}, wrapError(KindFetchFailed, err, "no metric value available yet")
}
