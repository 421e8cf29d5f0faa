package intraday

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/wonny/pulse/pkg/config"
	"github.com/wonny/pulse/pkg/logger"
)

// Cache serves near-real-time bar snapshots while shielding the rate-limited
// upstream provider. Per (symbol, trading date) key: at most one upstream
// fetch in flight, stale entries served on fetch failure, entries replaced
// only by successful fetches.
// ⭐ SSOT: 인트라데이 staleness/single-flight 정책은 이 캐시에서만
type Cache struct {
	store   SnapshotStore
	fetcher BarFetcher
	logger  *logger.Logger

	window       time.Duration // freshness window W
	fetchTimeout time.Duration
	warmWorkers  int

	group singleflight.Group
	nowFn func() time.Time
}

// NewCache creates a snapshot cache.
// The freshness window defaults to 60s, matching the 1-minute bar cadence.
func NewCache(store SnapshotStore, fetcher BarFetcher, cfg config.IntradayConfig, log *logger.Logger) *Cache {
	window := cfg.FreshnessWindow
	if window <= 0 {
		window = 60 * time.Second
	}
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	warmWorkers := cfg.WarmWorkers
	if warmWorkers <= 0 {
		warmWorkers = 8
	}

	return &Cache{
		store:        store,
		fetcher:      fetcher,
		logger:       log,
		window:       window,
		fetchTimeout: fetchTimeout,
		warmWorkers:  warmWorkers,
		nowFn:        time.Now,
	}
}

// Get returns the snapshot for (symbol, today) and whether one is available.
// force bypasses the freshness check and always goes upstream. Fetch failures
// never surface as errors: a prior entry is served stale, otherwise the
// caller gets a miss.
func (c *Cache) Get(ctx context.Context, symbol string, force bool) (*Snapshot, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, false
	}

	now := c.nowFn()
	date := tradingDate(now)

	if !force {
		snap, ok, err := c.store.Get(ctx, symbol, date)
		if err != nil {
			// A broken store read is a miss, not a reason to skip the fetch
			c.logger.WithError(err).WithField("symbol", symbol).Warn("Snapshot store read failed")
		}
		if ok && snap.Age(now) < c.window {
			return snap, true
		}
	}

	return c.fetch(ctx, symbol, date)
}

// fetch goes upstream through the single-flight group. Concurrent callers
// for the same key share one upstream call and one outcome; forced and
// unforced callers join the same flight, which keeps the one-fetch-per-key
// invariant even under mixed traffic.
func (c *Cache) fetch(ctx context.Context, symbol string, date time.Time) (*Snapshot, bool) {
	v, err, _ := c.group.Do(Key(symbol, date), func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
		defer cancel()

		bars, err := c.fetcher.FetchBars(fctx, symbol, date)
		if err != nil {
			return nil, err
		}

		snap := &Snapshot{
			Symbol:      symbol,
			TradingDate: date,
			Bars:        c.validBars(symbol, bars),
			FetchedAt:   c.nowFn(),
		}

		if err := c.store.Put(ctx, snap); err != nil {
			// The caller still gets the fresh data; only persistence failed
			c.logger.WithError(err).WithField("symbol", symbol).Warn("Snapshot store write failed")
		}

		return snap, nil
	})

	if err != nil {
		return c.fallback(ctx, symbol, date, err)
	}

	return v.(*Snapshot), true
}

// fallback applies the stale-serve-or-miss policy after a failed fetch.
func (c *Cache) fallback(ctx context.Context, symbol string, date time.Time, cause error) (*Snapshot, bool) {
	snap, ok, err := c.store.Get(ctx, symbol, date)
	if err == nil && ok {
		c.logger.WithError(cause).WithFields(map[string]interface{}{
			"symbol":     symbol,
			"fetched_at": snap.FetchedAt,
		}).Warn("Upstream fetch failed, serving stale snapshot")
		return snap, true
	}

	c.logger.WithError(cause).WithField("symbol", symbol).Warn("Upstream fetch failed, no snapshot available")
	return nil, false
}

// validBars drops bars that violate the OHLCV invariants so one bad upstream
// row cannot poison the whole snapshot.
func (c *Cache) validBars(symbol string, bars []OHLCVBar) []OHLCVBar {
	valid := make([]OHLCVBar, 0, len(bars))
	dropped := 0
	for _, b := range bars {
		if err := b.Validate(); err != nil {
			dropped++
			continue
		}
		valid = append(valid, b)
	}

	if dropped > 0 {
		c.logger.WithFields(map[string]interface{}{
			"symbol":  symbol,
			"dropped": dropped,
		}).Warn("Dropped invalid bars from upstream response")
	}

	return valid
}

// WarmMany applies Get semantics to each symbol with bounded fan-out,
// used by the minute scheduler ahead of interactive reads. One symbol's
// failure never stops the rest. Returns how many symbols ended up with a
// snapshot available (fresh or stale fallback).
func (c *Cache) WarmMany(ctx context.Context, symbols []string, force bool) int {
	var warmed int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.warmWorkers)

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			if _, ok := c.Get(gctx, symbol, force); ok {
				atomic.AddInt64(&warmed, 1)
			}
			return nil
		})
	}

	// Workers never return errors; Wait is just the join point
	_ = g.Wait()

	return int(atomic.LoadInt64(&warmed))
}

// tradingDate resolves the cache-key date from the clock. Keys roll over at
// the day boundary, so yesterday's entries simply stop being addressed.
func tradingDate(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}
