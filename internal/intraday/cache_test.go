package intraday

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pulse/pkg/config"
	"github.com/wonny/pulse/pkg/logger"
)

// stubFetcher is a controllable BarFetcher for cache tests.
type stubFetcher struct {
	calls int32

	bars       []OHLCVBar
	err        error
	errSymbols map[string]error

	// When set, FetchBars signals started and blocks until release is closed.
	started chan struct{}
	release chan struct{}
}

func (f *stubFetcher) FetchBars(ctx context.Context, symbol string, date time.Time) ([]OHLCVBar, error) {
	atomic.AddInt32(&f.calls, 1)

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}

	if err, ok := f.errSymbols[symbol]; ok {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.bars, nil
}

func (f *stubFetcher) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

func testBars(base time.Time) []OHLCVBar {
	return []OHLCVBar{
		{Timestamp: base, Open: 100, High: 101, Low: 99.5, Close: 100.5, Volume: 1200},
		{Timestamp: base.Add(time.Minute), Open: 100.5, High: 102, Low: 100.5, Close: 101.8, Volume: 800},
	}
}

func newTestCache(fetcher BarFetcher, now *time.Time) (*Cache, *MemoryStore) {
	store := NewMemoryStore()
	cache := NewCache(store, fetcher, config.IntradayConfig{
		FreshnessWindow: 60 * time.Second,
		FetchTimeout:    5 * time.Second,
		WarmWorkers:     4,
	}, logger.NewNop())
	cache.nowFn = func() time.Time { return *now }
	return cache, store
}

func TestCache_Get_FreshEntrySkipsUpstream(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	fetcher := &stubFetcher{bars: testBars(now.Add(-time.Hour))}
	cache, _ := newTestCache(fetcher, &now)

	ctx := context.Background()

	first, ok := cache.Get(ctx, "AAPL", false)
	require.True(t, ok)
	require.Len(t, first.Bars, 2)
	assert.Equal(t, 1, fetcher.callCount())

	// Second call inside the freshness window must not go upstream
	now = now.Add(30 * time.Second)
	second, ok := cache.Get(ctx, "AAPL", false)
	require.True(t, ok)
	assert.Equal(t, 1, fetcher.callCount())
	assert.Equal(t, first.FetchedAt, second.FetchedAt)
}

func TestCache_Get_StaleEntryRefetches(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	fetcher := &stubFetcher{bars: testBars(now.Add(-time.Hour))}
	cache, store := newTestCache(fetcher, &now)

	ctx := context.Background()

	first, ok := cache.Get(ctx, "AAPL", false)
	require.True(t, ok)

	// Past the window the entry is stale and a new fetch replaces it
	now = now.Add(90 * time.Second)
	second, ok := cache.Get(ctx, "AAPL", false)
	require.True(t, ok)
	assert.Equal(t, 2, fetcher.callCount())
	assert.True(t, second.FetchedAt.After(first.FetchedAt))

	stored, found, err := store.Get(ctx, "AAPL", tradingDate(now))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, second.FetchedAt, stored.FetchedAt)
}

func TestCache_Get_ForceAlwaysFetches(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	fetcher := &stubFetcher{bars: testBars(now.Add(-time.Hour))}
	cache, _ := newTestCache(fetcher, &now)

	ctx := context.Background()

	_, ok := cache.Get(ctx, "AAPL", false)
	require.True(t, ok)
	require.Equal(t, 1, fetcher.callCount())

	// Entry is fresh, but force must still go upstream
	_, ok = cache.Get(ctx, "AAPL", true)
	require.True(t, ok)
	assert.Equal(t, 2, fetcher.callCount())
}

func TestCache_Get_SingleFlightCoalescesConcurrentCallers(t *testing.T) {
	const callers = 16

	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	fetcher := &stubFetcher{
		bars:    testBars(now.Add(-time.Hour)),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	cache, _ := newTestCache(fetcher, &now)

	ctx := context.Background()

	results := make([]*Snapshot, callers)
	oks := make([]bool, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], oks[i] = cache.Get(ctx, "AAPL", false)
		}(i)
	}

	// Wait for the single upstream call to start, then let it finish
	<-fetcher.started
	close(fetcher.release)
	wg.Wait()

	assert.Equal(t, 1, fetcher.callCount(), "concurrent callers must share one upstream call")
	for i := 0; i < callers; i++ {
		require.True(t, oks[i], "caller %d should receive the shared snapshot", i)
		assert.Same(t, results[0], results[i], "caller %d should receive the same outcome", i)
	}
}

func TestCache_Get_DifferentSymbolsFetchIndependently(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	fetcher := &stubFetcher{bars: testBars(now.Add(-time.Hour))}
	cache, _ := newTestCache(fetcher, &now)

	ctx := context.Background()

	_, ok := cache.Get(ctx, "AAPL", false)
	require.True(t, ok)
	_, ok = cache.Get(ctx, "MSFT", false)
	require.True(t, ok)

	assert.Equal(t, 2, fetcher.callCount())
}

func TestCache_Get_ServesStaleOnFetchFailure(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	fetcher := &stubFetcher{bars: testBars(now.Add(-time.Hour))}
	cache, _ := newTestCache(fetcher, &now)

	ctx := context.Background()

	first, ok := cache.Get(ctx, "AAPL", false)
	require.True(t, ok)

	// Entry goes stale, upstream starts failing
	now = now.Add(5 * time.Minute)
	fetcher.err = ErrUnavailable

	snap, ok := cache.Get(ctx, "AAPL", false)
	require.True(t, ok, "stale entry must be served on fetch failure")
	assert.Equal(t, first.FetchedAt, snap.FetchedAt)
	assert.Equal(t, 2, fetcher.callCount())
}

func TestCache_Get_MissWhenNoEntryAndFetchFails(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		err  error
	}{
		{name: "not found", err: ErrNotFound},
		{name: "rate limited", err: ErrRateLimited},
		{name: "unavailable", err: ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &stubFetcher{err: tt.err}
			cache, _ := newTestCache(fetcher, &now)

			snap, ok := cache.Get(context.Background(), "AAPL", false)
			assert.False(t, ok)
			assert.Nil(t, snap)
		})
	}
}

func TestCache_Get_FailedFetchNeverDeletesEntry(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	fetcher := &stubFetcher{bars: testBars(now.Add(-time.Hour))}
	cache, store := newTestCache(fetcher, &now)

	ctx := context.Background()

	_, ok := cache.Get(ctx, "AAPL", false)
	require.True(t, ok)

	now = now.Add(5 * time.Minute)
	fetcher.err = errors.New("boom")

	_, ok = cache.Get(ctx, "AAPL", false)
	require.True(t, ok)

	// The old entry must still be in the store
	_, found, err := store.Get(ctx, "AAPL", tradingDate(now))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCache_Get_DropsInvalidBars(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	base := now.Add(-time.Hour)
	fetcher := &stubFetcher{bars: []OHLCVBar{
		{Timestamp: base, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 500},
		{Timestamp: base.Add(time.Minute), Open: 100, High: 99, Low: 101, Close: 100, Volume: 500}, // high < low
		{Timestamp: base.Add(2 * time.Minute), Open: 100, High: 101, Low: 99, Close: 100, Volume: -1},
	}}
	cache, _ := newTestCache(fetcher, &now)

	snap, ok := cache.Get(context.Background(), "AAPL", false)
	require.True(t, ok)
	assert.Len(t, snap.Bars, 1)
}

func TestCache_WarmMany(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	fetcher := &stubFetcher{
		bars: testBars(now.Add(-time.Hour)),
		errSymbols: map[string]error{
			"BAD": ErrNotFound,
		},
	}
	cache, store := newTestCache(fetcher, &now)

	symbols := []string{"AAPL", "MSFT", "BAD", "GOOG", "AMZN"}
	warmed := cache.WarmMany(context.Background(), symbols, false)

	assert.Equal(t, 4, warmed, "failed symbol must not count but must not stop the rest")
	assert.Equal(t, 5, fetcher.callCount())
	assert.Equal(t, 4, store.Len())
}

func TestCache_WarmMany_CountsStaleFallbacks(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	fetcher := &stubFetcher{bars: testBars(now.Add(-time.Hour))}
	cache, _ := newTestCache(fetcher, &now)

	ctx := context.Background()

	require.Equal(t, 2, cache.WarmMany(ctx, []string{"AAPL", "MSFT"}, false))

	// Entries go stale, upstream dies; stale fallbacks still count as warmed
	now = now.Add(5 * time.Minute)
	fetcher.err = ErrUnavailable

	assert.Equal(t, 2, cache.WarmMany(ctx, []string{"AAPL", "MSFT"}, false))
}

func TestTradingDate(t *testing.T) {
	now := time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)
	date := tradingDate(now)

	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), date)

	// Key rolls over at the day boundary
	next := tradingDate(now.Add(time.Second))
	assert.Equal(t, "AAPL:2026-09-01", Key("AAPL", next))
}
