package marketdata

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/config"
	"github.com/wonny/screener/pkg/logger"
)

var d = contracts.MustParseDate

func barsBetween(start, end contracts.Date) contracts.BarSeries {
	var bars []contracts.Bar
	for day := start; !day.After(end); day = day.AddDays(1) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		bars = append(bars, contracts.Bar{TradeDate: day, Open: 10, Close: 10, High: 10.2, Low: 9.8, Volume: 1000})
	}
	return contracts.NewBarSeries(bars)
}

// countingSource serves weekday bars for any window and counts calls
type countingSource struct {
	calls int32
	err   error
}

func (s *countingSource) GetBars(_ context.Context, _ string, start, end contracts.Date) (contracts.BarSeries, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return barsBetween(start, end), nil
}

func TestLastTradingDay(t *testing.T) {
	tests := []struct {
		now  string
		want string
	}{
		{"2024-01-15", "2024-01-15"}, // Monday
		{"2024-01-19", "2024-01-19"}, // Friday
		{"2024-01-20", "2024-01-19"}, // Saturday
		{"2024-01-21", "2024-01-19"}, // Sunday
	}
	for _, tt := range tests {
		now := d(tt.now).Time().Add(10 * time.Hour)
		assert.Equal(t, d(tt.want), LastTradingDay(now), tt.now)
	}
}

func newDiskCache(t *testing.T, upstream contracts.BarSource, now time.Time) *DiskCache {
	t.Helper()
	c, err := NewDiskCache(t.TempDir(), DefaultBarTTL, upstream, logger.Nop())
	require.NoError(t, err)
	return c.WithClock(func() time.Time { return now })
}

func TestDiskCache_ServesFreshFile(t *testing.T) {
	upstream := &countingSource{}
	now := time.Date(2024, 1, 15, 17, 0, 0, 0, time.UTC)
	c := newDiskCache(t, upstream, now)

	first, err := c.GetBars(context.Background(), "600000", d("2024-01-01"), d("2024-01-15"))
	require.NoError(t, err)
	second, err := c.GetBars(context.Background(), "600000", d("2024-01-01"), d("2024-01-15"))
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&upstream.calls))
	assert.Equal(t, first, second)
	assert.FileExists(t, filepath.Join(c.Dir(), "600000_20240101_20240115.json"))
}

func TestDiskCache_ExpiredFileRefetched(t *testing.T) {
	upstream := &countingSource{}
	now := time.Date(2024, 1, 15, 17, 0, 0, 0, time.UTC)
	c := newDiskCache(t, upstream, now)

	_, err := c.GetBars(context.Background(), "600000", d("2024-01-01"), d("2024-01-15"))
	require.NoError(t, err)

	c.WithClock(func() time.Time { return now.Add(DefaultBarTTL + time.Minute) })
	_, err = c.GetBars(context.Background(), "600000", d("2024-01-01"), d("2024-01-15"))
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&upstream.calls))
}

func TestDiskCache_UpstreamErrorNotCached(t *testing.T) {
	upstream := &countingSource{err: errors.New("boom")}
	c := newDiskCache(t, upstream, time.Now())

	_, err := c.GetBars(context.Background(), "600000", d("2024-01-01"), d("2024-01-15"))
	assert.Error(t, err)

	entries, err := c.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiskCache_RemoveDuplicates(t *testing.T) {
	upstream := &countingSource{}
	c := newDiskCache(t, upstream, time.Now())
	ctx := context.Background()

	for _, w := range [][2]string{
		{"2024-01-02", "2024-01-10"},
		{"2024-01-01", "2024-01-12"}, // earliest start, latest end: kept
		{"2024-01-01", "2024-01-05"},
	} {
		_, err := c.GetBars(ctx, "600000", d(w[0]), d(w[1]))
		require.NoError(t, err)
	}
	_, err := c.GetBars(ctx, "000001", d("2024-01-01"), d("2024-01-05"))
	require.NoError(t, err)

	// junk names are ignored
	require.NoError(t, os.WriteFile(filepath.Join(c.Dir(), "notes.json"), []byte("{}"), 0o644))

	deleted, err := c.RemoveDuplicates()
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	entries, err := c.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "000001", entries[0].Code)
	assert.Equal(t, "600000", entries[1].Code)
	assert.Equal(t, d("2024-01-01"), entries[1].Start)
	assert.Equal(t, d("2024-01-12"), entries[1].End)
}

func TestDiskCache_LatestDateAndNeedsRefresh(t *testing.T) {
	c := newDiskCache(t, &countingSource{}, time.Now())

	_, ok := c.LatestDate()
	assert.False(t, ok)
	assert.True(t, c.NeedsRefresh(d("2024-01-15")))

	_, err := c.GetBars(context.Background(), ProbeCode, d("2024-01-01"), d("2024-01-12"))
	require.NoError(t, err)

	latest, ok := c.LatestDate()
	require.True(t, ok)
	assert.Equal(t, d("2024-01-12"), latest)
	assert.True(t, c.NeedsRefresh(d("2024-01-15")))
	assert.False(t, c.NeedsRefresh(d("2024-01-12")))
}

func TestDiskCache_MergeUpdate(t *testing.T) {
	upstream := &countingSource{}
	c := newDiskCache(t, upstream, time.Now())
	ctx := context.Background()

	_, err := c.GetBars(ctx, "600000", d("2024-01-01"), d("2024-01-10"))
	require.NoError(t, err)

	stale, err := c.Stale(d("2024-01-15"))
	require.NoError(t, err)
	require.Len(t, stale, 1)

	updated, err := c.MergeUpdate(ctx, stale[0], d("2024-01-15"))
	require.NoError(t, err)
	assert.True(t, updated)

	assert.NoFileExists(t, filepath.Join(c.Dir(), "600000_20240101_20240110.json"))
	path := filepath.Join(c.Dir(), "600000_20240101_20240115.json")
	require.FileExists(t, path)

	file, err := readCacheFile(path)
	require.NoError(t, err)
	last, _ := file.Data.Last()
	assert.Equal(t, d("2024-01-15"), last.TradeDate)
	assert.Equal(t, barsBetween(d("2024-01-01"), d("2024-01-15")).Len(), file.Data.Len())

	// already current
	stale, err = c.Stale(d("2024-01-15"))
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestMergeBars_NewerWins(t *testing.T) {
	old := contracts.NewBarSeries([]contracts.Bar{
		{TradeDate: d("2024-01-11"), Close: 10},
		{TradeDate: d("2024-01-12"), Close: 10},
	})
	newer := contracts.NewBarSeries([]contracts.Bar{
		{TradeDate: d("2024-01-12"), Close: 11},
		{TradeDate: d("2024-01-15"), Close: 12},
	})

	merged := MergeBars(old, newer)
	require.Equal(t, 3, merged.Len())
	assert.Equal(t, 11.0, merged[1].Close)
	assert.Equal(t, 12.0, merged[2].Close)
}

func TestCachedUniverse(t *testing.T) {
	var calls int32
	lister := StockListerFunc(func(ctx context.Context) ([]contracts.Stock, error) {
		atomic.AddInt32(&calls, 1)
		return []contracts.Stock{{Code: "600000", Name: "浦发银行"}}, nil
	})
	u := NewCachedUniverse(lister, nil, time.Hour, 0, logger.Nop())

	first := u.ListUniverse(context.Background())
	first[0].Name = "mutated"
	second := u.ListUniverse(context.Background())

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "浦发银行", second[0].Name)

	u.Invalidate(context.Background())
	u.ListUniverse(context.Background())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCachedUniverse_FailureDegradesToEmpty(t *testing.T) {
	var calls int32
	lister := StockListerFunc(func(ctx context.Context) ([]contracts.Stock, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("upstream down")
	})
	u := NewCachedUniverse(lister, nil, time.Hour, 0, logger.Nop())

	stocks := u.ListUniverse(context.Background())
	assert.NotNil(t, stocks)
	assert.Empty(t, stocks)

	// failures are not cached
	u.ListUniverse(context.Background())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestBreakerSource_OpensAfterFailures(t *testing.T) {
	upstream := &countingSource{err: errors.New("502")}
	cfg := config.CircuitBreakerConfig{Enabled: true, MaxRequests: 1, Timeout: time.Minute, ReadyToTrip: 3}
	b := NewBreakerSource("test", upstream, cfg, logger.Nop())

	for i := 0; i < 3; i++ {
		_, err := b.GetBars(context.Background(), "600000", 20240101, 20240115)
		assert.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.GetBars(context.Background(), "600000", 20240101, 20240115)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), atomic.LoadInt32(&upstream.calls))
}

func TestBreakerSource_PassesSeries(t *testing.T) {
	cfg := config.CircuitBreakerConfig{Enabled: true, MaxRequests: 1, Timeout: time.Minute, ReadyToTrip: 3}
	b := NewBreakerSource("test", &countingSource{}, cfg, logger.Nop())

	series, err := b.GetBars(context.Background(), "600000", d("2024-01-15"), d("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, 1, series.Len())
}

func TestSerialized_NoConcurrentCalls(t *testing.T) {
	var active, peak int32
	upstream := contracts.BarSourceFunc(func(ctx context.Context, code string, start, end contracts.Date) (contracts.BarSeries, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&active, -1)
		return nil, nil
	})
	s := NewSerialized(upstream)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.GetBars(context.Background(), "600000", 0, 0)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
}
