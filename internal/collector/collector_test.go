package collector

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/marketdata"
	"github.com/wonny/screener/pkg/logger"
)

var d = contracts.MustParseDate

var listed = contracts.StaticUniverse{
	{Code: "600000", Name: "浦发银行"},
	{Code: "000001", Name: "平安银行"},
	{Code: "300750", Name: "宁德时代"}, // not main board
	{Code: "600001", Name: "邯郸钢铁"},
}

type weekdaySource struct {
	calls int32
	fail  string
}

func (s *weekdaySource) GetBars(_ context.Context, code string, start, end contracts.Date) (contracts.BarSeries, error) {
	atomic.AddInt32(&s.calls, 1)
	if code == s.fail {
		return nil, errors.New("upstream error")
	}
	var bars []contracts.Bar
	for day := start; !day.After(end); day = day.AddDays(1) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		bars = append(bars, contracts.Bar{TradeDate: day, Close: 10, Volume: 100})
	}
	return contracts.NewBarSeries(bars), nil
}

func TestCollect(t *testing.T) {
	source := &weekdaySource{fail: "600001"}
	c := NewCollector(source, listed, nil, nil, logger.Nop())

	summary, results := c.Collect(context.Background(), Config{Workers: 2, Start: d("2024-01-01"), End: d("2024-01-15")})

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Success)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, results, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&source.calls))
}

func TestCollect_CanceledContext(t *testing.T) {
	source := &weekdaySource{}
	c := NewCollector(source, listed, nil, nil, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, _ := c.Collect(ctx, Config{Workers: 2, Start: d("2024-01-01"), End: d("2024-01-15")})
	assert.Equal(t, 3, summary.Failed)
	assert.Equal(t, int32(0), atomic.LoadInt32(&source.calls))
}

func TestUpdate_WithoutDiskCache(t *testing.T) {
	c := NewCollector(&weekdaySource{}, listed, nil, nil, logger.Nop())
	_, _, err := c.Update(context.Background(), 2)
	assert.ErrorIs(t, err, ErrNoDiskCache)
}

func TestRefresh_UpdatesStaleCaches(t *testing.T) {
	upstream := &weekdaySource{}
	disk, err := marketdata.NewDiskCache(t.TempDir(), marketdata.DefaultBarTTL, upstream, logger.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	// cache written on Wednesday; refresh runs the next Monday
	_, err = disk.GetBars(ctx, "000001", d("2024-01-01"), d("2024-01-10"))
	require.NoError(t, err)
	_, err = disk.GetBars(ctx, "000001", d("2024-01-02"), d("2024-01-09")) // duplicate
	require.NoError(t, err)

	monday := time.Date(2024, 1, 15, 17, 0, 0, 0, time.Local)
	c := NewCollector(disk, listed, disk, nil, logger.Nop()).WithClock(func() time.Time { return monday })

	require.NoError(t, c.Refresh(ctx, Config{Workers: 2, Start: d("2023-11-18"), End: d("2024-01-15")}))

	latest, ok := disk.LatestDate()
	require.True(t, ok)
	assert.Equal(t, d("2024-01-15"), latest)
	assert.False(t, disk.NeedsRefresh(d("2024-01-15")))

	entries, err := disk.Entries()
	require.NoError(t, err)
	for _, e := range entries {
		if e.Code == "000001" {
			assert.Equal(t, d("2024-01-15"), e.End)
		}
	}
}
