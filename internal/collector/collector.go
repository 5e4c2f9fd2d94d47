package collector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/marketdata"
	"github.com/wonny/screener/internal/universe"
	"github.com/wonny/screener/pkg/logger"
)

// ErrNoDiskCache is returned by Update when the provider has no file cache
var ErrNoDiskCache = errors.New("no disk cache configured")

// Collector warms and refreshes the bar caches for the universe
// ⭐ SSOT: 데이터 수집 오케스트레이션은 이 패키지에서만
type Collector struct {
	source contracts.BarSource
	lister contracts.UniverseLister
	disk   *marketdata.DiskCache // nil for the postgres provider
	store  *marketdata.PGStore   // nil without a database
	logger *logger.Logger
	now    func() time.Time
}

// Config holds collector configuration
type Config struct {
	Workers int            // Number of concurrent workers
	Start   contracts.Date // window to warm
	End     contracts.Date
}

// FetchResult represents the result of one stock
type FetchResult struct {
	StockCode string
	BarCount  int
	Updated   bool
	Error     error
}

// Summary aggregates a collection pass
type Summary struct {
	Total   int
	Success int
	Failed  int
	Updated int
	Elapsed time.Duration
}

// NewCollector creates a new Collector instance
func NewCollector(
	source contracts.BarSource,
	lister contracts.UniverseLister,
	disk *marketdata.DiskCache,
	store *marketdata.PGStore,
	log *logger.Logger,
) *Collector {
	return &Collector{
		source: source,
		lister: lister,
		disk:   disk,
		store:  store,
		logger: log.WithComponent("collector"),
		now:    time.Now,
	}
}

// WithClock replaces the time source used for the last trading day
func (c *Collector) WithClock(now func() time.Time) *Collector {
	c.now = now
	return c
}

// Collect fetches cfg's window for every main-board stock, filling the caches
func (c *Collector) Collect(ctx context.Context, cfg Config) (*Summary, []FetchResult) {
	listed := c.lister.ListUniverse(ctx)
	stocks := universe.Filter(listed, contracts.ExcludeAll(), cfg.End).Stocks

	if c.store != nil {
		if err := c.store.SaveStocks(ctx, listed); err != nil {
			c.logger.WithError(err).Warn("Failed to save stock list")
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"stock_count": len(stocks),
		"from":        cfg.Start.String(),
		"to":          cfg.End.String(),
		"workers":     cfg.Workers,
	}).Info("Starting bar collection")

	return c.run(ctx, "collect", cfg.Workers, stocks, func(ctx context.Context, stock contracts.Stock) FetchResult {
		series, err := c.source.GetBars(ctx, stock.Code, cfg.Start, cfg.End)
		if err == nil && series.Len() == 0 {
			err = errors.New("no data")
		}
		return FetchResult{StockCode: stock.Code, BarCount: series.Len(), Error: err}
	})
}

// Update appends the bars up to the last trading day to every stale cache file
func (c *Collector) Update(ctx context.Context, workers int) (*Summary, []FetchResult, error) {
	if c.disk == nil {
		return nil, nil, ErrNoDiskCache
	}

	lastTrade := marketdata.LastTradingDay(c.now())
	stale, err := c.disk.Stale(lastTrade)
	if err != nil {
		return nil, nil, err
	}
	if len(stale) == 0 {
		c.logger.Info("All caches include the last trading day")
		return &Summary{}, nil, nil
	}

	byCode := make(map[string]marketdata.Entry, len(stale))
	stocks := make([]contracts.Stock, 0, len(stale))
	for _, e := range stale {
		byCode[e.Code] = e
		stocks = append(stocks, contracts.Stock{Code: e.Code})
	}

	c.logger.WithFields(map[string]interface{}{
		"stale":      len(stale),
		"last_trade": lastTrade.String(),
	}).Info("Updating stale caches")

	summary, results := c.run(ctx, "update", workers, stocks, func(ctx context.Context, stock contracts.Stock) FetchResult {
		updated, err := c.disk.MergeUpdate(ctx, byCode[stock.Code], lastTrade)
		return FetchResult{StockCode: stock.Code, Updated: updated, Error: err}
	})
	return summary, results, nil
}

// Refresh runs the daily maintenance: drop duplicate files, update stale
// ones and warm the window when the cache still lacks the last trading day
func (c *Collector) Refresh(ctx context.Context, cfg Config) error {
	if c.disk == nil {
		_, _ = c.Collect(ctx, cfg)
		return nil
	}

	if _, err := c.disk.RemoveDuplicates(); err != nil {
		c.logger.WithError(err).Warn("Failed to remove duplicate caches")
	}
	if _, _, err := c.Update(ctx, cfg.Workers); err != nil {
		c.logger.WithError(err).Warn("Failed to update caches")
	}
	if c.disk.NeedsRefresh(marketdata.LastTradingDay(c.now())) {
		_, _ = c.Collect(ctx, cfg)
	}
	return ctx.Err()
}

// run is the shared worker pool; fn must not block past ctx
func (c *Collector) run(
	ctx context.Context,
	op string,
	workers int,
	stocks []contracts.Stock,
	fn func(context.Context, contracts.Stock) FetchResult,
) (*Summary, []FetchResult) {
	start := time.Now()
	if workers <= 0 {
		workers = 10
	}

	results := make([]FetchResult, 0, len(stocks))
	resultCh := make(chan FetchResult, len(stocks))
	stockCh := make(chan contracts.Stock, len(stocks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for stock := range stockCh {
				select {
				case <-ctx.Done():
					resultCh <- FetchResult{StockCode: stock.Code, Error: ctx.Err()}
					continue
				default:
				}
				resultCh <- fn(ctx, stock)
			}
		}()
	}

	for _, stock := range stocks {
		stockCh <- stock
	}
	close(stockCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	summary := &Summary{Total: len(stocks)}
	step := len(stocks) / 20 // 5%마다 진행 로그
	if step < 1 {
		step = 1
	}

	for result := range resultCh {
		results = append(results, result)
		if result.Error != nil {
			summary.Failed++
		} else {
			summary.Success++
		}
		if result.Updated {
			summary.Updated++
		}

		if done := len(results); done%step == 0 || done == len(stocks) {
			c.logger.WithFields(map[string]interface{}{
				"op":      op,
				"done":    done,
				"total":   len(stocks),
				"success": summary.Success,
			}).Debug("Collection progress")
		}
	}

	summary.Elapsed = time.Since(start)
	c.logger.WithFields(map[string]interface{}{
		"op":      op,
		"success": summary.Success,
		"failed":  summary.Failed,
		"updated": summary.Updated,
		"total":   summary.Total,
		"elapsed": summary.Elapsed.String(),
	}).Info("Collection completed")

	return summary, results
}
