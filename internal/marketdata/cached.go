package marketdata

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/metrics"
	"github.com/wonny/screener/pkg/redis"
)

// StockLister fetches the stock list from an upstream
type StockLister interface {
	ListStocks(ctx context.Context) ([]contracts.Stock, error)
}

// StockListerFunc adapts a function to StockLister
type StockListerFunc func(ctx context.Context) ([]contracts.Stock, error)

// ListStocks calls f
func (f StockListerFunc) ListStocks(ctx context.Context) ([]contracts.Stock, error) {
	return f(ctx)
}

const localUniverseKey = "universe"

// CachedUniverse is a UniverseLister reading through an in-process cache,
// then redis, then the upstream
// ⭐ SSOT: 종목 목록 캐시 (go-cache 1h → redis 24h → upstream)
type CachedUniverse struct {
	upstream  StockLister
	local     *gocache.Cache
	shared    *redis.Cache
	sharedTTL time.Duration
	logger    *logger.Logger
}

// NewCachedUniverse creates the lister; shared may be nil
func NewCachedUniverse(upstream StockLister, shared *redis.Cache, localTTL, sharedTTL time.Duration, log *logger.Logger) *CachedUniverse {
	if localTTL <= 0 {
		localTTL = redis.TTLUniverse
	}
	if sharedTTL <= 0 {
		sharedTTL = redis.TTLDaily
	}
	return &CachedUniverse{
		upstream:  upstream,
		local:     gocache.New(localTTL, 2*localTTL),
		shared:    shared,
		sharedTTL: sharedTTL,
		logger:    log.WithComponent("universe_cache"),
	}
}

// ListUniverse never fails: upstream errors degrade to an empty list
func (c *CachedUniverse) ListUniverse(ctx context.Context) []contracts.Stock {
	if cached, ok := c.local.Get(localUniverseKey); ok {
		metrics.RecordCacheLookup("memory", true)
		return copyStocks(cached.([]contracts.Stock))
	}
	metrics.RecordCacheLookup("memory", false)

	if c.shared != nil {
		var stocks []contracts.Stock
		found, err := c.shared.Get(ctx, redis.UniverseKey(), &stocks)
		if err != nil {
			c.logger.WithError(err).Debug("Shared universe cache unreadable")
		}
		metrics.RecordCacheLookup("redis", found && len(stocks) > 0)
		if found && len(stocks) > 0 {
			c.local.SetDefault(localUniverseKey, stocks)
			return copyStocks(stocks)
		}
	}

	stocks, err := c.upstream.ListStocks(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to list stocks")
		return []contracts.Stock{}
	}
	if len(stocks) == 0 {
		return []contracts.Stock{}
	}

	c.local.SetDefault(localUniverseKey, stocks)
	if c.shared != nil {
		if err := c.shared.Set(ctx, redis.UniverseKey(), stocks, c.sharedTTL); err != nil {
			c.logger.WithError(err).Debug("Failed to store shared universe cache")
		}
	}
	return copyStocks(stocks)
}

// Invalidate drops the in-process and shared copies
func (c *CachedUniverse) Invalidate(ctx context.Context) {
	c.local.Delete(localUniverseKey)
	if c.shared != nil {
		_ = c.shared.Delete(ctx, redis.UniverseKey())
	}
}

func copyStocks(stocks []contracts.Stock) []contracts.Stock {
	out := make([]contracts.Stock, len(stocks))
	copy(out, stocks)
	return out
}
