package marketdata

import (
	"fmt"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/external/eastmoney"
	"github.com/wonny/screener/internal/external/sina"
	"github.com/wonny/screener/pkg/config"
	"github.com/wonny/screener/pkg/database"
	"github.com/wonny/screener/pkg/httputil"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/redis"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// Deps are the shared clients a Stack is assembled from
type Deps struct {
	Config *config.Config
	Logger *logger.Logger
	Redis  *redis.Client // may be disabled
	DB     *database.DB  // nil unless DATABASE_URL is set
}

// Stack is the assembled market data layer
type Stack struct {
	Source   contracts.BarSource
	Universe *CachedUniverse
	Disk     *DiskCache // nil for the postgres provider
	Store    *PGStore   // nil without a database
}

// NewStack wires the configured provider with its decorators:
// upstream → (pg recorder) → breaker → (serialized) → disk cache
func NewStack(deps Deps) (*Stack, error) {
	cfg := deps.Config
	log := deps.Logger

	var sharedCache *redis.Cache
	var limiter *redis.RateLimiter
	if deps.Redis != nil && deps.Redis.Enabled() {
		sharedCache = redis.NewCache(deps.Redis, "screener")
		limiter = redis.NewRateLimiter(deps.Redis, "screener")
	}

	stack := &Stack{}
	if deps.DB != nil {
		stack.Store = NewPGStore(deps.DB.Pool)
	}

	var lister StockLister
	switch cfg.DataSource.Provider {
	case "postgres":
		if stack.Store == nil {
			return nil, fmt.Errorf("postgres data source requires a database")
		}
		var source contracts.BarSource = stack.Store
		if cfg.DataSource.Serialize {
			source = NewSerialized(source)
		}
		stack.Source = source
		lister = stack.Store

	default:
		emHTTP := httputil.New(log).
			WithHeader("User-Agent", userAgent).
			WithHeader("Referer", "https://quote.eastmoney.com/").
			WithLocalLimit(cfg.DataSource.RateLimit)
		if limiter != nil {
			emHTTP = emHTTP.WithRateLimiter(limiter, redis.EastmoneyRateLimit)
		}

		var source contracts.BarSource = eastmoney.NewClient(emHTTP, log, cfg.DataSource.EastmoneyBaseURL)
		if stack.Store != nil {
			storeLog := log.WithComponent("pgstore")
			source = NewRecorder(source, stack.Store, func(code string, err error) {
				storeLog.WithError(err).WithField("code", code).Warn("Failed to save bars")
			})
		}
		if cfg.CircuitBreaker.Enabled {
			source = NewBreakerSource("eastmoney", source, cfg.CircuitBreaker, log)
		}
		if cfg.DataSource.Serialize {
			source = NewSerialized(source)
		}

		disk, err := NewDiskCache(cfg.DataSource.CacheDir, cfg.DataSource.BarCacheTTL, source, log)
		if err != nil {
			return nil, err
		}
		stack.Disk = disk
		stack.Source = disk

		sinaHTTP := httputil.New(log).
			WithHeader("User-Agent", userAgent).
			WithHeader("Referer", "https://finance.sina.com.cn/").
			WithLocalLimit(float64(redis.SinaRateLimit.Limit))
		if limiter != nil {
			sinaHTTP = sinaHTTP.WithRateLimiter(limiter, redis.SinaRateLimit)
		}
		lister = sina.NewClient(sinaHTTP, log, cfg.DataSource.SinaBaseURL)
	}

	stack.Universe = NewCachedUniverse(lister, sharedCache, redis.TTLUniverse, cfg.DataSource.UniverseCacheTTL, log)
	return stack, nil
}
