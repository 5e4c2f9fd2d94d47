package commands

import (
	"context"
	"fmt"

	"github.com/wonny/screener/internal/backtest"
	"github.com/wonny/screener/internal/collector"
	"github.com/wonny/screener/internal/marketdata"
	"github.com/wonny/screener/internal/notify"
	"github.com/wonny/screener/internal/results"
	"github.com/wonny/screener/pkg/config"
	"github.com/wonny/screener/pkg/database"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/metrics"
	"github.com/wonny/screener/pkg/redis"
)

// app holds the wired components shared by all commands
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	redis     *redis.Client
	db        *database.DB // nil without DATABASE_URL
	stack     *marketdata.Stack
	store     *results.Store
	engine    *backtest.Engine
	collector *collector.Collector
	mailer    *notify.Mailer
}

// newApp loads config and wires every component
func newApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	if cfg.MetricsEnabled {
		metrics.InitRegistry()
	}

	a := &app{cfg: cfg, log: log}

	// 3. Connect to redis (disabled unless REDIS_ENABLED)
	a.redis, err = redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without shared cache")
		a.redis = nil
	}

	// 4. Connect to database (optional)
	if cfg.Database.Enabled() {
		db, err := database.New(cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			a.Close()
			return nil, err
		}
		a.db = db
		log.Info("Connected to database")
	}

	// 5. Market data stack
	a.stack, err = marketdata.NewStack(marketdata.Deps{
		Config: cfg,
		Logger: log,
		Redis:  a.redis,
		DB:     a.db,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build market data stack: %w", err)
	}

	// 6. Result store + engine
	a.store, err = results.NewStore(cfg.Backtest.ResultsDir)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = backtest.NewEngine(backtest.ConfigFrom(cfg.Backtest), a.stack.Source, a.stack.Universe, a.store, log)

	// 7. Collector + mailer
	a.collector = collector.NewCollector(a.stack.Source, a.stack.Universe, a.stack.Disk, a.stack.Store, log)
	a.mailer = notify.NewMailer(cfg.SMTP, log)

	return a, nil
}

// Close releases the connections
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
