package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/results"
	"github.com/wonny/screener/internal/strategy"
	"github.com/wonny/screener/internal/universe"
	"github.com/wonny/screener/pkg/config"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/metrics"
)

// Scan statuses, also used as metric labels
const (
	StatusMatch    = "match"
	StatusNoMatch  = "no_match"
	StatusTimeout  = "timeout"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

// Config holds the fan-out settings of a run
type Config struct {
	Workers       int           // concurrent scans
	TaskTimeout   time.Duration // soft limit per stock
	ProgressEvery int           // log progress every N completions
}

// DefaultConfig returns 30 workers, 30s per stock, progress every 10
func DefaultConfig() Config {
	return Config{
		Workers:       30,
		TaskTimeout:   30 * time.Second,
		ProgressEvery: 10,
	}
}

// ConfigFrom maps the application config, falling back to defaults for unset values
func ConfigFrom(cfg config.BacktestConfig) Config {
	out := DefaultConfig()
	if cfg.Workers > 0 {
		out.Workers = cfg.Workers
	}
	if cfg.TaskTimeout > 0 {
		out.TaskTimeout = cfg.TaskTimeout
	}
	if cfg.ProgressEvery > 0 {
		out.ProgressEvery = cfg.ProgressEvery
	}
	return out
}

// Window is the calendar range of bars fetched per stock
type Window struct {
	Start contracts.Date `json:"start"`
	End   contracts.Date `json:"end"`
}

// WindowDays converts a trading-day lookback into calendar days
// (1.6 calendar days per trading day plus a margin of 10)
func WindowDays(lookback int) int {
	return int(float64(lookback)*1.6) + 10
}

// Report is the outcome of one run
type Report struct {
	RunID      string    `json:"run_id"`
	RunName    string    `json:"run_name"`
	Strategy   string    `json:"strategy"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Window     Window    `json:"window"`

	// Counters
	Universe  int `json:"universe"`
	Excluded  int `json:"excluded"`
	Completed int `json:"completed"`
	Matched   int `json:"matched"`
	TimedOut  int `json:"timed_out"`
	Failed    int `json:"failed"`
	Canceled  int `json:"canceled"`

	// Interrupted is set when the parent context ended before every scan finished
	Interrupted bool `json:"interrupted"`

	Results    []contracts.MatchResult `json:"results"`
	ResultPath string                  `json:"result_path,omitempty"`
	Summary    Summary                 `json:"summary"`
}

// Duration returns the wall time of the run
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Engine fans a strategy out over the universe
// ⭐ SSOT: 백테스트 실행은 여기서만
type Engine struct {
	config   Config
	universe *universe.Builder
	scanner  *strategy.Scanner
	store    *results.Store // nil disables persistence
	logger   *logger.Logger

	mu        sync.RWMutex
	observers []Observer

	now      func() time.Time
	newRunID func() string
}

// NewEngine creates a new backtest engine
func NewEngine(
	cfg Config,
	source contracts.BarSource,
	lister contracts.UniverseLister,
	store *results.Store,
	log *logger.Logger,
) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultConfig().TaskTimeout
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = DefaultConfig().ProgressEvery
	}

	return &Engine{
		config:   cfg,
		universe: universe.NewBuilder(lister, log),
		scanner:  strategy.NewScanner(source),
		store:    store,
		logger:   log.WithComponent("backtest"),
		now:      time.Now,
		newRunID: func() string { return uuid.New().String() },
	}
}

// WithClock replaces the time source (window end and default run names)
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// AddObserver registers an observer for every subsequent run
func (e *Engine) AddObserver(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

// Run scans every stock of the filtered universe and persists the matches.
// runName defaults to strategy_<YYYYMMDD_HHMMSS>. Per-stock failures never
// fail the run; a cancelled ctx returns the partial report with Interrupted set.
func (e *Engine) Run(ctx context.Context, strat *strategy.Strategy, runName string) (*Report, error) {
	if strat == nil {
		return nil, fmt.Errorf("run backtest: %w: nil strategy", strategy.ErrInvalidCondition)
	}

	startedAt := e.now()
	if runName == "" {
		runName = results.DefaultRunName(startedAt)
	}
	if err := results.ValidateRunName(runName); err != nil {
		return nil, err
	}

	lookback := strat.LookbackDays
	if lookback <= 0 {
		lookback = strategy.DefaultLookbackDays
	}
	end := contracts.DateOf(startedAt)
	window := Window{Start: end.AddDays(-WindowDays(lookback)), End: end}

	report := &Report{
		RunID:     e.newRunID(),
		RunName:   runName,
		Strategy:  strat.Name,
		StartedAt: startedAt,
		Window:    window,
		Results:   []contracts.MatchResult{},
	}

	log := e.logger.WithRun(report.RunID, runName)

	// 조건이 없으면 아무것도 하지 않음
	if len(strat.Conditions) == 0 {
		log.Warn("Strategy has no conditions, nothing to scan")
		return e.finish(report, startedAt), nil
	}

	u := e.universe.Build(ctx, strat.Exclude, end)
	report.Universe = u.Count()
	report.Excluded = len(u.Excluded)

	set := &resultSet{
		results: make([]contracts.MatchResult, 0),
		logger:  log,
	}
	if e.store != nil {
		run, err := e.store.Open(report.RunName, e.runMeta(report, strat))
		if err != nil {
			log.WithError(err).Warn("Failed to open results file, continuing in memory")
			metrics.RecordPersistFailure()
		} else {
			set.run = run
			report.ResultPath = run.Path()
		}
	}

	log.WithFields(map[string]interface{}{
		"strategy": strat.Name,
		"stocks":   u.Count(),
		"start":    window.Start.String(),
		"end":      window.End.String(),
		"workers":  e.config.Workers,
	}).Info("Starting backtest")

	e.scanAll(ctx, log, strat, u.Stocks, window, set, report)

	// 최종 결과: (날짜, 코드) 정렬 후 파일 재작성
	report.Results = set.snapshot()
	results.SortResults(report.Results)
	report.Matched = len(report.Results)

	if set.run != nil {
		if err := set.run.Rewrite(report.Results); err != nil {
			log.WithError(err).WithField("path", set.run.Path()).Warn("Failed to rewrite results file")
			metrics.RecordPersistFailure()
		}
	}

	report.Interrupted = ctx.Err() != nil
	return e.finish(report, startedAt), nil
}

func (e *Engine) finish(report *Report, startedAt time.Time) *Report {
	report.FinishedAt = e.now()
	report.Summary = Summarize(report.Results)

	metrics.RecordRunComplete(report.Matched, time.Since(startedAt).Seconds())

	e.logger.WithRun(report.RunID, report.RunName).WithFields(map[string]interface{}{
		"universe":    report.Universe,
		"completed":   report.Completed,
		"matched":     report.Matched,
		"timed_out":   report.TimedOut,
		"failed":      report.Failed,
		"canceled":    report.Canceled,
		"interrupted": report.Interrupted,
	}).Info("Backtest completed")

	for _, o := range e.snapshotObservers() {
		o.OnComplete(report)
	}
	return report
}

func (e *Engine) runMeta(report *Report, strat *strategy.Strategy) contracts.RunMeta {
	meta := contracts.RunMeta{
		RunName:      report.RunName,
		StrategyName: strat.Name,
		RunID:        report.RunID,
		RunAt:        report.StartedAt,
	}
	def := strategy.DefinitionOf(strat)
	if hash, err := strategy.Hash(&def); err == nil {
		meta.StrategyHash = hash
	}
	return meta
}

// taskOutcome is what a worker reports for one stock
type taskOutcome struct {
	stock    contracts.Stock
	status   string
	match    *contracts.MatchResult
	err      error
	duration time.Duration
}

// scanAll runs the worker pool and folds outcomes into report
func (e *Engine) scanAll(
	ctx context.Context,
	log *logger.Logger,
	strat *strategy.Strategy,
	stocks []contracts.Stock,
	window Window,
	set *resultSet,
	report *Report,
) {
	total := len(stocks)
	if total == 0 {
		return
	}

	workers := e.config.Workers
	if workers > total {
		workers = total
	}

	stockCh := make(chan contracts.Stock, total)
	outcomeCh := make(chan taskOutcome, total)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for stock := range stockCh {
				outcome := e.scanOne(ctx, strat, stock, window)
				if outcome.match != nil {
					set.add(*outcome.match)
				}
				outcomeCh <- outcome
			}
		}()
	}

	for _, stock := range stocks {
		stockCh <- stock
	}
	close(stockCh)

	go func() {
		wg.Wait()
		close(outcomeCh)
	}()

	observers := e.snapshotObservers()
	lastFailures := 0

	for outcome := range outcomeCh {
		report.Completed++
		metrics.RecordScan(outcome.status, outcome.duration.Seconds())

		switch outcome.status {
		case StatusMatch:
			report.Matched++
			for _, o := range observers {
				o.OnMatch(report.RunID, *outcome.match)
			}
		case StatusTimeout:
			report.TimedOut++
			log.WithField("code", outcome.stock.Code).Debug("Scan timed out")
		case StatusFailed:
			report.Failed++
			log.WithError(outcome.err).WithField("code", outcome.stock.Code).Debug("Scan failed")
		case StatusCanceled:
			report.Canceled++
		}

		if report.Completed%e.config.ProgressEvery == 0 || report.Completed == total {
			progress := Progress{
				RunID:     report.RunID,
				RunName:   report.RunName,
				Completed: report.Completed,
				Total:     total,
				Matched:   report.Matched,
				TimedOut:  report.TimedOut,
				Failed:    report.Failed,
			}

			log.WithFields(map[string]interface{}{
				"completed": progress.Completed,
				"total":     progress.Total,
				"matched":   progress.Matched,
				"percent":   fmt.Sprintf("%.1f%%", progress.Percent()),
			}).Info("Backtest progress")

			if failures := report.TimedOut + report.Failed; failures > lastFailures {
				log.WithFields(map[string]interface{}{
					"timed_out": report.TimedOut,
					"failed":    report.Failed,
				}).Warn("Some scans did not complete")
				lastFailures = failures
			}

			for _, o := range observers {
				o.OnProgress(progress)
			}
		}
	}
}

type scanReply struct {
	outcome *strategy.ScanOutcome
	err     error
}

// scanOne evaluates one stock under the per-task timeout. On timeout the
// scan goroutine is abandoned and its late reply dropped.
func (e *Engine) scanOne(ctx context.Context, strat *strategy.Strategy, stock contracts.Stock, window Window) taskOutcome {
	out := taskOutcome{stock: stock}

	select {
	case <-ctx.Done():
		out.status = StatusCanceled
		return out
	default:
	}

	metrics.InFlightScans.Inc()
	defer metrics.InFlightScans.Dec()

	begin := time.Now()

	taskCtx, cancel := context.WithTimeout(ctx, e.config.TaskTimeout)
	defer cancel()

	reply := make(chan scanReply, 1) // buffered so an abandoned scan never blocks
	go func() {
		defer func() {
			if r := recover(); r != nil {
				reply <- scanReply{err: fmt.Errorf("scan %s panicked: %v", stock.Code, r)}
			}
		}()
		outcome, err := e.scanner.Scan(taskCtx, stock.Code, strat, window.Start, window.End)
		reply <- scanReply{outcome: outcome, err: err}
	}()

	select {
	case r := <-reply:
		switch {
		case r.err == nil && r.outcome == nil:
			out.status = StatusNoMatch
		case r.err == nil:
			match := r.outcome.MatchResult(stock)
			out.status = StatusMatch
			out.match = &match
		case ctx.Err() != nil:
			out.status = StatusCanceled
		case errors.Is(r.err, context.DeadlineExceeded):
			out.status = StatusTimeout
		default:
			out.status = StatusFailed
			out.err = r.err
		}
	case <-taskCtx.Done():
		if ctx.Err() != nil {
			out.status = StatusCanceled
		} else {
			out.status = StatusTimeout
		}
	}

	out.duration = time.Since(begin)
	return out
}

func (e *Engine) snapshotObservers() []Observer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Observer, len(e.observers))
	copy(out, e.observers)
	return out
}

// resultSet accumulates matches; the slice and the results file share one lock
type resultSet struct {
	mu      sync.Mutex
	results []contracts.MatchResult
	run     *results.Run
	logger  *logger.Logger
}

func (s *resultSet) add(rec contracts.MatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = append(s.results, rec)
	if s.run == nil {
		return
	}
	if err := s.run.Append(rec); err != nil {
		s.logger.WithError(err).WithField("code", rec.Code).Warn("Failed to append result")
		metrics.RecordPersistFailure()
	}
}

func (s *resultSet) snapshot() []contracts.MatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]contracts.MatchResult, len(s.results))
	copy(out, s.results)
	return out
}
