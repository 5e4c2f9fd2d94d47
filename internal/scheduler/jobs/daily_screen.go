package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/screener/internal/backtest"
	"github.com/wonny/screener/internal/collector"
	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/notify"
	"github.com/wonny/screener/internal/strategy"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/metrics"
)

// Refresher warms the bar caches before a run
type Refresher interface {
	Refresh(ctx context.Context, cfg collector.Config) error
}

// Runner executes one screening run
type Runner interface {
	Run(ctx context.Context, strat *strategy.Strategy, runName string) (*backtest.Report, error)
}

// Notifier delivers the run summary
type Notifier interface {
	Enabled() bool
	Send(ctx context.Context, msg notify.Message) error
}

// DailyScreenJob refreshes the caches, screens the universe and mails the result
type DailyScreenJob struct {
	refresher Refresher // optional
	runner    Runner
	notifier  Notifier // optional
	strategy  *strategy.Strategy
	workers   int
	schedule  string
	logger    *logger.Logger
	now       func() time.Time
}

// NewDailyScreenJob creates a new daily screening job
func NewDailyScreenJob(
	refresher Refresher,
	runner Runner,
	notifier Notifier,
	strat *strategy.Strategy,
	workers int,
	schedule string,
	log *logger.Logger,
) *DailyScreenJob {
	if strat == nil {
		strat = strategy.Default()
	}
	return &DailyScreenJob{
		refresher: refresher,
		runner:    runner,
		notifier:  notifier,
		strategy:  strat,
		workers:   workers,
		schedule:  schedule,
		logger:    log.WithComponent("daily-screen"),
		now:       time.Now,
	}
}

// WithClock replaces the time source
func (j *DailyScreenJob) WithClock(now func() time.Time) *DailyScreenJob {
	j.now = now
	return j
}

// Name returns the job name
func (j *DailyScreenJob) Name() string {
	return "daily_screen"
}

// Schedule returns the cron schedule
func (j *DailyScreenJob) Schedule() string {
	return j.schedule
}

// Run executes the daily screening
func (j *DailyScreenJob) Run(ctx context.Context) error {
	now := j.now()

	if j.refresher != nil {
		// 엔진과 같은 윈도우로 캐시를 채워야 캐시 키가 일치함
		lookback := j.strategy.LookbackDays
		if lookback <= 0 {
			lookback = strategy.DefaultLookbackDays
		}
		end := contracts.DateOf(now)
		cfg := collector.Config{
			Workers: j.workers,
			Start:   end.AddDays(-backtest.WindowDays(lookback)),
			End:     end,
		}
		if err := j.refresher.Refresh(ctx, cfg); err != nil {
			return fmt.Errorf("refresh caches: %w", err)
		}
	}

	metrics.RecordRun("scheduler")
	report, err := j.runner.Run(ctx, j.strategy, "daily_"+now.Format("20060102"))
	if err != nil {
		return fmt.Errorf("run screening: %w", err)
	}
	if report.Interrupted {
		return fmt.Errorf("run screening: interrupted after %d/%d stocks", report.Completed, report.Universe)
	}

	j.logger.WithFields(map[string]interface{}{
		"run":     report.RunName,
		"matched": report.Matched,
		"failed":  report.Failed,
		"elapsed": report.Duration().String(),
	}).Info("Daily screening completed")

	j.deliver(ctx, report)
	return nil
}

// deliver mails the report; delivery failures never fail the job
func (j *DailyScreenJob) deliver(ctx context.Context, report *backtest.Report) {
	if j.notifier == nil || !j.notifier.Enabled() {
		return
	}

	msg := notify.Message{
		Subject: notify.Subject(report),
		Body:    notify.FormatReport(report),
	}
	if report.ResultPath != "" {
		msg.Attachments = []string{report.ResultPath}
	}

	if err := j.notifier.Send(ctx, msg); err != nil {
		j.logger.WithError(err).Warn("Failed to send daily report")
	}
}
