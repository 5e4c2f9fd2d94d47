package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/screener/internal/backtest"
	"github.com/wonny/screener/internal/notify"
	"github.com/wonny/screener/internal/strategy"
	"github.com/wonny/screener/pkg/metrics"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "조건 세트 스캔",
	Long: `전 종목에 조건 세트를 적용하여 가장 최근 매칭일을 찾습니다.

Example:
  go run ./cmd/screener backtest run
  go run ./cmd/screener backtest run --strategy strategies/pullback.yaml --name pullback`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "백테스트 실행",
		Long: `조건 세트를 실행하고 결과 파일을 기록합니다.

Flags:
  --strategy   조건 세트 파일 (YAML/JSON, 기본: 내장 涨停回调 전략)
  --name       결과 파일 이름 (기본: strategy_<YYYYMMDD_HHMMSS>)
  --lookback   조회 기간 (거래일 기준, 기본: 전략 설정)
  --workers    동시 스캔 수 (기본: BACKTEST_WORKERS)

Example:
  go run ./cmd/screener backtest run --name daily
  go run ./cmd/screener backtest run --strategy my.yaml --lookback 60 --workers 10`,
		RunE: runBacktest,
	}

	// Flags
	backtestStrategyFile string
	backtestName         string
	backtestLookback     int
	backtestWorkers      int
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)

	// Flags
	backtestRunCmd.Flags().StringVar(&backtestStrategyFile, "strategy", "", "조건 세트 파일 (YAML/JSON)")
	backtestRunCmd.Flags().StringVar(&backtestName, "name", "", "결과 파일 이름")
	backtestRunCmd.Flags().IntVar(&backtestLookback, "lookback", 0, "조회 기간 (일)")
	backtestRunCmd.Flags().IntVar(&backtestWorkers, "workers", 0, "동시 스캔 수")
}

// loadStrategy compiles the --strategy file or returns the built-in default
func loadStrategy(path string, lookback int) (*strategy.Strategy, error) {
	strat := strategy.Default()
	if path != "" {
		def, _, err := strategy.Load(path)
		if err != nil {
			return nil, err
		}
		if strat, err = def.Compile(); err != nil {
			return nil, err
		}
	}
	if lookback > 0 {
		strat.LookbackDays = lookback
	}
	return strat, nil
}

func runBacktest(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Screener Backtest ===")

	strat, err := loadStrategy(backtestStrategyFile, backtestLookback)
	if err != nil {
		return fmt.Errorf("load strategy: %w", err)
	}

	// Ctrl+C: 진행 중인 스캔을 중단하고 부분 결과를 저장
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	engine := a.engine
	if backtestWorkers > 0 {
		cfg := backtest.ConfigFrom(a.cfg.Backtest)
		cfg.Workers = backtestWorkers
		engine = backtest.NewEngine(cfg, a.stack.Source, a.stack.Universe, a.store, a.log)
	}

	fmt.Printf("\n📋 Strategy : %s (%d conditions)\n", displayName(strat.Name), len(strat.Conditions))
	fmt.Printf("📅 Lookback : %d days\n\n", strat.LookbackDays)
	fmt.Println("🚀 Starting backtest...")

	metrics.RecordRun("cli")
	report, err := engine.Run(ctx, strat, backtestName)
	if err != nil {
		return fmt.Errorf("run backtest: %w", err)
	}

	printReport(report)
	return nil
}

func printReport(report *backtest.Report) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Print(notify.FormatReport(report))
	PrintDoubleSeparator()

	if report.ResultPath != "" {
		PrintInfo("Results: " + report.ResultPath)
	}
	if report.Interrupted {
		PrintWarning(fmt.Sprintf("Interrupted: %d/%d stocks scanned", report.Completed, report.Universe))
		return
	}
	PrintSuccess(fmt.Sprintf("Backtest %s completed in %.2fs", report.RunName, report.Duration().Seconds()))
}

func displayName(name string) string {
	if name == "" {
		return "(unnamed)"
	}
	return name
}
