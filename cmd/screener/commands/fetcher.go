package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/screener/internal/backtest"
	"github.com/wonny/screener/internal/collector"
	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/strategy"
)

// fetcherCmd represents the fetcher command
var fetcherCmd = &cobra.Command{
	Use:   "fetcher",
	Short: "일봉 데이터 수집 도구",
	Long: `외부 소스 (东方财富, 新浪)에서 일봉 데이터를 수집하여 캐시를 채웁니다.

Example:
  go run ./cmd/screener fetcher collect
  go run ./cmd/screener fetcher collect --lookback 60
  go run ./cmd/screener fetcher update`,
}

var (
	fetcherCollectCmd = &cobra.Command{
		Use:   "collect",
		Short: "전 종목 캐시 채우기",
		Long: `메인보드 전 종목의 조회 구간 일봉을 수집합니다.
구간은 backtest run 과 동일하게 계산되어 캐시 키가 일치합니다.`,
		RunE: runFetcherCollect,
	}

	fetcherUpdateCmd = &cobra.Command{
		Use:   "update",
		Short: "캐시 증분 업데이트",
		Long:  `최근 거래일이 없는 캐시 파일에 새 일봉을 병합합니다.`,
		RunE:  runFetcherUpdate,
	}

	// Fetcher flags
	fetcherLookback int
	fetcherWorkers  int
)

func init() {
	rootCmd.AddCommand(fetcherCmd)
	fetcherCmd.AddCommand(fetcherCollectCmd)
	fetcherCmd.AddCommand(fetcherUpdateCmd)

	// Flags
	fetcherCmd.PersistentFlags().IntVar(&fetcherLookback, "lookback", strategy.DefaultLookbackDays, "조회 기간 (일)")
	fetcherCmd.PersistentFlags().IntVar(&fetcherWorkers, "workers", 10, "동시 수집 수")
}

func runFetcherCollect(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Screener Data Fetcher ===")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	end := contracts.DateOf(time.Now())
	cfg := collector.Config{
		Workers: fetcherWorkers,
		Start:   end.AddDays(-backtest.WindowDays(fetcherLookback)),
		End:     end,
	}

	fmt.Printf("\n📅 Period: %s ~ %s\n", cfg.Start.String(), cfg.End.String())
	PrintSeparator()

	summary, _ := a.collector.Collect(ctx, cfg)
	printCollectSummary(summary)
	return ctx.Err()
}

func runFetcherUpdate(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Screener Cache Update ===")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, _, err := a.collector.Update(ctx, fetcherWorkers)
	if errors.Is(err, collector.ErrNoDiskCache) {
		PrintWarning("DATA_SOURCE=postgres: 파일 캐시가 없습니다")
		return nil
	}
	if err != nil {
		return fmt.Errorf("update caches: %w", err)
	}

	printCollectSummary(summary)
	return ctx.Err()
}

func printCollectSummary(s *collector.Summary) {
	fmt.Println()
	PrintKeyValue("Total", fmt.Sprintf("%d", s.Total), 8)
	PrintKeyValue("Success", fmt.Sprintf("%d", s.Success), 8)
	PrintKeyValue("Failed", fmt.Sprintf("%d", s.Failed), 8)
	PrintKeyValue("Updated", fmt.Sprintf("%d", s.Updated), 8)
	PrintKeyValue("Elapsed", s.Elapsed.Round(time.Millisecond).String(), 8)
	fmt.Println()

	if s.Failed > 0 {
		PrintWarning(fmt.Sprintf("%d stocks failed", s.Failed))
		return
	}
	PrintSuccess("Collection complete")
}
