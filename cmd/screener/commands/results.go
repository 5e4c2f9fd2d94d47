package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/screener/internal/backtest"
	"github.com/wonny/screener/internal/results"
	"github.com/wonny/screener/pkg/config"
)

// resultsCmd represents the results command
var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "저장된 결과 조회",
	Long: `results/ 디렉토리의 결과 파일을 조회합니다.

Example:
  go run ./cmd/screener results list
  go run ./cmd/screener results show daily_20240115`,
}

var (
	resultsListCmd = &cobra.Command{
		Use:   "list",
		Short: "결과 파일 목록",
		RunE:  runResultsList,
	}

	resultsShowCmd = &cobra.Command{
		Use:   "show [run_name]",
		Short: "결과 파일 내용",
		Args:  cobra.ExactArgs(1),
		RunE:  runResultsShow,
	}
)

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsShowCmd)
}

// openStore opens the result store without wiring the data stack
func openStore() (*results.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return results.NewStore(cfg.Backtest.ResultsDir)
}

func runResultsList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	runs, err := store.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		PrintInfo("No results in " + store.Dir())
		return nil
	}

	for _, run := range runs {
		fmt.Printf("  %-32s %8d B  %s\n", run.Name, run.Size, run.ModifiedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runResultsShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	meta, records, err := store.Load(args[0])
	if err != nil {
		return err
	}

	PrintDoubleSeparator()
	if meta != nil {
		PrintKeyValue("Run", meta.RunName, 8)
		PrintKeyValue("Strategy", displayName(meta.StrategyName), 8)
		PrintKeyValue("Run ID", meta.RunID, 8)
		PrintKeyValue("Run At", meta.RunAt.Format("2006-01-02 15:04:05"), 8)
		if meta.Count != nil {
			PrintKeyValue("Count", fmt.Sprintf("%d", *meta.Count), 8)
		} else {
			PrintWarning("Run did not finish (no final count)")
		}
	}
	PrintSeparator()

	for i, r := range records {
		fmt.Printf("%d. %s %s | 匹配日: %s | 匹配价: %.2f | 现价: %.2f | 涨跌: %+.2f%%\n",
			i+1, r.Code, r.Name, r.MatchDate.String(), r.MatchPrice, r.CurrentPrice, r.ReturnPct())
	}

	s := backtest.Summarize(records)
	PrintSeparator()
	fmt.Printf("共 %d 只 | 上涨 %d | 胜率 %.1f%% | 平均 %+.2f%%\n", s.Count, s.Winners, s.WinRate*100, s.AvgReturn)
	return nil
}
