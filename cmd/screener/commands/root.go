package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "screener",
	Short: "A股 涨停回调 选股 / 回测 엔진",
	Long: `Limit-up pattern screener

전 종목을 병렬 스캔하여 조건 세트를 만족하는 종목을 찾습니다.
결과는 results/<name>_results.jsonl 에 저장됩니다.

Usage:
  go run ./cmd/screener [command]

Examples:
  go run ./cmd/screener backtest run
  go run ./cmd/screener backtest run --strategy strategies/pullback.yaml --name pullback
  go run ./cmd/screener fetcher collect
  go run ./cmd/screener api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (LOG_LEVEL=debug)")
}
