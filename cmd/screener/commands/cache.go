package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "캐시 정리 도구",
	Long: `일봉 파일 캐시를 관리합니다.

Example:
  go run ./cmd/screener cache cleanup`,
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "중복 캐시 파일 정리",
	Long: `같은 종목의 캐시 파일이 여러 개인 경우
가장 이른 시작일 (동률이면 가장 늦은 종료일) 파일만 남기고 삭제합니다.`,
	RunE: runCacheCleanup,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheCleanupCmd)
}

func runCacheCleanup(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Cache Cleanup ===")

	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	if a.stack.Disk == nil {
		PrintWarning("DATA_SOURCE=postgres: 파일 캐시가 없습니다")
		return nil
	}

	removed, err := a.stack.Disk.RemoveDuplicates()
	if err != nil {
		return fmt.Errorf("❌ Failed to remove duplicates: %w", err)
	}

	PrintSuccess(fmt.Sprintf("Removed %d duplicate cache files from %s", removed, a.stack.Disk.Dir()))
	return nil
}
