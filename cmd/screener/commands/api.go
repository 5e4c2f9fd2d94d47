package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/screener/internal/api"
	"github.com/wonny/screener/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health               - Health check
  POST /api/backtest         - 조건 세트 실행
  GET  /api/stocks           - 종목 목록
  GET  /api/results          - 저장된 결과 목록
  GET  /api/results/{name}   - 결과 조회
  GET  /ws/backtest          - 진행 상황 스트림 (WebSocket)
  GET  /metrics              - Prometheus metrics

Example:
  go run ./cmd/screener api
  go run ./cmd/screener api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Screener API Server ===")

	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	// 진행 상황 스트림
	hub := handlers.NewStreamHub(a.log)
	a.engine.AddObserver(hub)

	checks := map[string]api.Pinger{}
	if a.redis != nil && a.redis.Enabled() {
		checks["redis"] = a.redis
	}
	if a.db != nil {
		checks["database"] = a.db
	}

	router := api.NewRouter(api.Handlers{
		Backtest: handlers.NewBacktestHandler(a.engine, a.log),
		Stocks:   handlers.NewStocksHandler(a.stack.Universe, a.log),
		Results:  handlers.NewResultsHandler(a.store, a.log),
		Stream:   hub,
		Checks:   checks,
	}, a.log, a.cfg.MetricsEnabled)

	server := api.New(a.cfg, a.log, router)

	fmt.Printf("\n✅ Server running on http://localhost%s\n", server.Addr())
	fmt.Println("\nPress Ctrl+C to stop")

	// Ctrl+C: graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Serve(ctx); err != nil {
		return err
	}

	a.log.Info("Server stopped")
	return nil
}
