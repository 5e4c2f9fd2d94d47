package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/screener/internal/backtest"
	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/results"
	"github.com/wonny/screener/internal/strategy"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/metrics"
)

// Runner executes one screening run
type Runner interface {
	Run(ctx context.Context, strat *strategy.Strategy, runName string) (*backtest.Report, error)
}

// BacktestHandler handles backtest API endpoints
// ⭐ SSOT: 백테스트 API 핸들러는 이 구조체에서만
type BacktestHandler struct {
	runner Runner
	logger *logger.Logger
}

// NewBacktestHandler creates a new backtest handler
func NewBacktestHandler(runner Runner, log *logger.Logger) *BacktestHandler {
	return &BacktestHandler{
		runner: runner,
		logger: log,
	}
}

// BacktestRequest represents a backtest request
type BacktestRequest struct {
	Strategy     *strategy.Definition `json:"strategy"`
	StrategyName string               `json:"strategy_name"` // result file name
}

// BacktestResponse represents a backtest response
type BacktestResponse struct {
	Success     bool                    `json:"success"`
	Data        []contracts.MatchResult `json:"data"`
	Count       int                     `json:"count"`
	RunID       string                  `json:"run_id"`
	RunName     string                  `json:"run_name"`
	Universe    int                     `json:"universe"`
	TimedOut    int                     `json:"timed_out"`
	Failed      int                     `json:"failed"`
	Interrupted bool                    `json:"interrupted,omitempty"`
	Summary     backtest.Summary        `json:"summary"`
}

// Run executes a strategy over the universe
// POST /api/backtest
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Strategy == nil {
		respondError(w, http.StatusBadRequest, "strategy is required")
		return
	}
	if req.Strategy.Name == "" {
		req.Strategy.Name = req.StrategyName
	}

	strat, err := req.Strategy.Compile()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	metrics.RecordRun("api")
	report, err := h.runner.Run(r.Context(), strat, req.StrategyName)
	if err != nil {
		if errors.Is(err, results.ErrInvalidRunName) || errors.Is(err, strategy.ErrInvalidCondition) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.WithError(err).Error("Backtest failed")
		respondError(w, http.StatusInternalServerError, "Backtest failed")
		return
	}

	respondJSON(w, http.StatusOK, BacktestResponse{
		Success:     true,
		Data:        report.Results,
		Count:       report.Matched,
		RunID:       report.RunID,
		RunName:     report.RunName,
		Universe:    report.Universe,
		TimedOut:    report.TimedOut,
		Failed:      report.Failed,
		Interrupted: report.Interrupted,
		Summary:     report.Summary,
	})
}
