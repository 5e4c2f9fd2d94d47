package handlers

import (
	"net/http"
	"time"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/universe"
	"github.com/wonny/screener/pkg/logger"
)

// StocksHandler serves the stock universe
type StocksHandler struct {
	lister contracts.UniverseLister
	logger *logger.Logger
}

// NewStocksHandler creates a new stocks handler
func NewStocksHandler(lister contracts.UniverseLister, log *logger.Logger) *StocksHandler {
	return &StocksHandler{
		lister: lister,
		logger: log,
	}
}

// List returns the listed stocks
// GET /api/stocks?main_board=true
func (h *StocksHandler) List(w http.ResponseWriter, r *http.Request) {
	stocks := h.lister.ListUniverse(r.Context())

	// 메인보드만 (ST/退 제외)
	if r.URL.Query().Get("main_board") == "true" {
		stocks = universe.Filter(stocks, contracts.ExcludeAll(), contracts.DateOf(time.Now())).Stocks
	}
	if stocks == nil {
		stocks = []contracts.Stock{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    stocks,
		"count":   len(stocks),
	})
}
