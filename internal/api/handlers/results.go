package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/results"
	"github.com/wonny/screener/pkg/logger"
)

// ResultsHandler serves stored result files
type ResultsHandler struct {
	store  *results.Store
	logger *logger.Logger
}

// NewResultsHandler creates a new results handler
func NewResultsHandler(store *results.Store, log *logger.Logger) *ResultsHandler {
	return &ResultsHandler{
		store:  store,
		logger: log,
	}
}

// List returns stored runs, newest first
// GET /api/results
func (h *ResultsHandler) List(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.List()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list results")
		respondError(w, http.StatusInternalServerError, "Failed to list results")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    runs,
		"count":   len(runs),
	})
}

// Get returns the header and records of one run
// GET /api/results/{name}
func (h *ResultsHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	meta, records, err := h.store.Load(name)
	switch {
	case errors.Is(err, results.ErrInvalidRunName):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, results.ErrRunNotFound):
		respondError(w, http.StatusNotFound, "Run not found")
		return
	case err != nil:
		h.logger.WithError(err).WithField("run", name).Error("Failed to load results")
		respondError(w, http.StatusInternalServerError, "Failed to load results")
		return
	}
	if records == nil {
		records = []contracts.MatchResult{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"meta":    meta,
		"data":    records,
		"count":   len(records),
	})
}
