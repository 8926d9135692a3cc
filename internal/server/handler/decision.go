package handler

import (
	"log/slog"
	"net/http"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

// DecisionHandler serves the decision journal.
type DecisionHandler struct {
	decisions domain.DecisionStore
	logger    *slog.Logger
}

// NewDecisionHandler creates a DecisionHandler.
func NewDecisionHandler(decisions domain.DecisionStore, logger *slog.Logger) *DecisionHandler {
	return &DecisionHandler{decisions: decisions, logger: logger}
}

type listDecisionsResponse struct {
	Decisions []domain.Decision `json:"decisions"`
}

// ListDecisions returns journal entries newest first.
// GET /api/decisions?limit=&offset=&since=&until=
func (h *DecisionHandler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := h.decisions.ListRecent(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list decisions failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list decisions")
		return
	}
	if list == nil {
		list = []domain.Decision{}
	}
	writeJSON(w, http.StatusOK, listDecisionsResponse{Decisions: list})
}
