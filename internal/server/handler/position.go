package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

// PositionHandler serves the latest account snapshot: the live engine's
// last cycle when available, else the journal.
type PositionHandler struct {
	engine    EngineState
	snapshots domain.SnapshotStore
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler. Either source may be nil.
func NewPositionHandler(engine EngineState, snapshots domain.SnapshotStore, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{engine: engine, snapshots: snapshots, logger: logger}
}

// ListPositions returns the newest position and PnL snapshot.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	if h.engine != nil {
		if report, ok := h.engine.LastReport(); ok && report.Snapshot.CycleID != "" {
			writeJSON(w, http.StatusOK, report.Snapshot)
			return
		}
	}
	if h.snapshots == nil {
		writeError(w, http.StatusNotFound, "no position snapshot available")
		return
	}

	snap, err := h.snapshots.Latest(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no position snapshot available")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: latest snapshot failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load positions")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
