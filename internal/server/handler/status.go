package handler

import (
	"net/http"
	"time"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

// EngineState is what the status endpoints read from the running engine.
type EngineState interface {
	LastReport() (domain.CycleReport, bool)
	Pairs() []domain.PairConfig
}

// StatusHandler serves the mode, pair catalogue and last cycle report.
type StatusHandler struct {
	mode      string
	engine    EngineState
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler. engine is nil in server-only
// mode.
func NewStatusHandler(mode string, engine EngineState) *StatusHandler {
	return &StatusHandler{mode: mode, engine: engine, startedAt: time.Now().UTC()}
}

type pairView struct {
	Name      string `json:"name"`
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	Kind      string `json:"kind"`
	Quoting   string `json:"quoting"`
}

// GetStatus reports the mode, the pairs and the last cycle report.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"engine_running": h.engine != nil,
	}
	if h.engine != nil {
		pairs := h.engine.Pairs()
		views := make([]pairView, 0, len(pairs))
		for _, p := range pairs {
			views = append(views, pairView{
				Name:      p.Name,
				Primary:   p.Primary,
				Secondary: p.Secondary,
				Kind:      string(p.Kind),
				Quoting:   string(p.Quoting),
			})
		}
		resp["pairs"] = views
		if report, ok := h.engine.LastReport(); ok {
			resp["last_cycle"] = report
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
