package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

// BookHandler serves the cached top of book the engine last saw.
type BookHandler struct {
	books  domain.BookCache
	logger *slog.Logger
}

// NewBookHandler creates a BookHandler.
func NewBookHandler(books domain.BookCache, logger *slog.Logger) *BookHandler {
	return &BookHandler{books: books, logger: logger}
}

// GetTop returns the cached best bid and ask of one instrument.
// GET /api/books/{id}
func (h *BookHandler) GetTop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	top, seen, err := h.books.GetTop(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no book cached for "+id)
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get top failed", slog.String("instrument", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load book")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"instrument_id": id,
		"bid":           top.Bid,
		"ask":           top.Ask,
		"seen_at":       seen,
	})
}
