package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/crucial707/autosignin/internal/models"
)

// HistoryReader returns the recorded outcomes of the last days days.
type HistoryReader interface {
	Window(ctx context.Context, days int) (models.History, error)
}

type HistoryHandler struct {
	Store HistoryReader
}

// GetHistory serves GET /history?days=N (1..30, default 30).
func (h *HistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 30 {
			JSONError(w, "days must be between 1 and 30", http.StatusBadRequest)
			return
		}
		days = n
	}

	hist, err := h.Store.Window(r.Context(), days)
	if err != nil {
		slog.Error("load history", "err", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if hist == nil {
		hist = models.History{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"count":   hist.Len(),
		"history": hist,
	})
}
