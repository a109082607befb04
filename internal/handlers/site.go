package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/crucial707/autosignin/internal/models"
	"github.com/crucial707/autosignin/internal/repo"
)

type SiteHandler struct {
	Repo *repo.SiteRepo
}

// ListSites returns the active managed sites. Cookies are never serialized.
func (h *SiteHandler) ListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.Repo.ListManagedSites(r.Context())
	if err != nil {
		slog.Error("list managed sites", "err", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if sites == nil {
		sites = []models.ManagedSite{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"items": sites,
		"total": len(sites),
	})
}
