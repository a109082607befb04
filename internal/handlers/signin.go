package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/crucial707/autosignin/internal/middleware"
	"github.com/crucial707/autosignin/internal/models"
	"github.com/crucial707/autosignin/internal/orchestrator"
	"github.com/go-playground/validator/v10"
)

// Runner is the part of the orchestrator the API drives.
type Runner interface {
	Trigger(ids []string)
	Targets(ids []string) []models.Target
	State() orchestrator.State
}

type SignInHandler struct {
	Runner Runner
}

// RunSignIn starts a batch in the background. An empty body runs the
// configured sites; {"sites": [...]} runs those ids plus every custom site.
func (h *SignInHandler) RunSignIn(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Sites []string `json:"sites" validate:"omitempty,max=50,dive,required,max=64"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	validate := validator.New()
	if err := validate.Struct(input); err != nil {
		JSONValidationError(w, err)
		return
	}

	if len(input.Sites) == 0 {
		input.Sites = nil
	}

	if h.Runner.State() != orchestrator.StateIdle {
		JSONError(w, "sign-in already running", http.StatusConflict)
		return
	}

	targets := h.Runner.Targets(input.Sites)
	if len(targets) == 0 {
		JSONError(w, "no sites selected", http.StatusBadRequest)
		return
	}

	slog.Info("signin triggered", "by", middleware.Subject(r.Context()), "targets", len(targets))
	h.Runner.Trigger(input.Sites)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "签到任务已启动",
	})
}

// ListTargets returns what a default run would check in against.
func (h *SignInHandler) ListTargets(w http.ResponseWriter, r *http.Request) {
	targets := h.Runner.Targets(nil)
	if targets == nil {
		targets = []models.Target{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"state": h.Runner.State(),
		"items": targets,
	})
}
