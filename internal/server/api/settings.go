package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/tala/internal/app"
)

// SettingsService reads and updates the pipeline settings.
type SettingsService interface {
	Settings() app.Settings
	UpdateSettings(patch app.SettingsPatch) (app.Settings, error)
}

// SettingsHandler serves /api/settings.
type SettingsHandler struct {
	svc SettingsService
}

// NewSettingsHandler creates a SettingsHandler backed by svc.
func NewSettingsHandler(svc SettingsService) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

// ServeHTTP handles GET (current settings) and PUT (partial update).
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.svc.Settings())
	case http.MethodPut, http.MethodPatch:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var patch app.SettingsPatch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	s, err := h.svc.UpdateSettings(patch)
	switch {
	case errors.Is(err, app.ErrInvalidSetting):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to save settings")
	default:
		writeJSON(w, http.StatusOK, s)
	}
}
