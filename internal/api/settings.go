package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/weft-dev/weft/internal/bridge"
	"github.com/weft-dev/weft/internal/core"
)

// SettingRequest is the body of a setting update.
type SettingRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.Settings().List(r.Context())
	if err != nil {
		s.respondDomainError(w, err, "failed to list settings")
		return
	}
	if settings == nil {
		settings = []*core.SettingRecord{}
	}
	respondJSON(w, http.StatusOK, settings)
}

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	setting, err := s.store.Settings().Get(r.Context(), key)
	if err != nil {
		s.respondDomainError(w, err, "failed to load setting")
		return
	}
	if setting == nil {
		respondError(w, http.StatusNotFound, "setting not found")
		return
	}
	respondJSON(w, http.StatusOK, setting)
}

// handlePutSetting creates or replaces a setting.
func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req SettingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	setting := &core.SettingRecord{ID: key, Value: req.Value, UpdatedAt: bridge.FormatTime(s.now())}
	if err := s.store.Settings().Save(r.Context(), setting); err != nil {
		s.respondDomainError(w, err, "failed to save setting")
		return
	}
	respondJSON(w, http.StatusOK, setting)
}

func (s *Server) handleDeleteSetting(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Settings().Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
		s.respondDomainError(w, err, "failed to delete setting")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
