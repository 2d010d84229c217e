package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/weft-dev/weft/internal/bridge"
	"github.com/weft-dev/weft/internal/core"
)

// PromptRequest is the body of prompt create and update.
type PromptRequest struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := s.store.Prompts().List(r.Context())
	if err != nil {
		s.respondDomainError(w, err, "failed to list prompts")
		return
	}
	if prompts == nil {
		prompts = []*core.PromptRecord{}
	}
	respondJSON(w, http.StatusOK, prompts)
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	prompt, err := s.store.Prompts().Get(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err, "failed to load prompt")
		return
	}
	if prompt == nil {
		respondError(w, http.StatusNotFound, "prompt not found")
		return
	}
	respondJSON(w, http.StatusOK, prompt)
}

func (s *Server) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := validatePrompt(req); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	existing, err := s.store.Prompts().Get(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err, "failed to create prompt")
		return
	}
	if existing != nil {
		respondError(w, http.StatusConflict, "prompt already exists")
		return
	}

	now := bridge.FormatTime(s.now())
	prompt := &core.PromptRecord{ID: id, Name: req.Name, Content: req.Content, CreatedAt: now, UpdatedAt: now}
	if err := s.store.Prompts().Save(r.Context(), prompt); err != nil {
		s.respondDomainError(w, err, "failed to create prompt")
		return
	}
	respondJSON(w, http.StatusCreated, prompt)
}

func (s *Server) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req PromptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := validatePrompt(req); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}
	prompt, err := s.store.Prompts().Get(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err, "failed to update prompt")
		return
	}
	if prompt == nil {
		respondError(w, http.StatusNotFound, "prompt not found")
		return
	}
	prompt.Name = req.Name
	prompt.Content = req.Content
	prompt.UpdatedAt = bridge.FormatTime(s.now())
	if err := s.store.Prompts().Save(r.Context(), prompt); err != nil {
		s.respondDomainError(w, err, "failed to update prompt")
		return
	}
	respondJSON(w, http.StatusOK, prompt)
}

func (s *Server) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Prompts().Delete(r.Context(), id); err != nil {
		s.respondDomainError(w, err, "failed to delete prompt")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validatePrompt(req PromptRequest) string {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return "name is required"
	case strings.TrimSpace(req.Content) == "":
		return "content is required"
	}
	return ""
}
