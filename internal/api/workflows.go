package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/parser"
)

// WorkflowSummary is the list view of a stored workflow.
type WorkflowSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// ValidateResponse reports a valid document and its execution order.
type ValidateResponse struct {
	Valid bool          `json:"valid"`
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Tasks int           `json:"tasks"`
	Order []core.TaskID `json:"order"`
}

// handleListWorkflows returns every workflow that has been run.
func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	recs, err := s.engine.ListWorkflows(r.Context())
	if err != nil {
		s.respondDomainError(w, err, "failed to list workflows")
		return
	}
	out := make([]WorkflowSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, WorkflowSummary{
			ID:        rec.ID,
			Name:      rec.Name,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// handleGetWorkflow returns a stored workflow with its definition.
func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workflowID")
	rec, err := s.store.Workflows().Get(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err, "failed to load workflow")
		return
	}
	if rec == nil {
		respondError(w, http.StatusNotFound, "workflow not found")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// handleValidateWorkflow parses a document without running it.
func (s *Server) handleValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflowFromRequest(w, r)
	if err != nil {
		s.respondDomainError(w, err, "failed to validate workflow")
		return
	}
	order, err := parser.ExecutionOrder(wf)
	if err != nil {
		s.respondDomainError(w, err, "failed to validate workflow")
		return
	}
	if order == nil {
		order = []core.TaskID{}
	}
	respondJSON(w, http.StatusOK, ValidateResponse{
		Valid: true,
		ID:    string(wf.ID),
		Name:  wf.Name,
		Tasks: wf.TaskCount(),
		Order: order,
	})
}
