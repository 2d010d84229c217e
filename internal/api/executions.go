package api

import (
	"context"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/parser"
)

// RunResponse is the result of a run or continuation.
type RunResponse struct {
	Outcome core.Outcome `json:"outcome"`
	*core.WorkflowResult
}

// ProvideInputRequest is the body of the input endpoint.
type ProvideInputRequest struct {
	Value string `json:"value"`
	// Continue runs the execution forward once the value is accepted.
	Continue bool `json:"continue,omitempty"`
}

// handleRunWorkflow starts a run. The body is a workflow document (JSON, or
// YAML when the content type says so); ?workflow_id= reruns a stored one.
//
// The run outlives the request: a disconnecting client does not interrupt
// it. The response is sent once the run finishes or pauses.
func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.workflowFromRequest(w, r)
	if err != nil {
		s.respondDomainError(w, err, "failed to load workflow")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	result, err := s.engine.Execute(ctx, wf, nil)
	if err != nil {
		s.respondDomainError(w, err, "failed to run workflow")
		return
	}
	respondJSON(w, http.StatusOK, RunResponse{Outcome: result.Outcome(), WorkflowResult: result})
}

func (s *Server) workflowFromRequest(w http.ResponseWriter, r *http.Request) (*core.Workflow, error) {
	if id := r.URL.Query().Get("workflow_id"); id != "" {
		rec, err := s.store.Workflows().Get(r.Context(), id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, core.ErrNotFound("workflow", id)
		}
		return parser.Parse(rec.Definition)
	}

	body, err := readBody(w, r)
	if err != nil {
		return nil, core.ErrValidation(core.CodeInvalidField, err.Error())
	}
	if isYAML(r.Header.Get("Content-Type")) {
		return parser.ParseYAML(body)
	}
	return parser.Parse(body)
}

func isYAML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasSuffix(mediaType, "yaml")
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	execs, err := s.engine.ListExecutions(r.Context())
	if err != nil {
		s.respondDomainError(w, err, "failed to list executions")
		return
	}
	status := core.ExecutionStatus(r.URL.Query().Get("status"))
	out := make([]*core.Execution, 0, len(execs))
	for _, e := range execs {
		if status == "" || e.Status == status {
			out = append(out, e)
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := s.engine.GetExecution(r.Context(), executionID(r))
	if err != nil {
		s.respondDomainError(w, err, "failed to load execution")
		return
	}
	respondJSON(w, http.StatusOK, exec)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.engine.TaskExecutions(r.Context(), executionID(r))
	if err != nil {
		s.respondDomainError(w, err, "failed to list tasks")
		return
	}
	respondJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	id := executionID(r)
	if _, err := s.engine.GetExecution(r.Context(), id); err != nil {
		s.respondDomainError(w, err, "failed to load execution")
		return
	}
	trail, err := s.engine.AuditTrail(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err, "failed to load audit trail")
		return
	}
	respondJSON(w, http.StatusOK, trail)
}

func (s *Server) handlePendingInputs(w http.ResponseWriter, r *http.Request) {
	inputs, err := s.engine.GetPendingInputs(r.Context(), executionID(r))
	if err != nil {
		s.respondDomainError(w, err, "failed to list pending inputs")
		return
	}
	respondJSON(w, http.StatusOK, inputs)
}

func (s *Server) handleWaitingTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.engine.GetTasksWaitingForInput(r.Context(), executionID(r))
	if err != nil {
		s.respondDomainError(w, err, "failed to list waiting tasks")
		return
	}
	if tasks == nil {
		tasks = []*core.TaskExecution{}
	}
	respondJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleProvideInput(w http.ResponseWriter, r *http.Request) {
	var req ProvideInputRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := executionID(r)
	taskID := core.TaskID(chi.URLParam(r, "taskID"))
	if err := s.engine.ProvideUserInput(r.Context(), id, taskID, req.Value); err != nil {
		s.respondDomainError(w, err, "failed to provide input")
		return
	}
	if req.Continue {
		s.continueExecution(w, r, id)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) handleResumeTask(w http.ResponseWriter, r *http.Request) {
	id := executionID(r)
	taskID := core.TaskID(chi.URLParam(r, "taskID"))
	if err := s.engine.ResumeTask(r.Context(), id, taskID); err != nil {
		s.respondDomainError(w, err, "failed to resume task")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	s.continueExecution(w, r, executionID(r))
}

func (s *Server) continueExecution(w http.ResponseWriter, r *http.Request, id core.ExecutionID) {
	result, err := s.engine.ContinueExecution(context.WithoutCancel(r.Context()), id, nil)
	if err != nil {
		s.respondDomainError(w, err, "failed to continue execution")
		return
	}
	respondJSON(w, http.StatusOK, RunResponse{Outcome: result.Outcome(), WorkflowResult: result})
}

func executionID(r *http.Request) core.ExecutionID {
	return core.ExecutionID(chi.URLParam(r, "executionID"))
}
