package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/parser"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Pointer string `json:"pointer,omitempty"`
}

func httpStatusForDomainError(err error) (int, bool) {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr == nil {
		return 0, false
	}

	switch domErr.Code {
	case core.CodeExecutionNotFound, core.CodeTaskNotFound:
		return http.StatusNotFound, true
	}

	switch domErr.Category {
	case core.ErrCatParse:
		return http.StatusUnprocessableEntity, true
	case core.ErrCatValidation:
		if domErr.Code == core.CodeInvalidState {
			return http.StatusConflict, true
		}
		return http.StatusBadRequest, true
	case core.ErrCatNotFound:
		return http.StatusNotFound, true
	case core.ErrCatTimeout:
		return http.StatusGatewayTimeout, true
	default:
		return http.StatusInternalServerError, true
	}
}

// respondDomainError maps err to a status and writes it. Internal errors
// are logged and reported with the generic message only.
func (s *Server) respondDomainError(w http.ResponseWriter, err error, message string) {
	status, ok := httpStatusForDomainError(err)
	if !ok || status == http.StatusInternalServerError {
		s.logger.Error(message, "error", err)
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: message, Code: core.GetCode(err)})
		return
	}
	resp := ErrorResponse{Error: err.Error(), Code: core.GetCode(err)}
	if perr, ok := parser.AsError(err); ok {
		resp.Error = perr.Error()
		resp.Pointer = perr.Pointer
	}
	respondJSON(w, status, resp)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	return body, nil
}
