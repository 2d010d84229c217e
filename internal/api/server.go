// Package api provides the HTTP REST API over the workflow engine.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/engine"
	"github.com/weft-dev/weft/internal/events"
	"github.com/weft-dev/weft/internal/fsutil"
	"github.com/weft-dev/weft/internal/xjson"
)

// maxBodySize bounds request bodies, workflow documents included.
const maxBodySize = fsutil.MaxDocumentSize

// Server provides HTTP REST API endpoints for workflow execution.
type Server struct {
	router      chi.Router
	engine      *engine.Engine
	store       core.Store
	eventBus    *events.EventBus
	logger      *slog.Logger
	corsOrigins []string
	now         func() time.Time
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCORSOrigins restricts cross-origin access. Empty allows any origin.
func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// NewServer creates a new API server. eventBus may be nil, in which case
// the SSE endpoint reports 503.
func NewServer(eng *engine.Engine, eventBus *events.EventBus, opts ...ServerOption) *Server {
	s := &Server{
		engine:   eng,
		store:    eng.Store(),
		eventBus: eventBus,
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures Chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/executions", func(r chi.Router) {
			r.Get("/", s.handleListExecutions)
			r.Post("/", s.handleRunWorkflow)

			r.Route("/{executionID}", func(r chi.Router) {
				r.Get("/", s.handleGetExecution)
				r.Get("/tasks", s.handleListTasks)
				r.Get("/audit", s.handleAuditTrail)
				r.Get("/inputs", s.handlePendingInputs)
				r.Get("/waiting", s.handleWaitingTasks)
				r.Post("/continue", s.handleContinue)
				r.Post("/tasks/{taskID}/input", s.handleProvideInput)
				r.Post("/tasks/{taskID}/resume", s.handleResumeTask)
			})
		})

		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.handleListWorkflows)
			r.Post("/validate", s.handleValidateWorkflow)
			r.Get("/{workflowID}", s.handleGetWorkflow)
		})

		r.Route("/prompts", func(r chi.Router) {
			r.Get("/", s.handleListPrompts)
			r.Post("/", s.handleCreatePrompt)
			r.Get("/{id}", s.handleGetPrompt)
			r.Put("/{id}", s.handleUpdatePrompt)
			r.Delete("/{id}", s.handleDeletePrompt)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.handleListSettings)
			r.Get("/{key}", s.handleGetSetting)
			r.Put("/{key}", s.handlePutSetting)
			r.Delete("/{key}", s.handleDeleteSetting)
		})

		r.Get("/events", s.handleSSE)
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"bytes", ww.BytesWritten(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	body, err := xjson.Marshal(data)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		return
	}
	_, _ = w.Write(append(body, '\n'))
}

// respondError sends a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := readBody(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := xjson.Unmarshal(body, v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   s.now().Format(time.RFC3339),
	})
}

// ListenAndServe starts the HTTP server and shuts it down when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting API server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
