package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/weft-dev/weft/internal/events"
	"github.com/weft-dev/weft/internal/xjson"
)

// keepAliveInterval is how often an idle stream gets a comment line so
// proxies do not close it.
const keepAliveInterval = 15 * time.Second

// handleSSE streams engine events as Server-Sent Events.
//
// ?execution_id= limits the stream to one execution and ?types= (comma
// separated) to some event types.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if s.eventBus == nil {
		respondError(w, http.StatusServiceUnavailable, "event bus not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	var types []string
	if raw := r.URL.Query().Get("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}
	executionID := r.URL.Query().Get("execution_id")
	eventCh := s.eventBus.SubscribeForExecution(executionID, types...)
	defer s.eventBus.Unsubscribe(eventCh)

	ctx := r.Context()
	s.logger.Info("SSE client connected", "remote_addr", r.RemoteAddr, "execution_id", executionID)

	s.sendSSEEvent(w, flusher, "connected", map[string]string{"status": "connected"})

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("SSE client disconnected", "remote_addr", r.RemoteAddr)
			return

		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()

		case event, ok := <-eventCh:
			if !ok {
				s.logger.Info("EventBus closed, ending SSE stream")
				return
			}
			s.sendSSEEvent(w, flusher, event.EventType(), ssePayload(event))
		}
	}
}

// ssePayload is the data of an event. Durations are sent as strings.
func ssePayload(event events.Event) interface{} {
	if e, ok := event.(events.WorkflowCompletedEvent); ok {
		return map[string]interface{}{
			"type":         e.EventType(),
			"execution_id": e.ExecutionID(),
			"timestamp":    e.Timestamp(),
			"duration":     e.Duration.String(),
			"completed":    e.Completed,
		}
	}
	return event
}

// sendSSEEvent writes an event to the SSE stream.
func (s *Server) sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data interface{}) {
	jsonData, err := xjson.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}
