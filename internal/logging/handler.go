package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// SanitizingHandler wraps another handler and sanitizes log attributes.
type SanitizingHandler struct {
	handler   slog.Handler
	sanitizer *Sanitizer
}

// NewSanitizingHandler creates a new sanitizing handler.
func NewSanitizingHandler(handler slog.Handler, sanitizer *Sanitizer) *SanitizingHandler {
	return &SanitizingHandler{
		handler:   handler,
		sanitizer: sanitizer,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record and passes it to the underlying handler.
func (h *SanitizingHandler) Handle(ctx context.Context, r slog.Record) error {
	newRecord := slog.NewRecord(r.Time, r.Level, h.sanitizer.Sanitize(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		newRecord.AddAttrs(h.sanitizeAttr(a))
		return true
	})

	return h.handler.Handle(ctx, newRecord)
}

// WithAttrs returns a new handler with sanitized attrs.
func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitizedAttrs := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		sanitizedAttrs[i] = h.sanitizeAttr(attr)
	}
	return &SanitizingHandler{
		handler:   h.handler.WithAttrs(sanitizedAttrs),
		sanitizer: h.sanitizer,
	}
}

// WithGroup returns a new handler with a group.
func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{
		handler:   h.handler.WithGroup(name),
		sanitizer: h.sanitizer,
	}
}

func (h *SanitizingHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.Attr{
			Key:   a.Key,
			Value: slog.StringValue(h.sanitizer.Sanitize(a.Value.String())),
		}
	case slog.KindAny:
		// Errors and Stringers often carry command lines and stderr.
		switch v := a.Value.Any().(type) {
		case error:
			return slog.String(a.Key, h.sanitizer.Sanitize(v.Error()))
		case fmt.Stringer:
			return slog.String(a.Key, h.sanitizer.Sanitize(v.String()))
		}
		return a
	case slog.KindGroup:
		attrs := a.Value.Group()
		sanitized := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			sanitized[i] = h.sanitizeAttr(attr)
		}
		return slog.Attr{
			Key:   a.Key,
			Value: slog.GroupValue(sanitized...),
		}
	default:
		return a
	}
}

// Styles of the pretty console output.
var (
	debugStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	timeStyle  = lipgloss.NewStyle().Faint(true)
	scopeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
)

// PrettyHandler writes colorized single-line records for a TTY.
type PrettyHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

// NewPrettyHandler creates a new pretty handler.
func NewPrettyHandler(w io.Writer, level slog.Level) *PrettyHandler {
	return &PrettyHandler{
		mu:    &sync.Mutex{},
		w:     w,
		level: level,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle formats and writes the log record. The execution_id and task_id
// attributes become a "[exec/task]" prefix instead of key=value pairs.
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var (
		scope scopeIDs
		rest  strings.Builder
	)
	for _, attr := range h.attrs {
		if !scope.take(attr, h.groups) {
			rest.WriteString(h.formatAttr(attr))
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		if !scope.take(a, h.groups) {
			rest.WriteString(h.formatAttr(a))
		}
		return true
	})

	var b strings.Builder
	b.WriteString(timeStyle.Render(r.Time.Format("15:04:05")))
	b.WriteByte(' ')
	b.WriteString(h.formatLevel(r.Level))
	b.WriteByte(' ')
	if prefix := scope.String(); prefix != "" {
		b.WriteString(scopeStyle.Render(prefix))
		b.WriteByte(' ')
	}
	b.WriteString(r.Message)
	b.WriteString(rest.String())
	b.WriteByte('\n')

	// Derived handlers share the mutex, so lines never interleave.
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// scopeIDs collects the run coordinates of a record.
type scopeIDs struct {
	execution string
	task      string
}

// take consumes a top-level execution_id or task_id attribute.
func (s *scopeIDs) take(a slog.Attr, groups []string) bool {
	if len(groups) > 0 {
		return false
	}
	switch a.Key {
	case "execution_id":
		s.execution = a.Value.String()
	case "task_id":
		s.task = a.Value.String()
	default:
		return false
	}
	return true
}

// String renders "[exec/task]"; execution ids are shortened to 8 characters.
func (s scopeIDs) String() string {
	exec := s.execution
	if len(exec) > 8 {
		exec = exec[:8]
	}
	switch {
	case exec != "" && s.task != "":
		return "[" + exec + "/" + s.task + "]"
	case exec != "":
		return "[" + exec + "]"
	case s.task != "":
		return "[" + s.task + "]"
	default:
		return ""
	}
}

// WithAttrs returns a new handler with attrs.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

// WithGroup returns a new handler with a group.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}

func (h *PrettyHandler) formatLevel(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return debugStyle.Render("DBG")
	case level < slog.LevelWarn:
		return infoStyle.Render("INF")
	case level < slog.LevelError:
		return warnStyle.Render("WRN")
	default:
		return errorStyle.Render("ERR")
	}
}

func (h *PrettyHandler) formatAttr(a slog.Attr) string {
	if a.Value.Kind() == slog.KindGroup {
		var b strings.Builder
		for _, attr := range a.Value.Group() {
			b.WriteString(h.formatAttr(attr))
		}
		return b.String()
	}
	key := a.Key
	for i := len(h.groups) - 1; i >= 0; i-- {
		key = h.groups[i] + "." + key
	}
	return fmt.Sprintf(" %s=%v", keyStyle.Render(key), a.Value.Any())
}
