package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/xjson"
)

// CustomCall is what a custom function receives.
type CustomCall struct {
	Task  *core.Task
	Input xjson.RawMessage
	// Log appends a line to the task log.
	Log func(line string)
	// Expand substitutes {{tasks.<id>.output}} references.
	Expand func(s string) string
}

// CustomFunc implements a named custom task.
type CustomFunc func(ctx context.Context, call CustomCall) (string, error)

// CustomHandler dispatches custom tasks to registered functions.
type CustomHandler struct {
	mu    sync.RWMutex
	funcs map[string]CustomFunc
}

// NewCustomHandler creates a handler with the built-in functions registered.
func NewCustomHandler() *CustomHandler {
	h := &CustomHandler{funcs: make(map[string]CustomFunc)}
	h.Register("echo", echoFunc)
	h.Register("sleep", sleepFunc)
	h.Register("fail", failFunc)
	return h
}

// Register adds or replaces a function.
func (h *CustomHandler) Register(name string, fn CustomFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.funcs[name] = fn
}

// Names lists registered functions.
func (h *CustomHandler) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.funcs))
	for name := range h.funcs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Execute implements Handler.
func (h *CustomHandler) Execute(ctx context.Context, ec *ExecutionContext, task *core.Task) core.TaskResult {
	spec := task.Function.Custom
	if spec == nil {
		return core.Failed("", core.ErrValidation(core.CodeInvalidField, "task has no custom payload"))
	}
	h.mu.RLock()
	fn, ok := h.funcs[spec.Name]
	h.mu.RUnlock()
	if !ok {
		return core.Failed("", core.ErrExecution(core.CodeUnknownCustom,
			fmt.Sprintf("no custom function named %q", spec.Name)))
	}

	output, err := fn(ctx, CustomCall{
		Task:   task,
		Input:  spec.Input,
		Log:    func(line string) { ec.AppendLog(task.ID, line) },
		Expand: func(s string) string { return expand(ec, task.ID, s) },
	})
	if err != nil {
		return core.Failed(output, err)
	}
	return core.Succeeded(output)
}

// textInput accepts either a JSON string or {"text": "..."}.
func textInput(raw xjson.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := xjson.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var obj struct {
		Text    string `json:"text"`
		Message string `json:"message"`
	}
	if err := xjson.Unmarshal(raw, &obj); err != nil {
		return "", core.ErrValidation(core.CodeInvalidField, "input must be a string or {\"text\": ...}")
	}
	if obj.Text != "" {
		return obj.Text, nil
	}
	return obj.Message, nil
}

// echoFunc outputs its input text.
func echoFunc(_ context.Context, call CustomCall) (string, error) {
	text, err := textInput(call.Input)
	if err != nil {
		return "", err
	}
	text = call.Expand(text)
	for _, line := range strings.Split(text, "\n") {
		call.Log(line)
	}
	return text, nil
}

// sleepFunc waits for {"duration": "..."}.
func sleepFunc(ctx context.Context, call CustomCall) (string, error) {
	var in struct {
		Duration string `json:"duration"`
	}
	if len(call.Input) > 0 {
		if err := xjson.Unmarshal(call.Input, &in); err != nil {
			return "", core.ErrValidation(core.CodeInvalidField, "sleep input must be {\"duration\": \"1s\"}")
		}
	}
	d := time.Second
	if in.Duration != "" {
		parsed, err := time.ParseDuration(in.Duration)
		if err != nil {
			return "", core.ErrValidation(core.CodeInvalidField, fmt.Sprintf("invalid duration %q", in.Duration))
		}
		d = parsed
	}
	call.Log(fmt.Sprintf("sleeping %s", d))
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(d):
	}
	return d.String(), nil
}

// failFunc always fails with its input text.
func failFunc(_ context.Context, call CustomCall) (string, error) {
	text, err := textInput(call.Input)
	if err != nil {
		return "", err
	}
	if text == "" {
		text = "failed on purpose"
	}
	call.Log(text)
	return "", core.ErrExecution(core.CodeCommandFailed, call.Expand(text))
}
