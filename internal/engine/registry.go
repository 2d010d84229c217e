package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/logging"
)

// Handler performs the side effect of one function kind.
//
// A handler reports its outcome through the returned TaskResult. It may log
// through ec.AppendLog; it must not persist task state, which Registry.Execute
// does for it.
type Handler interface {
	Execute(ctx context.Context, ec *ExecutionContext, task *core.Task) core.TaskResult
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ec *ExecutionContext, task *core.Task) core.TaskResult

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context, ec *ExecutionContext, task *core.Task) core.TaskResult {
	return f(ctx, ec, task)
}

// Registry maps function kinds to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[core.FunctionKind]Handler
	recorder *TaskRecorder
	logger   *logging.Logger
}

// NewRegistry creates an empty registry that records through recorder.
func NewRegistry(recorder *TaskRecorder, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{
		handlers: make(map[core.FunctionKind]Handler),
		recorder: recorder,
		logger:   logger,
	}
}

// Register adds or replaces the handler for kind.
func (r *Registry) Register(kind core.FunctionKind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// Has reports whether kind has a handler.
func (r *Registry) Has(kind core.FunctionKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[kind]
	return ok
}

// Kinds lists the registered kinds in sorted order.
func (r *Registry) Kinds() []core.FunctionKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.FunctionKind, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Execute runs the handler for kind wrapped in the recorder: start snapshot,
// handler, then the completion, failure or pause snapshot. The returned error
// reports persistence failures only; handler failures are in the result.
func (r *Registry) Execute(ctx context.Context, kind core.FunctionKind, ec *ExecutionContext, task *core.Task) (core.TaskResult, error) {
	r.mu.RLock()
	h, ok := r.handlers[kind]
	r.mu.RUnlock()

	// Snapshots are written even when ctx is cancelled mid-task.
	persistCtx := context.WithoutCancel(ctx)
	step, startErr := r.recorder.Start(persistCtx, ec, task)

	var result core.TaskResult
	if !ok {
		result = core.Failed("", core.ErrExecution(core.CodeUnknownHandler,
			fmt.Sprintf("no handler registered for %q", kind)))
	} else {
		result = r.invoke(ctx, h, ec, task)
	}

	if result.Waiting && kind != core.KindUserInput {
		result = core.Failed(result.Output, core.ErrExecution(core.CodeInvalidState,
			fmt.Sprintf("%s handler cannot pause for input", kind)))
	}

	finishErr := r.recorder.Finish(persistCtx, ec, step, result)
	if startErr != nil {
		return result, startErr
	}
	return result, finishErr
}

func (r *Registry) invoke(ctx context.Context, h Handler, ec *ExecutionContext, task *core.Task) (result core.TaskResult) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("engine: handler panicked",
				"execution_id", ec.ExecutionID(),
				"task_id", task.ID,
				"panic", p,
			)
			result = core.Failed("", core.ErrExecution(core.CodeInvalidState, fmt.Sprintf("handler panicked: %v", p)))
		}
	}()
	return h.Execute(ctx, ec, task)
}
