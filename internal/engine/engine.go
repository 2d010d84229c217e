// Package engine executes workflows: it schedules the task forest in rounds,
// dispatches tasks to handlers, records every step in the store, and pauses
// and resumes runs around user input.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/weft-dev/weft/internal/adapters/cli"
	"github.com/weft-dev/weft/internal/bridge"
	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/events"
	"github.com/weft-dev/weft/internal/logging"
	"github.com/weft-dev/weft/internal/parser"
)

// Engine runs workflows against a store.
type Engine struct {
	store          core.Store
	logger         *logging.Logger
	bus            *events.EventBus
	maxParallel    int
	taskTimeout    time.Duration
	runner         *cli.Runner
	cursorDefaults cli.CursorConfig

	registry *Registry
	recorder *TaskRecorder
	custom   *CustomHandler

	extra       map[core.FunctionKind]Handler
	customFuncs map[string]CustomFunc

	// active guards against two runs of the same execution in one process.
	active sync.Map
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEventBus publishes task and workflow events to bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithMaxParallel bounds the number of tasks dispatched at once within a
// round. Zero or less means unbounded.
func WithMaxParallel(n int) Option {
	return func(e *Engine) { e.maxParallel = n }
}

// WithTaskTimeout sets the default timeout of subprocess tasks.
func WithTaskTimeout(d time.Duration) Option {
	return func(e *Engine) { e.taskTimeout = d }
}

// WithRunner replaces the subprocess runner.
func WithRunner(r *cli.Runner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithCursorDefaults sets the cursor-agent settings tasks inherit.
func WithCursorDefaults(cfg cli.CursorConfig) Option {
	return func(e *Engine) { e.cursorDefaults = cfg }
}

// WithHandler registers a handler for kind, replacing the built-in one.
func WithHandler(kind core.FunctionKind, h Handler) Option {
	return func(e *Engine) { e.extra[kind] = h }
}

// WithCustomFunc registers a custom function.
func WithCustomFunc(name string, fn CustomFunc) Option {
	return func(e *Engine) { e.customFuncs[name] = fn }
}

// New creates an engine over store.
func New(store core.Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		logger:      logging.NewNop(),
		extra:       make(map[core.FunctionKind]Handler),
		customFuncs: make(map[string]CustomFunc),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.runner == nil {
		var runnerOpts []cli.RunnerOption
		if e.taskTimeout > 0 {
			runnerOpts = append(runnerOpts, cli.WithDefaultTimeout(e.taskTimeout))
		}
		e.runner = cli.NewRunner(e.logger, runnerOpts...)
	}

	e.recorder = NewTaskRecorder(store, e.logger, e.bus)
	e.registry = NewRegistry(e.recorder, e.logger)
	e.custom = NewCustomHandler()
	for name, fn := range e.customFuncs {
		e.custom.Register(name, fn)
	}

	e.registry.Register(core.KindCliCommand, NewCliCommandHandler(e.runner))
	e.registry.Register(core.KindCursorAgent, NewCursorAgentHandler(cli.NewCursorAgent(e.runner), e.cursorDefaults, store))
	e.registry.Register(core.KindUserInput, UserInputHandler{})
	e.registry.Register(core.KindCustom, e.custom)
	for kind, h := range e.extra {
		e.registry.Register(kind, h)
	}
	return e
}

// Store returns the store the engine persists to.
func (e *Engine) Store() core.Store { return e.store }

// Registry returns the handler registry.
func (e *Engine) Registry() *Registry { return e.registry }

// RegisterCustom adds a custom function after construction.
func (e *Engine) RegisterCustom(name string, fn CustomFunc) {
	e.custom.Register(name, fn)
}

// Shutdown terminates subprocesses still running.
func (e *Engine) Shutdown() {
	e.runner.Terminate()
}

// ExecuteWorkflow parses a JSON document and runs it. A parse error is
// returned before any task runs.
func (e *Engine) ExecuteWorkflow(ctx context.Context, document []byte, cb core.OutputCallback) (*core.WorkflowResult, error) {
	w, err := parser.Parse(document)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, w, cb)
}

// Execute starts a new run of w.
//
// The returned result is terminal (succeeded or failed) or paused with the
// waiting sentinel in Errors. The error is non-nil only when the run could
// not be recorded.
func (e *Engine) Execute(ctx context.Context, w *core.Workflow, cb core.OutputCallback) (*core.WorkflowResult, error) {
	a := newArena(w)
	now := e.now()
	exec := &core.Execution{
		ID:           core.ExecutionID(uuid.NewString()),
		WorkflowID:   w.ID,
		WorkflowName: w.Name,
		Status:       core.ExecutionStatusRunning,
		CreatedAt:    now,
		UpdatedAt:    now,
		Definition:   w.Raw,
	}
	release, err := e.acquire(exec.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	logger := e.logger.WithExecution(string(exec.ID)).WithWorkflow(string(w.ID))
	if err := e.saveWorkflow(ctx, w, now); err != nil {
		return nil, err
	}
	if err := e.store.Executions().Save(ctx, bridge.ExecutionToRecord(exec)); err != nil {
		return nil, fmt.Errorf("recording execution: %w", err)
	}
	tasks := make([]*core.Task, 0, a.len())
	for _, id := range a.order {
		tasks = append(tasks, a.task(id))
	}
	if err := e.recorder.Pending(ctx, exec.ID, tasks); err != nil {
		return nil, err
	}

	ec := newExecutionContext(exec.ID, w.Name, a.order, e.store, e.forward(exec.ID, cb), e.logger.Sanitizer())
	ec.ancestors = a.ancestors
	defer ec.Close()

	logger.Info("engine: workflow started", "workflow_name", w.Name, "tasks", a.len())
	e.publish(events.NewWorkflowStartedEvent(string(exec.ID), string(w.ID), w.Name, a.len(), false))
	ec.Log(fmt.Sprintf("Starting workflow %s (%d tasks)", w.Name, a.len()))

	st := newRunState()
	e.loop(ctx, ec, a, st)
	return e.finish(context.WithoutCancel(ctx), ec, a, st, exec, now)
}

// acquire marks an execution as running in this process.
func (e *Engine) acquire(id core.ExecutionID) (func(), error) {
	if _, loaded := e.active.LoadOrStore(id, struct{}{}); loaded {
		return nil, core.ErrValidation(core.CodeInvalidState,
			fmt.Sprintf("execution %s is already running", id))
	}
	return func() { e.active.Delete(id) }, nil
}

func (e *Engine) saveWorkflow(ctx context.Context, w *core.Workflow, now time.Time) error {
	rec, err := e.store.Workflows().Get(ctx, string(w.ID))
	if err != nil {
		return fmt.Errorf("loading workflow %s: %w", w.ID, err)
	}
	if rec == nil {
		rec = &core.WorkflowRecord{ID: string(w.ID), CreatedAt: bridge.FormatTime(now)}
	}
	rec.Name = w.Name
	rec.Definition = w.Raw
	rec.UpdatedAt = bridge.FormatTime(now)
	if err := e.store.Workflows().Save(ctx, rec); err != nil {
		return fmt.Errorf("recording workflow %s: %w", w.ID, err)
	}
	return nil
}

// dispatch is the outcome of one task within a round.
type dispatch struct {
	id     core.TaskID
	result core.TaskResult
	err    error
}

// loop runs rounds until no task is ready. Each round dispatches the whole
// ready set concurrently and waits for every task before recomputing it.
func (e *Engine) loop(ctx context.Context, ec *ExecutionContext, a *arena, st *runState) {
	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			st.errors = append(st.errors, fmt.Sprintf("Execution interrupted: %v", err))
			return
		}
		ready := a.ready(st)
		if len(ready) == 0 {
			return
		}
		e.logger.Debug("engine: dispatching round",
			"execution_id", ec.ExecutionID(),
			"round", round,
			"tasks", len(ready),
		)

		results := make([]dispatch, len(ready))
		var g errgroup.Group
		if e.maxParallel > 0 {
			g.SetLimit(e.maxParallel)
		}
		for i, id := range ready {
			g.Go(func() error {
				task := a.task(id)
				res, err := e.registry.Execute(ctx, task.Function.Kind(), ec, task)
				results[i] = dispatch{id: id, result: res, err: err}
				return nil
			})
		}
		_ = g.Wait()

		for _, d := range results {
			e.reconcile(ec, st, d)
		}
	}
}

func (e *Engine) reconcile(ec *ExecutionContext, st *runState, d dispatch) {
	if d.err != nil {
		st.errors = append(st.errors, fmt.Sprintf("Task %s could not be recorded: %v", d.id, d.err))
	}
	switch {
	case d.result.Waiting:
		st.waiting[d.id] = true
	case d.result.Success:
		st.completed[d.id] = true
	default:
		st.failed[d.id] = true
		st.errors = append(st.errors, fmt.Sprintf("Task %s failed: %s", d.id, d.result.Error))
		e.logger.Warn("engine: task failed",
			"execution_id", ec.ExecutionID(),
			"task_id", d.id,
			"error", d.result.Error,
		)
	}
}

// finish builds the result of a pass and records the execution's new state.
func (e *Engine) finish(
	ctx context.Context,
	ec *ExecutionContext,
	a *arena,
	st *runState,
	exec *core.Execution,
	started time.Time,
) (*core.WorkflowResult, error) {
	snap := ec.Snapshot()
	byID := make(map[core.TaskID]TaskSnapshot, len(snap.Tasks))
	for _, t := range snap.Tasks {
		byID[t.ID] = t
	}

	result := &core.WorkflowResult{
		ExecutionID:  exec.ID,
		WorkflowID:   exec.WorkflowID,
		WorkflowName: exec.WorkflowName,
		Tasks:        make([]core.TaskInfo, 0, a.len()),
		AuditTrail:   snap.Audit,
		Logs:         make(map[string][]string),
		Errors:       append([]string{}, st.errors...),
	}
	var waiting []string
	for _, id := range a.order {
		task := a.task(id)
		ts := byID[id]
		result.Tasks = append(result.Tasks, core.TaskInfo{
			ID:     id,
			Name:   task.Name,
			Kind:   task.Function.Kind(),
			Status: ts.Status,
			Output: ts.Output,
			Error:  ts.Error,
		})
		if len(ts.Logs) > 0 {
			result.Logs[string(id)] = ts.Logs
		}
		if ts.Status == core.TaskStatusWaitingForInput {
			waiting = append(waiting, string(id))
		}
	}
	if result.AuditTrail == nil {
		result.AuditTrail = []core.AuditEntry{}
	}
	core.SortAudit(result.AuditTrail)
	if len(waiting) > 0 {
		result.Errors = append(result.Errors, core.WaitingForInputSentinel)
	}
	result.Success = len(st.errors) == 0 && len(waiting) == 0

	now := e.now()
	exec.Status = bridge.ExecutionStatusFor(result)
	exec.UpdatedAt = now
	exec.Error = ""
	exec.CompletedAt = nil
	switch exec.Status {
	case core.ExecutionStatusCompleted:
		exec.CompletedAt = &now
	case core.ExecutionStatusFailed:
		exec.CompletedAt = &now
		exec.Error = strings.Join(st.errors, "; ")
	}

	logger := e.logger.WithExecution(string(exec.ID))
	switch result.Outcome() {
	case core.OutcomeSucceeded:
		logger.Info("engine: workflow completed", "duration", now.Sub(started))
		e.publish(events.NewWorkflowCompletedEvent(string(exec.ID), now.Sub(started), len(st.completed)))
	case core.OutcomeWaiting:
		logger.Info("engine: workflow waiting for input", "tasks", waiting)
		e.publish(events.NewWorkflowPausedEvent(string(exec.ID), waiting))
	default:
		logger.Warn("engine: workflow failed", "errors", len(st.errors))
		e.publish(events.NewWorkflowFailedEvent(string(exec.ID), st.errors))
	}

	if err := e.store.Executions().Save(ctx, bridge.ExecutionToRecord(exec)); err != nil {
		logger.Error("engine: execution state not persisted", "error", err)
		return result, fmt.Errorf("recording execution: %w", err)
	}
	return result, nil
}

// forward wraps the caller's callback so every task line is also published.
func (e *Engine) forward(executionID core.ExecutionID, cb core.OutputCallback) core.OutputCallback {
	if e.bus == nil {
		return cb
	}
	return func(taskID core.TaskID, line string) {
		e.bus.Publish(events.NewTaskLogEvent(string(executionID), string(taskID), line))
		if cb != nil {
			cb(taskID, line)
		}
	}
}

func (e *Engine) publish(event events.Event) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(event)
}
