package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/weft-dev/weft/internal/bridge"
	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/events"
	"github.com/weft-dev/weft/internal/logging"
)

// TaskRecorder persists task lifecycle snapshots. Every handler runs through
// it (see Registry.Execute); handlers never write task state themselves.
type TaskRecorder struct {
	store  core.Store
	logger *logging.Logger
	bus    *events.EventBus
	now    func() time.Time
}

// NewTaskRecorder creates a recorder. bus may be nil.
func NewTaskRecorder(store core.Store, logger *logging.Logger, bus *events.EventBus) *TaskRecorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TaskRecorder{
		store:  store,
		logger: logger,
		bus:    bus,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Step is one dispatch of one task, from Start to Finish.
type Step struct {
	task      *core.Task
	exec      *core.TaskExecution
	logsStart int
}

// Pending persists the initial snapshot of every task of a new run.
func (r *TaskRecorder) Pending(ctx context.Context, executionID core.ExecutionID, tasks []*core.Task) error {
	now := r.now()
	for _, task := range tasks {
		te := &core.TaskExecution{
			TaskID:      task.ID,
			ExecutionID: executionID,
			Name:        task.Name,
			Kind:        task.Function.Kind(),
			Status:      core.TaskStatusPending,
			CreatedAt:   now,
		}
		if err := r.store.TaskExecutions().Save(ctx, bridge.TaskExecutionToRecord(te)); err != nil {
			return fmt.Errorf("recording task %s: %w", task.ID, err)
		}
	}
	return nil
}

// Start marks the task in progress in the context and the store.
func (r *TaskRecorder) Start(ctx context.Context, ec *ExecutionContext, task *core.Task) (*Step, error) {
	ec.StartTask(task.ID)
	step := &Step{task: task, logsStart: ec.LogCount(task.ID)}

	te, err := r.load(ctx, ec.ExecutionID(), task)
	if err != nil {
		step.exec = r.fresh(ec.ExecutionID(), task)
	} else {
		step.exec = te
	}
	step.exec.SetStatus(core.TaskStatusInProgress, r.now())
	step.exec.Output, step.exec.Error = "", ""

	r.publish(events.NewTaskStartedEvent(string(ec.ExecutionID()), string(task.ID), task.Name, string(task.Function.Kind())))
	if err != nil {
		return step, err
	}
	if err := r.save(ctx, step.exec); err != nil {
		return step, err
	}
	return step, nil
}

// Finish records the result of a step: the final task snapshot, the input
// request for a pause, and an audit entry. Audit persistence is best effort;
// a failure there is logged and never undoes the task snapshot.
func (r *TaskRecorder) Finish(ctx context.Context, ec *ExecutionContext, step *Step, result core.TaskResult) error {
	now := r.now()
	task := step.task
	te := step.exec
	te.Output = result.Output
	te.Error = result.Error

	var (
		status  core.TaskStatus
		audit   core.AuditStatus
		message string
	)
	switch {
	case result.Waiting:
		status, audit, message = core.TaskStatusWaitingForInput, core.AuditSuccess, "waiting for input"
	case result.Success:
		status, audit, message = core.TaskStatusComplete, core.AuditSuccess, "completed"
	default:
		status, audit, message = core.TaskStatusFailed, core.AuditFailure, "failed: "+result.Error
	}
	te.SetStatus(status, now)
	ec.SetResult(task.ID, status, result.Output, result.Error)

	var persistErr error
	if result.Waiting {
		persistErr = r.pause(ctx, ec, task, te, now)
	} else {
		persistErr = r.save(ctx, te)
	}

	entry := core.AuditEntry{
		TaskID:       task.ID,
		Status:       audit,
		Timestamp:    now,
		ChangesCount: ec.LogCount(task.ID) - step.logsStart,
		Message:      message,
	}
	r.Audit(ctx, ec, entry)

	switch status {
	case core.TaskStatusComplete:
		r.publish(events.NewTaskCompletedEvent(string(ec.ExecutionID()), string(task.ID), result.Output))
	case core.TaskStatusFailed:
		r.publish(events.NewTaskFailedEvent(string(ec.ExecutionID()), string(task.ID), result.Error))
	}
	return persistErr
}

// Complete records a resumed input task as finished with value as output.
func (r *TaskRecorder) Complete(ctx context.Context, ec *ExecutionContext, task *core.Task, te *core.TaskExecution, value string) error {
	step := &Step{task: task, exec: te, logsStart: ec.LogCount(task.ID)}
	ec.AppendLog(task.ID, "Input received: "+value)
	return r.Finish(ctx, ec, step, core.Succeeded(value))
}

// Interrupt records a task that was in flight when its process died.
func (r *TaskRecorder) Interrupt(ctx context.Context, ec *ExecutionContext, task *core.Task, te *core.TaskExecution) error {
	step := &Step{task: task, exec: te, logsStart: ec.LogCount(task.ID)}
	err := core.ErrExecution(core.CodeInterrupted, "task was interrupted before it reported a result")
	return r.Finish(ctx, ec, step, core.Failed("", err))
}

// Audit appends an entry to the context and, best effort, to the store.
func (r *TaskRecorder) Audit(ctx context.Context, ec *ExecutionContext, entry core.AuditEntry) {
	ec.RecordAudit(entry)
	rec := bridge.AuditToRecord(uuid.NewString(), ec.ExecutionID(), entry)
	if err := r.store.AuditEvents().Save(ctx, rec); err != nil {
		r.logger.Warn("engine: audit event not persisted",
			"execution_id", ec.ExecutionID(),
			"task_id", entry.TaskID,
			"error", err,
		)
	}
}

func (r *TaskRecorder) pause(ctx context.Context, ec *ExecutionContext, task *core.Task, te *core.TaskExecution, now time.Time) error {
	if err := r.save(ctx, te); err != nil {
		return err
	}
	ui := task.Function.UserInput
	if ui == nil {
		return core.ErrExecution(core.CodeInvalidState,
			fmt.Sprintf("task %s paused but is not a user_input task", task.ID))
	}
	req := &core.InputRequest{
		ID:          uuid.NewString(),
		TaskID:      task.ID,
		ExecutionID: ec.ExecutionID(),
		Prompt:      te.Output,
		InputType:   ui.InputType,
		Required:    ui.Required,
		Default:     ui.Default,
		Status:      core.InputRequestPending,
		CreatedAt:   now,
	}
	if err := r.store.InputRequests().Save(ctx, bridge.InputRequestToRecord(req)); err != nil {
		return fmt.Errorf("recording input request for %s: %w", task.ID, err)
	}
	r.publish(events.NewTaskWaitingEvent(string(ec.ExecutionID()), string(task.ID), req.ID, req.Prompt, string(req.InputType)))
	return nil
}

func (r *TaskRecorder) load(ctx context.Context, executionID core.ExecutionID, task *core.Task) (*core.TaskExecution, error) {
	rec, err := r.store.TaskExecutions().Get(ctx, bridge.TaskExecutionRecordID(executionID, task.ID))
	if err != nil {
		return nil, fmt.Errorf("loading task %s: %w", task.ID, err)
	}
	if rec == nil {
		return r.fresh(executionID, task), nil
	}
	return bridge.TaskExecutionFromRecord(rec)
}

func (r *TaskRecorder) fresh(executionID core.ExecutionID, task *core.Task) *core.TaskExecution {
	return &core.TaskExecution{
		TaskID:      task.ID,
		ExecutionID: executionID,
		Name:        task.Name,
		Kind:        task.Function.Kind(),
		Status:      core.TaskStatusPending,
		CreatedAt:   r.now(),
	}
}

func (r *TaskRecorder) save(ctx context.Context, te *core.TaskExecution) error {
	if err := r.store.TaskExecutions().Save(ctx, bridge.TaskExecutionToRecord(te)); err != nil {
		r.logger.Error("engine: task snapshot not persisted",
			"execution_id", te.ExecutionID,
			"task_id", te.TaskID,
			"status", te.Status,
			"error", err,
		)
		return fmt.Errorf("recording task %s: %w", te.TaskID, err)
	}
	return nil
}

func (r *TaskRecorder) publish(event events.Event) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(event)
}
