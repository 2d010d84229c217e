package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/weft-dev/weft/internal/bridge"
	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/events"
	"github.com/weft-dev/weft/internal/parser"
)

// ProvideUserInput fulfills the pending input of a waiting task.
//
// The value is validated against the declared input type; an empty value
// takes the default. On success the request is fulfilled and the task is
// back in progress, ready to be completed by ContinueExecution. Exactly one
// call succeeds per pause, even across processes; every other call fails
// with a validation error and changes nothing.
func (e *Engine) ProvideUserInput(ctx context.Context, executionID core.ExecutionID, taskID core.TaskID, value string) error {
	te, req, err := e.waitingInput(ctx, executionID, taskID)
	if err != nil {
		return err
	}
	resolved, err := req.Resolve(value)
	if err != nil {
		return err
	}
	if err := e.fulfill(ctx, executionID, te, req, resolved, "input provided"); err != nil {
		return err
	}
	e.logger.WithExecution(string(executionID)).Info("engine: input provided", "task_id", taskID)
	return nil
}

// ResumeTask releases a waiting task without an explicit value. The task
// completes with its default, or with an empty value when it has none; the
// required flag only applies to explicit submissions. It fails only when the
// task is not waiting for input, so a second call on the same pause fails
// with NOT_WAITING.
func (e *Engine) ResumeTask(ctx context.Context, executionID core.ExecutionID, taskID core.TaskID) error {
	te, req, err := e.waitingInput(ctx, executionID, taskID)
	if err != nil {
		return err
	}
	value := ""
	if req.Default != nil {
		value = *req.Default
	}
	if err := e.fulfill(ctx, executionID, te, req, value, "task resumed"); err != nil {
		return err
	}
	e.logger.WithExecution(string(executionID)).Info("engine: task resumed", "task_id", taskID, "defaulted", req.Default != nil)
	return nil
}

// waitingInput loads a task that must be waiting together with its pending
// request.
func (e *Engine) waitingInput(ctx context.Context, executionID core.ExecutionID, taskID core.TaskID) (*core.TaskExecution, *core.InputRequest, error) {
	te, err := e.loadTask(ctx, executionID, taskID)
	if err != nil {
		return nil, nil, err
	}
	if te.Status != core.TaskStatusWaitingForInput {
		return nil, nil, core.ErrValidation(core.CodeNotWaiting,
			fmt.Sprintf("task %s is %s, not waiting for input", taskID, te.Status))
	}
	req, err := e.pendingRequest(ctx, executionID, taskID)
	if err != nil {
		return nil, nil, err
	}
	return te, req, nil
}

// fulfill stores value as the answer to req and puts the task back in
// progress in one transaction.
func (e *Engine) fulfill(ctx context.Context, executionID core.ExecutionID, te *core.TaskExecution, req *core.InputRequest, value, message string) error {
	now := e.now()
	req.Status = core.InputRequestFulfilled
	req.Value = value
	req.FulfilledAt = &now
	te.SetStatus(core.TaskStatusInProgress, now)
	te.InputValue = value
	if err := e.store.FulfillInput(ctx, bridge.InputRequestToRecord(req), bridge.TaskExecutionToRecord(te)); err != nil {
		return err
	}

	entry := core.AuditEntry{
		TaskID:    te.TaskID,
		Status:    core.AuditSuccess,
		Timestamp: now,
		Message:   message,
	}
	if err := e.store.AuditEvents().Save(ctx, bridge.AuditToRecord(uuid.NewString(), executionID, entry)); err != nil {
		e.logger.Warn("engine: audit event not persisted",
			"execution_id", executionID,
			"task_id", te.TaskID,
			"error", err,
		)
	}
	e.publish(events.NewInputProvidedEvent(string(executionID), string(te.TaskID), req.ID))
	return nil
}

// ContinueExecution rebuilds a run from the store and schedules whatever
// became ready since it last stopped.
//
// Completed tasks stay completed and failed tasks keep their subtree
// blocked. A user_input task whose value was provided completes with that
// value as output. A non-input task still in progress was interrupted by a
// process exit and is recorded as failed.
func (e *Engine) ContinueExecution(ctx context.Context, executionID core.ExecutionID, cb core.OutputCallback) (*core.WorkflowResult, error) {
	exec, err := e.loadExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	w, err := e.definition(ctx, exec)
	if err != nil {
		return nil, err
	}
	release, err := e.acquire(executionID)
	if err != nil {
		return nil, err
	}
	defer release()

	a := newArena(w)
	stored, err := e.taskExecutions(ctx, executionID)
	if err != nil {
		return nil, err
	}
	byID := make(map[core.TaskID]*core.TaskExecution, len(stored))
	for _, te := range stored {
		byID[te.TaskID] = te
	}
	var missing []*core.Task
	for _, id := range a.order {
		if byID[id] == nil {
			missing = append(missing, a.task(id))
		}
	}
	if err := e.recorder.Pending(ctx, executionID, missing); err != nil {
		return nil, err
	}

	ec := newExecutionContext(executionID, w.Name, a.order, e.store, e.forward(executionID, cb), e.logger.Sanitizer())
	ec.ancestors = a.ancestors
	defer ec.Close()

	audit, err := e.AuditTrail(ctx, executionID)
	if err != nil {
		return nil, err
	}
	for _, entry := range audit {
		ec.RecordAudit(entry)
	}

	st := newRunState()
	for _, id := range a.order {
		te := byID[id]
		if te == nil {
			continue
		}
		if err := e.restore(ctx, ec, st, a.task(id), te); err != nil {
			return nil, err
		}
	}

	now := e.now()
	exec.Status = core.ExecutionStatusRunning
	exec.UpdatedAt = now
	exec.CompletedAt = nil
	if err := e.store.Executions().Save(ctx, bridge.ExecutionToRecord(exec)); err != nil {
		return nil, fmt.Errorf("recording execution: %w", err)
	}

	e.logger.WithExecution(string(executionID)).Info("engine: workflow continued", "workflow_name", w.Name)
	e.publish(events.NewWorkflowStartedEvent(string(executionID), string(exec.WorkflowID), w.Name, a.len(), true))
	ec.Log(fmt.Sprintf("Continuing workflow %s", w.Name))

	e.loop(ctx, ec, a, st)
	return e.finish(context.WithoutCancel(ctx), ec, a, st, exec, now)
}

// restore replays one stored task into the context and the run state.
func (e *Engine) restore(ctx context.Context, ec *ExecutionContext, st *runState, task *core.Task, te *core.TaskExecution) error {
	switch te.Status {
	case core.TaskStatusComplete:
		ec.SetResult(task.ID, te.Status, te.Output, te.Error)
		st.completed[task.ID] = true
	case core.TaskStatusFailed:
		ec.SetResult(task.ID, te.Status, te.Output, te.Error)
		st.failed[task.ID] = true
		st.errors = append(st.errors, fmt.Sprintf("Task %s failed: %s", task.ID, te.Error))
	case core.TaskStatusWaitingForInput:
		ec.SetResult(task.ID, te.Status, te.Output, "")
		st.waiting[task.ID] = true
	case core.TaskStatusInProgress:
		if task.Function.Kind() == core.KindUserInput {
			fulfilled, err := e.fulfilled(ctx, te)
			if err != nil {
				return err
			}
			if !fulfilled {
				// Never paused; dispatch it again.
				return nil
			}
			ec.SetResult(task.ID, core.TaskStatusWaitingForInput, te.Output, "")
			if err := ec.ResumeTask(task.ID); err != nil {
				return err
			}
			if err := e.recorder.Complete(ctx, ec, task, te, te.InputValue); err != nil {
				return err
			}
			st.completed[task.ID] = true
			return nil
		}
		ec.SetResult(task.ID, te.Status, te.Output, "")
		if err := e.recorder.Interrupt(ctx, ec, task, te); err != nil {
			return err
		}
		st.failed[task.ID] = true
		st.errors = append(st.errors, fmt.Sprintf("Task %s failed: %s", task.ID, te.Error))
	}
	return nil
}

// GetPendingInputs lists the unfulfilled input requests of an execution,
// oldest first.
func (e *Engine) GetPendingInputs(ctx context.Context, executionID core.ExecutionID) ([]*core.InputRequest, error) {
	if _, err := e.loadExecution(ctx, executionID); err != nil {
		return nil, err
	}
	recs, err := e.store.InputRequests().Find(ctx, "workflow_execution_id", string(executionID))
	if err != nil {
		return nil, err
	}
	out := make([]*core.InputRequest, 0, len(recs))
	for _, rec := range recs {
		if core.InputRequestStatus(rec.Status) != core.InputRequestPending {
			continue
		}
		req, err := bridge.InputRequestFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// GetTasksWaitingForInput lists the task executions of an execution that
// are paused for input.
func (e *Engine) GetTasksWaitingForInput(ctx context.Context, executionID core.ExecutionID) ([]*core.TaskExecution, error) {
	if _, err := e.loadExecution(ctx, executionID); err != nil {
		return nil, err
	}
	all, err := e.taskExecutions(ctx, executionID)
	if err != nil {
		return nil, err
	}
	var out []*core.TaskExecution
	for _, te := range all {
		if te.Status == core.TaskStatusWaitingForInput {
			out = append(out, te)
		}
	}
	return out, nil
}

func (e *Engine) definition(ctx context.Context, exec *core.Execution) (*core.Workflow, error) {
	doc := exec.Definition
	if len(doc) == 0 {
		rec, err := e.store.Workflows().Get(ctx, string(exec.WorkflowID))
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, core.ErrValidation(core.CodeInvalidState,
				fmt.Sprintf("execution %s has no stored workflow definition", exec.ID))
		}
		doc = rec.Definition
	}
	w, err := parser.Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("stored definition of execution %s: %w", exec.ID, err)
	}
	return w, nil
}

func (e *Engine) pendingRequest(ctx context.Context, executionID core.ExecutionID, taskID core.TaskID) (*core.InputRequest, error) {
	recs, err := e.store.InputRequests().Find(ctx, "task_execution_id", bridge.TaskExecutionRecordID(executionID, taskID))
	if err != nil {
		return nil, err
	}
	var latest *core.InputRequest
	for _, rec := range recs {
		if core.InputRequestStatus(rec.Status) != core.InputRequestPending {
			continue
		}
		req, err := bridge.InputRequestFromRecord(rec)
		if err != nil {
			return nil, err
		}
		if latest == nil || !req.CreatedAt.Before(latest.CreatedAt) {
			latest = req
		}
	}
	if latest == nil {
		return nil, core.ErrValidation(core.CodeNotWaiting,
			fmt.Sprintf("task %s has no pending input request", taskID))
	}
	return latest, nil
}

// fulfilled reports whether the task's input request was fulfilled.
func (e *Engine) fulfilled(ctx context.Context, te *core.TaskExecution) (bool, error) {
	recs, err := e.store.InputRequests().Find(ctx, "task_execution_id", bridge.TaskExecutionRecordID(te.ExecutionID, te.TaskID))
	if err != nil {
		return false, err
	}
	for _, rec := range recs {
		if core.InputRequestStatus(rec.Status) == core.InputRequestFulfilled {
			return true, nil
		}
	}
	return false, nil
}
