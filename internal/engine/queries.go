package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/weft-dev/weft/internal/bridge"
	"github.com/weft-dev/weft/internal/core"
)

// GetExecution returns one execution.
func (e *Engine) GetExecution(ctx context.Context, executionID core.ExecutionID) (*core.Execution, error) {
	return e.loadExecution(ctx, executionID)
}

// ListExecutions returns every execution, newest first.
func (e *Engine) ListExecutions(ctx context.Context) ([]*core.Execution, error) {
	recs, err := e.store.Executions().List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*core.Execution, 0, len(recs))
	for _, rec := range recs {
		exec, err := bridge.ExecutionFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, exec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// TaskExecutions returns the task executions of one execution in the order
// they were recorded.
func (e *Engine) TaskExecutions(ctx context.Context, executionID core.ExecutionID) ([]*core.TaskExecution, error) {
	if _, err := e.loadExecution(ctx, executionID); err != nil {
		return nil, err
	}
	return e.taskExecutions(ctx, executionID)
}

// AuditTrail returns the stored audit entries of an execution ordered by
// timestamp.
func (e *Engine) AuditTrail(ctx context.Context, executionID core.ExecutionID) ([]core.AuditEntry, error) {
	recs, err := e.store.AuditEvents().Find(ctx, "workflow_execution_id", string(executionID))
	if err != nil {
		return nil, err
	}
	out := make([]core.AuditEntry, 0, len(recs))
	for _, rec := range recs {
		entry, err := bridge.AuditFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	core.SortAudit(out)
	return out, nil
}

// ListWorkflows returns every stored workflow definition.
func (e *Engine) ListWorkflows(ctx context.Context) ([]*core.WorkflowRecord, error) {
	return e.store.Workflows().List(ctx)
}

func (e *Engine) loadExecution(ctx context.Context, executionID core.ExecutionID) (*core.Execution, error) {
	rec, err := e.store.Executions().Get(ctx, string(executionID))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, core.ErrValidation(core.CodeExecutionNotFound,
			fmt.Sprintf("unknown execution %q", executionID))
	}
	return bridge.ExecutionFromRecord(rec)
}

func (e *Engine) loadTask(ctx context.Context, executionID core.ExecutionID, taskID core.TaskID) (*core.TaskExecution, error) {
	rec, err := e.store.TaskExecutions().Get(ctx, bridge.TaskExecutionRecordID(executionID, taskID))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		if _, err := e.loadExecution(ctx, executionID); err != nil {
			return nil, err
		}
		return nil, core.ErrValidation(core.CodeTaskNotFound,
			fmt.Sprintf("unknown task %q in execution %s", taskID, executionID))
	}
	return bridge.TaskExecutionFromRecord(rec)
}

func (e *Engine) taskExecutions(ctx context.Context, executionID core.ExecutionID) ([]*core.TaskExecution, error) {
	recs, err := e.store.TaskExecutions().Find(ctx, "workflow_id", string(executionID))
	if err != nil {
		return nil, err
	}
	out := make([]*core.TaskExecution, 0, len(recs))
	for _, rec := range recs {
		te, err := bridge.TaskExecutionFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, te)
	}
	return out, nil
}
