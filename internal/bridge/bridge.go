// Package bridge converts between engine types and persisted records.
// Every function is pure: no I/O, no clock, no id generation.
package bridge

import (
	"time"

	"github.com/weft-dev/weft/internal/core"
)

// TimeLayout is the timestamp format of every persisted record.
const TimeLayout = time.RFC3339Nano

// FormatTime renders t in UTC. The zero time renders as "".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a persisted timestamp. "" yields the zero time.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, core.ErrPersistence("parsing timestamp "+s, err)
	}
	return t.UTC(), nil
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTime(*t)
}

func parseTimePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TaskExecutionRecordID is the store key of one task within one execution.
func TaskExecutionRecordID(executionID core.ExecutionID, taskID core.TaskID) string {
	return string(executionID) + "/" + string(taskID)
}

// ExecutionToRecord maps an execution to its persisted form.
func ExecutionToRecord(e *core.Execution) *core.WorkflowExecutionRecord {
	return &core.WorkflowExecutionRecord{
		ID:           string(e.ID),
		WorkflowID:   string(e.WorkflowID),
		WorkflowName: e.WorkflowName,
		Status:       string(e.Status),
		CreatedAt:    FormatTime(e.CreatedAt),
		UpdatedAt:    FormatTime(e.UpdatedAt),
		CompletedAt:  formatTimePtr(e.CompletedAt),
		Output:       e.Output,
		Error:        e.Error,
		Definition:   e.Definition,
	}
}

// ExecutionFromRecord maps a persisted execution back.
func ExecutionFromRecord(r *core.WorkflowExecutionRecord) (*core.Execution, error) {
	created, err := ParseTime(r.CreatedAt)
	if err != nil {
		return nil, err
	}
	updated, err := ParseTime(r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	completed, err := parseTimePtr(r.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &core.Execution{
		ID:           core.ExecutionID(r.ID),
		WorkflowID:   core.WorkflowID(r.WorkflowID),
		WorkflowName: r.WorkflowName,
		Status:       core.ExecutionStatus(r.Status),
		CreatedAt:    created,
		UpdatedAt:    updated,
		CompletedAt:  completed,
		Output:       r.Output,
		Error:        r.Error,
		Definition:   []byte(r.Definition),
	}, nil
}

// TaskExecutionToRecord maps a task execution to its persisted form.
func TaskExecutionToRecord(t *core.TaskExecution) *core.TaskExecutionRecord {
	return &core.TaskExecutionRecord{
		ID:          TaskExecutionRecordID(t.ExecutionID, t.TaskID),
		TaskID:      string(t.TaskID),
		WorkflowID:  string(t.ExecutionID),
		Name:        t.Name,
		Kind:        string(t.Kind),
		Status:      string(t.Status),
		CreatedAt:   FormatTime(t.CreatedAt),
		StartedAt:   formatTimePtr(t.StartedAt),
		CompletedAt: formatTimePtr(t.CompletedAt),
		Output:      t.Output,
		Error:       t.Error,
		InputValue:  t.InputValue,
	}
}

// TaskExecutionFromRecord maps a persisted task execution back.
func TaskExecutionFromRecord(r *core.TaskExecutionRecord) (*core.TaskExecution, error) {
	created, err := ParseTime(r.CreatedAt)
	if err != nil {
		return nil, err
	}
	started, err := parseTimePtr(r.StartedAt)
	if err != nil {
		return nil, err
	}
	completed, err := parseTimePtr(r.CompletedAt)
	if err != nil {
		return nil, err
	}
	status := core.TaskStatus(r.Status)
	if !status.Valid() {
		return nil, core.ErrPersistence("task execution "+r.ID+" has unknown status "+r.Status, nil)
	}
	return &core.TaskExecution{
		TaskID:      core.TaskID(r.TaskID),
		ExecutionID: core.ExecutionID(r.WorkflowID),
		Name:        r.Name,
		Kind:        core.FunctionKind(r.Kind),
		Status:      status,
		CreatedAt:   created,
		StartedAt:   started,
		CompletedAt: completed,
		Output:      r.Output,
		Error:       r.Error,
		InputValue:  r.InputValue,
	}, nil
}

// InputRequestToRecord maps an input request to its persisted form.
func InputRequestToRecord(req *core.InputRequest) *core.UserInputRequestRecord {
	return &core.UserInputRequestRecord{
		ID:                  req.ID,
		TaskExecutionID:     TaskExecutionRecordID(req.ExecutionID, req.TaskID),
		WorkflowExecutionID: string(req.ExecutionID),
		TaskID:              string(req.TaskID),
		PromptText:          req.Prompt,
		InputType:           string(req.InputType),
		Required:            req.Required,
		DefaultValue:        req.Default,
		Status:              string(req.Status),
		FulfilledValue:      req.Value,
		CreatedAt:           FormatTime(req.CreatedAt),
		FulfilledAt:         formatTimePtr(req.FulfilledAt),
	}
}

// InputRequestFromRecord maps a persisted input request back.
func InputRequestFromRecord(r *core.UserInputRequestRecord) (*core.InputRequest, error) {
	created, err := ParseTime(r.CreatedAt)
	if err != nil {
		return nil, err
	}
	fulfilled, err := parseTimePtr(r.FulfilledAt)
	if err != nil {
		return nil, err
	}
	inputType := core.InputType(r.InputType)
	if inputType == "" {
		inputType = core.InputTypeString
	}
	return &core.InputRequest{
		ID:          r.ID,
		TaskID:      core.TaskID(r.TaskID),
		ExecutionID: core.ExecutionID(r.WorkflowExecutionID),
		Prompt:      r.PromptText,
		InputType:   inputType,
		Required:    r.Required,
		Default:     r.DefaultValue,
		Status:      core.InputRequestStatus(r.Status),
		Value:       r.FulfilledValue,
		CreatedAt:   created,
		FulfilledAt: fulfilled,
	}, nil
}

// AuditToRecord maps an audit entry of an execution to its persisted form.
func AuditToRecord(id string, executionID core.ExecutionID, e core.AuditEntry) *core.AuditEventRecord {
	return &core.AuditEventRecord{
		ID:                  id,
		WorkflowExecutionID: string(executionID),
		TaskID:              string(e.TaskID),
		Status:              string(e.Status),
		Timestamp:           FormatTime(e.Timestamp),
		ChangesCount:        e.ChangesCount,
		Message:             e.Message,
	}
}

// AuditFromRecord maps a persisted audit event back.
func AuditFromRecord(r *core.AuditEventRecord) (core.AuditEntry, error) {
	ts, err := ParseTime(r.Timestamp)
	if err != nil {
		return core.AuditEntry{}, err
	}
	return core.AuditEntry{
		TaskID:       core.TaskID(r.TaskID),
		Status:       core.AuditStatus(r.Status),
		Timestamp:    ts,
		ChangesCount: r.ChangesCount,
		Message:      r.Message,
	}, nil
}

// TaskInfoFromExecution summarizes a task execution for a WorkflowResult.
func TaskInfoFromExecution(t *core.TaskExecution) core.TaskInfo {
	return core.TaskInfo{
		ID:     t.TaskID,
		Name:   t.Name,
		Kind:   t.Kind,
		Status: t.Status,
		Output: t.Output,
		Error:  t.Error,
	}
}

// ExecutionStatusFor derives the run status from a result.
func ExecutionStatusFor(r *core.WorkflowResult) core.ExecutionStatus {
	switch r.Outcome() {
	case core.OutcomeSucceeded:
		return core.ExecutionStatusCompleted
	case core.OutcomeWaiting:
		return core.ExecutionStatusWaitingForInput
	default:
		return core.ExecutionStatusFailed
	}
}
