package core

import (
	"sort"
	"time"
)

// WorkflowID identifies a workflow definition.
type WorkflowID string

// ExecutionID identifies one run of a workflow.
type ExecutionID string

// WaitingForInputSentinel is reported in WorkflowResult.Errors when a run
// paused instead of finishing.
const WaitingForInputSentinel = "Waiting for user input"

// Workflow is a validated task forest.
type Workflow struct {
	ID    WorkflowID
	Name  string
	Tasks []*Task
	// Raw is the document the workflow was parsed from.
	Raw []byte
}

// Walk visits every task in the forest depth-first.
func (w *Workflow) Walk(fn func(task *Task, parent *Task)) {
	for _, root := range w.Tasks {
		root.Walk(fn)
	}
}

// TaskCount returns the number of tasks at any depth.
func (w *Workflow) TaskCount() int {
	n := 0
	w.Walk(func(_, _ *Task) { n++ })
	return n
}

// ExecutionStatus is the state of a workflow run.
type ExecutionStatus string

const (
	ExecutionStatusRunning         ExecutionStatus = "running"
	ExecutionStatusCompleted       ExecutionStatus = "completed"
	ExecutionStatusFailed          ExecutionStatus = "failed"
	ExecutionStatusWaitingForInput ExecutionStatus = "waiting_for_input"
)

// Execution is one run of a workflow.
type Execution struct {
	ID           ExecutionID     `json:"id"`
	WorkflowID   WorkflowID      `json:"workflow_id"`
	WorkflowName string          `json:"workflow_name"`
	Status       ExecutionStatus `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Output       string          `json:"output,omitempty"`
	Error        string          `json:"error,omitempty"`
	// Definition is the workflow document the run was started from.
	Definition []byte `json:"-"`
}

// TaskExecution is the durable state of one task within one execution.
type TaskExecution struct {
	TaskID      TaskID       `json:"task_id"`
	ExecutionID ExecutionID  `json:"execution_id"`
	Name        string       `json:"name"`
	Kind        FunctionKind `json:"kind"`
	Status      TaskStatus   `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Output      string       `json:"output,omitempty"`
	Error       string       `json:"error,omitempty"`
	InputValue  string       `json:"input_value,omitempty"`
}

// SetStatus transitions the task and maintains CompletedAt: it is set
// only for Complete and Failed.
func (t *TaskExecution) SetStatus(status TaskStatus, now time.Time) {
	t.Status = status
	switch {
	case status.IsTerminal():
		t.CompletedAt = &now
	default:
		t.CompletedAt = nil
	}
	if status == TaskStatusInProgress && t.StartedAt == nil {
		t.StartedAt = &now
	}
}

// InputRequestStatus is the state of a pending input.
type InputRequestStatus string

const (
	InputRequestPending   InputRequestStatus = "pending"
	InputRequestFulfilled InputRequestStatus = "fulfilled"
)

// InputRequest is a prompt waiting on an externally supplied value.
type InputRequest struct {
	ID          string             `json:"id"`
	TaskID      TaskID             `json:"task_id"`
	ExecutionID ExecutionID        `json:"execution_id"`
	Prompt      string             `json:"prompt"`
	InputType   InputType          `json:"input_type"`
	Required    bool               `json:"required"`
	Default     *string            `json:"default,omitempty"`
	Status      InputRequestStatus `json:"status"`
	Value       string             `json:"value,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	FulfilledAt *time.Time         `json:"fulfilled_at,omitempty"`
}

// Resolve picks the value to store for a submission, applying the default
// to empty submissions and validating against the declared type.
func (r *InputRequest) Resolve(value string) (string, error) {
	if value == "" {
		if r.Default != nil {
			value = *r.Default
		} else if r.Required {
			return "", ErrValidation(CodeInputRequired, "a value is required for this input")
		} else {
			return "", nil
		}
	}
	if err := r.InputType.Validate(value); err != nil {
		return "", err
	}
	return value, nil
}

// AuditStatus is the outcome recorded by an audit entry.
type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditFailure AuditStatus = "failure"
)

// AuditEntry records one meaningful state change.
type AuditEntry struct {
	TaskID       TaskID      `json:"task_id"`
	Status       AuditStatus `json:"status"`
	Timestamp    time.Time   `json:"timestamp"`
	ChangesCount int         `json:"changes_count"`
	Message      string      `json:"message,omitempty"`
}

// TaskInfo summarizes one task in a WorkflowResult.
type TaskInfo struct {
	ID     TaskID       `json:"id"`
	Name   string       `json:"name"`
	Kind   FunctionKind `json:"kind"`
	Status TaskStatus   `json:"status"`
	Output string       `json:"output,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// Outcome distinguishes the three ways a run can return.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeWaiting   Outcome = "waiting_for_input"
)

// WorkflowResult is returned by every run and continuation.
type WorkflowResult struct {
	Success      bool                `json:"success"`
	ExecutionID  ExecutionID         `json:"execution_id"`
	WorkflowID   WorkflowID          `json:"workflow_id"`
	WorkflowName string              `json:"workflow_name"`
	Tasks        []TaskInfo          `json:"tasks"`
	AuditTrail   []AuditEntry        `json:"audit_trail"`
	Logs         map[string][]string `json:"logs"`
	Errors       []string            `json:"errors"`
}

// Waiting reports whether the run paused for input.
func (r *WorkflowResult) Waiting() bool {
	for _, e := range r.Errors {
		if e == WaitingForInputSentinel {
			return true
		}
	}
	return false
}

// Outcome classifies the result.
func (r *WorkflowResult) Outcome() Outcome {
	switch {
	case r.Success:
		return OutcomeSucceeded
	case r.Waiting():
		return OutcomeWaiting
	default:
		return OutcomeFailed
	}
}

// Task looks up a task summary by id.
func (r *WorkflowResult) Task(id TaskID) (TaskInfo, bool) {
	for _, t := range r.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return TaskInfo{}, false
}

// SortAudit orders entries by timestamp, keeping insertion order for ties.
func SortAudit(entries []AuditEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}
