package core

import "encoding/json"

// Persisted record types. Each is stored as an opaque JSON payload keyed by
// ID; new optional fields must use omitempty so older rows still decode.

// WorkflowRecord stores a workflow definition.
type WorkflowRecord struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
	CreatedAt  string          `json:"created_at"`
	UpdatedAt  string          `json:"updated_at"`
}

// WorkflowExecutionRecord stores one run.
type WorkflowExecutionRecord struct {
	ID           string `json:"id"`
	WorkflowID   string `json:"workflow_id"`
	WorkflowName string `json:"workflow_name"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at,omitempty"`
	CompletedAt  string `json:"completed_at,omitempty"`
	Output       string `json:"output,omitempty"`
	Error        string `json:"error,omitempty"`
	// Definition pins the document this run executes, so a continuation
	// never picks up a later edit of the workflow.
	Definition json.RawMessage `json:"definition,omitempty"`
}

// TaskExecutionRecord stores one task of one run. WorkflowID holds the
// execution id the task belongs to.
type TaskExecutionRecord struct {
	ID          string `json:"id"`
	TaskID      string `json:"task_id"`
	WorkflowID  string `json:"workflow_id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
	Output      string `json:"output,omitempty"`
	Error       string `json:"error,omitempty"`
	InputValue  string `json:"input_value,omitempty"`
}

// UserInputRequestRecord stores a pause.
type UserInputRequestRecord struct {
	ID                  string  `json:"id"`
	TaskExecutionID     string  `json:"task_execution_id"`
	WorkflowExecutionID string  `json:"workflow_execution_id"`
	TaskID              string  `json:"task_id"`
	PromptText          string  `json:"prompt_text"`
	InputType           string  `json:"input_type"`
	Required            bool    `json:"required"`
	DefaultValue        *string `json:"default_value,omitempty"`
	Status              string  `json:"status"`
	FulfilledValue      string  `json:"fulfilled_value,omitempty"`
	CreatedAt           string  `json:"created_at"`
	FulfilledAt         string  `json:"fulfilled_at,omitempty"`
}

// AuditEventRecord stores one audit entry.
type AuditEventRecord struct {
	ID                  string `json:"id"`
	WorkflowExecutionID string `json:"workflow_execution_id"`
	TaskID              string `json:"task_id"`
	Status              string `json:"status"`
	Timestamp           string `json:"timestamp"`
	ChangesCount        int    `json:"changes_count"`
	Message             string `json:"message,omitempty"`
}

// PromptRecord stores a reusable agent prompt.
type PromptRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// SettingRecord stores one key/value setting; ID is the key.
type SettingRecord struct {
	ID        string `json:"id"`
	Value     string `json:"value"`
	UpdatedAt string `json:"updated_at"`
}
