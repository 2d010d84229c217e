package core

import "context"

// =============================================================================
// Store Port
// =============================================================================

// Repository is the per-table contract of the persistence store.
type Repository[T any] interface {
	// Save inserts or replaces the record under its ID.
	Save(ctx context.Context, record *T) error

	// Get returns the record with the given ID.
	// Returns nil record and no error if it does not exist.
	Get(ctx context.Context, id string) (*T, error)

	// List returns every record in the table.
	List(ctx context.Context) ([]*T, error)

	// Find returns records whose top-level payload field equals value.
	Find(ctx context.Context, field, value string) ([]*T, error)

	// Delete removes the record. Deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error
}

// Store groups the seven tables of the durable store.
//
// Any number of readers (in any number of processes) see a consistent
// snapshot and never block on writers; writers are serialized.
type Store interface {
	Workflows() Repository[WorkflowRecord]
	Executions() Repository[WorkflowExecutionRecord]
	TaskExecutions() Repository[TaskExecutionRecord]
	InputRequests() Repository[UserInputRequestRecord]
	Prompts() Repository[PromptRecord]
	AuditEvents() Repository[AuditEventRecord]
	Settings() Repository[SettingRecord]

	// FulfillInput atomically marks the request fulfilled and moves the task
	// execution back to in_progress. It re-reads both rows inside the write
	// transaction and fails with a validation error if either was already
	// transitioned, so exactly one fulfillment can succeed per pause.
	FulfillInput(ctx context.Context, req *UserInputRequestRecord, task *TaskExecutionRecord) error

	// Close flushes and releases the store.
	Close() error
}

// OutputCallback receives live log lines. taskID is empty for global lines.
type OutputCallback func(taskID TaskID, line string)
