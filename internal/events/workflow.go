package events

import "time"

// Event type constants for workflow lifecycle.
const (
	TypeWorkflowStarted   = "workflow_started"
	TypeWorkflowCompleted = "workflow_completed"
	TypeWorkflowFailed    = "workflow_failed"
	TypeWorkflowPaused    = "workflow_paused"
)

// WorkflowStartedEvent is emitted when a run (or continuation) begins.
type WorkflowStartedEvent struct {
	BaseEvent
	WorkflowID   string `json:"workflow_id"`
	WorkflowName string `json:"workflow_name"`
	TotalTasks   int    `json:"total_tasks"`
	Resumed      bool   `json:"resumed,omitempty"`
}

// NewWorkflowStartedEvent creates a new workflow started event.
func NewWorkflowStartedEvent(executionID, workflowID, workflowName string, totalTasks int, resumed bool) WorkflowStartedEvent {
	return WorkflowStartedEvent{
		BaseEvent:    NewBaseEvent(TypeWorkflowStarted, executionID),
		WorkflowID:   workflowID,
		WorkflowName: workflowName,
		TotalTasks:   totalTasks,
		Resumed:      resumed,
	}
}

// WorkflowCompletedEvent is emitted when every reachable task completed.
type WorkflowCompletedEvent struct {
	BaseEvent
	Duration  time.Duration `json:"duration"`
	Completed int           `json:"completed"`
}

// NewWorkflowCompletedEvent creates a new workflow completed event.
func NewWorkflowCompletedEvent(executionID string, duration time.Duration, completed int) WorkflowCompletedEvent {
	return WorkflowCompletedEvent{
		BaseEvent: NewBaseEvent(TypeWorkflowCompleted, executionID),
		Duration:  duration,
		Completed: completed,
	}
}

// WorkflowFailedEvent is emitted when a run finished with errors.
type WorkflowFailedEvent struct {
	BaseEvent
	Errors []string `json:"errors"`
}

// NewWorkflowFailedEvent creates a new workflow failed event.
func NewWorkflowFailedEvent(executionID string, errs []string) WorkflowFailedEvent {
	return WorkflowFailedEvent{
		BaseEvent: NewBaseEvent(TypeWorkflowFailed, executionID),
		Errors:    errs,
	}
}

// WorkflowPausedEvent is emitted when a run returns waiting for input.
type WorkflowPausedEvent struct {
	BaseEvent
	WaitingTasks []string `json:"waiting_tasks"`
}

// NewWorkflowPausedEvent creates a new workflow paused event.
func NewWorkflowPausedEvent(executionID string, waiting []string) WorkflowPausedEvent {
	return WorkflowPausedEvent{
		BaseEvent:    NewBaseEvent(TypeWorkflowPaused, executionID),
		WaitingTasks: waiting,
	}
}
