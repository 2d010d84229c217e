package events

// Event type constants for task events.
const (
	TypeTaskStarted   = "task_started"
	TypeTaskLog       = "task_log"
	TypeTaskCompleted = "task_completed"
	TypeTaskFailed    = "task_failed"
	TypeTaskWaiting   = "task_waiting"
	TypeInputProvided = "input_provided"
)

// TaskStartedEvent is emitted when a task is dispatched.
type TaskStartedEvent struct {
	BaseEvent
	TaskID string `json:"task_id"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
}

// NewTaskStartedEvent creates a new task started event.
func NewTaskStartedEvent(executionID, taskID, name, kind string) TaskStartedEvent {
	return TaskStartedEvent{
		BaseEvent: NewBaseEvent(TypeTaskStarted, executionID),
		TaskID:    taskID,
		Name:      name,
		Kind:      kind,
	}
}

// TaskLogEvent carries one output line. TaskID is empty for run-level lines.
type TaskLogEvent struct {
	BaseEvent
	TaskID string `json:"task_id,omitempty"`
	Line   string `json:"line"`
}

// NewTaskLogEvent creates a new log line event.
func NewTaskLogEvent(executionID, taskID, line string) TaskLogEvent {
	return TaskLogEvent{
		BaseEvent: NewBaseEvent(TypeTaskLog, executionID),
		TaskID:    taskID,
		Line:      line,
	}
}

// TaskCompletedEvent is emitted when a task finishes successfully.
type TaskCompletedEvent struct {
	BaseEvent
	TaskID string `json:"task_id"`
	Output string `json:"output,omitempty"`
}

// NewTaskCompletedEvent creates a new task completed event.
func NewTaskCompletedEvent(executionID, taskID, output string) TaskCompletedEvent {
	return TaskCompletedEvent{
		BaseEvent: NewBaseEvent(TypeTaskCompleted, executionID),
		TaskID:    taskID,
		Output:    output,
	}
}

// TaskFailedEvent is emitted when a task fails.
type TaskFailedEvent struct {
	BaseEvent
	TaskID string `json:"task_id"`
	Error  string `json:"error"`
}

// NewTaskFailedEvent creates a new task failed event.
func NewTaskFailedEvent(executionID, taskID, errMsg string) TaskFailedEvent {
	return TaskFailedEvent{
		BaseEvent: NewBaseEvent(TypeTaskFailed, executionID),
		TaskID:    taskID,
		Error:     errMsg,
	}
}

// TaskWaitingEvent is emitted when a task pauses for input.
type TaskWaitingEvent struct {
	BaseEvent
	TaskID    string `json:"task_id"`
	RequestID string `json:"request_id"`
	Prompt    string `json:"prompt"`
	InputType string `json:"input_type"`
}

// NewTaskWaitingEvent creates a new task waiting event.
func NewTaskWaitingEvent(executionID, taskID, requestID, prompt, inputType string) TaskWaitingEvent {
	return TaskWaitingEvent{
		BaseEvent: NewBaseEvent(TypeTaskWaiting, executionID),
		TaskID:    taskID,
		RequestID: requestID,
		Prompt:    prompt,
		InputType: inputType,
	}
}

// InputProvidedEvent is emitted when a pending input is fulfilled.
type InputProvidedEvent struct {
	BaseEvent
	TaskID    string `json:"task_id"`
	RequestID string `json:"request_id"`
}

// NewInputProvidedEvent creates a new input provided event.
func NewInputProvidedEvent(executionID, taskID, requestID string) InputProvidedEvent {
	return InputProvidedEvent{
		BaseEvent: NewBaseEvent(TypeInputProvided, executionID),
		TaskID:    taskID,
		RequestID: requestID,
	}
}
