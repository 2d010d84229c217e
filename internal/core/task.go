package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TaskID uniquely identifies a task within a workflow.
type TaskID string

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskStatusPending         TaskStatus = "pending"
	TaskStatusInProgress      TaskStatus = "in_progress"
	TaskStatusComplete        TaskStatus = "complete"
	TaskStatusFailed          TaskStatus = "failed"
	TaskStatusWaitingForInput TaskStatus = "waiting_for_input"
)

// IsTerminal reports whether the status ends the task's lifecycle.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusComplete || s == TaskStatusFailed
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusComplete,
		TaskStatusFailed, TaskStatusWaitingForInput:
		return true
	}
	return false
}

// FunctionKind is the wire tag of a task function.
type FunctionKind string

const (
	KindCliCommand  FunctionKind = "cli_command"
	KindCursorAgent FunctionKind = "cursor_agent"
	KindUserInput   FunctionKind = "user_input"
	KindCustom      FunctionKind = "custom"
)

// FunctionKinds lists every recognized kind.
var FunctionKinds = []FunctionKind{KindCliCommand, KindCursorAgent, KindUserInput, KindCustom}

// ParseFunctionKind maps a wire tag to a kind.
func ParseFunctionKind(s string) (FunctionKind, bool) {
	for _, k := range FunctionKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// InputType is the declared type of a user input value.
type InputType string

const (
	InputTypeString  InputType = "string"
	InputTypeNumber  InputType = "number"
	InputTypeBoolean InputType = "boolean"
)

// Valid reports whether t is a known input type.
func (t InputType) Valid() bool {
	return t == InputTypeString || t == InputTypeNumber || t == InputTypeBoolean
}

// Validate checks value against the declared type.
func (t InputType) Validate(value string) error {
	switch t {
	case InputTypeString:
		return nil
	case InputTypeNumber:
		if _, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err != nil {
			return ErrValidation(CodeInputTypeMismatch,
				fmt.Sprintf("value %q is not a valid number", value))
		}
		return nil
	case InputTypeBoolean:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "false", "1", "0", "yes", "no":
			return nil
		}
		return ErrValidation(CodeInputTypeMismatch,
			fmt.Sprintf("value %q is not a valid boolean (true/false/1/0/yes/no)", value))
	default:
		return ErrValidation(CodeInputTypeMismatch, fmt.Sprintf("unknown input type %q", t))
	}
}

// CliCommand runs a program with arguments.
type CliCommand struct {
	Command    string            `json:"command"`
	Args       []string          `json:"args,omitempty"`
	WorkingDir string            `json:"working_dir,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	Timeout    time.Duration     `json:"-"`
}

// CursorAgent sends a prompt to the cursor agent.
type CursorAgent struct {
	Prompt   string                 `json:"prompt,omitempty"`
	PromptID string                 `json:"prompt_id,omitempty"`
	Config   map[string]interface{} `json:"config,omitempty"`
}

// UserInput pauses the task until a value is supplied.
type UserInput struct {
	Prompt    string    `json:"prompt"`
	InputType InputType `json:"input_type"`
	Required  bool      `json:"required"`
	Default   *string   `json:"default,omitempty"`
}

// Custom invokes a registered callback by name.
type Custom struct {
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

// TaskFunction is a tagged union; exactly one variant is non-nil.
type TaskFunction struct {
	CliCommand  *CliCommand
	CursorAgent *CursorAgent
	UserInput   *UserInput
	Custom      *Custom
}

// Kind returns the tag of the active variant.
func (f TaskFunction) Kind() FunctionKind {
	switch {
	case f.CliCommand != nil:
		return KindCliCommand
	case f.CursorAgent != nil:
		return KindCursorAgent
	case f.UserInput != nil:
		return KindUserInput
	case f.Custom != nil:
		return KindCustom
	}
	return ""
}

// Task is a unit of work with ordered children. Each task owns its children.
type Task struct {
	ID       TaskID
	Name     string
	Function TaskFunction
	Children []*Task
}

// Walk visits t and its descendants depth-first, parents before children.
func (t *Task) Walk(fn func(task *Task, parent *Task)) {
	var visit func(task, parent *Task)
	visit = func(task, parent *Task) {
		fn(task, parent)
		for _, child := range task.Children {
			visit(child, task)
		}
	}
	visit(t, nil)
}

// TaskResult is what a handler reports for one dispatch.
type TaskResult struct {
	Success bool
	Output  string
	Error   string
	// Waiting marks a task that paused for external input; it is neither
	// complete nor failed.
	Waiting bool
}

// Succeeded builds a successful result.
func Succeeded(output string) TaskResult {
	return TaskResult{Success: true, Output: output}
}

// Failed builds a failed result.
func Failed(output string, err error) TaskResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return TaskResult{Output: output, Error: msg}
}

// WaitingForInput builds a paused result.
func WaitingForInput(prompt string) TaskResult {
	return TaskResult{Waiting: true, Output: prompt}
}
