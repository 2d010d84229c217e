package engine

import (
	"fmt"
	"sync"

	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/logging"
)

const opBuffer = 256

type taskState struct {
	status core.TaskStatus
	output string
	err    string
	logs   []string
}

// contextState is owned by the actor goroutine. Nothing else touches it.
type contextState struct {
	tasks  map[core.TaskID]*taskState
	order  []core.TaskID
	global []string
	audit  []core.AuditEntry
}

// ExecutionContext is the run state shared by every handler of one run.
//
// It is an actor: a single goroutine owns the state and applies operations
// in the order they were sent. Mutations are fire-and-forget; queries and
// operations that can fail wait for the actor's reply. The output callback
// runs on the actor goroutine, so callers see lines in order and never
// concurrently.
type ExecutionContext struct {
	executionID  core.ExecutionID
	workflowName string
	store        core.Store
	callback     core.OutputCallback
	sanitizer    *logging.Sanitizer
	// ancestors lists a task's parent chain; set before any task runs.
	ancestors func(core.TaskID) []core.TaskID

	ops       chan func(*contextState)
	done      chan struct{}
	closeOnce sync.Once
}

func newExecutionContext(
	executionID core.ExecutionID,
	workflowName string,
	taskIDs []core.TaskID,
	store core.Store,
	callback core.OutputCallback,
	sanitizer *logging.Sanitizer,
) *ExecutionContext {
	state := &contextState{tasks: make(map[core.TaskID]*taskState, len(taskIDs))}
	for _, id := range taskIDs {
		state.tasks[id] = &taskState{status: core.TaskStatusPending}
		state.order = append(state.order, id)
	}
	c := &ExecutionContext{
		executionID:  executionID,
		workflowName: workflowName,
		store:        store,
		callback:     callback,
		sanitizer:    sanitizer,
		ops:          make(chan func(*contextState), opBuffer),
		done:         make(chan struct{}),
	}
	go c.loop(state)
	return c
}

func (c *ExecutionContext) loop(state *contextState) {
	defer close(c.done)
	for op := range c.ops {
		if op == nil {
			return
		}
		op(state)
	}
}

// send queues a mutation. Mutations sent after Close are dropped.
func (c *ExecutionContext) send(op func(*contextState)) {
	select {
	case <-c.done:
	case c.ops <- op:
	}
}

// call runs op on the actor and waits for it to finish.
func (c *ExecutionContext) call(op func(*contextState)) bool {
	reply := make(chan struct{})
	c.send(func(s *contextState) {
		op(s)
		close(reply)
	})
	select {
	case <-reply:
		return true
	case <-c.done:
		// The actor may have applied op just before stopping.
		select {
		case <-reply:
			return true
		default:
			return false
		}
	}
}

// Close applies every queued operation and stops the actor.
func (c *ExecutionContext) Close() {
	c.closeOnce.Do(func() {
		c.send(nil)
		<-c.done
	})
}

// ExecutionID returns the id of the run.
func (c *ExecutionContext) ExecutionID() core.ExecutionID { return c.executionID }

// WorkflowName returns the name of the running workflow.
func (c *ExecutionContext) WorkflowName() string { return c.workflowName }

// Store returns the store the run persists to.
func (c *ExecutionContext) Store() core.Store { return c.store }

// StartTask marks the task in progress.
func (c *ExecutionContext) StartTask(id core.TaskID) {
	c.UpdateStatus(id, core.TaskStatusInProgress)
}

// UpdateStatus sets the task status. Unknown ids are ignored.
func (c *ExecutionContext) UpdateStatus(id core.TaskID, status core.TaskStatus) {
	c.send(func(s *contextState) {
		if t, ok := s.tasks[id]; ok {
			t.status = status
		}
	})
}

// SetResult records the outcome of a dispatch.
func (c *ExecutionContext) SetResult(id core.TaskID, status core.TaskStatus, output, errMsg string) {
	c.send(func(s *contextState) {
		if t, ok := s.tasks[id]; ok {
			t.status = status
			t.output = output
			t.err = errMsg
		}
	})
}

// AppendLog adds a line to the task's log and forwards it to the output
// callback.
func (c *ExecutionContext) AppendLog(id core.TaskID, line string) {
	if c.sanitizer != nil {
		line = c.sanitizer.Sanitize(line)
	}
	c.send(func(s *contextState) {
		if t, ok := s.tasks[id]; ok {
			t.logs = append(t.logs, line)
		}
		s.global = append(s.global, fmt.Sprintf("[%s] %s", id, line))
		if c.callback != nil {
			c.callback(id, line)
		}
	})
}

// Log adds a run-level line.
func (c *ExecutionContext) Log(line string) {
	if c.sanitizer != nil {
		line = c.sanitizer.Sanitize(line)
	}
	c.send(func(s *contextState) {
		s.global = append(s.global, line)
		if c.callback != nil {
			c.callback("", line)
		}
	})
}

// RecordAudit appends an entry to the audit trail.
func (c *ExecutionContext) RecordAudit(entry core.AuditEntry) {
	c.send(func(s *contextState) {
		s.audit = append(s.audit, entry)
	})
}

// PauseForInput moves the task to WaitingForInput and logs the prompt.
func (c *ExecutionContext) PauseForInput(id core.TaskID, prompt string) error {
	var err error
	ok := c.call(func(s *contextState) {
		t, found := s.tasks[id]
		if !found {
			err = core.ErrValidation(core.CodeTaskNotFound, fmt.Sprintf("unknown task %q", id))
			return
		}
		t.status = core.TaskStatusWaitingForInput
		t.output = prompt
		t.logs = append(t.logs, "Waiting for input: "+prompt)
		s.global = append(s.global, fmt.Sprintf("[%s] waiting for input", id))
		if c.callback != nil {
			c.callback(id, "Waiting for input: "+prompt)
		}
	})
	if !ok {
		return core.ErrValidation(core.CodeInvalidState, "execution context is closed")
	}
	return err
}

// ResumeTask moves a waiting task back to InProgress.
func (c *ExecutionContext) ResumeTask(id core.TaskID) error {
	var err error
	ok := c.call(func(s *contextState) {
		t, found := s.tasks[id]
		if !found {
			err = core.ErrValidation(core.CodeTaskNotFound, fmt.Sprintf("unknown task %q", id))
			return
		}
		if t.status != core.TaskStatusWaitingForInput {
			err = core.ErrValidation(core.CodeNotWaiting,
				fmt.Sprintf("task %s is %s, not waiting for input", id, t.status))
			return
		}
		t.status = core.TaskStatusInProgress
	})
	if !ok {
		return core.ErrValidation(core.CodeInvalidState, "execution context is closed")
	}
	return err
}

// Status returns the current status of a task.
func (c *ExecutionContext) Status(id core.TaskID) (core.TaskStatus, bool) {
	var (
		status core.TaskStatus
		found  bool
	)
	c.call(func(s *contextState) {
		if t, ok := s.tasks[id]; ok {
			status, found = t.status, true
		}
	})
	return status, found
}

// Output returns the recorded output of a task.
func (c *ExecutionContext) Output(id core.TaskID) (string, core.TaskStatus, bool) {
	var (
		output string
		status core.TaskStatus
		found  bool
	)
	c.call(func(s *contextState) {
		if t, ok := s.tasks[id]; ok {
			output, status, found = t.output, t.status, true
		}
	})
	return output, status, found
}

// LogCount returns the number of lines logged by a task so far.
func (c *ExecutionContext) LogCount(id core.TaskID) int {
	n := 0
	c.call(func(s *contextState) {
		if t, ok := s.tasks[id]; ok {
			n = len(t.logs)
		}
	})
	return n
}

// HasWaitingTasks reports whether any task is waiting for input.
func (c *ExecutionContext) HasWaitingTasks() bool {
	return len(c.WaitingTasks()) > 0
}

// WaitingTasks returns the waiting task ids in workflow order.
func (c *ExecutionContext) WaitingTasks() []core.TaskID {
	var out []core.TaskID
	c.call(func(s *contextState) {
		for _, id := range s.order {
			if s.tasks[id].status == core.TaskStatusWaitingForInput {
				out = append(out, id)
			}
		}
	})
	return out
}

// TaskSnapshot is a copy of one task's state.
type TaskSnapshot struct {
	ID     core.TaskID
	Status core.TaskStatus
	Output string
	Error  string
	Logs   []string
}

// Snapshot is a consistent copy of the whole context.
type Snapshot struct {
	Tasks  []TaskSnapshot
	Global []string
	Audit  []core.AuditEntry
}

// Snapshot copies the current state.
func (c *ExecutionContext) Snapshot() Snapshot {
	var snap Snapshot
	c.call(func(s *contextState) {
		for _, id := range s.order {
			t := s.tasks[id]
			snap.Tasks = append(snap.Tasks, TaskSnapshot{
				ID:     id,
				Status: t.status,
				Output: t.output,
				Error:  t.err,
				Logs:   append([]string(nil), t.logs...),
			})
		}
		snap.Global = append([]string(nil), s.global...)
		snap.Audit = append([]core.AuditEntry(nil), s.audit...)
	})
	return snap
}
