package testutil

import (
	"context"
	"sync"

	"github.com/weft-dev/weft/internal/core"
)

// FaultyStore wraps a store and fails selected operations.
type FaultyStore struct {
	core.Store

	mu       sync.Mutex
	auditErr error
	execErr  error
}

// NewFaultyStore wraps s.
func NewFaultyStore(s core.Store) *FaultyStore {
	return &FaultyStore{Store: s}
}

// FailAudit makes every audit event save return err. nil restores it.
func (f *FaultyStore) FailAudit(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auditErr = err
}

// FailExecutions makes every execution save return err.
func (f *FaultyStore) FailExecutions(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execErr = err
}

// AuditEvents implements core.Store.
func (f *FaultyStore) AuditEvents() core.Repository[core.AuditEventRecord] {
	return &faultyRepo[core.AuditEventRecord]{
		Repository: f.Store.AuditEvents(),
		err:        func() error { f.mu.Lock(); defer f.mu.Unlock(); return f.auditErr },
	}
}

// Executions implements core.Store.
func (f *FaultyStore) Executions() core.Repository[core.WorkflowExecutionRecord] {
	return &faultyRepo[core.WorkflowExecutionRecord]{
		Repository: f.Store.Executions(),
		err:        func() error { f.mu.Lock(); defer f.mu.Unlock(); return f.execErr },
	}
}

type faultyRepo[T any] struct {
	core.Repository[T]
	err func() error
}

func (r *faultyRepo[T]) Save(ctx context.Context, record *T) error {
	if err := r.err(); err != nil {
		return core.ErrPersistence("save", err)
	}
	return r.Repository.Save(ctx, record)
}

// Line is one line delivered to an output callback.
type Line struct {
	TaskID core.TaskID
	Text   string
}

// OutputRecorder collects output callback lines.
type OutputRecorder struct {
	mu    sync.Mutex
	lines []Line
}

// Callback returns the callback to pass to the engine.
func (r *OutputRecorder) Callback() core.OutputCallback {
	return func(taskID core.TaskID, line string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.lines = append(r.lines, Line{TaskID: taskID, Text: line})
	}
}

// Lines returns a copy of the collected lines.
func (r *OutputRecorder) Lines() []Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Line(nil), r.lines...)
}

// For returns the lines of one task.
func (r *OutputRecorder) For(taskID core.TaskID) []string {
	var out []string
	for _, l := range r.Lines() {
		if l.TaskID == taskID {
			out = append(out, l.Text)
		}
	}
	return out
}
