package core

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestWorkflow_TaskCount(t *testing.T) {
	wf := &Workflow{ID: "w", Tasks: []*Task{
		{ID: "a", Children: []*Task{{ID: "b"}, {ID: "c"}}},
		{ID: "d"},
	}}
	if got := wf.TaskCount(); got != 4 {
		t.Fatalf("TaskCount() = %d, want 4", got)
	}
}

func TestInputRequest_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		req     InputRequest
		value   string
		want    string
		errCode string
	}{
		{"plain value", InputRequest{InputType: InputTypeString, Required: true}, "Alice", "Alice", ""},
		{"empty takes default", InputRequest{InputType: InputTypeString, Required: true, Default: strPtr("Bob")}, "", "Bob", ""},
		{"empty required", InputRequest{InputType: InputTypeString, Required: true}, "", "", CodeInputRequired},
		{"empty optional", InputRequest{InputType: InputTypeNumber}, "", "", ""},
		{"number ok", InputRequest{InputType: InputTypeNumber}, "12", "12", ""},
		{"number bad", InputRequest{InputType: InputTypeNumber}, "twelve", "", CodeInputTypeMismatch},
		{"bad default", InputRequest{InputType: InputTypeBoolean, Default: strPtr("perhaps")}, "", "", CodeInputTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.Resolve(tt.value)
			if tt.errCode != "" {
				if GetCode(err) != tt.errCode {
					t.Fatalf("Resolve() error = %v, want code %s", err, tt.errCode)
				}
				if !IsCategory(err, ErrCatValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWorkflowResult_Outcome(t *testing.T) {
	ok := &WorkflowResult{Success: true}
	if ok.Outcome() != OutcomeSucceeded || ok.Waiting() {
		t.Fatalf("expected succeeded")
	}

	waiting := &WorkflowResult{Errors: []string{WaitingForInputSentinel}}
	if waiting.Outcome() != OutcomeWaiting || !waiting.Waiting() {
		t.Fatalf("expected waiting")
	}

	failed := &WorkflowResult{Errors: []string{"Task a failed: boom"}}
	if failed.Outcome() != OutcomeFailed {
		t.Fatalf("expected failed")
	}
}

func TestWorkflowResult_Task(t *testing.T) {
	r := &WorkflowResult{Tasks: []TaskInfo{{ID: "a", Status: TaskStatusComplete}}}
	info, ok := r.Task("a")
	if !ok || info.Status != TaskStatusComplete {
		t.Fatalf("expected task a")
	}
	if _, ok := r.Task("zzz"); ok {
		t.Fatalf("expected missing task")
	}
}

func TestSortAudit_StableByTimestamp(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []AuditEntry{
		{TaskID: "late", Timestamp: t0.Add(time.Second)},
		{TaskID: "first", Timestamp: t0},
		{TaskID: "second", Timestamp: t0},
	}
	SortAudit(entries)
	got := []TaskID{entries[0].TaskID, entries[1].TaskID, entries[2].TaskID}
	want := []TaskID{"first", "second", "late"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
