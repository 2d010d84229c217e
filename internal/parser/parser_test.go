package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-dev/weft/internal/core"
)

const nestedDoc = `{
  "id": "release",
  "name": "Release",
  "tasks": [
    {
      "id": "build",
      "name": "Build",
      "function": {"name": "cli_command", "input": {"command": "make", "args": ["build"], "timeout": "2m"}},
      "next_tasks": [
        {
          "id": "approve",
          "name": "Approve",
          "function": {"name": "user_input", "input": {"prompt": "Ship it?", "input_type": "boolean", "default": "no"}},
          "next_tasks": [
            {"id": "publish", "name": "Publish", "function": {"custom": {"name": "echo", "input": {"text": "done"}}}}
          ]
        }
      ]
    },
    {"id": "lint", "name": "Lint", "function": {"cli_command": {"command": "golangci-lint", "args": ["run"]}}}
  ]
}`

func TestParse_NestedWorkflow(t *testing.T) {
	w, err := Parse([]byte(nestedDoc))
	require.NoError(t, err)

	assert.Equal(t, core.WorkflowID("release"), w.ID)
	assert.Equal(t, "Release", w.Name)
	assert.Equal(t, 4, w.TaskCount())
	require.Len(t, w.Tasks, 2)

	build := w.Tasks[0]
	require.NotNil(t, build.Function.CliCommand)
	assert.Equal(t, "make", build.Function.CliCommand.Command)
	assert.Equal(t, []string{"build"}, build.Function.CliCommand.Args)
	assert.Equal(t, 2*time.Minute, build.Function.CliCommand.Timeout)

	approve := build.Children[0]
	require.NotNil(t, approve.Function.UserInput)
	assert.Equal(t, core.InputTypeBoolean, approve.Function.UserInput.InputType)
	assert.True(t, approve.Function.UserInput.Required)
	require.NotNil(t, approve.Function.UserInput.Default)
	assert.Equal(t, "no", *approve.Function.UserInput.Default)

	publish := approve.Children[0]
	assert.Equal(t, core.KindCustom, publish.Function.Kind())
	assert.Equal(t, "echo", publish.Function.Custom.Name)
	assert.JSONEq(t, `{"text":"done"}`, string(publish.Function.Custom.Input))

	lint := w.Tasks[1]
	assert.Equal(t, core.KindCliCommand, lint.Function.Kind())
	assert.Empty(t, lint.Children)

	assert.Equal(t, []byte(nestedDoc), w.Raw)
}

func TestParse_EmptyTasks(t *testing.T) {
	w, err := Parse([]byte(`{"id": "w", "name": "W", "tasks": []}`))
	require.NoError(t, err)
	assert.Empty(t, w.Tasks)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		code    string
		pointer string
	}{
		{
			name:    "malformed json",
			doc:     `{"id": `,
			code:    core.CodeMalformedJSON,
			pointer: "",
		},
		{
			name:    "not an object",
			doc:     `[1,2]`,
			code:    core.CodeInvalidField,
			pointer: "",
		},
		{
			name:    "missing tasks",
			doc:     `{"id": "w", "name": "W"}`,
			code:    core.CodeMissingField,
			pointer: "/tasks",
		},
		{
			name:    "missing workflow name",
			doc:     `{"id": "w", "tasks": []}`,
			code:    core.CodeMissingField,
			pointer: "/name",
		},
		{
			name:    "tasks not array",
			doc:     `{"id": "w", "name": "W", "tasks": {}}`,
			code:    core.CodeInvalidField,
			pointer: "/tasks",
		},
		{
			name:    "missing task id",
			doc:     `{"id": "w", "name": "W", "tasks": [{"name": "x", "function": {"cli_command": {"command": "true"}}}]}`,
			code:    core.CodeMissingField,
			pointer: "/tasks/0/id",
		},
		{
			name:    "missing function",
			doc:     `{"id": "w", "name": "W", "tasks": [{"id": "a", "name": "A"}]}`,
			code:    core.CodeMissingField,
			pointer: "/tasks/0/function",
		},
		{
			name:    "missing command",
			doc:     `{"id": "w", "name": "W", "tasks": [{"id": "a", "name": "A", "function": {"name": "cli_command", "input": {}}}]}`,
			code:    core.CodeMissingField,
			pointer: "/tasks/0/function/input/command",
		},
		{
			name:    "unknown function",
			doc:     `{"id": "w", "name": "W", "tasks": [{"id": "a", "name": "A", "function": {"name": "teleport", "input": {}}}]}`,
			code:    core.CodeUnknownFunction,
			pointer: "/tasks/0/function/name",
		},
		{
			name:    "bad arg type",
			doc:     `{"id": "w", "name": "W", "tasks": [{"id": "a", "name": "A", "function": {"name": "cli_command", "input": {"command": "ls", "args": ["-l", 3]}}}]}`,
			code:    core.CodeInvalidField,
			pointer: "/tasks/0/function/input/args/1",
		},
		{
			name:    "bad input type",
			doc:     `{"id": "w", "name": "W", "tasks": [{"id": "a", "name": "A", "function": {"name": "user_input", "input": {"prompt": "?", "input_type": "date"}}}]}`,
			code:    core.CodeInvalidField,
			pointer: "/tasks/0/function/input/input_type",
		},
		{
			name:    "default does not match type",
			doc:     `{"id": "w", "name": "W", "tasks": [{"id": "a", "name": "A", "function": {"name": "user_input", "input": {"prompt": "?", "input_type": "number", "default": "many"}}}]}`,
			code:    core.CodeInputTypeMismatch,
			pointer: "/tasks/0/function/input/default",
		},
		{
			name:    "agent without prompt",
			doc:     `{"id": "w", "name": "W", "tasks": [{"id": "a", "name": "A", "function": {"name": "cursor_agent", "input": {"config": {}}}}]}`,
			code:    core.CodeMissingField,
			pointer: "/tasks/0/function/input/prompt",
		},
		{
			name: "nested error pointer",
			doc: `{"id": "w", "name": "W", "tasks": [{"id": "a", "name": "A", "function": {"cli_command": {"command": "true"}},
				"next_tasks": [{"id": "b", "name": "B", "function": {"custom": {}}}]}]}`,
			code:    core.CodeMissingField,
			pointer: "/tasks/0/next_tasks/0/function/custom/name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, core.IsCategory(err, core.ErrCatParse), "category: %v", err)

			perr, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, perr.Code)
			assert.Equal(t, tt.pointer, perr.Pointer)
		})
	}
}

func TestParse_DuplicateIDsAtAnyDepth(t *testing.T) {
	docs := map[string]string{
		"siblings": `{"id": "w", "name": "W", "tasks": [
			{"id": "a", "name": "A", "function": {"cli_command": {"command": "true"}}},
			{"id": "a", "name": "A2", "function": {"cli_command": {"command": "true"}}}]}`,
		"across levels": `{"id": "w", "name": "W", "tasks": [
			{"id": "a", "name": "A", "function": {"cli_command": {"command": "true"}},
			 "next_tasks": [{"id": "b", "name": "B", "function": {"cli_command": {"command": "true"}},
			   "next_tasks": [{"id": "a", "name": "deep", "function": {"cli_command": {"command": "true"}}}]}]}]}`,
		"different subtrees": `{"id": "w", "name": "W", "tasks": [
			{"id": "a", "name": "A", "function": {"cli_command": {"command": "true"}},
			 "next_tasks": [{"id": "x", "name": "X", "function": {"cli_command": {"command": "true"}}}]},
			{"id": "b", "name": "B", "function": {"cli_command": {"command": "true"}},
			 "next_tasks": [{"id": "x", "name": "X", "function": {"cli_command": {"command": "true"}}}]}]}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			perr, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, core.CodeDuplicateTaskID, perr.Code)
			assert.Contains(t, perr.Message, "first defined at")
		})
	}
}

func TestParse_UniqueIDsInvariant(t *testing.T) {
	w, err := Parse([]byte(nestedDoc))
	require.NoError(t, err)

	seen := map[core.TaskID]bool{}
	w.Walk(func(task, _ *core.Task) {
		assert.False(t, seen[task.ID], "duplicate id %s", task.ID)
		seen[task.ID] = true
	})
}

func TestParse_UserInputDefaults(t *testing.T) {
	w, err := Parse([]byte(`{"id": "w", "name": "W", "tasks": [
		{"id": "a", "name": "A", "function": {"user_input": {"prompt": "Name?"}}},
		{"id": "b", "name": "B", "function": {"user_input": {"prompt": "Count?", "input_type": "number", "required": false, "default": 3}}}]}`))
	require.NoError(t, err)

	a := w.Tasks[0].Function.UserInput
	assert.Equal(t, core.InputTypeString, a.InputType)
	assert.True(t, a.Required)
	assert.Nil(t, a.Default)

	b := w.Tasks[1].Function.UserInput
	assert.False(t, b.Required)
	require.NotNil(t, b.Default)
	assert.Equal(t, "3", *b.Default)
}

func TestParseYAML(t *testing.T) {
	doc := `
id: deploy
name: Deploy
tasks:
  - id: plan
    name: Plan
    function:
      name: cli_command
      input:
        command: terraform
        args: [plan]
        env:
          TF_IN_AUTOMATION: "1"
    next_tasks:
      - id: confirm
        name: Confirm
        function:
          user_input:
            prompt: Apply?
            input_type: boolean
            default: false
`
	w, err := ParseYAML([]byte(doc))
	require.NoError(t, err)
	require.Len(t, w.Tasks, 1)
	plan := w.Tasks[0]
	assert.Equal(t, "terraform", plan.Function.CliCommand.Command)
	assert.Equal(t, map[string]string{"TF_IN_AUTOMATION": "1"}, plan.Function.CliCommand.Env)

	confirm := plan.Children[0].Function.UserInput
	require.NotNil(t, confirm.Default)
	assert.Equal(t, "false", *confirm.Default)

	// Raw is normalized to JSON so it can be re-parsed from the store.
	again, err := Parse(w.Raw)
	require.NoError(t, err)
	assert.Equal(t, w.TaskCount(), again.TaskCount())
}

func TestParseYAML_Malformed(t *testing.T) {
	_, err := ParseYAML([]byte("id: [unterminated"))
	require.Error(t, err)
	perr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, core.CodeMalformedYAML, perr.Code)
}

func TestParseYAML_NonStringKeyPointer(t *testing.T) {
	doc := `id: y
name: Y
tasks:
  - id: a
    name: A
    function:
      custom: {name: echo}
  - id: b
    name: B
    function:
      custom:
        name: echo
        input: {1: one}
`
	_, err := ParseYAML([]byte(doc))
	require.Error(t, err)
	perr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, core.CodeMalformedYAML, perr.Code)
	assert.Equal(t, "/tasks/1/function/custom/input", perr.Pointer)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "wf.json")
	yamlPath := filepath.Join(dir, "wf.yml")
	require.NoError(t, os.WriteFile(jsonPath, []byte(nestedDoc), 0o600))
	require.NoError(t, os.WriteFile(yamlPath, []byte("id: y\nname: Y\ntasks: []\n"), 0o600))

	w, err := ParseFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, core.WorkflowID("release"), w.ID)

	w, err = ParseFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, core.WorkflowID("y"), w.ID)

	_, err = ParseFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestExecutionOrder_ParentsFirst(t *testing.T) {
	w, err := Parse([]byte(nestedDoc))
	require.NoError(t, err)

	order, err := ExecutionOrder(w)
	require.NoError(t, err)
	require.Len(t, order, 4)

	pos := map[core.TaskID]int{}
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos["build"], pos["approve"])
	assert.Less(t, pos["approve"], pos["publish"])
	assert.Equal(t, core.TaskID("lint"), order[0], "childless roots are listed first")
}

func TestError_String(t *testing.T) {
	err := &Error{Pointer: "", Message: "boom"}
	assert.True(t, strings.HasPrefix(err.Error(), "/: "))
}
