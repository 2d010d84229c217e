package testutil

import (
	"testing"

	"github.com/weft-dev/weft/internal/xjson"
)

// Node is a task or function object of a workflow document.
type Node = map[string]interface{}

// Workflow encodes a workflow document named after its id.
func Workflow(t *testing.T, id string, tasks ...Node) []byte {
	t.Helper()
	if tasks == nil {
		tasks = []Node{}
	}
	data, err := xjson.Marshal(Node{"id": id, "name": id, "tasks": tasks})
	if err != nil {
		t.Fatalf("encoding workflow: %v", err)
	}
	return data
}

// Task builds a task named after its id.
func Task(id string, function Node, children ...Node) Node {
	n := Node{"id": id, "name": id, "function": function}
	if len(children) > 0 {
		n["next_tasks"] = children
	}
	return n
}

// Cli builds a cli_command function.
func Cli(command string, args ...string) Node {
	input := Node{"command": command}
	if len(args) > 0 {
		input["args"] = args
	}
	return Node{"name": "cli_command", "input": input}
}

// Input builds a user_input function.
func Input(prompt, inputType string) Node {
	return Node{"name": "user_input", "input": Node{"prompt": prompt, "input_type": inputType}}
}

// InputWithDefault builds an optional user_input function with a default.
func InputWithDefault(prompt, inputType, def string) Node {
	return Node{"name": "user_input", "input": Node{
		"prompt":     prompt,
		"input_type": inputType,
		"required":   false,
		"default":    def,
	}}
}

// Custom builds a custom function.
func Custom(name string, input interface{}) Node {
	in := Node{"name": name}
	if input != nil {
		in["input"] = input
	}
	return Node{"name": "custom", "input": in}
}

// Echo builds a custom echo function.
func Echo(text string) Node {
	return Custom("echo", Node{"text": text})
}

// Fail builds a custom function that always fails.
func Fail(message string) Node {
	return Custom("fail", Node{"text": message})
}

// Cursor builds a cursor_agent function.
func Cursor(prompt string, config Node) Node {
	input := Node{"prompt": prompt}
	if config != nil {
		input["config"] = config
	}
	return Node{"name": "cursor_agent", "input": input}
}
