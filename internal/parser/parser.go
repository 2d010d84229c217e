// Package parser decodes workflow documents into validated task forests.
//
// The wire format is:
//
//	{"id": "...", "name": "...", "tasks": [Task...]}
//	Task = {"id", "name", "function": {"name": kind, "input": {...}}, "next_tasks": [Task...]}
//
// The single-key function form {"cli_command": {...}} is accepted as well.
// Every failure carries the JSON pointer of the offending value.
package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/fsutil"
	"github.com/weft-dev/weft/internal/xjson"
)

// Error locates a validation failure inside the document.
type Error struct {
	Code    string
	Pointer string
	Message string
}

func (e *Error) Error() string {
	ptr := e.Pointer
	if ptr == "" {
		ptr = "/"
	}
	return fmt.Sprintf("%s: %s", ptr, e.Message)
}

// AsError extracts the located error from a parse failure.
func AsError(err error) (*Error, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

func fail(code, pointer, format string, args ...interface{}) error {
	perr := &Error{Code: code, Pointer: pointer, Message: fmt.Sprintf(format, args...)}
	return core.ErrParse(code, "invalid workflow document").
		WithCause(perr).
		WithDetail("pointer", pointer)
}

// Parse decodes and validates a JSON workflow document.
func Parse(data []byte) (*core.Workflow, error) {
	var doc interface{}
	if err := xjson.Unmarshal(data, &doc); err != nil {
		return nil, fail(core.CodeMalformedJSON, "", "malformed JSON: %v", err)
	}
	d := &decoder{seen: make(map[core.TaskID]string)}
	w, err := d.workflow(doc)
	if err != nil {
		return nil, err
	}
	w.Raw = append([]byte(nil), data...)
	return w, nil
}

// ParseFile reads a workflow from disk; .yaml and .yml files are decoded
// as YAML.
func ParseFile(path string) (*core.Workflow, error) {
	data, err := fsutil.ReadFileScoped(path, fsutil.MaxDocumentSize)
	if err != nil {
		return nil, fmt.Errorf("reading workflow %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return Parse(data)
	}
}

type decoder struct {
	seen map[core.TaskID]string
}

func (d *decoder) workflow(v interface{}) (*core.Workflow, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, fail(core.CodeInvalidField, "", "workflow document must be an object")
	}
	id, err := requireString(obj, "id", "")
	if err != nil {
		return nil, err
	}
	name, err := requireString(obj, "name", "")
	if err != nil {
		return nil, err
	}
	raw, present := obj["tasks"]
	if !present {
		return nil, fail(core.CodeMissingField, "/tasks", "missing required field %q", "tasks")
	}
	tasks, err := d.tasks(raw, "/tasks")
	if err != nil {
		return nil, err
	}
	return &core.Workflow{ID: core.WorkflowID(id), Name: name, Tasks: tasks}, nil
}

func (d *decoder) tasks(v interface{}, ptr string) ([]*core.Task, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, fail(core.CodeInvalidField, ptr, "must be an array of tasks")
	}
	out := make([]*core.Task, 0, len(items))
	for i, item := range items {
		t, err := d.task(item, ptr+"/"+strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (d *decoder) task(v interface{}, ptr string) (*core.Task, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, fail(core.CodeInvalidField, ptr, "task must be an object")
	}
	id, err := requireString(obj, "id", ptr)
	if err != nil {
		return nil, err
	}
	if first, dup := d.seen[core.TaskID(id)]; dup {
		return nil, fail(core.CodeDuplicateTaskID, ptr+"/id",
			"duplicate task id %q (first defined at %s)", id, first)
	}
	d.seen[core.TaskID(id)] = ptr + "/id"

	name, err := requireString(obj, "name", ptr)
	if err != nil {
		return nil, err
	}
	fnRaw, present := obj["function"]
	if !present {
		return nil, fail(core.CodeMissingField, ptr+"/function", "missing required field %q", "function")
	}
	fn, err := decodeFunction(fnRaw, ptr+"/function")
	if err != nil {
		return nil, err
	}
	children, err := d.tasks(obj["next_tasks"], ptr+"/next_tasks")
	if err != nil {
		return nil, err
	}
	return &core.Task{ID: core.TaskID(id), Name: name, Function: fn, Children: children}, nil
}

func decodeFunction(v interface{}, ptr string) (core.TaskFunction, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return core.TaskFunction{}, fail(core.CodeInvalidField, ptr, "function must be an object")
	}

	var (
		kindName string
		input    interface{}
		inPtr    string
	)
	if rawName, tagged := obj["name"]; tagged {
		s, ok := rawName.(string)
		if !ok {
			return core.TaskFunction{}, fail(core.CodeInvalidField, ptr+"/name", "must be a string")
		}
		kindName = s
		in, present := obj["input"]
		if !present {
			return core.TaskFunction{}, fail(core.CodeMissingField, ptr+"/input", "missing required field %q", "input")
		}
		input, inPtr = in, ptr+"/input"
	} else {
		if len(obj) != 1 {
			return core.TaskFunction{}, fail(core.CodeMissingField, ptr+"/name", "missing required field %q", "name")
		}
		for k, in := range obj {
			kindName, input, inPtr = k, in, ptr+"/"+escape(k)
		}
	}

	kind, known := core.ParseFunctionKind(kindName)
	if !known {
		p := ptr + "/name"
		if _, tagged := obj["name"]; !tagged {
			p = inPtr
		}
		return core.TaskFunction{}, fail(core.CodeUnknownFunction, p, "unknown function type %q", kindName)
	}

	in, ok := input.(map[string]interface{})
	if !ok {
		return core.TaskFunction{}, fail(core.CodeInvalidField, inPtr, "%s input must be an object", kind)
	}

	switch kind {
	case core.KindCliCommand:
		c, err := decodeCliCommand(in, inPtr)
		return core.TaskFunction{CliCommand: c}, err
	case core.KindCursorAgent:
		c, err := decodeCursorAgent(in, inPtr)
		return core.TaskFunction{CursorAgent: c}, err
	case core.KindUserInput:
		u, err := decodeUserInput(in, inPtr)
		return core.TaskFunction{UserInput: u}, err
	default:
		c, err := decodeCustom(in, inPtr)
		return core.TaskFunction{Custom: c}, err
	}
}

func decodeCliCommand(in map[string]interface{}, ptr string) (*core.CliCommand, error) {
	command, err := requireString(in, "command", ptr)
	if err != nil {
		return nil, err
	}
	c := &core.CliCommand{Command: command}
	if raw, ok := in["args"]; ok && raw != nil {
		items, ok := raw.([]interface{})
		if !ok {
			return nil, fail(core.CodeInvalidField, ptr+"/args", "must be an array of strings")
		}
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fail(core.CodeInvalidField, ptr+"/args/"+strconv.Itoa(i), "must be a string")
			}
			c.Args = append(c.Args, s)
		}
	}
	if c.WorkingDir, err = optionalString(in, "working_dir", ptr); err != nil {
		return nil, err
	}
	if raw, ok := in["env"]; ok && raw != nil {
		env, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fail(core.CodeInvalidField, ptr+"/env", "must be an object of strings")
		}
		c.Env = make(map[string]string, len(env))
		for k, v := range env {
			s, ok := v.(string)
			if !ok {
				return nil, fail(core.CodeInvalidField, ptr+"/env/"+escape(k), "must be a string")
			}
			c.Env[k] = s
		}
	}
	if raw, ok := in["timeout"]; ok && raw != nil {
		switch t := raw.(type) {
		case string:
			d, err := time.ParseDuration(t)
			if err != nil || d < 0 {
				return nil, fail(core.CodeInvalidField, ptr+"/timeout", "invalid duration %q", t)
			}
			c.Timeout = d
		case float64:
			if t < 0 {
				return nil, fail(core.CodeInvalidField, ptr+"/timeout", "must not be negative")
			}
			c.Timeout = time.Duration(t * float64(time.Second))
		default:
			return nil, fail(core.CodeInvalidField, ptr+"/timeout", "must be a duration string or seconds")
		}
	}
	return c, nil
}

func decodeCursorAgent(in map[string]interface{}, ptr string) (*core.CursorAgent, error) {
	prompt, err := optionalString(in, "prompt", ptr)
	if err != nil {
		return nil, err
	}
	promptID, err := optionalString(in, "prompt_id", ptr)
	if err != nil {
		return nil, err
	}
	if prompt == "" && promptID == "" {
		return nil, fail(core.CodeMissingField, ptr+"/prompt", "one of %q or %q is required", "prompt", "prompt_id")
	}
	c := &core.CursorAgent{Prompt: prompt, PromptID: promptID}
	if raw, ok := in["config"]; ok && raw != nil {
		cfg, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fail(core.CodeInvalidField, ptr+"/config", "must be an object")
		}
		c.Config = cfg
	}
	return c, nil
}

func decodeUserInput(in map[string]interface{}, ptr string) (*core.UserInput, error) {
	prompt, err := requireString(in, "prompt", ptr)
	if err != nil {
		return nil, err
	}
	u := &core.UserInput{Prompt: prompt, InputType: core.InputTypeString, Required: true}

	typ, err := optionalString(in, "input_type", ptr)
	if err != nil {
		return nil, err
	}
	if typ != "" {
		u.InputType = core.InputType(typ)
		if !u.InputType.Valid() {
			return nil, fail(core.CodeInvalidField, ptr+"/input_type",
				"input_type must be one of string, number, boolean (got %q)", typ)
		}
	}

	if raw, ok := in["required"]; ok && raw != nil {
		b, ok := raw.(bool)
		if !ok {
			return nil, fail(core.CodeInvalidField, ptr+"/required", "must be a boolean")
		}
		u.Required = b
	}

	if raw, ok := in["default"]; ok && raw != nil {
		var def string
		switch v := raw.(type) {
		case string:
			def = v
		case float64:
			def = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			def = strconv.FormatBool(v)
		default:
			return nil, fail(core.CodeInvalidField, ptr+"/default", "must be a scalar")
		}
		if err := u.InputType.Validate(def); err != nil {
			return nil, fail(core.CodeInputTypeMismatch, ptr+"/default",
				"default %q does not match input_type %s", def, u.InputType)
		}
		u.Default = &def
	}
	return u, nil
}

func decodeCustom(in map[string]interface{}, ptr string) (*core.Custom, error) {
	name, err := requireString(in, "name", ptr)
	if err != nil {
		return nil, err
	}
	c := &core.Custom{Name: name}
	if raw, ok := in["input"]; ok && raw != nil {
		data, err := xjson.Marshal(raw)
		if err != nil {
			return nil, fail(core.CodeInvalidField, ptr+"/input", "cannot encode input: %v", err)
		}
		c.Input = data
	}
	return c, nil
}

func requireString(obj map[string]interface{}, key, ptr string) (string, error) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return "", fail(core.CodeMissingField, ptr+"/"+key, "missing required field %q", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fail(core.CodeInvalidField, ptr+"/"+key, "must be a string")
	}
	if strings.TrimSpace(s) == "" {
		return "", fail(core.CodeMissingField, ptr+"/"+key, "%q must not be empty", key)
	}
	return s, nil
}

func optionalString(obj map[string]interface{}, key, ptr string) (string, error) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fail(core.CodeInvalidField, ptr+"/"+key, "must be a string")
	}
	return s, nil
}

// escape encodes a key as a JSON pointer reference token.
func escape(key string) string {
	key = strings.ReplaceAll(key, "~", "~0")
	return strings.ReplaceAll(key, "/", "~1")
}
