package api

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/engine"
	"github.com/weft-dev/weft/internal/events"
	"github.com/weft-dev/weft/internal/logging"
	"github.com/weft-dev/weft/internal/testutil"
	"github.com/weft-dev/weft/internal/xjson"
)

type testServer struct {
	*Server
	bus *events.EventBus
}

func newTestServer(t *testing.T, opts ...ServerOption) *testServer {
	t.Helper()
	bus := events.New(100)
	t.Cleanup(bus.Close)
	eng := engine.New(testutil.NewStore(t), engine.WithEventBus(bus))
	t.Cleanup(eng.Shutdown)
	opts = append([]ServerOption{WithLogger(logging.NewNop().Logger)}, opts...)
	return &testServer{Server: NewServer(eng, bus, opts...), bus: bus}
}

func (ts *testServer) do(t *testing.T, method, path string, body []byte, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, xjson.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) runWorkflow(t *testing.T, doc []byte) RunResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/executions", doc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[RunResponse](t, rec)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestRunWorkflow(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.runWorkflow(t, testutil.Workflow(t, "hello", testutil.Task("a", testutil.Echo("hi"))))

	assert.Equal(t, core.OutcomeSucceeded, resp.Outcome)
	require.NotNil(t, resp.WorkflowResult)
	assert.True(t, resp.Success)
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, "hi", resp.Tasks[0].Output)

	rec := ts.do(t, http.MethodGet, "/api/v1/executions/"+string(resp.ExecutionID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	exec := decode[core.Execution](t, rec)
	assert.Equal(t, core.ExecutionStatusCompleted, exec.Status)
	assert.Equal(t, core.WorkflowID("hello"), exec.WorkflowID)

	rec = ts.do(t, http.MethodGet, "/api/v1/executions/"+string(resp.ExecutionID)+"/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tasks := decode[[]core.TaskExecution](t, rec)
	require.Len(t, tasks, 1)
	assert.Equal(t, core.TaskStatusComplete, tasks[0].Status)

	rec = ts.do(t, http.MethodGet, "/api/v1/executions/"+string(resp.ExecutionID)+"/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	audit := decode[[]core.AuditEntry](t, rec)
	require.Len(t, audit, 1)
	assert.Equal(t, core.AuditSuccess, audit[0].Status)
}

func TestRunWorkflow_YAML(t *testing.T) {
	ts := newTestServer(t)
	doc := []byte(`id: yaml-flow
name: YAML flow
tasks:
  - id: a
    name: A
    function:
      name: custom
      input:
        name: echo
        input: "from yaml"
`)
	rec := ts.do(t, http.MethodPost, "/api/v1/executions", doc, "Content-Type", "application/yaml")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[RunResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "from yaml", resp.Tasks[0].Output)
}

func TestRunWorkflow_ParseError(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/executions", []byte(`{"id": "x", "name": "x", "tasks": [{"id": "a"}]}`))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, core.CodeMissingField, body.Code)
	assert.NotEmpty(t, body.Pointer)

	rec = ts.do(t, http.MethodPost, "/api/v1/executions", []byte(`{not json`))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, core.CodeMalformedJSON, decode[ErrorResponse](t, rec).Code)
}

func TestRunWorkflow_StoredWorkflow(t *testing.T) {
	ts := newTestServer(t)
	ts.runWorkflow(t, testutil.Workflow(t, "again", testutil.Task("a", testutil.Echo("x"))))

	rec := ts.do(t, http.MethodPost, "/api/v1/executions?workflow_id=again", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[RunResponse](t, rec).Success)

	rec = ts.do(t, http.MethodPost, "/api/v1/executions?workflow_id=missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/executions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.Execution](t, rec), 2)

	rec = ts.do(t, http.MethodGet, "/api/v1/executions?status=failed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]core.Execution](t, rec))
}

func TestInputFlow(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.runWorkflow(t, testutil.Workflow(t, "ask",
		testutil.Task("n", testutil.Input("Pick a number", "number"),
			testutil.Task("show", testutil.Echo("n={{tasks.n.output}}")),
		),
	))
	require.Equal(t, core.OutcomeWaiting, resp.Outcome)
	base := "/api/v1/executions/" + string(resp.ExecutionID)

	rec := ts.do(t, http.MethodGet, base+"/inputs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	inputs := decode[[]core.InputRequest](t, rec)
	require.Len(t, inputs, 1)
	assert.Equal(t, "Pick a number", inputs[0].Prompt)

	rec = ts.do(t, http.MethodGet, base+"/waiting", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.TaskExecution](t, rec), 1)

	rec = ts.do(t, http.MethodPost, base+"/tasks/n/input", []byte(`{"value": "abc"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, core.CodeInputTypeMismatch, decode[ErrorResponse](t, rec).Code)

	rec = ts.do(t, http.MethodPost, base+"/tasks/n/input", []byte(`{"value": "42", "continue": true}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	final := decode[RunResponse](t, rec)
	assert.Equal(t, core.OutcomeSucceeded, final.Outcome)
	show, ok := final.Task("show")
	require.True(t, ok)
	assert.Equal(t, "n=42", show.Output)

	rec = ts.do(t, http.MethodPost, base+"/tasks/n/input", []byte(`{"value": "7"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, core.CodeNotWaiting, decode[ErrorResponse](t, rec).Code)
}

func TestResumeAndContinue(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.runWorkflow(t, testutil.Workflow(t, "resume",
		testutil.Task("color", testutil.InputWithDefault("Color?", "string", "red")),
		testutil.Task("name", testutil.Input("Name?", "string")),
	))
	base := "/api/v1/executions/" + string(resp.ExecutionID)

	rec := ts.do(t, http.MethodPost, base+"/tasks/name/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, base+"/tasks/name/resume", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, core.CodeNotWaiting, decode[ErrorResponse](t, rec).Code)

	rec = ts.do(t, http.MethodPost, base+"/tasks/ghost/resume", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, base+"/tasks/color/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, base+"/continue", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cont := decode[RunResponse](t, rec)
	assert.Equal(t, core.OutcomeSucceeded, cont.Outcome)
	color, _ := cont.Task("color")
	assert.Equal(t, "red", color.Output)
	name, _ := cont.Task("name")
	assert.Equal(t, core.TaskStatusComplete, name.Status)
	assert.Equal(t, "", name.Output)
}

func TestUnknownExecution(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{
		"/api/v1/executions/nope",
		"/api/v1/executions/nope/tasks",
		"/api/v1/executions/nope/audit",
		"/api/v1/executions/nope/inputs",
		"/api/v1/executions/nope/waiting",
	} {
		rec := ts.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
	rec := ts.do(t, http.MethodPost, "/api/v1/executions/nope/continue", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, core.CodeExecutionNotFound, decode[ErrorResponse](t, rec).Code)
}

func TestWorkflows(t *testing.T) {
	ts := newTestServer(t)
	ts.runWorkflow(t, testutil.Workflow(t, "stored", testutil.Task("a", testutil.Echo("x"))))

	rec := ts.do(t, http.MethodGet, "/api/v1/workflows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]WorkflowSummary](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "stored", list[0].ID)

	rec = ts.do(t, http.MethodGet, "/api/v1/workflows/stored", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	wf := decode[core.WorkflowRecord](t, rec)
	assert.Contains(t, string(wf.Definition), `"stored"`)

	rec = ts.do(t, http.MethodGet, "/api/v1/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateWorkflow(t *testing.T) {
	ts := newTestServer(t)
	doc := testutil.Workflow(t, "v",
		testutil.Task("a", testutil.Echo("x"), testutil.Task("b", testutil.Echo("y"))),
		testutil.Task("c", testutil.Echo("z")),
	)

	rec := ts.do(t, http.MethodPost, "/api/v1/workflows/validate", doc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[ValidateResponse](t, rec)
	assert.True(t, resp.Valid)
	assert.Equal(t, 3, resp.Tasks)
	assert.Equal(t, []core.TaskID{"c", "a", "b"}, resp.Order)

	rec = ts.do(t, http.MethodPost, "/api/v1/workflows/validate", []byte(`{"id": "v"}`))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/executions", nil)
	assert.Empty(t, decode[[]core.Execution](t, rec), "validation never runs anything")
}

func TestPrompts(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/prompts", []byte(`{"id": "review", "name": "Review", "content": "Review the diff."}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/v1/prompts", []byte(`{"id": "review", "name": "Dup", "content": "x"}`))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/prompts", []byte(`{"name": "", "content": "x"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/prompts", []byte(`{"name": "Generated", "content": "x"}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, decode[core.PromptRecord](t, rec).ID)

	rec = ts.do(t, http.MethodPut, "/api/v1/prompts/review", []byte(`{"name": "Review", "content": "Review carefully."}`))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/prompts/review", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Review carefully.", decode[core.PromptRecord](t, rec).Content)

	rec = ts.do(t, http.MethodGet, "/api/v1/prompts", nil)
	assert.Len(t, decode[[]core.PromptRecord](t, rec), 2)

	rec = ts.do(t, http.MethodDelete, "/api/v1/prompts/review", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/v1/prompts/review", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/v1/prompts/review", []byte(`{"name": "a", "content": "b"}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettings(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/settings/theme", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/v1/settings/theme", []byte(`{"value": "dark"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/settings/theme", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dark", decode[core.SettingRecord](t, rec).Value)

	rec = ts.do(t, http.MethodGet, "/api/v1/settings", nil)
	assert.Len(t, decode[[]core.SettingRecord](t, rec), 1)

	rec = ts.do(t, http.MethodPut, "/api/v1/settings/theme", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/v1/settings/theme", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/v1/settings", nil)
	assert.Empty(t, decode[[]core.SettingRecord](t, rec))
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, WithCORSOrigins([]string{"http://localhost:3000"}))

	rec := ts.do(t, http.MethodOptions, "/api/v1/executions", nil,
		"Origin", "http://localhost:3000",
		"Access-Control-Request-Method", "POST",
	)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = ts.do(t, http.MethodOptions, "/api/v1/executions", nil,
		"Origin", "http://evil.example",
		"Access-Control-Request-Method", "POST",
	)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSSE(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events?execution_id=e1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && name != "":
				return name, data
			}
		}
	}

	name, _ := readEvent()
	require.Equal(t, "connected", name)

	ts.bus.Publish(events.NewTaskLogEvent("other", "a", "ignored"))
	ts.bus.Publish(events.NewTaskLogEvent("e1", "a", "hello"))

	name, data := readEvent()
	assert.Equal(t, events.TypeTaskLog, name)
	assert.Contains(t, data, `"line":"hello"`)
	assert.Contains(t, data, `"execution_id":"e1"`)
}

func TestSSE_NoBus(t *testing.T) {
	eng := engine.New(testutil.NewStore(t))
	s := NewServer(eng, nil, WithLogger(logging.NewNop().Logger))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHTTPStatusForDomainError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{core.ErrParse(core.CodeMalformedJSON, "x"), http.StatusUnprocessableEntity},
		{core.ErrValidation(core.CodeInputRequired, "x"), http.StatusBadRequest},
		{core.ErrValidation(core.CodeExecutionNotFound, "x"), http.StatusNotFound},
		{core.ErrValidation(core.CodeTaskNotFound, "x"), http.StatusNotFound},
		{core.ErrValidation(core.CodeInvalidState, "x"), http.StatusConflict},
		{core.ErrNotFound("prompt", "p"), http.StatusNotFound},
		{core.ErrTimeout("x"), http.StatusGatewayTimeout},
		{core.ErrPersistence("save", errors.New("disk")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, ok := httpStatusForDomainError(tt.err)
		assert.True(t, ok)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
	_, ok := httpStatusForDomainError(errors.New("plain"))
	assert.False(t, ok)
}
