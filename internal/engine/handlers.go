package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/weft-dev/weft/internal/adapters/cli"
	"github.com/weft-dev/weft/internal/core"
)

// CliCommandHandler runs cli_command tasks as subprocesses.
type CliCommandHandler struct {
	runner *cli.Runner
}

// NewCliCommandHandler creates the handler.
func NewCliCommandHandler(runner *cli.Runner) *CliCommandHandler {
	return &CliCommandHandler{runner: runner}
}

// Execute runs the command, streaming both pipes to the task log. A
// non-zero exit fails the task.
func (h *CliCommandHandler) Execute(ctx context.Context, ec *ExecutionContext, task *core.Task) core.TaskResult {
	spec := task.Function.CliCommand
	if spec == nil {
		return core.Failed("", core.ErrValidation(core.CodeInvalidField, "task has no cli_command payload"))
	}
	env := make(map[string]string, len(spec.Env))
	for k, v := range spec.Env {
		env[k] = expand(ec, task.ID, v)
	}
	res, err := h.runner.Run(ctx, cli.Command{
		Name:    string(task.ID),
		Path:    expand(ec, task.ID, spec.Command),
		Args:    expandAll(ec, task.ID, spec.Args),
		WorkDir: expand(ec, task.ID, spec.WorkingDir),
		Env:     env,
		Timeout: spec.Timeout,
	}, func(_ cli.Stream, line string) {
		ec.AppendLog(task.ID, line)
	})
	output := ""
	if res != nil {
		output = strings.TrimRight(res.Stdout, "\n")
	}
	if err != nil {
		return core.Failed(output, err)
	}
	return core.Succeeded(output)
}

// PromptSource resolves stored prompts by id.
type PromptSource interface {
	Prompts() core.Repository[core.PromptRecord]
}

// CursorAgentHandler sends cursor_agent prompts to the cursor-agent CLI.
type CursorAgentHandler struct {
	agent    *cli.CursorAgent
	defaults cli.CursorConfig
	prompts  PromptSource
}

// NewCursorAgentHandler creates the handler. defaults fill every setting the
// task's config leaves unset.
func NewCursorAgentHandler(agent *cli.CursorAgent, defaults cli.CursorConfig, prompts PromptSource) *CursorAgentHandler {
	return &CursorAgentHandler{agent: agent, defaults: defaults, prompts: prompts}
}

// Execute resolves the prompt, merges configuration and runs the agent.
func (h *CursorAgentHandler) Execute(ctx context.Context, ec *ExecutionContext, task *core.Task) core.TaskResult {
	spec := task.Function.CursorAgent
	if spec == nil {
		return core.Failed("", core.ErrValidation(core.CodeInvalidField, "task has no cursor_agent payload"))
	}

	prompt := spec.Prompt
	if spec.PromptID != "" {
		rec, err := h.prompts.Prompts().Get(ctx, spec.PromptID)
		if err != nil {
			return core.Failed("", err)
		}
		if rec == nil {
			return core.Failed("", core.ErrNotFound("prompt", spec.PromptID))
		}
		if prompt != "" {
			prompt = rec.Content + "\n\n" + prompt
		} else {
			prompt = rec.Content
		}
	}
	prompt = expand(ec, task.ID, prompt)

	cfg, err := cli.MergeCursorConfig(h.defaults, spec.Config)
	if err != nil {
		return core.Failed("", err)
	}

	ec.AppendLog(task.ID, fmt.Sprintf("Sending prompt to cursor-agent (%d chars)", len(prompt)))
	res, err := h.agent.Run(ctx, string(task.ID), prompt, cfg, func(_ cli.Stream, line string) {
		ec.AppendLog(task.ID, line)
	})
	output := ""
	if res != nil {
		output = strings.TrimSpace(res.Stdout)
	}
	if err != nil {
		return core.Failed(output, err)
	}
	return core.Succeeded(output)
}

// UserInputHandler pauses user_input tasks. It never blocks: it records the
// pause in the context and returns a waiting result.
type UserInputHandler struct{}

// Execute implements Handler.
func (UserInputHandler) Execute(_ context.Context, ec *ExecutionContext, task *core.Task) core.TaskResult {
	spec := task.Function.UserInput
	if spec == nil {
		return core.Failed("", core.ErrValidation(core.CodeInvalidField, "task has no user_input payload"))
	}
	prompt := expand(ec, task.ID, spec.Prompt)
	if err := ec.PauseForInput(task.ID, prompt); err != nil {
		return core.Failed("", err)
	}
	return core.WaitingForInput(prompt)
}
