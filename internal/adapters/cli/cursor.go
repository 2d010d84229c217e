package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dario.cat/mergo"

	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/xjson"
)

// CursorConfig configures one cursor-agent invocation. Field names match the
// keys accepted in a task's "config" object.
type CursorConfig struct {
	Path         string   `json:"path,omitempty"`
	Model        string   `json:"model,omitempty"`
	APIKey       string   `json:"api_key,omitempty"`
	Timeout      string   `json:"timeout,omitempty"`
	WorkDir      string   `json:"working_dir,omitempty"`
	OutputFormat string   `json:"output_format,omitempty"`
	Force        bool     `json:"force,omitempty"`
	ExtraArgs    []string `json:"extra_args,omitempty"`
}

// Map returns the config as a generic map for merging.
func (c CursorConfig) Map() map[string]interface{} {
	out := map[string]interface{}{}
	data, err := xjson.Marshal(c)
	if err != nil {
		return out
	}
	_ = xjson.Unmarshal(data, &out)
	return out
}

// MergeCursorConfig overlays per-task settings on top of defaults. Keys set
// in overrides win; everything else comes from defaults.
func MergeCursorConfig(defaults CursorConfig, overrides map[string]interface{}) (CursorConfig, error) {
	merged := defaults.Map()
	if len(overrides) > 0 {
		if err := mergo.Merge(&merged, overrides, mergo.WithOverride); err != nil {
			return CursorConfig{}, fmt.Errorf("merging cursor config: %w", err)
		}
	}
	data, err := xjson.Marshal(merged)
	if err != nil {
		return CursorConfig{}, fmt.Errorf("encoding cursor config: %w", err)
	}
	var cfg CursorConfig
	if err := xjson.Unmarshal(data, &cfg); err != nil {
		return CursorConfig{}, core.ErrValidation(core.CodeInvalidField,
			fmt.Sprintf("invalid cursor_agent config: %v", err))
	}
	return cfg, nil
}

// TimeoutDuration parses the configured timeout; empty means no override.
func (c CursorConfig) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, core.ErrValidation(core.CodeInvalidField,
			fmt.Sprintf("invalid cursor_agent timeout %q", c.Timeout))
	}
	return d, nil
}

// CursorAgent drives the cursor-agent CLI in non-interactive print mode.
type CursorAgent struct {
	runner *Runner
}

// NewCursorAgent creates the adapter on top of a runner.
func NewCursorAgent(runner *Runner) *CursorAgent {
	return &CursorAgent{runner: runner}
}

// Args builds the command line for a prompt. The prompt is passed on stdin.
func (a *CursorAgent) Args(cfg CursorConfig) []string {
	args := []string{"--print"}
	format := cfg.OutputFormat
	if format == "" {
		format = "text"
	}
	args = append(args, "--output-format", format)
	if cfg.Model != "" {
		args = append(args, "--model", cfg.Model)
	}
	if cfg.Force {
		args = append(args, "--force")
	}
	return append(args, cfg.ExtraArgs...)
}

// Run sends prompt to the agent and returns its final output.
func (a *CursorAgent) Run(ctx context.Context, name, prompt string, cfg CursorConfig, onLine LineCallback) (*CommandResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, core.ErrValidation(core.CodeMissingField, "cursor_agent prompt is empty")
	}
	path := cfg.Path
	if path == "" {
		path = "cursor-agent"
	}
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	env := map[string]string{}
	if cfg.APIKey != "" {
		env["CURSOR_API_KEY"] = cfg.APIKey
	}

	result, err := a.runner.Run(ctx, Command{
		Name:    name,
		Path:    path,
		Args:    a.Args(cfg),
		Stdin:   prompt,
		WorkDir: cfg.WorkDir,
		Env:     env,
		Timeout: timeout,
	}, onLine)
	if err != nil {
		if core.IsCategory(err, core.ErrCatExecution) && result != nil {
			return result, core.ErrExecution(core.CodeAgentFailed,
				fmt.Sprintf("cursor-agent failed: %s", lastLine(result.Stderr))).WithCause(err)
		}
		return result, err
	}
	return result, nil
}
