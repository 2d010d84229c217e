package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/logging"
)

// Stream names the pipe a line was read from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// LineCallback is called for each line of output while the command runs.
// It may be called concurrently for stdout and stderr.
type LineCallback func(stream Stream, line string)

// DefaultGracePeriod is how long a cancelled process group gets between
// SIGTERM and SIGKILL.
const DefaultGracePeriod = 5 * time.Second

const maxLineSize = 1024 * 1024

// Command describes one subprocess invocation.
type Command struct {
	// Name identifies the invocation in logs (usually the task id).
	Name    string
	Path    string
	Args    []string
	Stdin   string
	WorkDir string
	Env     map[string]string
	// Timeout overrides the runner default when non-zero.
	Timeout time.Duration
}

// CommandResult holds the result of a CLI execution.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes subprocesses with line-by-line output streaming.
type Runner struct {
	logger         *logging.Logger
	defaultTimeout time.Duration
	gracePeriod    time.Duration

	mu     sync.Mutex
	active map[*exec.Cmd]struct{}
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithDefaultTimeout bounds every command that sets no timeout of its own.
func WithDefaultTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.defaultTimeout = d
	}
}

// WithGracePeriod sets the SIGTERM to SIGKILL delay.
func WithGracePeriod(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.gracePeriod = d
	}
}

// NewRunner creates a runner.
func NewRunner(logger *logging.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{
		logger:      logger,
		gracePeriod: DefaultGracePeriod,
		active:      make(map[*exec.Cmd]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the command and waits for it. A non-zero exit returns the
// result together with an execution error.
func (r *Runner) Run(ctx context.Context, c Command, onLine LineCallback) (*CommandResult, error) {
	if strings.TrimSpace(c.Path) == "" {
		return nil, core.ErrValidation(core.CodeInvalidField, "command path is empty")
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = r.defaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// #nosec G204 -- commands come from the workflow document being executed
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.WorkDir
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}
	cmd.Env = os.Environ()
	cmd.Env = append(cmd.Env, "WEFT_MANAGED=true", "WEFT_TASK="+c.Name)
	for k, v := range c.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	configureProcAttr(cmd, r.gracePeriod)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	r.logger.Info("cli: executing command",
		"name", c.Name,
		"path", c.Path,
		"args", c.Args,
		"work_dir", cmd.Dir,
		"stdin_length", len(c.Stdin),
		"timeout", timeout,
	)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		r.logger.Error("cli: command failed to start", "name", c.Name, "path", c.Path, "error", err)
		return nil, core.ErrExecution(core.CodeCommandFailed,
			fmt.Sprintf("starting %s: %v", c.Path, err)).WithCause(err)
	}
	r.track(cmd)
	defer r.untrack(cmd)

	r.logger.Debug("cli: process started", "name", c.Name, "pid", cmd.Process.Pid)

	var (
		stdout, stderr bytes.Buffer
		wg             sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		streamLines(stdoutPipe, &stdout, Stdout, onLine)
	}()
	go func() {
		defer wg.Done()
		streamLines(stderrPipe, &stderr, Stderr, onLine)
	}()

	// All reads must finish before Wait closes the pipes.
	wg.Wait()
	waitErr := cmd.Wait()

	result := &CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.ExitCode = -1
		r.logger.Error("cli: command timeout",
			"name", c.Name,
			"path", c.Path,
			"duration", result.Duration,
			"timeout", timeout,
			"stderr_preview", truncate(result.Stderr, 1000),
		)
		return result, core.ErrTimeout(fmt.Sprintf("%s timed out after %v", c.Path, timeout))
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		result.ExitCode = -1
		r.logger.Info("cli: command cancelled", "name", c.Name, "path", c.Path, "duration", result.Duration)
		return result, core.ErrExecution(core.CodeInterrupted, fmt.Sprintf("%s was cancelled", c.Path))
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			r.logger.Warn("cli: command failed",
				"name", c.Name,
				"path", c.Path,
				"exit_code", result.ExitCode,
				"duration", result.Duration,
				"stderr", truncate(result.Stderr, 2000),
			)
			return result, classifyExit(c.Path, result)
		}
		r.logger.Error("cli: command execution error", "name", c.Name, "path", c.Path, "error", waitErr)
		return result, core.ErrExecution(core.CodeCommandFailed,
			fmt.Sprintf("executing %s: %v", c.Path, waitErr)).WithCause(waitErr)
	}

	r.logger.Info("cli: command completed",
		"name", c.Name,
		"path", c.Path,
		"duration", result.Duration,
		"stdout_length", len(result.Stdout),
		"stdout_preview", truncate(result.Stdout, 300),
	)
	return result, nil
}

// Terminate signals every running process group and waits up to the grace
// period for them to exit.
func (r *Runner) Terminate() {
	r.mu.Lock()
	cmds := make([]*exec.Cmd, 0, len(r.active))
	for cmd := range r.active {
		cmds = append(cmds, cmd)
	}
	r.mu.Unlock()

	for _, cmd := range cmds {
		if err := terminate(cmd, r.gracePeriod); err != nil {
			r.logger.Warn("cli: terminating process", "pid", cmd.Process.Pid, "error", err)
		}
	}
}

// Active returns the number of running processes.
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

func (r *Runner) track(cmd *exec.Cmd) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[cmd] = struct{}{}
}

func (r *Runner) untrack(cmd *exec.Cmd) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, cmd)
}

// streamLines reads pipe line by line into buf, invoking onLine per line.
func streamLines(pipe io.Reader, buf *bytes.Buffer, stream Stream, onLine LineCallback) {
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteString("\n")
		if onLine != nil {
			onLine(stream, line)
		}
	}
	// Drain whatever is left after an oversized line so the child never
	// blocks on a full pipe.
	if scanner.Err() != nil {
		_, _ = io.Copy(buf, pipe)
	}
}

// classifyExit converts a non-zero exit into a domain error.
func classifyExit(path string, result *CommandResult) error {
	msg := lastLine(result.Stderr)
	if msg == "" {
		msg = lastLine(result.Stdout)
	}
	if msg == "" {
		msg = "(no error message captured)"
	}
	return core.ErrExecution(core.CodeCommandFailed,
		fmt.Sprintf("%s exited with code %d: %s", path, result.ExitCode, msg)).
		WithDetail("exit_code", result.ExitCode)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "... [truncated]"
	}
	return s
}
