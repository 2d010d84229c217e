package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/engine"
)

// reportResult prints the summary of a run or continuation and, when it
// paused, the inputs it waits for. A failed run yields errRunFailed.
func reportResult(ctx context.Context, out io.Writer, eng *engine.Engine, result *core.WorkflowResult, asJSON bool) error {
	if asJSON {
		if err := outputJSON(out, struct {
			Outcome core.Outcome `json:"outcome"`
			*core.WorkflowResult
		}{result.Outcome(), result}); err != nil {
			return err
		}
	} else {
		printSummary(out, result)
		if result.Waiting() {
			inputs, err := eng.GetPendingInputs(ctx, result.ExecutionID)
			if err != nil {
				return err
			}
			printPending(out, result.ExecutionID, inputs)
		}
	}
	if result.Outcome() == core.OutcomeFailed {
		return errRunFailed
	}
	return nil
}

func printSummary(out io.Writer, result *core.WorkflowResult) {
	s := styles()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s %s %s\n",
		s.title.Render("Execution"),
		result.ExecutionID,
		s.outcome(result.Outcome()),
	)
	for _, t := range result.Tasks {
		line := "  " + column(string(t.ID), 20) + " " + s.taskStatus(t.Status)
		if t.Error != "" {
			line += " " + s.failure.Render(t.Error)
		}
		fmt.Fprintln(out, line)
	}
	for _, e := range result.Errors {
		if e == core.WaitingForInputSentinel {
			continue
		}
		fmt.Fprintln(out, s.failure.Render("  error: "+e))
	}
}

func printPending(out io.Writer, executionID core.ExecutionID, inputs []*core.InputRequest) {
	if len(inputs) == 0 {
		fmt.Fprintln(out, "No pending inputs")
		return
	}
	s := styles()
	fmt.Fprintln(out)
	fmt.Fprintln(out, s.title.Render("Waiting for input"))
	for _, in := range inputs {
		hint := string(in.InputType)
		if in.Default != nil {
			hint += fmt.Sprintf(", default %q", *in.Default)
		} else if !in.Required {
			hint += ", optional"
		}
		fmt.Fprintf(out, "  %s %s %s\n", column(string(in.TaskID), 20), in.Prompt, s.muted.Render("("+hint+")"))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, s.muted.Render(fmt.Sprintf("Answer with: weft input %s <task-id> <value>", executionID)))
}
