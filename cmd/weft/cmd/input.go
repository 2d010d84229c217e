package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weft-dev/weft/internal/core"
)

var inputCmd = &cobra.Command{
	Use:   "input <execution-id> <task-id> <value>",
	Short: "Answer a task waiting for user input",
	Long: `Answer a task waiting for user input and continue the execution.

The value is checked against the declared input type. An empty value
takes the task's default. Use --no-continue to only record the answer,
for example when several tasks wait and should be answered first.`,
	Args: cobra.ExactArgs(3),
	RunE: runInput,
}

var resumeCmd = &cobra.Command{
	Use:   "resume <execution-id> <task-id>",
	Short: "Release a waiting task with its default or an empty value",
	Args:  cobra.ExactArgs(2),
	RunE:  runResume,
}

var continueCmd = &cobra.Command{
	Use:   "continue <execution-id>",
	Short: "Continue a paused or interrupted execution",
	Args:  cobra.ExactArgs(1),
	RunE:  runContinue,
}

var pendingCmd = &cobra.Command{
	Use:   "pending <execution-id>",
	Short: "List the inputs an execution is waiting for",
	Args:  cobra.ExactArgs(1),
	RunE:  runPending,
}

var (
	noContinue   bool
	continueJSON bool
	pendingJSON  bool
)

func init() {
	rootCmd.AddCommand(inputCmd, resumeCmd, continueCmd, pendingCmd)

	for _, c := range []*cobra.Command{inputCmd, resumeCmd} {
		c.Flags().BoolVar(&noContinue, "no-continue", false, "Record the answer without continuing the execution")
		c.Flags().BoolVar(&continueJSON, "json", false, "Print the result as JSON")
	}
	continueCmd.Flags().BoolVar(&continueJSON, "json", false, "Print the result as JSON")
	pendingCmd.Flags().BoolVar(&pendingJSON, "json", false, "Output as JSON")
}

func runInput(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	execID, taskID := core.ExecutionID(args[0]), core.TaskID(args[1])
	if err := a.engine.ProvideUserInput(cmd.Context(), execID, taskID, args[2]); err != nil {
		return err
	}
	return afterAnswer(cmd, a, execID, taskID)
}

func runResume(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	execID, taskID := core.ExecutionID(args[0]), core.TaskID(args[1])
	if err := a.engine.ResumeTask(cmd.Context(), execID, taskID); err != nil {
		return err
	}
	return afterAnswer(cmd, a, execID, taskID)
}

func afterAnswer(cmd *cobra.Command, a *app, execID core.ExecutionID, taskID core.TaskID) error {
	if noContinue {
		fmt.Fprintf(cmd.OutOrStdout(), "Input recorded for %s\n", taskID)
		return nil
	}
	return continueAndReport(cmd, a, execID)
}

func runContinue(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()
	return continueAndReport(cmd, a, core.ExecutionID(args[0]))
}

func continueAndReport(cmd *cobra.Command, a *app, execID core.ExecutionID) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	cb := liveOutput(out)
	if continueJSON {
		cb = nil
	}
	result, err := a.engine.ContinueExecution(ctx, execID, cb)
	if err != nil {
		return err
	}
	return reportResult(cmd.Context(), out, a.engine, result, continueJSON)
}

func runPending(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	execID := core.ExecutionID(args[0])
	inputs, err := a.engine.GetPendingInputs(cmd.Context(), execID)
	if err != nil {
		return err
	}
	if pendingJSON {
		if inputs == nil {
			inputs = []*core.InputRequest{}
		}
		return outputJSON(cmd.OutOrStdout(), inputs)
	}
	printPending(cmd.OutOrStdout(), execID, inputs)
	return nil
}
