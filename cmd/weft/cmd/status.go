package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/weft-dev/weft/internal/core"
)

var statusCmd = &cobra.Command{
	Use:   "status [execution-id]",
	Short: "Show executions and their tasks",
	Long: `Without arguments, list every execution, newest first. With an
execution id, show its tasks and, with --audit, its audit trail.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var (
	statusJSON  bool
	statusAudit bool
	statusLimit int
)

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
	statusCmd.Flags().BoolVar(&statusAudit, "audit", false, "Include the audit trail")
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 20, "Maximum executions to list (0 for all)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		execs, err := a.engine.ListExecutions(ctx)
		if err != nil {
			return err
		}
		if statusLimit > 0 && len(execs) > statusLimit {
			execs = execs[:statusLimit]
		}
		if statusJSON {
			if execs == nil {
				execs = []*core.Execution{}
			}
			return outputJSON(out, execs)
		}
		printExecutions(out, execs)
		return nil
	}

	id := core.ExecutionID(args[0])
	exec, err := a.engine.GetExecution(ctx, id)
	if err != nil {
		return err
	}
	tasks, err := a.engine.TaskExecutions(ctx, id)
	if err != nil {
		return err
	}
	var trail []core.AuditEntry
	if statusAudit {
		if trail, err = a.engine.AuditTrail(ctx, id); err != nil {
			return err
		}
	}

	if statusJSON {
		return outputJSON(out, struct {
			Execution *core.Execution       `json:"execution"`
			Tasks     []*core.TaskExecution `json:"tasks"`
			Audit     []core.AuditEntry     `json:"audit,omitempty"`
		}{exec, tasks, trail})
	}
	printExecution(out, exec, tasks, trail)
	return nil
}

func printExecutions(out io.Writer, execs []*core.Execution) {
	if len(execs) == 0 {
		fmt.Fprintln(out, "No executions")
		return
	}
	s := styles()
	fmt.Fprintln(out, s.title.Render(column("EXECUTION", 38)+column("WORKFLOW", 24)+column("STATUS", 20)+"STARTED"))
	for _, e := range execs {
		fmt.Fprintln(out,
			column(string(e.ID), 38)+
				column(e.WorkflowName, 24)+
				column(s.executionStatus(e.Status), 20)+
				e.CreatedAt.Local().Format(time.DateTime))
	}
}

func printExecution(out io.Writer, exec *core.Execution, tasks []*core.TaskExecution, trail []core.AuditEntry) {
	s := styles()
	fmt.Fprintf(out, "%s %s\n", s.title.Render("Execution:"), exec.ID)
	fmt.Fprintf(out, "%s %s (%s)\n", s.title.Render("Workflow: "), exec.WorkflowName, exec.WorkflowID)
	fmt.Fprintf(out, "%s %s\n", s.title.Render("Status:   "), s.executionStatus(exec.Status))
	if exec.Error != "" {
		fmt.Fprintf(out, "%s %s\n", s.title.Render("Error:    "), s.failure.Render(exec.Error))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, s.title.Render(column("TASK", 20)+column("KIND", 14)+column("STATUS", 22)+"DURATION"))
	for _, t := range tasks {
		duration := "-"
		if t.StartedAt != nil && t.CompletedAt != nil {
			duration = t.CompletedAt.Sub(*t.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintln(out,
			column(string(t.TaskID), 20)+
				column(string(t.Kind), 14)+
				column(s.taskStatus(t.Status), 22)+
				duration)
		if t.Error != "" {
			fmt.Fprintln(out, "  "+s.failure.Render(t.Error))
		}
	}

	if len(trail) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, s.title.Render("Audit trail"))
		for _, entry := range trail {
			line := fmt.Sprintf("  %s %s %s changes=%d",
				entry.Timestamp.Local().Format(time.DateTime),
				column(string(entry.TaskID), 20),
				column(string(entry.Status), 8),
				entry.ChangesCount)
			if entry.Message != "" {
				line += " " + s.muted.Render(entry.Message)
			}
			fmt.Fprintln(out, line)
		}
	}
}
