package cmd

import (
	"github.com/spf13/cobra"

	"github.com/weft-dev/weft/internal/parser"
)

var runCmd = &cobra.Command{
	Use:   "run <workflow-file>",
	Short: "Run a workflow",
	Long: `Run a workflow document (JSON, or YAML by file extension).

Task output is streamed as it is produced. When a task waits for user
input the run stops and prints the pending inputs; answer them with
'weft input' to continue. The command exits non-zero when the run fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var runJSON bool

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the result as JSON")
}

func runRun(cmd *cobra.Command, args []string) error {
	wf, err := parser.ParseFile(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	cb := liveOutput(out)
	if runJSON {
		cb = nil
	}
	result, err := a.engine.Execute(ctx, wf, cb)
	if err != nil {
		return err
	}
	return reportResult(cmd.Context(), out, a.engine, result, runJSON)
}
