package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weft-dev/weft/internal/parser"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workflow-file>",
	Short: "Check a workflow document without running it",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	wf, err := parser.ParseFile(args[0])
	if err != nil {
		return err
	}
	order, err := parser.ExecutionOrder(wf)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	s := styles()
	fmt.Fprintf(out, "%s %s (%s), %d tasks\n", s.success.Render("valid"), wf.Name, wf.ID, wf.TaskCount())
	if len(order) > 0 {
		ids := make([]string, len(order))
		for i, id := range order {
			ids[i] = string(id)
		}
		fmt.Fprintf(out, "order: %s\n", strings.Join(ids, " → "))
	}
	return nil
}
