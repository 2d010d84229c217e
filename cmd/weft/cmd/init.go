package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/weft-dev/weft/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a .weft directory with a default configuration",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	if err := os.MkdirAll(filepath.Join(config.ProjectDir, "state"), 0o750); err != nil {
		return fmt.Errorf("creating %s: %w", config.ProjectDir, err)
	}
	path := filepath.Join(config.ProjectDir, "config.yaml")
	created, err := config.EnsureConfigFile(path)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if created {
		fmt.Fprintf(out, "Created %s\n", path)
	} else {
		fmt.Fprintf(out, "%s already exists\n", path)
	}
	return nil
}
