package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weft-dev/weft/internal/bridge"
	"github.com/weft-dev/weft/internal/core"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage key/value settings kept in the store",
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsList,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var settingsUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsUnset,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsListCmd, settingsGetCmd, settingsSetCmd, settingsUnsetCmd)
}

func runSettingsList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	settings, err := a.store.Settings().List(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, s := range settings {
		fmt.Fprintf(out, "%s=%s\n", s.ID, s.Value)
	}
	return nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.store.Settings().Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if s == nil {
		return core.ErrNotFound("setting", args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), s.Value)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	rec := &core.SettingRecord{ID: args[0], Value: args[1], UpdatedAt: bridge.FormatTime(time.Now().UTC())}
	return a.store.Settings().Save(cmd.Context(), rec)
}

func runSettingsUnset(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.store.Settings().Delete(cmd.Context(), args[0])
}
