package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weft-dev/weft/internal/bridge"
	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/fsutil"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage stored prompts used by cursor_agent tasks",
	Long: `Manage stored prompts. A cursor_agent task that sets prompt_id gets the
stored content prepended to its own prompt.`,
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored prompts",
	Args:  cobra.NoArgs,
	RunE:  runPromptsList,
}

var promptsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runPromptsShow,
}

var promptsSetCmd = &cobra.Command{
	Use:   "set <id>",
	Short: "Create or replace a stored prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runPromptsSet,
}

var promptsRemoveCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a stored prompt",
	Args:    cobra.ExactArgs(1),
	RunE:    runPromptsRemove,
}

var (
	promptName    string
	promptContent string
	promptFile    string
)

func init() {
	rootCmd.AddCommand(promptsCmd)
	promptsCmd.AddCommand(promptsListCmd, promptsShowCmd, promptsSetCmd, promptsRemoveCmd)

	promptsSetCmd.Flags().StringVar(&promptName, "name", "", "Display name (default: the id)")
	promptsSetCmd.Flags().StringVar(&promptContent, "content", "", "Prompt text")
	promptsSetCmd.Flags().StringVarP(&promptFile, "file", "f", "", "Read the prompt text from a file")
	promptsSetCmd.MarkFlagsMutuallyExclusive("content", "file")
}

func runPromptsList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	prompts, err := a.store.Prompts().List(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(prompts) == 0 {
		fmt.Fprintln(out, "No prompts")
		return nil
	}
	s := styles()
	fmt.Fprintln(out, s.title.Render(column("ID", 38)+column("NAME", 30)+"UPDATED"))
	for _, p := range prompts {
		fmt.Fprintln(out, column(p.ID, 38)+column(p.Name, 30)+p.UpdatedAt)
	}
	return nil
}

func runPromptsShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.store.Prompts().Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if p == nil {
		return core.ErrNotFound("prompt", args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), p.Content)
	return nil
}

func runPromptsSet(cmd *cobra.Command, args []string) error {
	content := promptContent
	if promptFile != "" {
		data, err := fsutil.ReadFileScoped(promptFile, fsutil.MaxDocumentSize)
		if err != nil {
			return fmt.Errorf("reading prompt: %w", err)
		}
		content = string(data)
	}
	if content == "" {
		return errors.New("prompt content is required (--content or --file)")
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	id := args[0]
	name := promptName
	if name == "" {
		name = id
	}
	now := bridge.FormatTime(time.Now().UTC())
	rec := &core.PromptRecord{ID: id, Name: name, Content: content, CreatedAt: now, UpdatedAt: now}
	existing, err := a.store.Prompts().Get(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil {
		rec.CreatedAt = existing.CreatedAt
	}
	if err := a.store.Prompts().Save(ctx, rec); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved prompt %s\n", id)
	return nil
}

func runPromptsRemove(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Prompts().Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted prompt %s\n", args[0])
	return nil
}
