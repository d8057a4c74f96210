package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/NachoColl/agilevibecoding-sub003/internal/output"
	"github.com/NachoColl/agilevibecoding-sub003/internal/validation"
)

var validateReselect bool

var validateCmd = &cobra.Command{
	Use:   "validate <item-id>",
	Short: "Run the reviewer panel on a work item",
	Long: `Validate a work item with its reviewer panel.

Selects the panel for the epic or story, dispatches all reviewers in
parallel, and aggregates their reviews into a single verdict stored as
the item's current feedback. Validating again replaces the previous
verdict.

With --dry-run, shows the panel that would review the item without
dispatching anything.

Requires ANTHROPIC_API_KEY environment variable or anthropic.api_key in config.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateRun(args[0])
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateReselect, "reselect", false, "Discard the cached panel and select a fresh one")
	rootCmd.AddCommand(validateCmd)
}

func validateRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	item, err := findItem(ctx, s, id)
	if err != nil {
		return err
	}

	engine, err := getEngine()
	if err != nil {
		return err
	}

	if dryRun {
		_, panel, err := engine.PreviewPanel(ctx, item.ID, validateReselect)
		if err != nil {
			return err
		}
		fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(item.ID), item.Title)
		fmt.Fprintln(ui.Out, "  Panel:")
		for _, r := range panel {
			fmt.Fprintf(ui.Out, "    - %s\n", r)
		}
		ui.DryRunMsg("Would dispatch %d reviewers", len(panel))
		return nil
	}

	if newLLMClient() == nil {
		return fmt.Errorf("ANTHROPIC_API_KEY not set (set env var or anthropic.api_key in config)")
	}

	ui.Info("Dispatching reviewer panel (%s)...", viper.GetString("anthropic.model"))

	result, err := engine.Validate(ctx, item.ID, validation.Options{Reselect: validateReselect})
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "\n%s  %s\n", output.Cyan(result.Item.ID), result.Item.Title)
	renderVerdict(result.Verdict)

	run := result.Run
	fmt.Fprintln(ui.Out)
	if run.Failed > 0 {
		ui.Warning("%d/%d reviewers succeeded in %s (%d errored)",
			run.Succeeded, run.PanelSize, run.Duration.Round(time.Millisecond), run.Failed)
	} else {
		ui.Success("%d/%d reviewers succeeded in %s",
			run.Succeeded, run.PanelSize, run.Duration.Round(time.Millisecond))
	}
	return nil
}
