package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NachoColl/agilevibecoding-sub003/internal/output"
)

var panelReselect bool

var panelCmd = &cobra.Command{
	Use:   "panel <item-id>",
	Short: "Show or select the reviewer panel for a work item",
	Long: `Show the reviewer panel that would validate a work item.

Known domains resolve through the selection rules alone. An unknown
domain asks the LLM to pick specialists once and caches the result;
afterwards the cached panel is reused until --reselect replaces it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return panelRun(args[0])
	},
}

func init() {
	panelCmd.Flags().BoolVar(&panelReselect, "reselect", false, "Discard the cached panel and select a fresh one")
	rootCmd.AddCommand(panelCmd)
}

func panelRun(id string) error {
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

	item, panel, err := engine.PreviewPanel(ctx, item.ID, panelReselect)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(item.ID), item.Title)
	if item.Domain != "" {
		fmt.Fprintf(ui.Out, "  Domain:  %s\n", item.Domain)
	}
	fmt.Fprintf(ui.Out, "  Panel (%d):\n", len(panel))
	for _, r := range panel {
		fmt.Fprintf(ui.Out, "    - %s\n", r)
	}
	return nil
}
