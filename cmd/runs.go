package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/NachoColl/agilevibecoding-sub003/internal/output"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs [item-id]",
	Short: "List validation runs",
	Long:  "List recorded validation runs, newest first. With <item-id>, only that item's runs.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var itemRef string
		if len(args) > 0 {
			itemRef = args[0]
		}
		return runsListRun(itemRef)
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to show")
	rootCmd.AddCommand(runsCmd)
}

func runsListRun(itemRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	itemID := ""
	if itemRef != "" {
		item, err := findItem(ctx, s, itemRef)
		if err != nil {
			return err
		}
		itemID = item.ID
	}

	runs, err := s.ListValidationRuns(ctx, itemID, runsLimit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		ui.Info("No validation runs recorded.")
		return nil
	}

	table := ui.Table([]string{"When", "Item", "Panel", "Succeeded", "Failed", "Duration"})
	for _, run := range runs {
		failedStr := "0"
		if run.Failed > 0 {
			failedStr = output.Red(fmt.Sprintf("%d", run.Failed))
		}
		_ = table.Append([]string{
			run.CreatedAt.Format("2006-01-02 15:04"),
			run.WorkItemID,
			fmt.Sprintf("%d", run.PanelSize),
			fmt.Sprintf("%d", run.Succeeded),
			failedStr,
			run.Duration.Round(time.Millisecond).String(),
		})
	}
	_ = table.Render()

	// With -v, spell out which reviewers errored
	for _, run := range runs {
		for _, r := range run.Reviewers {
			if !r.OK {
				ui.VerboseLog("%s %s: %s", run.WorkItemID, r.ReviewerID, r.Error)
			}
		}
	}
	return nil
}
