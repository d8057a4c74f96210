package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NachoColl/agilevibecoding-sub003/internal/models"
	"github.com/NachoColl/agilevibecoding-sub003/internal/output"
	"github.com/NachoColl/agilevibecoding-sub003/internal/store"
)

var statusDomain string

var statusCmd = &cobra.Command{
	Use:   "status [item-id]",
	Short: "Show backlog validation dashboard",
	Long: `Show a validation overview of the backlog.

Without arguments, shows a summary table of all epics. With a work
item ID, shows detailed status for that item.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return itemShowRun(args[0]) // reuse item show for detail
		}
		return statusOverviewRun()
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusDomain, "domain", "", "Filter by epic domain")
	rootCmd.AddCommand(statusCmd)
}

func statusOverviewRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	epics, err := s.ListWorkItems(ctx, store.WorkItemFilter{Kind: models.KindEpic, Domain: statusDomain})
	if err != nil {
		return err
	}

	if len(epics) == 0 {
		ui.Info("No epics tracked. Use 'avc import <file>' to get started.")
		return nil
	}

	table := ui.Table([]string{"Epic", "Title", "Domain", "Stories", "Validated", "Score", "Status"})

	for _, epic := range epics {
		stories, _ := s.ListChildren(ctx, epic.ID)

		validated := 0
		for _, st := range stories {
			if st.LastValidated != nil {
				validated++
			}
		}

		score, status := "-", "-"
		if v, err := s.GetVerdict(ctx, epic.ID); err == nil {
			score = output.ScoreColor(v.AverageScore)
			status = output.StatusColor(string(v.OverallStatus))
		}

		table.Append([]string{
			output.Cyan(epic.ID),
			epic.Title,
			epic.Domain,
			fmt.Sprintf("%d", len(stories)),
			fmt.Sprintf("%d/%d", validated, len(stories)),
			score,
			status,
		})
	}

	table.Render()
	return nil
}
