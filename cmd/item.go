package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/NachoColl/agilevibecoding-sub003/internal/models"
	"github.com/NachoColl/agilevibecoding-sub003/internal/output"
	"github.com/NachoColl/agilevibecoding-sub003/internal/store"
)

var (
	itemKind   string
	itemDomain string
)

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage backlog work items",
	Long:  "List and inspect the epics and stories imported from a backlog.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return itemListRun("")
	},
}

var itemListCmd = &cobra.Command{
	Use:     "list [epic-id]",
	Aliases: []string{"ls"},
	Short:   "List work items",
	Long:    "List work items. With <epic-id>, shows only that epic's stories.",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var parentRef string
		if len(args) > 0 {
			parentRef = args[0]
		}
		return itemListRun(parentRef)
	},
}

var itemShowCmd = &cobra.Command{
	Use:   "show <item-id>",
	Short: "Show work item details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return itemShowRun(args[0])
	},
}

var itemDeleteCmd = &cobra.Command{
	Use:     "delete <item-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a work item",
	Long:    "Delete a work item. Deleting an epic also deletes its stories.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return itemDeleteRun(args[0])
	},
}

func init() {
	itemListCmd.Flags().StringVar(&itemKind, "kind", "", "Filter by kind: epic, story")
	itemListCmd.Flags().StringVar(&itemDomain, "domain", "", "Filter by domain")

	itemCmd.AddCommand(itemListCmd)
	itemCmd.AddCommand(itemShowCmd)
	itemCmd.AddCommand(itemDeleteCmd)
	rootCmd.AddCommand(itemCmd)
}

func itemListRun(parentRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	filter := store.WorkItemFilter{
		Kind:   models.WorkItemKind(itemKind),
		Domain: itemDomain,
	}
	if itemKind != "" && !filter.Kind.Valid() {
		return fmt.Errorf("invalid kind: %s (must be epic or story)", itemKind)
	}
	if parentRef != "" {
		epic, err := findItem(ctx, s, parentRef)
		if err != nil {
			return err
		}
		filter.ParentID = epic.ID
	}

	items, err := s.ListWorkItems(ctx, filter)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		ui.Info("No work items found. Import a backlog with 'avc import <file>'.")
		return nil
	}

	table := ui.Table([]string{"ID", "Kind", "Title", "Domain", "Panel", "Validated"})
	for _, item := range items {
		panelStr := "-"
		if n := len(item.SelectedValidators); n > 0 {
			panelStr = fmt.Sprintf("%d", n)
		}
		_ = table.Append([]string{
			item.ID,
			string(item.Kind),
			item.Title,
			item.Domain,
			panelStr,
			formatValidated(item.LastValidated),
		})
	}
	_ = table.Render()
	return nil
}

func itemShowRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	item, err := findItem(ctx, s, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(item.ID), item.Title)
	fmt.Fprintf(ui.Out, "  Kind:       %s\n", item.Kind)
	if item.ParentID != "" {
		fmt.Fprintf(ui.Out, "  Epic:       %s\n", item.ParentID)
	}
	if item.Domain != "" {
		fmt.Fprintf(ui.Out, "  Domain:     %s\n", item.Domain)
	}
	if len(item.Features) > 0 {
		fmt.Fprintf(ui.Out, "  Features:   %s\n", strings.Join(item.Features, ", "))
	}
	if item.Description != "" {
		fmt.Fprintf(ui.Out, "  Desc:       %s\n", item.Description)
	}
	if len(item.AcceptanceCriteria) > 0 {
		fmt.Fprintln(ui.Out, "  Criteria:")
		for _, c := range item.AcceptanceCriteria {
			fmt.Fprintf(ui.Out, "    - %s\n", c)
		}
	}
	if len(item.SelectedValidators) > 0 {
		fmt.Fprintln(ui.Out, "  Panel:")
		for _, r := range item.SelectedValidators {
			fmt.Fprintf(ui.Out, "    - %s\n", r)
		}
	}
	if item.LastValidated != nil {
		fmt.Fprintf(ui.Out, "  Validated:  %s\n", item.LastValidated.Format(time.RFC3339))
	}
	if v, err := s.GetVerdict(ctx, item.ID); err == nil {
		fmt.Fprintf(ui.Out, "  Verdict:    %s %s (%d issues)\n",
			output.ScoreColor(v.AverageScore),
			output.StatusColor(string(v.OverallStatus)),
			v.TotalIssues())
	}
	fmt.Fprintf(ui.Out, "  Created:    %s\n", item.CreatedAt.Format(time.RFC3339))

	// For epics, list the stories underneath
	if item.Kind == models.KindEpic {
		stories, err := s.ListChildren(ctx, item.ID)
		if err == nil && len(stories) > 0 {
			fmt.Fprintln(ui.Out)
			table := ui.Table([]string{"ID", "Title", "Panel", "Validated"})
			for _, st := range stories {
				panelStr := "-"
				if n := len(st.SelectedValidators); n > 0 {
					panelStr = fmt.Sprintf("%d", n)
				}
				_ = table.Append([]string{
					st.ID,
					st.Title,
					panelStr,
					formatValidated(st.LastValidated),
				})
			}
			_ = table.Render()
		}
	}

	return nil
}

func itemDeleteRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	item, err := findItem(ctx, s, id)
	if err != nil {
		return err
	}

	var stories []*models.WorkItem
	if item.Kind == models.KindEpic {
		stories, _ = s.ListChildren(ctx, item.ID)
	}

	if dryRun {
		if len(stories) > 0 {
			ui.DryRunMsg("Would delete %s and its %d stories", item.ID, len(stories))
		} else {
			ui.DryRunMsg("Would delete %s %s", item.Kind, item.ID)
		}
		return nil
	}

	for _, st := range stories {
		if err := s.DeleteWorkItem(ctx, st.ID); err != nil {
			return fmt.Errorf("delete story %s: %w", st.ID, err)
		}
	}
	if err := s.DeleteWorkItem(ctx, item.ID); err != nil {
		return fmt.Errorf("delete work item: %w", err)
	}

	if len(stories) > 0 {
		ui.Success("Deleted %s and %d stories", output.Cyan(item.ID), len(stories))
	} else {
		ui.Success("Deleted %s", output.Cyan(item.ID))
	}
	return nil
}

// findItem finds a work item by exact ID or unique prefix match.
func findItem(ctx context.Context, s store.Store, id string) (*models.WorkItem, error) {
	// Try exact match first
	if item, err := s.GetWorkItem(ctx, id); err == nil {
		return item, nil
	}

	// Try prefix match - list all and filter
	upper := strings.ToUpper(id)
	items, err := s.ListWorkItems(ctx, store.WorkItemFilter{})
	if err != nil {
		return nil, err
	}

	var matches []*models.WorkItem
	for _, item := range items {
		if strings.HasPrefix(item.ID, upper) {
			matches = append(matches, item)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("work item not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous work item ID %s: matches %d items", id, len(matches))
	}
}

// formatValidated renders a validation timestamp for table display.
func formatValidated(ts *time.Time) string {
	if ts == nil {
		return "-"
	}
	return ts.Format("2006-01-02 15:04")
}
