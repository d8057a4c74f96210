package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/NachoColl/agilevibecoding-sub003/internal/models"
	"github.com/NachoColl/agilevibecoding-sub003/internal/store"
)

var (
	reportFormat string
	exportType   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export data as JSON, CSV, or Markdown",
	Long:  "Export work items, feedback, or validation runs in various formats.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportRun()
	},
}

func init() {
	exportCmd.Flags().StringVar(&reportFormat, "format", "json", "Output format: json, csv, markdown")
	exportCmd.Flags().StringVar(&exportType, "type", "items", "Data type: items, feedback, runs")
	rootCmd.AddCommand(exportCmd)
}

func exportRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch exportType {
	case "items":
		return exportItems(ctx, s)
	case "feedback":
		return exportFeedback(ctx, s)
	case "runs":
		return exportRuns(ctx, s)
	default:
		return fmt.Errorf("unknown export type: %s (use: items, feedback, runs)", exportType)
	}
}

// exportedItem is the serialization shape for work item exports.
type exportedItem struct {
	ID                 string     `json:"id"`
	Kind               string     `json:"kind"`
	ParentID           string     `json:"parent_id,omitempty"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	Domain             string     `json:"domain,omitempty"`
	Features           []string   `json:"features,omitempty"`
	AcceptanceCriteria []string   `json:"acceptance_criteria,omitempty"`
	SelectedValidators []string   `json:"selected_validators,omitempty"`
	LastValidated      *time.Time `json:"last_validated,omitempty"`
}

func exportItems(ctx context.Context, s store.Store) error {
	items, err := s.ListWorkItems(ctx, store.WorkItemFilter{})
	if err != nil {
		return err
	}

	switch reportFormat {
	case "json":
		out := make([]exportedItem, 0, len(items))
		for _, item := range items {
			out = append(out, exportedItem{
				ID:                 item.ID,
				Kind:               string(item.Kind),
				ParentID:           item.ParentID,
				Title:              item.Title,
				Description:        item.Description,
				Domain:             item.Domain,
				Features:           item.Features,
				AcceptanceCriteria: item.AcceptanceCriteria,
				SelectedValidators: item.SelectedValidators,
				LastValidated:      item.LastValidated,
			})
		}
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "csv":
		w := csv.NewWriter(ui.Out)
		w.Write([]string{"ID", "Kind", "Parent", "Title", "Domain", "PanelSize", "LastValidated"})
		for _, item := range items {
			lastValidated := ""
			if item.LastValidated != nil {
				lastValidated = item.LastValidated.Format(time.RFC3339)
			}
			w.Write([]string{item.ID, string(item.Kind), item.ParentID, item.Title, item.Domain,
				fmt.Sprintf("%d", len(item.SelectedValidators)), lastValidated})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintln(ui.Out, "# Work Items")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| ID | Kind | Title | Domain | Panel |")
		fmt.Fprintln(ui.Out, "|----|------|-------|--------|-------|")
		for _, item := range items {
			fmt.Fprintf(ui.Out, "| %s | %s | %s | %s | %d |\n",
				item.ID, item.Kind, item.Title, item.Domain, len(item.SelectedValidators))
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

// exportedFeedback pairs a work item with its stored verdict.
type exportedFeedback struct {
	ItemID  string                    `json:"item_id"`
	Verdict *models.AggregatedVerdict `json:"verdict"`
}

func exportFeedback(ctx context.Context, s store.Store) error {
	items, err := s.ListWorkItems(ctx, store.WorkItemFilter{})
	if err != nil {
		return err
	}

	rows := make([]exportedFeedback, 0, len(items))
	for _, item := range items {
		v, err := s.GetVerdict(ctx, item.ID)
		if err != nil {
			continue // not validated yet
		}
		rows = append(rows, exportedFeedback{ItemID: item.ID, Verdict: v})
	}

	switch reportFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "csv":
		w := csv.NewWriter(ui.Out)
		w.Write([]string{"ItemID", "Score", "Status", "Critical", "Major", "Minor", "ValidatedAt"})
		for _, r := range rows {
			v := r.Verdict
			w.Write([]string{r.ItemID, fmt.Sprintf("%d", v.AverageScore), string(v.OverallStatus),
				fmt.Sprintf("%d", len(v.CriticalIssues)), fmt.Sprintf("%d", len(v.MajorIssues)),
				fmt.Sprintf("%d", len(v.MinorIssues)), v.ValidatedAt.Format(time.RFC3339)})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintln(ui.Out, "# Feedback")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| Item | Score | Status | Issues |")
		fmt.Fprintln(ui.Out, "|------|-------|--------|--------|")
		for _, r := range rows {
			fmt.Fprintf(ui.Out, "| %s | %d | %s | %d |\n",
				r.ItemID, r.Verdict.AverageScore, r.Verdict.OverallStatus, r.Verdict.TotalIssues())
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

// exportedRun is the serialization shape for validation run exports.
type exportedRun struct {
	ID         string                   `json:"id"`
	WorkItemID string                   `json:"item_id"`
	PanelSize  int                      `json:"panel_size"`
	Succeeded  int                      `json:"succeeded"`
	Failed     int                      `json:"failed"`
	Reviewers  []models.ReviewerOutcome `json:"reviewers"`
	DurationMs int64                    `json:"duration_ms"`
	CreatedAt  time.Time                `json:"created_at"`
}

func exportRuns(ctx context.Context, s store.Store) error {
	runs, err := s.ListValidationRuns(ctx, "", 0)
	if err != nil {
		return err
	}

	switch reportFormat {
	case "json":
		out := make([]exportedRun, 0, len(runs))
		for _, run := range runs {
			out = append(out, exportedRun{
				ID:         run.ID,
				WorkItemID: run.WorkItemID,
				PanelSize:  run.PanelSize,
				Succeeded:  run.Succeeded,
				Failed:     run.Failed,
				Reviewers:  run.Reviewers,
				DurationMs: run.Duration.Milliseconds(),
				CreatedAt:  run.CreatedAt,
			})
		}
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "csv":
		w := csv.NewWriter(ui.Out)
		w.Write([]string{"ID", "ItemID", "PanelSize", "Succeeded", "Failed", "DurationMs", "Created"})
		for _, run := range runs {
			w.Write([]string{run.ID, run.WorkItemID, fmt.Sprintf("%d", run.PanelSize),
				fmt.Sprintf("%d", run.Succeeded), fmt.Sprintf("%d", run.Failed),
				fmt.Sprintf("%d", run.Duration.Milliseconds()), run.CreatedAt.Format(time.RFC3339)})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintln(ui.Out, "# Validation Runs")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| When | Item | Panel | Succeeded | Failed |")
		fmt.Fprintln(ui.Out, "|------|------|-------|-----------|--------|")
		for _, run := range runs {
			fmt.Fprintf(ui.Out, "| %s | %s | %d | %d | %d |\n",
				run.CreatedAt.Format("2006-01-02 15:04"), run.WorkItemID,
				run.PanelSize, run.Succeeded, run.Failed)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate reports",
	Long:  "Generate summary reports of backlog validation state.",
}

var reportBacklogCmd = &cobra.Command{
	Use:   "backlog",
	Short: "Summarize validation coverage per epic",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportBacklogRun()
	},
}

func init() {
	reportCmd.AddCommand(reportBacklogCmd)
	rootCmd.AddCommand(reportCmd)
}

func reportBacklogRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	epics, err := s.ListWorkItems(ctx, store.WorkItemFilter{Kind: models.KindEpic})
	if err != nil {
		return err
	}

	fmt.Fprintln(ui.Out, "# Backlog Validation Report")
	fmt.Fprintln(ui.Out)

	for _, epic := range epics {
		stories, _ := s.ListChildren(ctx, epic.ID)

		validated := 0
		for _, st := range stories {
			if st.LastValidated != nil {
				validated++
			}
		}

		fmt.Fprintf(ui.Out, "## %s %s\n", epic.ID, epic.Title)
		if v, err := s.GetVerdict(ctx, epic.ID); err == nil {
			fmt.Fprintf(ui.Out, "- Epic verdict: %d %s (%d issues)\n",
				v.AverageScore, v.OverallStatus, v.TotalIssues())
		} else {
			fmt.Fprintln(ui.Out, "- Epic verdict: not validated")
		}
		fmt.Fprintf(ui.Out, "- Stories validated: %d/%d\n", validated, len(stories))
		fmt.Fprintln(ui.Out)
	}

	return nil
}
