package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/NachoColl/agilevibecoding-sub003/internal/models"
	"github.com/NachoColl/agilevibecoding-sub003/internal/output"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <item-id>",
	Short: "Show the stored verdict for a work item",
	Long: `Show the aggregated reviewer verdict stored for a work item:
score, issues by severity, strengths, improvement priorities, and the
per-reviewer breakdown from the most recent validation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return feedbackRun(args[0])
	},
}

func init() {
	rootCmd.AddCommand(feedbackCmd)
}

func feedbackRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	item, err := findItem(ctx, s, id)
	if err != nil {
		return err
	}

	v, err := s.GetVerdict(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("%s has no feedback yet (run 'avc validate %s' first)", item.ID, item.ID)
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(item.ID), item.Title)
	renderVerdict(v)
	return nil
}

// renderVerdict prints an aggregated verdict in full. Shared by the
// validate and feedback commands.
func renderVerdict(v *models.AggregatedVerdict) {
	fmt.Fprintf(ui.Out, "  Score:      %s %s\n",
		output.ScoreColor(v.AverageScore),
		output.StatusColor(string(v.OverallStatus)))
	fmt.Fprintf(ui.Out, "  Validated:  %s\n", v.ValidatedAt.Format(time.RFC3339))

	renderIssues("critical", v.CriticalIssues)
	renderIssues("major", v.MajorIssues)
	renderIssues("minor", v.MinorIssues)

	if len(v.Strengths) > 0 {
		fmt.Fprintln(ui.Out, "\n  Strengths:")
		for _, s := range v.Strengths {
			fmt.Fprintf(ui.Out, "    + %s\n", s)
		}
	}

	if len(v.ImprovementPriorities) > 0 {
		fmt.Fprintln(ui.Out, "\n  Improvement priorities:")
		for i, p := range v.ImprovementPriorities {
			mention := ""
			if p.MentionedBy > 1 {
				mention = fmt.Sprintf(" (x%d)", p.MentionedBy)
			}
			fmt.Fprintf(ui.Out, "    %d. %s%s\n", i+1, p.Priority, mention)
		}
	}

	if len(v.PerReviewerSummary) > 0 {
		fmt.Fprintln(ui.Out)
		table := ui.Table([]string{"Reviewer", "Status", "Score", "Issues"})
		for _, r := range v.PerReviewerSummary {
			score := "-"
			if r.Status != models.StatusErrored {
				score = output.ScoreColor(r.Score)
			}
			_ = table.Append([]string{
				r.ReviewerID,
				output.StatusColor(string(r.Status)),
				score,
				fmt.Sprintf("%d", r.IssueCount),
			})
		}
		_ = table.Render()
	}
}

// renderIssues prints one severity bucket with reviewer attribution.
func renderIssues(severity string, issues []models.AttributedIssue) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(ui.Out, "\n  %s (%d):\n", output.SeverityColor(severity), len(issues))
	for _, issue := range issues {
		fmt.Fprintf(ui.Out, "    - %s (%s)\n", issue.Description, issue.ReviewerID)
		if issue.Suggestion != "" {
			fmt.Fprintf(ui.Out, "      suggestion: %s\n", issue.Suggestion)
		}
	}
}
