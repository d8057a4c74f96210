package models

import "time"

// AttributedIssue is a review issue annotated with the reviewer that raised
// it and the topic domain recovered from that reviewer's ID.
type AttributedIssue struct {
	ReviewIssue
	ReviewerID string `json:"reviewerId"`
	Domain     string `json:"domain"`
}

// RankedPriority is an improvement priority with the number of reviewers
// that mentioned it verbatim.
type RankedPriority struct {
	Priority    string `json:"priority"`
	MentionedBy int    `json:"mentionedBy"`
}

// ReviewerSummary is one row of the per-reviewer breakdown in a verdict.
// Status may be StatusErrored for members whose call failed; those rows
// carry a zero score and issue count.
type ReviewerSummary struct {
	ReviewerID string       `json:"reviewerId"`
	Status     ReviewStatus `json:"status"`
	Score      int          `json:"score"`
	IssueCount int          `json:"issueCount"`
}

// AggregatedVerdict is the reconciled outcome of one reviewer panel run.
// It is built fresh per run and superseded, not merged, by the next run
// for the same work item.
type AggregatedVerdict struct {
	AverageScore          int               `json:"averageScore"`
	CriticalIssues        []AttributedIssue `json:"criticalIssues"`
	MajorIssues           []AttributedIssue `json:"majorIssues"`
	MinorIssues           []AttributedIssue `json:"minorIssues"`
	Strengths             []string          `json:"strengths"`
	ImprovementPriorities []RankedPriority  `json:"improvementPriorities"`
	OverallStatus         ReviewStatus      `json:"overallStatus"`
	PerReviewerSummary    []ReviewerSummary `json:"perReviewerSummary"`
	ValidatedAt           time.Time         `json:"validatedAt"`
}

// TotalIssues returns the number of issues across all severity buckets.
func (v *AggregatedVerdict) TotalIssues() int {
	return len(v.CriticalIssues) + len(v.MajorIssues) + len(v.MinorIssues)
}
