package models

// ReviewStatus is a reviewer's judgement of a work item.
type ReviewStatus string

const (
	StatusNeedsImprovement ReviewStatus = "needs-improvement"
	StatusAcceptable       ReviewStatus = "acceptable"
	StatusExcellent        ReviewStatus = "excellent"

	// StatusErrored marks a panel member whose call failed. Legal only in
	// per-reviewer summary rows, never in a ReviewResult.
	StatusErrored ReviewStatus = "errored"
)

// Valid reports whether s is a status a reviewer may return.
func (s ReviewStatus) Valid() bool {
	switch s {
	case StatusNeedsImprovement, StatusAcceptable, StatusExcellent:
		return true
	}
	return false
}

// IssueSeverity classifies how serious a reported issue is.
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "critical"
	SeverityMajor    IssueSeverity = "major"
	SeverityMinor    IssueSeverity = "minor"
)

// Valid reports whether s is a known severity.
func (s IssueSeverity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityMajor, SeverityMinor:
		return true
	}
	return false
}

// ReviewIssue is a single problem raised by one reviewer.
type ReviewIssue struct {
	Severity    IssueSeverity `json:"severity"`
	Category    string        `json:"category"`
	Description string        `json:"description"`
	Suggestion  string        `json:"suggestion"`
}

// ReviewResult is one reviewer's structured assessment of a work item.
// Score is 0-100. The shape is validated at the provider boundary; anything
// that reaches the aggregator conforms.
type ReviewResult struct {
	ReviewerID            string        `json:"reviewerId"`
	Status                ReviewStatus  `json:"status"`
	Score                 int           `json:"score"`
	Issues                []ReviewIssue `json:"issues"`
	Strengths             []string      `json:"strengths"`
	ImprovementPriorities []string      `json:"improvementPriorities"`
}

// IssueCount returns the total number of issues across all severities.
func (r *ReviewResult) IssueCount() int {
	return len(r.Issues)
}
