package verdict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NachoColl/agilevibecoding-sub003/internal/models"
)

// result builds a minimal ReviewResult for aggregation tests.
func result(reviewerID string, status models.ReviewStatus, score int) *models.ReviewResult {
	return &models.ReviewResult{
		ReviewerID: reviewerID,
		Status:     status,
		Score:      score,
	}
}

func TestAggregate_AverageScore(t *testing.T) {
	tests := []struct {
		name   string
		scores []int
		want   int
	}{
		{name: "single result", scores: []int{73}, want: 73},
		{name: "exact mean", scores: []int{80, 90}, want: 85},
		{name: "rounds up", scores: []int{95, 82, 60}, want: 79},
		{name: "rounds half up", scores: []int{70, 71}, want: 71},
		{name: "all zero", scores: []int{0, 0, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var results []*models.ReviewResult
			for i, s := range tt.scores {
				id := []string{"reviewer-epic-product-owner", "reviewer-epic-solution-architect", "reviewer-epic-agile-coach"}[i%3]
				results = append(results, result(id, models.StatusAcceptable, s))
			}
			v := Aggregate(results)
			assert.Equal(t, tt.want, v.AverageScore)
		})
	}
}

func TestAggregate_IssueBucketing(t *testing.T) {
	architect := result("reviewer-epic-solution-architect", models.StatusAcceptable, 80)
	architect.Issues = []models.ReviewIssue{
		{Severity: models.SeverityCritical, Category: "scalability", Description: "No sharding strategy"},
		{Severity: models.SeverityMinor, Category: "naming", Description: "Inconsistent service names"},
	}
	security := result("reviewer-epic-security-specialist", models.StatusNeedsImprovement, 55)
	security.Issues = []models.ReviewIssue{
		{Severity: models.SeverityMajor, Category: "auth", Description: "No token rotation"},
	}

	v := Aggregate([]*models.ReviewResult{architect, security})

	require.Len(t, v.CriticalIssues, 1)
	require.Len(t, v.MajorIssues, 1)
	require.Len(t, v.MinorIssues, 1)

	assert.Equal(t, "reviewer-epic-solution-architect", v.CriticalIssues[0].ReviewerID)
	assert.Equal(t, "solution-architect", v.CriticalIssues[0].Domain)
	assert.Equal(t, "No sharding strategy", v.CriticalIssues[0].Description)

	assert.Equal(t, "reviewer-epic-security-specialist", v.MajorIssues[0].ReviewerID)
	assert.Equal(t, "security-specialist", v.MajorIssues[0].Domain)

	assert.Equal(t, "reviewer-epic-solution-architect", v.MinorIssues[0].ReviewerID)
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"reviewer-epic-solution-architect", "solution-architect"},
		{"reviewer-story-qa-engineer", "qa-engineer"},
		{"reviewer-epic-ux", "ux"},
		{"not-a-reviewer-id", "unknown"},
		{"reviewer-epic", "unknown"},
		{"reviewer", "unknown"},
		{"", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDomain(tt.id))
		})
	}
}

func TestIsSimilar(t *testing.T) {
	assert.True(t, isSimilar("Clear scope", "Clear scope and boundaries"))
	assert.True(t, isSimilar("Clear scope and boundaries", "Clear scope"))
	assert.True(t, isSimilar("CLEAR SCOPE", "clear scope and boundaries"))
	assert.True(t, isSimilar("same", "same"))
	assert.False(t, isSimilar("Clear scope", "Well defined criteria"))
}

func TestAggregate_StrengthDedup(t *testing.T) {
	a := result("reviewer-epic-product-owner", models.StatusExcellent, 95)
	a.Strengths = []string{"Clear scope", "Good stakeholder alignment"}
	b := result("reviewer-epic-agile-coach", models.StatusExcellent, 90)
	b.Strengths = []string{"Clear scope and boundaries", "Testable outcomes"}

	v := Aggregate([]*models.ReviewResult{a, b})

	// "Clear scope and boundaries" contains the already-kept "Clear scope".
	assert.Equal(t, []string{"Clear scope", "Good stakeholder alignment", "Testable outcomes"}, v.Strengths)
}

func TestAggregate_PriorityRanking(t *testing.T) {
	a := result("reviewer-epic-product-owner", models.StatusAcceptable, 80)
	a.ImprovementPriorities = []string{"Define rollout plan", "Add success metrics", "Clarify personas"}
	b := result("reviewer-epic-solution-architect", models.StatusAcceptable, 75)
	b.ImprovementPriorities = []string{"Define rollout plan", "Add success metrics"}
	c := result("reviewer-epic-agile-coach", models.StatusAcceptable, 85)
	c.ImprovementPriorities = []string{"Define rollout plan"}

	v := Aggregate([]*models.ReviewResult{a, b, c})

	require.Len(t, v.ImprovementPriorities, 3)
	assert.Equal(t, models.RankedPriority{Priority: "Define rollout plan", MentionedBy: 3}, v.ImprovementPriorities[0])
	assert.Equal(t, models.RankedPriority{Priority: "Add success metrics", MentionedBy: 2}, v.ImprovementPriorities[1])
	assert.Equal(t, models.RankedPriority{Priority: "Clarify personas", MentionedBy: 1}, v.ImprovementPriorities[2])
}

func TestAggregate_PriorityCapAtFive(t *testing.T) {
	r := result("reviewer-epic-product-owner", models.StatusAcceptable, 80)
	r.ImprovementPriorities = []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7"}

	v := Aggregate([]*models.ReviewResult{r})

	assert.Len(t, v.ImprovementPriorities, 5)
	assert.Equal(t, "p1", v.ImprovementPriorities[0].Priority)
	assert.Equal(t, "p5", v.ImprovementPriorities[4].Priority)
}

func TestAggregate_PriorityTiesKeepFirstSeen(t *testing.T) {
	a := result("reviewer-epic-product-owner", models.StatusAcceptable, 80)
	a.ImprovementPriorities = []string{"first", "second"}
	b := result("reviewer-epic-agile-coach", models.StatusAcceptable, 80)
	b.ImprovementPriorities = []string{"second", "first"}

	v := Aggregate([]*models.ReviewResult{a, b})

	require.Len(t, v.ImprovementPriorities, 2)
	assert.Equal(t, "first", v.ImprovementPriorities[0].Priority)
	assert.Equal(t, "second", v.ImprovementPriorities[1].Priority)
}

func TestDetermineOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []models.ReviewStatus
		want     models.ReviewStatus
	}{
		{
			name:     "any needs-improvement wins",
			statuses: []models.ReviewStatus{models.StatusExcellent, models.StatusAcceptable, models.StatusNeedsImprovement},
			want:     models.StatusNeedsImprovement,
		},
		{
			name:     "all excellent",
			statuses: []models.ReviewStatus{models.StatusExcellent, models.StatusExcellent, models.StatusExcellent},
			want:     models.StatusExcellent,
		},
		{
			name:     "mixed without failures",
			statuses: []models.ReviewStatus{models.StatusExcellent, models.StatusAcceptable, models.StatusExcellent},
			want:     models.StatusAcceptable,
		},
		{
			name:     "single acceptable",
			statuses: []models.ReviewStatus{models.StatusAcceptable},
			want:     models.StatusAcceptable,
		},
		{
			name:     "failure overrides many excellent",
			statuses: []models.ReviewStatus{models.StatusExcellent, models.StatusExcellent, models.StatusExcellent, models.StatusNeedsImprovement},
			want:     models.StatusNeedsImprovement,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var results []*models.ReviewResult
			for _, s := range tt.statuses {
				results = append(results, result("reviewer-epic-product-owner", s, 80))
			}
			assert.Equal(t, tt.want, determineOverallStatus(results))
		})
	}
}

func TestAggregate_PerReviewerSummary(t *testing.T) {
	a := result("reviewer-story-qa-engineer", models.StatusExcellent, 95)
	a.Issues = []models.ReviewIssue{
		{Severity: models.SeverityMinor, Description: "Edge case untested"},
	}
	b := result("reviewer-story-tech-lead", models.StatusNeedsImprovement, 60)
	b.Issues = []models.ReviewIssue{
		{Severity: models.SeverityCritical, Description: "Missing error path"},
		{Severity: models.SeverityMajor, Description: "No rollback"},
	}

	v := Aggregate([]*models.ReviewResult{a, b})

	require.Len(t, v.PerReviewerSummary, 2)
	assert.Equal(t, models.ReviewerSummary{
		ReviewerID: "reviewer-story-qa-engineer",
		Status:     models.StatusExcellent,
		Score:      95,
		IssueCount: 1,
	}, v.PerReviewerSummary[0])
	assert.Equal(t, models.ReviewerSummary{
		ReviewerID: "reviewer-story-tech-lead",
		Status:     models.StatusNeedsImprovement,
		Score:      60,
		IssueCount: 2,
	}, v.PerReviewerSummary[1])
}

func TestAggregate_ScenarioThreeReviewers(t *testing.T) {
	a := result("reviewer-epic-product-owner", models.StatusExcellent, 95)
	b := result("reviewer-epic-solution-architect", models.StatusAcceptable, 82)
	c := result("reviewer-epic-security-specialist", models.StatusNeedsImprovement, 60)

	v := Aggregate([]*models.ReviewResult{a, b, c})

	assert.Equal(t, 79, v.AverageScore)
	assert.Equal(t, models.StatusNeedsImprovement, v.OverallStatus)
	assert.False(t, v.ValidatedAt.IsZero())
}
