// Package verdict reduces a panel's independent review results into a
// single aggregated verdict: mean score, severity-bucketed issues with
// provenance, deduplicated strengths, frequency-ranked improvement
// priorities, and an overall status under a fixed precedence rule.
package verdict

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/NachoColl/agilevibecoding-sub003/internal/models"
)

// Aggregate combines all results of one validation run into a verdict.
// The caller guarantees at least one result; dispatch never builds a
// verdict from an empty set.
func Aggregate(results []*models.ReviewResult) *models.AggregatedVerdict {
	v := &models.AggregatedVerdict{
		AverageScore:  averageScore(results),
		OverallStatus: determineOverallStatus(results),
		ValidatedAt:   time.Now().UTC(),
	}

	for _, r := range results {
		domain := ExtractDomain(r.ReviewerID)
		for _, issue := range r.Issues {
			attributed := models.AttributedIssue{
				ReviewIssue: issue,
				ReviewerID:  r.ReviewerID,
				Domain:      domain,
			}
			switch issue.Severity {
			case models.SeverityCritical:
				v.CriticalIssues = append(v.CriticalIssues, attributed)
			case models.SeverityMajor:
				v.MajorIssues = append(v.MajorIssues, attributed)
			default:
				v.MinorIssues = append(v.MinorIssues, attributed)
			}
		}

		v.PerReviewerSummary = append(v.PerReviewerSummary, models.ReviewerSummary{
			ReviewerID: r.ReviewerID,
			Status:     r.Status,
			Score:      r.Score,
			IssueCount: r.IssueCount(),
		})
	}

	v.Strengths = dedupeStrengths(results)
	v.ImprovementPriorities = rankPriorities(results)

	return v
}

// averageScore returns the arithmetic mean of all scores, rounded to the
// nearest integer.
func averageScore(results []*models.ReviewResult) int {
	sum := 0
	for _, r := range results {
		sum += r.Score
	}
	return int(math.Round(float64(sum) / float64(len(results))))
}

// determineOverallStatus applies strict precedence: any needs-improvement
// result fails the whole verdict; a verdict is excellent only when every
// result is; everything else is acceptable. A single failing reviewer
// overrides any number of excellent ones.
func determineOverallStatus(results []*models.ReviewResult) models.ReviewStatus {
	allExcellent := true
	for _, r := range results {
		if r.Status == models.StatusNeedsImprovement {
			return models.StatusNeedsImprovement
		}
		if r.Status != models.StatusExcellent {
			allExcellent = false
		}
	}
	if allExcellent {
		return models.StatusExcellent
	}
	return models.StatusAcceptable
}

// ExtractDomain recovers the topic segment from a reviewer ID of the form
// reviewer-{kind}-{topic}, where the topic may itself contain hyphens.
// IDs that do not match that shape yield "unknown".
func ExtractDomain(reviewerID string) string {
	parts := strings.Split(reviewerID, "-")
	if len(parts) < 3 || parts[0] != "reviewer" {
		return "unknown"
	}
	return strings.Join(parts[2:], "-")
}

// isSimilar reports whether two strength strings say the same thing:
// case-insensitively, one contains the other as a substring, in either
// direction.
func isSimilar(a, b string) bool {
	la := strings.ToLower(a)
	lb := strings.ToLower(b)
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}

// dedupeStrengths walks all results' strengths in order and keeps a string
// only if it is not similar to any already-kept string.
func dedupeStrengths(results []*models.ReviewResult) []string {
	var kept []string
	for _, r := range results {
		for _, s := range r.Strengths {
			duplicate := false
			for _, existing := range kept {
				if isSimilar(existing, s) {
					duplicate = true
					break
				}
			}
			if !duplicate {
				kept = append(kept, s)
			}
		}
	}
	return kept
}

// maxRankedPriorities caps the improvement priority list in a verdict.
const maxRankedPriorities = 5

// rankPriorities counts exact-string occurrences of each improvement
// priority across all results, sorts descending by count with ties keeping
// first-seen order, and truncates to the top entries.
func rankPriorities(results []*models.ReviewResult) []models.RankedPriority {
	counts := make(map[string]int)
	var order []string
	for _, r := range results {
		for _, p := range r.ImprovementPriorities {
			if counts[p] == 0 {
				order = append(order, p)
			}
			counts[p]++
		}
	}

	ranked := make([]models.RankedPriority, 0, len(order))
	for _, p := range order {
		ranked = append(ranked, models.RankedPriority{Priority: p, MentionedBy: counts[p]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MentionedBy > ranked[j].MentionedBy
	})

	if len(ranked) > maxRankedPriorities {
		ranked = ranked[:maxRankedPriorities]
	}
	return ranked
}
