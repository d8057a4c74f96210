package panel

import "strings"

// featurePattern maps substring keywords found in acceptance criteria to
// one inferred feature tag.
type featurePattern struct {
	tag      string
	keywords []string
}

// featurePatterns is the fixed keyword table scanned by InferFeatures.
// Matching is plain case-insensitive substring containment.
var featurePatterns = []featurePattern{
	{tag: "authentication", keywords: []string{"login", "log in", "authenticate", "sign in", "password", "session"}},
	{tag: "crud-operations", keywords: []string{"create", "update", "delete", "edit", "remove"}},
	{tag: "search", keywords: []string{"search", "filter", "find", "sort by"}},
	{tag: "real-time", keywords: []string{"real-time", "realtime", "websocket", "live", "instantly"}},
	{tag: "responsive-design", keywords: []string{"mobile", "responsive", "tablet", "screen size"}},
	{tag: "file-upload", keywords: []string{"upload", "file", "attachment"}},
	{tag: "notifications", keywords: []string{"notification", "notify", "alert", "reminder"}},
	{tag: "payments", keywords: []string{"payment", "checkout", "billing", "invoice", "refund"}},
}

// InferFeatures scans free-text acceptance criteria for keyword patterns
// and returns the inferred feature tags, deduplicated in first-seen order.
// Nil or empty input yields an empty set, never an error.
func InferFeatures(criteria []string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, criterion := range criteria {
		lower := strings.ToLower(criterion)
		for _, p := range featurePatterns {
			if seen[p.tag] {
				continue
			}
			for _, kw := range p.keywords {
				if strings.Contains(lower, kw) {
					seen[p.tag] = true
					tags = append(tags, p.tag)
					break
				}
			}
		}
	}
	return tags
}
