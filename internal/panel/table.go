// Package panel assembles reviewer panels for work items. A static rule
// table maps known domains and feature tags to reviewer sets; unknown
// domains fall back to a semantic selector whose choice is cached per work
// item for reproducible reruns.
package panel

import (
	"sort"

	"github.com/NachoColl/agilevibecoding-sub003/internal/models"
)

// KindRules holds the reviewer mappings for one work item kind. Universal
// reviewers apply to every item of the kind; Domains and Features map
// rule-table keys to additional reviewer sets.
type KindRules struct {
	Universal []string
	Domains   map[string][]string
	Features  map[string][]string
}

// Table is the rule table mapping domains and feature tags to reviewer
// sets. It is built once at startup and optionally extended by an overlay
// file; selection never mutates it.
type Table struct {
	Epic  KindRules
	Story KindRules
}

// DefaultTable returns the built-in rule table.
func DefaultTable() *Table {
	return &Table{
		Epic: KindRules{
			Universal: []string{
				"reviewer-epic-product-owner",
				"reviewer-epic-solution-architect",
				"reviewer-epic-agile-coach",
			},
			Domains: map[string][]string{
				"user-management": {
					"reviewer-epic-security-specialist",
					"reviewer-epic-data-architect",
				},
				"e-commerce": {
					"reviewer-epic-payments-specialist",
					"reviewer-epic-security-specialist",
				},
				"analytics": {
					"reviewer-epic-data-architect",
					"reviewer-epic-performance-engineer",
				},
				"content-management": {
					"reviewer-epic-ux-designer",
					"reviewer-epic-data-architect",
				},
				"integration": {
					"reviewer-epic-api-strategist",
					"reviewer-epic-security-specialist",
				},
			},
			Features: map[string][]string{
				"authentication":    {"reviewer-epic-security-specialist"},
				"crud-operations":   {"reviewer-epic-data-architect"},
				"search":            {"reviewer-epic-performance-engineer"},
				"real-time":         {"reviewer-epic-performance-engineer", "reviewer-epic-api-strategist"},
				"responsive-design": {"reviewer-epic-ux-designer"},
				"file-upload":       {"reviewer-epic-security-specialist", "reviewer-epic-data-architect"},
				"notifications":     {"reviewer-epic-api-strategist"},
				"payments":          {"reviewer-epic-payments-specialist", "reviewer-epic-security-specialist"},
			},
		},
		Story: KindRules{
			Universal: []string{
				"reviewer-story-product-owner",
				"reviewer-story-qa-engineer",
				"reviewer-story-tech-lead",
			},
			Domains: map[string][]string{
				"user-management": {
					"reviewer-story-security-engineer",
					"reviewer-story-database-engineer",
				},
				"e-commerce": {
					"reviewer-story-payments-engineer",
					"reviewer-story-security-engineer",
				},
				"analytics": {
					"reviewer-story-database-engineer",
					"reviewer-story-performance-engineer",
				},
				"content-management": {
					"reviewer-story-ux-reviewer",
					"reviewer-story-database-engineer",
				},
				"integration": {
					"reviewer-story-api-designer",
					"reviewer-story-security-engineer",
				},
			},
			Features: map[string][]string{
				"authentication":    {"reviewer-story-security-engineer"},
				"crud-operations":   {"reviewer-story-database-engineer"},
				"search":            {"reviewer-story-performance-engineer"},
				"real-time":         {"reviewer-story-performance-engineer", "reviewer-story-api-designer"},
				"responsive-design": {"reviewer-story-ux-reviewer", "reviewer-story-accessibility-reviewer"},
				"file-upload":       {"reviewer-story-security-engineer", "reviewer-story-devops-engineer"},
				"notifications":     {"reviewer-story-api-designer"},
				"payments":          {"reviewer-story-payments-engineer", "reviewer-story-security-engineer"},
			},
		},
	}
}

// ForKind returns the rules for the given kind. Unknown kinds fall back to
// story rules; callers validate kind before selection.
func (t *Table) ForKind(kind models.WorkItemKind) KindRules {
	if kind == models.KindEpic {
		return t.Epic
	}
	return t.Story
}

// KnowsDomain reports whether domain is a rule-table key for the kind.
func (t *Table) KnowsDomain(kind models.WorkItemKind, domain string) bool {
	_, ok := t.ForKind(kind).Domains[domain]
	return ok
}

// AllReviewers returns every reviewer the table knows for the kind,
// deduplicated. Universal reviewers come first, then domain and feature
// sets in sorted key order so the result is stable across runs. This is
// the candidate roster handed to the semantic selector.
func (t *Table) AllReviewers(kind models.WorkItemKind) []string {
	rules := t.ForKind(kind)
	set := newOrderedSet()
	set.add(rules.Universal...)

	for _, key := range sortedKeys(rules.Domains) {
		set.add(rules.Domains[key]...)
	}
	for _, key := range sortedKeys(rules.Features) {
		set.add(rules.Features[key]...)
	}
	return set.list()
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// orderedSet accumulates strings deduplicated in first-seen order.
type orderedSet struct {
	seen  map[string]bool
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]bool)}
}

func (o *orderedSet) add(items ...string) {
	for _, item := range items {
		if item == "" || o.seen[item] {
			continue
		}
		o.seen[item] = true
		o.items = append(o.items, item)
	}
}

func (o *orderedSet) list() []string {
	return o.items
}
