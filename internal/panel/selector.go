package panel

import (
	"context"
	"fmt"

	"github.com/NachoColl/agilevibecoding-sub003/internal/models"
)

// Cache persists panel selections keyed by work-item ID. GetPanel returns
// nil (not an error) on a miss.
type Cache interface {
	GetPanel(ctx context.Context, workItemID string) ([]string, error)
	PutPanel(ctx context.Context, workItemID string, reviewerIDs []string) error
}

// SemanticSelector picks domain specialists for a free-text domain
// description, choosing only from the given candidate roster.
type SemanticSelector interface {
	SelectPanel(ctx context.Context, kind models.WorkItemKind, domain string, candidates []string) ([]string, error)
}

// Selector assembles the reviewer panel for a work item. Known domains and
// features resolve through the rule table alone; an unrecognized domain
// engages the semantic fallback at most once per work item, with the
// resulting panel cached for identical replay.
type Selector struct {
	table    *Table
	cache    Cache
	semantic SemanticSelector
}

// NewSelector creates a Selector over the given table and collaborators.
func NewSelector(table *Table, cache Cache, semantic SemanticSelector) *Selector {
	return &Selector{table: table, cache: cache, semantic: semantic}
}

// ForEpic returns the panel for an epic: the universal epic set, the
// domain set when the domain is known, and the set for each declared
// feature, deduplicated in first-seen order.
func (s *Selector) ForEpic(ctx context.Context, epic *models.WorkItem) ([]string, error) {
	return s.epicPanel(ctx, epic, false)
}

// ReselectEpic bypasses any cached panel for the epic and overwrites it
// with a fresh selection. This is the only path that replaces an existing
// cache entry.
func (s *Selector) ReselectEpic(ctx context.Context, epic *models.WorkItem) ([]string, error) {
	return s.epicPanel(ctx, epic, true)
}

// ForStory returns the panel for a story. Stories never declare their own
// domain or features: they inherit both from the owning epic, and add
// reviewer sets for features inferred from their acceptance criteria.
func (s *Selector) ForStory(ctx context.Context, story, epic *models.WorkItem) ([]string, error) {
	return s.storyPanel(ctx, story, epic, false)
}

// ReselectStory bypasses any cached panel for the story and overwrites it.
func (s *Selector) ReselectStory(ctx context.Context, story, epic *models.WorkItem) ([]string, error) {
	return s.storyPanel(ctx, story, epic, true)
}

func (s *Selector) epicPanel(ctx context.Context, epic *models.WorkItem, fresh bool) ([]string, error) {
	rules := s.table.ForKind(models.KindEpic)
	set := newOrderedSet()
	set.add(rules.Universal...)
	if reviewers, ok := rules.Domains[epic.Domain]; ok {
		set.add(reviewers...)
	}
	for _, feature := range epic.Features {
		set.add(rules.Features[feature]...)
	}
	return s.resolve(ctx, epic.ID, models.KindEpic, epic.Domain, set, fresh)
}

func (s *Selector) storyPanel(ctx context.Context, story, epic *models.WorkItem, fresh bool) ([]string, error) {
	rules := s.table.ForKind(models.KindStory)
	set := newOrderedSet()
	set.add(rules.Universal...)

	var domain string
	if epic != nil {
		domain = epic.Domain
		if reviewers, ok := rules.Domains[domain]; ok {
			set.add(reviewers...)
		}
		for _, feature := range epic.Features {
			set.add(rules.Features[feature]...)
		}
	}
	for _, feature := range InferFeatures(story.AcceptanceCriteria) {
		set.add(rules.Features[feature]...)
	}
	return s.resolve(ctx, story.ID, models.KindStory, domain, set, fresh)
}

// resolve finishes a selection. Known or absent domains return the rule
// panel directly. An unrecognized domain reads through the cache, and on a
// miss asks the semantic selector for specialists, unions them with the
// rule panel, and writes the full panel back so a later run reproduces it
// without a second semantic call.
func (s *Selector) resolve(ctx context.Context, workItemID string, kind models.WorkItemKind, domain string, set *orderedSet, fresh bool) ([]string, error) {
	if domain == "" || s.table.KnowsDomain(kind, domain) {
		return set.list(), nil
	}

	if !fresh {
		cached, err := s.cache.GetPanel(ctx, workItemID)
		if err != nil {
			return nil, fmt.Errorf("read panel cache for %s: %w", workItemID, err)
		}
		if cached != nil {
			return cached, nil
		}
	}

	if s.semantic == nil {
		return nil, fmt.Errorf("domain %q has no reviewer mapping and no LLM client is configured for semantic selection", domain)
	}

	specialists, err := s.semantic.SelectPanel(ctx, kind, domain, s.table.AllReviewers(kind))
	if err != nil {
		return nil, fmt.Errorf("semantic panel selection for %s: %w", workItemID, err)
	}
	set.add(s.filterToRoster(kind, specialists)...)

	chosen := set.list()
	if err := s.cache.PutPanel(ctx, workItemID, chosen); err != nil {
		return nil, fmt.Errorf("cache panel for %s: %w", workItemID, err)
	}
	return chosen, nil
}

// filterToRoster drops reviewer IDs the rule table does not know. The
// semantic selector chooses from the candidate roster; anything else it
// invents is discarded.
func (s *Selector) filterToRoster(kind models.WorkItemKind, ids []string) []string {
	known := make(map[string]bool)
	for _, id := range s.table.AllReviewers(kind) {
		known[id] = true
	}
	var valid []string
	for _, id := range ids {
		if known[id] {
			valid = append(valid, id)
		}
	}
	return valid
}
