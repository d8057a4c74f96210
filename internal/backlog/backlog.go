// Package backlog parses YAML backlog documents into work items and
// imports them into the store.
package backlog

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/NachoColl/agilevibecoding-sub003/internal/models"
	"github.com/NachoColl/agilevibecoding-sub003/internal/store"
)

// Story is a story entry nested under its epic.
type Story struct {
	ID                 string   `yaml:"id"`
	Title              string   `yaml:"title"`
	Description        string   `yaml:"description"`
	AcceptanceCriteria []string `yaml:"acceptance_criteria"`
}

// Epic is a top-level backlog entry with its stories. Stories carry no
// domain or features of their own; they inherit the epic's.
type Epic struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Domain      string   `yaml:"domain"`
	Features    []string `yaml:"features"`
	Stories     []Story  `yaml:"stories"`
}

// Backlog is a parsed backlog document.
type Backlog struct {
	Epics []Epic `yaml:"epics"`
}

// Parse unmarshals and validates a YAML backlog document.
func Parse(data []byte) (*Backlog, error) {
	var b Backlog
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse backlog: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks document integrity: ids and titles present, ids unique
// across the document, and every story id extending its epic's id so the
// hierarchy is readable from the key alone.
func (b *Backlog) Validate() error {
	if len(b.Epics) == 0 {
		return fmt.Errorf("backlog has no epics")
	}

	seen := make(map[string]bool)
	for i, epic := range b.Epics {
		if epic.ID == "" {
			return fmt.Errorf("epic %d: missing id", i)
		}
		if epic.Title == "" {
			return fmt.Errorf("epic %s: missing title", epic.ID)
		}
		if seen[epic.ID] {
			return fmt.Errorf("duplicate work item id: %s", epic.ID)
		}
		seen[epic.ID] = true

		for j, story := range epic.Stories {
			if story.ID == "" {
				return fmt.Errorf("epic %s: story %d: missing id", epic.ID, j)
			}
			if story.Title == "" {
				return fmt.Errorf("story %s: missing title", story.ID)
			}
			if story.ID == epic.ID || !strings.HasPrefix(story.ID, epic.ID) {
				return fmt.Errorf("story %s: id does not extend epic id %s", story.ID, epic.ID)
			}
			if seen[story.ID] {
				return fmt.Errorf("duplicate work item id: %s", story.ID)
			}
			seen[story.ID] = true
		}
	}
	return nil
}

// WorkItems flattens the document into work items in declaration order,
// each epic followed by its stories.
func (b *Backlog) WorkItems() []*models.WorkItem {
	var items []*models.WorkItem
	for _, epic := range b.Epics {
		items = append(items, &models.WorkItem{
			ID:          epic.ID,
			Kind:        models.KindEpic,
			Title:       epic.Title,
			Description: epic.Description,
			Domain:      epic.Domain,
			Features:    epic.Features,
		})
		for _, story := range epic.Stories {
			items = append(items, &models.WorkItem{
				ID:                 story.ID,
				Kind:               models.KindStory,
				ParentID:           epic.ID,
				Title:              story.Title,
				Description:        story.Description,
				AcceptanceCriteria: story.AcceptanceCriteria,
			})
		}
	}
	return items
}

// Import upserts every work item of the document into the store. Existing
// items keep their id and kind; the backlog fields are overwritten. Panel
// caches and validation stamps survive a re-import because UpdateWorkItem
// never touches them.
func Import(ctx context.Context, st store.Store, b *Backlog) (created, updated int, err error) {
	for _, item := range b.WorkItems() {
		existing, getErr := st.GetWorkItem(ctx, item.ID)
		if getErr != nil {
			if err := st.CreateWorkItem(ctx, item); err != nil {
				return created, updated, fmt.Errorf("create %s: %w", item.ID, err)
			}
			created++
			continue
		}

		existing.Kind = item.Kind
		existing.ParentID = item.ParentID
		existing.Title = item.Title
		existing.Description = item.Description
		existing.Domain = item.Domain
		existing.Features = item.Features
		existing.AcceptanceCriteria = item.AcceptanceCriteria
		if err := st.UpdateWorkItem(ctx, existing); err != nil {
			return created, updated, fmt.Errorf("update %s: %w", item.ID, err)
		}
		updated++
	}
	return created, updated, nil
}
