package models

import "time"

// WorkItemKind distinguishes the two planning levels.
type WorkItemKind string

const (
	KindEpic  WorkItemKind = "epic"
	KindStory WorkItemKind = "story"
)

// Valid reports whether k is a known work item kind.
func (k WorkItemKind) Valid() bool {
	return k == KindEpic || k == KindStory
}

// WorkItem represents a backlog planning unit: an Epic or one of its Stories.
// IDs are hierarchical and hyphenated, e.g. "EPIC-001" and "EPIC-001-S01".
type WorkItem struct {
	ID                 string
	Kind               WorkItemKind
	ParentID           string // owning Epic, stories only
	Title              string
	Description        string
	Domain             string   // business domain; epics only, stories inherit
	Features           []string // declared feature tags; epics only
	AcceptanceCriteria []string // stories only
	SelectedValidators []string // cached reviewer panel from a prior selection
	LastValidated      *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
