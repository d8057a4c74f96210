package store

import (
	"context"

	"github.com/NachoColl/agilevibecoding-sub003/internal/models"
)

// WorkItemFilter specifies filters for listing work items.
type WorkItemFilter struct {
	Kind     models.WorkItemKind
	ParentID string
	Domain   string
}

// Store defines the persistence interface for avc.
type Store interface {
	// Work items. UpdateWorkItem leaves selected_validators and
	// last_validated untouched; those columns are written only by
	// SaveVerdict so a backlog re-import cannot erase validation state.
	CreateWorkItem(ctx context.Context, item *models.WorkItem) error
	GetWorkItem(ctx context.Context, id string) (*models.WorkItem, error)
	ListWorkItems(ctx context.Context, filter WorkItemFilter) ([]*models.WorkItem, error)
	UpdateWorkItem(ctx context.Context, item *models.WorkItem) error
	DeleteWorkItem(ctx context.Context, id string) error
	ListChildren(ctx context.Context, parentID string) ([]*models.WorkItem, error)

	// Panel cache. GetPanel returns (nil, nil) on a miss; PutPanel
	// overwrites, callers decide when overwriting is legal.
	GetPanel(ctx context.Context, workItemID string) ([]string, error)
	PutPanel(ctx context.Context, workItemID string, reviewers []string) error

	// Feedback. SaveVerdict stores the verdict and stamps the work item's
	// selected_validators and last_validated in a single transaction.
	// Saving again for the same work item replaces the previous verdict.
	SaveVerdict(ctx context.Context, workItemID string, panel []string, verdict *models.AggregatedVerdict) error
	GetVerdict(ctx context.Context, workItemID string) (*models.AggregatedVerdict, error)

	// Validation runs (telemetry)
	InsertValidationRun(ctx context.Context, run *models.ValidationRun) error
	ListValidationRuns(ctx context.Context, workItemID string, limit int) ([]*models.ValidationRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
