// Package validation orchestrates the full review flow for one work item:
// panel selection, parallel reviewer dispatch, aggregation into a single
// verdict, and persistence.
package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/NachoColl/agilevibecoding-sub003/internal/models"
	"github.com/NachoColl/agilevibecoding-sub003/internal/store"
	"github.com/NachoColl/agilevibecoding-sub003/internal/verdict"
)

// ConfigurationError marks a defect that prevents the panel from being
// assembled at all, such as a reviewer with no instruction document. It is
// the one fatal class: the run aborts before any reviewer call goes out.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Generator produces one reviewer's structured review of a work item.
// Implemented by llm.Client.
type Generator interface {
	ReviewWorkItem(ctx context.Context, instructions string, item *models.WorkItem) (*models.ReviewResult, error)
}

// Selector assembles the reviewer panel for a work item.
type Selector interface {
	ForEpic(ctx context.Context, epic *models.WorkItem) ([]string, error)
	ReselectEpic(ctx context.Context, epic *models.WorkItem) ([]string, error)
	ForStory(ctx context.Context, story, epic *models.WorkItem) ([]string, error)
	ReselectStory(ctx context.Context, story, epic *models.WorkItem) ([]string, error)
}

// InstructionSource resolves reviewer IDs to instruction documents.
type InstructionSource interface {
	Load(reviewerID string) (string, error)
}

// Options adjusts a single validation run.
type Options struct {
	// Reselect bypasses the cached panel and overwrites it with a fresh
	// selection. This is the only way an existing cache entry is replaced.
	Reselect bool
}

// Result is the outcome of one completed validation run.
type Result struct {
	Item    *models.WorkItem
	Panel   []string
	Verdict *models.AggregatedVerdict
	Run     *models.ValidationRun
}

// Engine orchestrates validation runs.
type Engine struct {
	store        store.Store
	selector     Selector
	generator    Generator
	instructions InstructionSource
}

// NewEngine creates a validation engine with the given collaborators.
func NewEngine(s store.Store, sel Selector, gen Generator, instr InstructionSource) *Engine {
	return &Engine{store: s, selector: sel, generator: gen, instructions: instr}
}

// Validate runs the full review flow for a work item and returns the
// persisted verdict. A story's panel is derived from its owning epic, so
// the epic is loaded alongside.
func (e *Engine) Validate(ctx context.Context, itemID string, opts Options) (*Result, error) {
	if e.generator == nil {
		return nil, &ConfigurationError{Err: errors.New("no review client configured (set ANTHROPIC_API_KEY or anthropic.api_key)")}
	}

	// 1. Load the work item (and the owning epic for stories)
	item, epic, err := e.loadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	// 2. Select the panel
	panel, err := e.selectPanel(ctx, item, epic, opts.Reselect)
	if err != nil {
		return nil, err
	}

	// 3. Preflight: every member's instructions must resolve before any
	// reviewer call is dispatched.
	docs, err := e.loadInstructions(panel)
	if err != nil {
		return nil, err
	}

	// 4. Fan out one call per member and wait for all of them to settle
	started := time.Now()
	results, outcomes, failures := e.dispatch(ctx, item, panel, docs)

	run := &models.ValidationRun{
		WorkItemID: item.ID,
		PanelSize:  len(panel),
		Succeeded:  len(results),
		Failed:     len(panel) - len(results),
		Reviewers:  outcomes,
		Duration:   time.Since(started),
	}

	// 5. With zero surviving reviews there is no verdict to build. The
	// telemetry record still lands.
	if len(results) == 0 {
		e.recordRun(ctx, run)
		return nil, fmt.Errorf("all %d reviewers failed: %w", len(panel), errors.Join(failures...))
	}

	// 6. Aggregate. Failed members are excluded from averaging but stay
	// visible as errored summary rows.
	agg := verdict.Aggregate(results)
	for _, outcome := range outcomes {
		if !outcome.OK {
			agg.PerReviewerSummary = append(agg.PerReviewerSummary, models.ReviewerSummary{
				ReviewerID: outcome.ReviewerID,
				Status:     models.StatusErrored,
			})
		}
	}

	// 7. Verdict and work-item stamp land in one transaction
	if err := e.store.SaveVerdict(ctx, item.ID, panel, agg); err != nil {
		return nil, err
	}
	item.SelectedValidators = panel
	item.LastValidated = &agg.ValidatedAt

	// 8. Telemetry must never fail a run that produced a verdict
	e.recordRun(ctx, run)

	return &Result{Item: item, Panel: panel, Verdict: agg, Run: run}, nil
}

// PreviewPanel loads a work item and returns the panel a validation run
// would use, without dispatching any reviewer. A reselect preview still
// overwrites the cached panel, exactly as the real run would.
func (e *Engine) PreviewPanel(ctx context.Context, itemID string, reselect bool) (*models.WorkItem, []string, error) {
	item, epic, err := e.loadItem(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	panel, err := e.selectPanel(ctx, item, epic, reselect)
	if err != nil {
		return nil, nil, err
	}
	return item, panel, nil
}

// LoadFeedback returns the last stored verdict for a work item.
func (e *Engine) LoadFeedback(ctx context.Context, itemID string) (*models.AggregatedVerdict, error) {
	return e.store.GetVerdict(ctx, itemID)
}

// loadItem fetches the work item and, for stories, the owning epic.
func (e *Engine) loadItem(ctx context.Context, itemID string) (*models.WorkItem, *models.WorkItem, error) {
	item, err := e.store.GetWorkItem(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}

	var epic *models.WorkItem
	if item.Kind == models.KindStory && item.ParentID != "" {
		epic, err = e.store.GetWorkItem(ctx, item.ParentID)
		if err != nil {
			return nil, nil, fmt.Errorf("load parent epic: %w", err)
		}
	}
	return item, epic, nil
}

func (e *Engine) selectPanel(ctx context.Context, item, epic *models.WorkItem, reselect bool) ([]string, error) {
	switch {
	case item.Kind == models.KindEpic && reselect:
		return e.selector.ReselectEpic(ctx, item)
	case item.Kind == models.KindEpic:
		return e.selector.ForEpic(ctx, item)
	case reselect:
		return e.selector.ReselectStory(ctx, item, epic)
	default:
		return e.selector.ForStory(ctx, item, epic)
	}
}

// loadInstructions resolves every panel member's instruction document up
// front. Any member that cannot be resolved makes the whole panel invalid.
func (e *Engine) loadInstructions(panel []string) (map[string]string, error) {
	docs := make(map[string]string, len(panel))
	for _, reviewerID := range panel {
		text, err := e.instructions.Load(reviewerID)
		if err != nil {
			return nil, &ConfigurationError{Err: err}
		}
		docs[reviewerID] = text
	}
	return docs, nil
}

// dispatch runs every panel member concurrently and waits for all of them.
// Each goroutine owns one slot, so results and outcomes keep panel order
// no matter which call finishes first.
func (e *Engine) dispatch(ctx context.Context, item *models.WorkItem, panel []string, docs map[string]string) ([]*models.ReviewResult, []models.ReviewerOutcome, []error) {
	slots := make([]*models.ReviewResult, len(panel))
	errs := make([]error, len(panel))

	var wg sync.WaitGroup
	for i, reviewerID := range panel {
		wg.Add(1)
		go func(i int, reviewerID string) {
			defer wg.Done()
			result, err := e.generator.ReviewWorkItem(ctx, docs[reviewerID], item)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", reviewerID, err)
				return
			}
			// Attribution belongs to the dispatcher; whatever the model
			// claimed about its own identity is overwritten.
			result.ReviewerID = reviewerID
			slots[i] = result
		}(i, reviewerID)
	}
	wg.Wait()

	results := make([]*models.ReviewResult, 0, len(panel))
	outcomes := make([]models.ReviewerOutcome, 0, len(panel))
	var failures []error
	for i, reviewerID := range panel {
		if errs[i] != nil {
			outcomes = append(outcomes, models.ReviewerOutcome{ReviewerID: reviewerID, Error: errs[i].Error()})
			failures = append(failures, errs[i])
			continue
		}
		results = append(results, slots[i])
		outcomes = append(outcomes, models.ReviewerOutcome{ReviewerID: reviewerID, OK: true})
	}
	return results, outcomes, failures
}

func (e *Engine) recordRun(ctx context.Context, run *models.ValidationRun) {
	if err := e.store.InsertValidationRun(ctx, run); err != nil {
		slog.Warn("failed to record validation run", "workItem", run.WorkItemID, "error", err)
	}
}
