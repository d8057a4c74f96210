package validation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NachoColl/agilevibecoding-sub003/internal/instructions"
	"github.com/NachoColl/agilevibecoding-sub003/internal/llm"
	"github.com/NachoColl/agilevibecoding-sub003/internal/models"
	"github.com/NachoColl/agilevibecoding-sub003/internal/store"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeStore implements store.Store for testing.
type fakeStore struct {
	items map[string]*models.WorkItem

	savedVerdicts map[string]*models.AggregatedVerdict
	savedPanels   map[string][]string
	runs          []*models.ValidationRun

	// Optional error injection.
	saveVerdictErr error
	insertRunErr   error
}

func newFakeStore(items ...*models.WorkItem) *fakeStore {
	fs := &fakeStore{
		items:         make(map[string]*models.WorkItem),
		savedVerdicts: make(map[string]*models.AggregatedVerdict),
		savedPanels:   make(map[string][]string),
	}
	for _, item := range items {
		fs.items[item.ID] = item
	}
	return fs
}

func (f *fakeStore) CreateWorkItem(_ context.Context, item *models.WorkItem) error {
	f.items[item.ID] = item
	return nil
}
func (f *fakeStore) GetWorkItem(_ context.Context, id string) (*models.WorkItem, error) {
	if item, ok := f.items[id]; ok {
		return item, nil
	}
	return nil, fmt.Errorf("work item not found: %s", id)
}
func (f *fakeStore) ListWorkItems(_ context.Context, _ store.WorkItemFilter) ([]*models.WorkItem, error) {
	return nil, nil
}
func (f *fakeStore) UpdateWorkItem(_ context.Context, _ *models.WorkItem) error { return nil }
func (f *fakeStore) DeleteWorkItem(_ context.Context, _ string) error           { return nil }
func (f *fakeStore) ListChildren(_ context.Context, _ string) ([]*models.WorkItem, error) {
	return nil, nil
}
func (f *fakeStore) GetPanel(_ context.Context, _ string) ([]string, error) { return nil, nil }
func (f *fakeStore) PutPanel(_ context.Context, _ string, _ []string) error { return nil }
func (f *fakeStore) SaveVerdict(_ context.Context, workItemID string, panel []string, verdict *models.AggregatedVerdict) error {
	if f.saveVerdictErr != nil {
		return f.saveVerdictErr
	}
	f.savedVerdicts[workItemID] = verdict
	f.savedPanels[workItemID] = panel
	return nil
}
func (f *fakeStore) GetVerdict(_ context.Context, workItemID string) (*models.AggregatedVerdict, error) {
	if v, ok := f.savedVerdicts[workItemID]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("feedback not found: %s", workItemID)
}
func (f *fakeStore) InsertValidationRun(_ context.Context, run *models.ValidationRun) error {
	if f.insertRunErr != nil {
		return f.insertRunErr
	}
	f.runs = append(f.runs, run)
	return nil
}
func (f *fakeStore) ListValidationRuns(_ context.Context, _ string, _ int) ([]*models.ValidationRun, error) {
	return f.runs, nil
}
func (f *fakeStore) Migrate(_ context.Context) error { return nil }
func (f *fakeStore) Close() error                    { return nil }

// fakeSelector returns a fixed panel and records how it was asked.
type fakeSelector struct {
	panel []string
	err   error

	selects   int
	reselects int
	lastItem  *models.WorkItem
	lastEpic  *models.WorkItem
}

func (f *fakeSelector) ForEpic(_ context.Context, epic *models.WorkItem) ([]string, error) {
	f.selects++
	f.lastItem = epic
	return f.panel, f.err
}
func (f *fakeSelector) ReselectEpic(_ context.Context, epic *models.WorkItem) ([]string, error) {
	f.reselects++
	f.lastItem = epic
	return f.panel, f.err
}
func (f *fakeSelector) ForStory(_ context.Context, story, epic *models.WorkItem) ([]string, error) {
	f.selects++
	f.lastItem = story
	f.lastEpic = epic
	return f.panel, f.err
}
func (f *fakeSelector) ReselectStory(_ context.Context, story, epic *models.WorkItem) ([]string, error) {
	f.reselects++
	f.lastItem = story
	f.lastEpic = epic
	return f.panel, f.err
}

// fakeInstructions returns each reviewer's own ID as its instruction text,
// so the generator fake can key behavior per reviewer.
type fakeInstructions struct {
	missing string
}

func (f *fakeInstructions) Load(reviewerID string) (string, error) {
	if reviewerID != "" && reviewerID == f.missing {
		return "", &instructions.NotFoundError{ReviewerID: reviewerID}
	}
	return reviewerID, nil
}

// fakeGenerator serves canned results keyed by the instruction text it
// receives, which the fakeInstructions source sets to the reviewer ID.
type fakeGenerator struct {
	results map[string]*models.ReviewResult
	errs    map[string]error

	mu    sync.Mutex
	calls int
}

func (f *fakeGenerator) ReviewWorkItem(_ context.Context, instructions string, _ *models.WorkItem) (*models.ReviewResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if err, ok := f.errs[instructions]; ok {
		return nil, err
	}
	if result, ok := f.results[instructions]; ok {
		// Copy so the engine's attribution stamp cannot mutate the fixture.
		r := *result
		return &r, nil
	}
	return &models.ReviewResult{Status: models.StatusAcceptable, Score: 80}, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func epicFixture() *models.WorkItem {
	return &models.WorkItem{
		ID:     "EPIC-001",
		Kind:   models.KindEpic,
		Title:  "User Management",
		Domain: "user-management",
	}
}

var epicPanel = []string{
	"reviewer-epic-product-owner",
	"reviewer-epic-solution-architect",
	"reviewer-epic-agile-coach",
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestValidate_HappyPath(t *testing.T) {
	fs := newFakeStore(epicFixture())
	sel := &fakeSelector{panel: epicPanel}
	gen := &fakeGenerator{results: map[string]*models.ReviewResult{
		"reviewer-epic-product-owner":      {Status: models.StatusExcellent, Score: 95},
		"reviewer-epic-solution-architect": {Status: models.StatusAcceptable, Score: 82},
		"reviewer-epic-agile-coach":        {Status: models.StatusNeedsImprovement, Score: 60},
	}}
	engine := NewEngine(fs, sel, gen, &fakeInstructions{})

	result, err := engine.Validate(context.Background(), "EPIC-001", Options{})
	require.NoError(t, err)

	assert.Equal(t, 79, result.Verdict.AverageScore)
	assert.Equal(t, models.StatusNeedsImprovement, result.Verdict.OverallStatus)
	assert.Equal(t, epicPanel, result.Panel)
	assert.Equal(t, 3, gen.callCount())

	// Summary rows keep panel order
	require.Len(t, result.Verdict.PerReviewerSummary, 3)
	for i, row := range result.Verdict.PerReviewerSummary {
		assert.Equal(t, epicPanel[i], row.ReviewerID)
	}

	// Verdict and panel persisted for the item
	assert.Equal(t, result.Verdict, fs.savedVerdicts["EPIC-001"])
	assert.Equal(t, epicPanel, fs.savedPanels["EPIC-001"])

	// Work item stamped in memory to match the store
	assert.Equal(t, epicPanel, result.Item.SelectedValidators)
	require.NotNil(t, result.Item.LastValidated)
	assert.Equal(t, result.Verdict.ValidatedAt, *result.Item.LastValidated)

	// Telemetry recorded
	require.Len(t, fs.runs, 1)
	assert.Equal(t, 3, fs.runs[0].PanelSize)
	assert.Equal(t, 3, fs.runs[0].Succeeded)
	assert.Equal(t, 0, fs.runs[0].Failed)
	for _, outcome := range fs.runs[0].Reviewers {
		assert.True(t, outcome.OK)
		assert.Empty(t, outcome.Error)
	}
}

func TestValidate_FailedMemberShrinksDenominator(t *testing.T) {
	fs := newFakeStore(epicFixture())
	sel := &fakeSelector{panel: epicPanel}
	gen := &fakeGenerator{
		results: map[string]*models.ReviewResult{
			"reviewer-epic-product-owner": {Status: models.StatusExcellent, Score: 90},
			"reviewer-epic-agile-coach":   {Status: models.StatusAcceptable, Score: 70},
		},
		errs: map[string]error{
			"reviewer-epic-solution-architect": &llm.ProviderError{Err: errors.New("request timed out")},
		},
	}
	engine := NewEngine(fs, sel, gen, &fakeInstructions{})

	result, err := engine.Validate(context.Background(), "EPIC-001", Options{})
	require.NoError(t, err)

	// Mean of the two surviving scores, not three
	assert.Equal(t, 80, result.Verdict.AverageScore)
	assert.Equal(t, models.StatusAcceptable, result.Verdict.OverallStatus)

	// The failed member stays visible as an errored row after the scored ones
	require.Len(t, result.Verdict.PerReviewerSummary, 3)
	assert.Equal(t, "reviewer-epic-product-owner", result.Verdict.PerReviewerSummary[0].ReviewerID)
	assert.Equal(t, "reviewer-epic-agile-coach", result.Verdict.PerReviewerSummary[1].ReviewerID)

	errored := result.Verdict.PerReviewerSummary[2]
	assert.Equal(t, "reviewer-epic-solution-architect", errored.ReviewerID)
	assert.Equal(t, models.StatusErrored, errored.Status)
	assert.Equal(t, 0, errored.Score)
	assert.Equal(t, 0, errored.IssueCount)

	// Verdict still persisted
	assert.NotNil(t, fs.savedVerdicts["EPIC-001"])

	// Telemetry names the failure
	require.Len(t, fs.runs, 1)
	assert.Equal(t, 2, fs.runs[0].Succeeded)
	assert.Equal(t, 1, fs.runs[0].Failed)
	assert.False(t, fs.runs[0].Reviewers[1].OK)
	assert.Contains(t, fs.runs[0].Reviewers[1].Error, "provider")
}

func TestValidate_AllMembersFail(t *testing.T) {
	fs := newFakeStore(epicFixture())
	sel := &fakeSelector{panel: epicPanel[:2]}
	gen := &fakeGenerator{errs: map[string]error{
		"reviewer-epic-product-owner":      &llm.ProviderError{Err: errors.New("unreachable")},
		"reviewer-epic-solution-architect": &llm.ParseError{Raw: "oops", Err: errors.New("not json")},
	}}
	engine := NewEngine(fs, sel, gen, &fakeInstructions{})

	_, err := engine.Validate(context.Background(), "EPIC-001", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 reviewers failed")

	var provErr *llm.ProviderError
	assert.ErrorAs(t, err, &provErr)

	// No verdict, but the run is still recorded
	assert.Empty(t, fs.savedVerdicts)
	require.Len(t, fs.runs, 1)
	assert.Equal(t, 0, fs.runs[0].Succeeded)
	assert.Equal(t, 2, fs.runs[0].Failed)
}

func TestValidate_MissingInstructionsAbortBeforeDispatch(t *testing.T) {
	fs := newFakeStore(epicFixture())
	sel := &fakeSelector{panel: epicPanel}
	gen := &fakeGenerator{}
	engine := NewEngine(fs, sel, gen, &fakeInstructions{missing: "reviewer-epic-agile-coach"})

	_, err := engine.Validate(context.Background(), "EPIC-001", Options{})
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)

	var nf *instructions.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "reviewer-epic-agile-coach", nf.ReviewerID)

	// Nothing was dispatched or written
	assert.Equal(t, 0, gen.callCount())
	assert.Empty(t, fs.savedVerdicts)
	assert.Empty(t, fs.runs)
}

func TestValidate_NoGeneratorAbortsImmediately(t *testing.T) {
	fs := newFakeStore(epicFixture())
	engine := NewEngine(fs, &fakeSelector{panel: epicPanel}, nil, &fakeInstructions{})

	_, err := engine.Validate(context.Background(), "EPIC-001", Options{})
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "no review client configured")
	assert.Empty(t, fs.savedVerdicts)
	assert.Empty(t, fs.runs)
}

func TestValidate_SelectionErrorPropagates(t *testing.T) {
	fs := newFakeStore(epicFixture())
	sel := &fakeSelector{err: errors.New("semantic panel selection for EPIC-001: boom")}
	engine := NewEngine(fs, sel, &fakeGenerator{}, &fakeInstructions{})

	_, err := engine.Validate(context.Background(), "EPIC-001", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "semantic panel selection")
}

func TestValidate_UnknownItem(t *testing.T) {
	engine := NewEngine(newFakeStore(), &fakeSelector{}, &fakeGenerator{}, &fakeInstructions{})

	_, err := engine.Validate(context.Background(), "EPIC-404", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidate_ReselectBypassesCache(t *testing.T) {
	fs := newFakeStore(epicFixture())
	sel := &fakeSelector{panel: epicPanel}
	engine := NewEngine(fs, sel, &fakeGenerator{}, &fakeInstructions{})

	_, err := engine.Validate(context.Background(), "EPIC-001", Options{Reselect: true})
	require.NoError(t, err)

	assert.Equal(t, 1, sel.reselects)
	assert.Equal(t, 0, sel.selects)
}

func TestValidate_StoryLoadsOwningEpic(t *testing.T) {
	epic := epicFixture()
	story := &models.WorkItem{
		ID:       "EPIC-001-S01",
		Kind:     models.KindStory,
		ParentID: "EPIC-001",
		Title:    "Login",
	}
	fs := newFakeStore(epic, story)
	sel := &fakeSelector{panel: []string{"reviewer-story-product-owner"}}
	engine := NewEngine(fs, sel, &fakeGenerator{}, &fakeInstructions{})

	result, err := engine.Validate(context.Background(), "EPIC-001-S01", Options{})
	require.NoError(t, err)

	assert.Equal(t, "EPIC-001-S01", result.Item.ID)
	require.NotNil(t, sel.lastEpic)
	assert.Equal(t, "EPIC-001", sel.lastEpic.ID)
}

func TestValidate_StoryWithMissingParent(t *testing.T) {
	story := &models.WorkItem{
		ID:       "EPIC-009-S01",
		Kind:     models.KindStory,
		ParentID: "EPIC-009",
		Title:    "Orphan",
	}
	engine := NewEngine(newFakeStore(story), &fakeSelector{}, &fakeGenerator{}, &fakeInstructions{})

	_, err := engine.Validate(context.Background(), "EPIC-009-S01", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load parent epic")
}

func TestValidate_AttributionComesFromPanel(t *testing.T) {
	fs := newFakeStore(epicFixture())
	sel := &fakeSelector{panel: epicPanel[:1]}
	gen := &fakeGenerator{results: map[string]*models.ReviewResult{
		// The model claims a different identity; the dispatcher wins.
		"reviewer-epic-product-owner": {ReviewerID: "reviewer-epic-impostor", Status: models.StatusExcellent, Score: 92},
	}}
	engine := NewEngine(fs, sel, gen, &fakeInstructions{})

	result, err := engine.Validate(context.Background(), "EPIC-001", Options{})
	require.NoError(t, err)

	require.Len(t, result.Verdict.PerReviewerSummary, 1)
	assert.Equal(t, "reviewer-epic-product-owner", result.Verdict.PerReviewerSummary[0].ReviewerID)
}

func TestValidate_TelemetryFailureDoesNotFailRun(t *testing.T) {
	fs := newFakeStore(epicFixture())
	fs.insertRunErr = errors.New("disk full")
	sel := &fakeSelector{panel: epicPanel}
	engine := NewEngine(fs, sel, &fakeGenerator{}, &fakeInstructions{})

	result, err := engine.Validate(context.Background(), "EPIC-001", Options{})
	require.NoError(t, err)
	assert.NotNil(t, result.Verdict)
	assert.NotNil(t, fs.savedVerdicts["EPIC-001"])
}

func TestValidate_SaveVerdictFailurePropagates(t *testing.T) {
	fs := newFakeStore(epicFixture())
	fs.saveVerdictErr = errors.New("database is locked")
	sel := &fakeSelector{panel: epicPanel}
	engine := NewEngine(fs, sel, &fakeGenerator{}, &fakeInstructions{})

	_, err := engine.Validate(context.Background(), "EPIC-001", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestPreviewPanel(t *testing.T) {
	fs := newFakeStore(epicFixture())
	sel := &fakeSelector{panel: epicPanel}
	gen := &fakeGenerator{}
	engine := NewEngine(fs, sel, gen, &fakeInstructions{})

	item, panel, err := engine.PreviewPanel(context.Background(), "EPIC-001", false)
	require.NoError(t, err)

	assert.Equal(t, "EPIC-001", item.ID)
	assert.Equal(t, epicPanel, panel)

	// Preview never dispatches or persists
	assert.Equal(t, 0, gen.callCount())
	assert.Empty(t, fs.savedVerdicts)
	assert.Empty(t, fs.runs)
}

func TestPreviewPanel_Reselect(t *testing.T) {
	fs := newFakeStore(epicFixture())
	sel := &fakeSelector{panel: epicPanel}
	engine := NewEngine(fs, sel, &fakeGenerator{}, &fakeInstructions{})

	_, _, err := engine.PreviewPanel(context.Background(), "EPIC-001", true)
	require.NoError(t, err)
	assert.Equal(t, 1, sel.reselects)
}

func TestLoadFeedback(t *testing.T) {
	fs := newFakeStore(epicFixture())
	sel := &fakeSelector{panel: epicPanel}
	engine := NewEngine(fs, sel, &fakeGenerator{}, &fakeInstructions{})

	_, err := engine.LoadFeedback(context.Background(), "EPIC-001")
	require.Error(t, err)

	result, err := engine.Validate(context.Background(), "EPIC-001", Options{})
	require.NoError(t, err)

	verdict, err := engine.LoadFeedback(context.Background(), "EPIC-001")
	require.NoError(t, err)
	assert.Equal(t, result.Verdict, verdict)
}
