package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/NachoColl/agilevibecoding-sub003/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool,
	// preventing "database is locked" errors when panel members finish
	// concurrently.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// jsonStrings marshals a string slice for a JSON column, never failing.
func jsonStrings(v []string) string {
	data, err := json.Marshal(v)
	if err != nil || v == nil {
		return "[]"
	}
	return string(data)
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Check if already applied
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Work Items ---

func (s *SQLiteStore) CreateWorkItem(ctx context.Context, item *models.WorkItem) error {
	// Work item IDs are backlog keys (EPIC-001, EPIC-001-S01), never generated.
	if item.ID == "" {
		return fmt.Errorf("work item id is required")
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO work_items (id, kind, parent_id, title, description, domain, features, acceptance_criteria, selected_validators, last_validated, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, string(item.Kind), item.ParentID, item.Title, item.Description, item.Domain,
		jsonStrings(item.Features), jsonStrings(item.AcceptanceCriteria), jsonStrings(item.SelectedValidators),
		item.LastValidated, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create work item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetWorkItem(ctx context.Context, id string) (*models.WorkItem, error) {
	item := &models.WorkItem{}
	var kind, features, criteria, validators string
	var lastValidated sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT id, kind, parent_id, title, description, domain, features, acceptance_criteria, selected_validators, last_validated, created_at, updated_at
		FROM work_items WHERE id = ?`, id,
	).Scan(&item.ID, &kind, &item.ParentID, &item.Title, &item.Description, &item.Domain,
		&features, &criteria, &validators, &lastValidated, &item.CreatedAt, &item.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("work item not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get work item: %w", err)
	}

	item.Kind = models.WorkItemKind(kind)
	_ = json.Unmarshal([]byte(features), &item.Features)
	_ = json.Unmarshal([]byte(criteria), &item.AcceptanceCriteria)
	_ = json.Unmarshal([]byte(validators), &item.SelectedValidators)
	if lastValidated.Valid {
		item.LastValidated = &lastValidated.Time
	}
	return item, nil
}

func (s *SQLiteStore) ListWorkItems(ctx context.Context, filter WorkItemFilter) ([]*models.WorkItem, error) {
	query := `SELECT id, kind, parent_id, title, description, domain, features, acceptance_criteria, selected_validators, last_validated, created_at, updated_at FROM work_items`
	var conditions []string
	var args []any

	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.ParentID != "" {
		conditions = append(conditions, "parent_id = ?")
		args = append(args, filter.ParentID)
	}
	if filter.Domain != "" {
		conditions = append(conditions, "domain = ?")
		args = append(args, filter.Domain)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	// Backlog keys sort stories directly under their epic.
	query += " ORDER BY id"

	return s.scanWorkItems(ctx, query, args...)
}

func (s *SQLiteStore) ListChildren(ctx context.Context, parentID string) ([]*models.WorkItem, error) {
	query := `SELECT id, kind, parent_id, title, description, domain, features, acceptance_criteria, selected_validators, last_validated, created_at, updated_at
		FROM work_items WHERE parent_id = ? ORDER BY id`
	return s.scanWorkItems(ctx, query, parentID)
}

// scanWorkItems is a shared helper for scanning work item rows.
func (s *SQLiteStore) scanWorkItems(ctx context.Context, query string, args ...any) ([]*models.WorkItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*models.WorkItem
	for rows.Next() {
		item := &models.WorkItem{}
		var kind, features, criteria, validators string
		var lastValidated sql.NullTime

		if err := rows.Scan(&item.ID, &kind, &item.ParentID, &item.Title, &item.Description, &item.Domain,
			&features, &criteria, &validators, &lastValidated, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan work item: %w", err)
		}

		item.Kind = models.WorkItemKind(kind)
		_ = json.Unmarshal([]byte(features), &item.Features)
		_ = json.Unmarshal([]byte(criteria), &item.AcceptanceCriteria)
		_ = json.Unmarshal([]byte(validators), &item.SelectedValidators)
		if lastValidated.Valid {
			item.LastValidated = &lastValidated.Time
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) UpdateWorkItem(ctx context.Context, item *models.WorkItem) error {
	item.UpdatedAt = time.Now().UTC()
	// selected_validators and last_validated are owned by SaveVerdict.
	result, err := s.db.ExecContext(ctx,
		`UPDATE work_items SET kind=?, parent_id=?, title=?, description=?, domain=?, features=?, acceptance_criteria=?, updated_at=?
		WHERE id=?`,
		string(item.Kind), item.ParentID, item.Title, item.Description, item.Domain,
		jsonStrings(item.Features), jsonStrings(item.AcceptanceCriteria), item.UpdatedAt, item.ID,
	)
	if err != nil {
		return fmt.Errorf("update work item: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("work item not found: %s", item.ID)
	}
	return nil
}

func (s *SQLiteStore) DeleteWorkItem(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM work_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete work item: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("work item not found: %s", id)
	}
	return nil
}

// --- Panel Cache ---

func (s *SQLiteStore) GetPanel(ctx context.Context, workItemID string) ([]string, error) {
	var reviewersJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT reviewers FROM panel_cache WHERE work_item_id = ?", workItemID,
	).Scan(&reviewersJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached panel: %w", err)
	}

	var reviewers []string
	if err := json.Unmarshal([]byte(reviewersJSON), &reviewers); err != nil {
		return nil, fmt.Errorf("parse cached panel: %w", err)
	}
	return reviewers, nil
}

func (s *SQLiteStore) PutPanel(ctx context.Context, workItemID string, reviewers []string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO panel_cache (work_item_id, reviewers, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(work_item_id) DO UPDATE SET reviewers=excluded.reviewers, updated_at=excluded.updated_at`,
		workItemID, jsonStrings(reviewers), now, now,
	)
	if err != nil {
		return fmt.Errorf("cache panel: %w", err)
	}
	return nil
}

// --- Feedback ---

func (s *SQLiteStore) SaveVerdict(ctx context.Context, workItemID string, panel []string, verdict *models.AggregatedVerdict) error {
	verdictJSON, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO feedback (work_item_id, verdict, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(work_item_id) DO UPDATE SET verdict=excluded.verdict, updated_at=excluded.updated_at`,
		workItemID, string(verdictJSON), now,
	); err != nil {
		return fmt.Errorf("save verdict: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE work_items SET selected_validators=?, last_validated=?, updated_at=? WHERE id=?`,
		jsonStrings(panel), verdict.ValidatedAt, now, workItemID,
	)
	if err != nil {
		return fmt.Errorf("stamp work item validation: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("work item not found: %s", workItemID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetVerdict(ctx context.Context, workItemID string) (*models.AggregatedVerdict, error) {
	var verdictJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT verdict FROM feedback WHERE work_item_id = ?", workItemID,
	).Scan(&verdictJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("feedback not found: %s", workItemID)
	}
	if err != nil {
		return nil, fmt.Errorf("get verdict: %w", err)
	}

	verdict := &models.AggregatedVerdict{}
	if err := json.Unmarshal([]byte(verdictJSON), verdict); err != nil {
		return nil, fmt.Errorf("parse stored verdict: %w", err)
	}
	return verdict, nil
}

// --- Validation Runs ---

func (s *SQLiteStore) InsertValidationRun(ctx context.Context, run *models.ValidationRun) error {
	if run.ID == "" {
		run.ID = newULID()
	}
	run.CreatedAt = time.Now().UTC()

	reviewersJSON, err := json.Marshal(run.Reviewers)
	if err != nil {
		reviewersJSON = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO validation_runs (id, work_item_id, panel_size, succeeded, failed, reviewers, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.WorkItemID, run.PanelSize, run.Succeeded, run.Failed,
		string(reviewersJSON), run.Duration.Milliseconds(), run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert validation run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListValidationRuns(ctx context.Context, workItemID string, limit int) ([]*models.ValidationRun, error) {
	query := `SELECT id, work_item_id, panel_size, succeeded, failed, reviewers, duration_ms, created_at
		FROM validation_runs`
	var args []any

	if workItemID != "" {
		query += " WHERE work_item_id = ?"
		args = append(args, workItemID)
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list validation runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*models.ValidationRun
	for rows.Next() {
		run := &models.ValidationRun{}
		var reviewersJSON string
		var durationMs int64

		if err := rows.Scan(&run.ID, &run.WorkItemID, &run.PanelSize, &run.Succeeded, &run.Failed,
			&reviewersJSON, &durationMs, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan validation run: %w", err)
		}

		_ = json.Unmarshal([]byte(reviewersJSON), &run.Reviewers)
		run.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
