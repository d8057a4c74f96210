// Package instructions resolves reviewer IDs to instruction documents.
// The built-in personas are embedded in the binary; a configured override
// directory can replace or extend them without rebuilding.
package instructions

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed validators/*.md
var validatorsFS embed.FS

// NotFoundError reports a reviewer ID with no instruction document. An
// absent document is a configuration defect, not a transient condition:
// panel assembly must fail loudly rather than silently skip the member.
type NotFoundError struct {
	ReviewerID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("reviewer instructions not found: %s", e.ReviewerID)
}

// Store resolves reviewer IDs to instruction text.
type Store struct {
	overrideDir string
}

// New creates a Store. overrideDir may be empty; when set, documents there
// take precedence over the embedded ones.
func New(overrideDir string) *Store {
	return &Store{overrideDir: overrideDir}
}

// Load returns the instruction text for a reviewer ID, or a *NotFoundError
// if no document exists for it.
func (s *Store) Load(reviewerID string) (string, error) {
	if reviewerID == "" || strings.ContainsAny(reviewerID, `/\`) {
		return "", &NotFoundError{ReviewerID: reviewerID}
	}

	if s.overrideDir != "" {
		path := filepath.Join(s.overrideDir, reviewerID+".md")
		if data, err := os.ReadFile(path); err == nil {
			return string(data), nil
		}
	}

	data, err := validatorsFS.ReadFile("validators/" + reviewerID + ".md")
	if err != nil {
		return "", &NotFoundError{ReviewerID: reviewerID}
	}
	return string(data), nil
}

// List returns every reviewer ID that has an instruction document,
// including override-dir additions, sorted.
func (s *Store) List() ([]string, error) {
	seen := make(map[string]bool)

	entries, err := validatorsFS.ReadDir("validators")
	if err != nil {
		return nil, fmt.Errorf("read embedded validators: %w", err)
	}
	for _, entry := range entries {
		if id, ok := reviewerIDFromFile(entry.Name()); ok {
			seen[id] = true
		}
	}

	if s.overrideDir != "" {
		overrides, err := os.ReadDir(s.overrideDir)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read validators dir %s: %w", s.overrideDir, err)
		}
		for _, entry := range overrides {
			if entry.IsDir() {
				continue
			}
			if id, ok := reviewerIDFromFile(entry.Name()); ok {
				seen[id] = true
			}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Source reports where a reviewer's instructions come from: "override",
// "embedded", or "" when absent.
func (s *Store) Source(reviewerID string) string {
	if s.overrideDir != "" {
		if _, err := os.Stat(filepath.Join(s.overrideDir, reviewerID+".md")); err == nil {
			return "override"
		}
	}
	if _, err := validatorsFS.ReadFile("validators/" + reviewerID + ".md"); err == nil {
		return "embedded"
	}
	return ""
}

func reviewerIDFromFile(name string) (string, bool) {
	id, ok := strings.CutSuffix(name, ".md")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
