package instructions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbedded(t *testing.T) {
	s := New("")

	text, err := s.Load("reviewer-epic-product-owner")
	require.NoError(t, err)
	assert.Contains(t, text, "# Epic Reviewer: Product Owner")
	assert.Contains(t, text, "Focus on:")
}

func TestLoadNotFound(t *testing.T) {
	s := New("")

	for _, id := range []string{"reviewer-epic-astrologer", "", "../etc/passwd", `..\secrets`} {
		_, err := s.Load(id)
		require.Error(t, err)
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, id, nf.ReviewerID)
	}
}

func TestLoadOverrideTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	custom := "# Epic Reviewer: Product Owner\n\nHouse rules apply.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reviewer-epic-product-owner.md"), []byte(custom), 0644))

	s := New(dir)

	text, err := s.Load("reviewer-epic-product-owner")
	require.NoError(t, err)
	assert.Equal(t, custom, text)

	// IDs absent from the override dir still resolve to the embedded set.
	text, err = s.Load("reviewer-story-qa-engineer")
	require.NoError(t, err)
	assert.Contains(t, text, "QA Engineer")
}

func TestLoadOverrideAddsNewReviewer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reviewer-epic-compliance-officer.md"), []byte("# Epic Reviewer: Compliance Officer\n"), 0644))

	s := New(dir)

	text, err := s.Load("reviewer-epic-compliance-officer")
	require.NoError(t, err)
	assert.Contains(t, text, "Compliance Officer")
}

func TestListEmbedded(t *testing.T) {
	s := New("")

	ids, err := s.List()
	require.NoError(t, err)
	assert.Len(t, ids, 20)
	assert.Contains(t, ids, "reviewer-epic-solution-architect")
	assert.Contains(t, ids, "reviewer-story-devops-engineer")
	assert.IsIncreasing(t, ids)
}

func TestListMergesOverrides(t *testing.T) {
	dir := t.TempDir()
	// One override of an existing reviewer, one new reviewer, one non-md file.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reviewer-epic-product-owner.md"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reviewer-story-localization-reviewer.md"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("x"), 0644))

	s := New(dir)

	ids, err := s.List()
	require.NoError(t, err)
	assert.Len(t, ids, 21)
	assert.Contains(t, ids, "reviewer-story-localization-reviewer")
	assert.NotContains(t, ids, "README")
}

func TestListMissingOverrideDir(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope"))

	ids, err := s.List()
	require.NoError(t, err)
	assert.Len(t, ids, 20)
}

func TestSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reviewer-epic-product-owner.md"), []byte("x"), 0644))

	s := New(dir)

	assert.Equal(t, "override", s.Source("reviewer-epic-product-owner"))
	assert.Equal(t, "embedded", s.Source("reviewer-story-tech-lead"))
	assert.Equal(t, "", s.Source("reviewer-epic-astrologer"))
}
