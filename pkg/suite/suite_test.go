package suite

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/webgrade/pkg/rubric"
	"github.com/ormasoftchile/webgrade/pkg/templates"
)

func TestOpenRubricPreservesOrder(t *testing.T) {
	s, err := Open("testdata/a3.yaml")
	require.NoError(t, err)

	assert.Equal(t, 3, s.Assignment)
	assert.Equal(t, "testdata/a3.yaml", s.Source)
	require.Len(t, s.Checks, 5)

	kinds := make([]templates.Kind, len(s.Checks))
	for i, c := range s.Checks {
		kinds[i] = c.Kind
	}
	assert.Equal(t, []templates.Kind{
		templates.KindFormInput,
		templates.KindNavigation,
		templates.KindLinkExists,
		templates.KindCSSStyle,
		templates.KindCSSStyle,
	}, kinds)
	assert.Equal(t, "Sign in screen has a password field", s.Checks[0].Name)
	assert.Equal(t, 14.0, s.Possible())
}

func TestOpenMarkdown(t *testing.T) {
	s, err := Open("testdata/a3.md")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Checks)
}

func TestOpenInvalidRubric(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("assignmentNumber: 1\ncriteria:\n  - originalText: x\n    route: nope\n    testType: generic\n    detail: d\n    points: {best: 1, zero: 0}\n"), 0o644))

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid rubric")
	assert.Contains(t, err.Error(), "criteria[0].route")
}

func TestSaveAndLoadFile(t *testing.T) {
	s, err := Open("testdata/a3.yaml")
	require.NoError(t, err)

	dir := t.TempDir()
	path, err := Save(dir, s)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "3.suite.yaml"), path)

	loaded, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestLoadRejectsBadSuite(t *testing.T) {
	_, err := LoadFile("testdata/bad-kind.suite.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown kind "carousel"`)
	assert.Contains(t, err.Error(), "checks[1]: name is required")
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(bytes.NewBufferString("assignment: 1\nweight: 3\nchecks: []\n"))
	require.Error(t, err)
}

func TestLoadEmpty(t *testing.T) {
	_, err := Load(bytes.NewBufferString(""))
	assert.ErrorContains(t, err, "empty document")
}

func TestValidateTierAboveBest(t *testing.T) {
	s := &Suite{Checks: []templates.Plan{{
		Name:   "x",
		Route:  "/",
		Kind:   templates.KindGeneric,
		Points: rubric.Points{Best: 1, Almost: rubric.Float(2)},
	}}}
	assert.ErrorContains(t, s.Validate(), "exceeds best")
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, s := range []*Suite{
		{Assignment: 5, Title: "Five", Checks: []templates.Plan{}},
		{Assignment: 2, Title: "Two", Checks: []templates.Plan{{Name: "a", Route: "/", Kind: templates.KindGeneric, Points: rubric.Points{Best: 1}}}},
	} {
		_, err := Save(dir, s)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "7.suite.yaml"), []byte("not: [valid"), 0o644))

	entries, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, entries[0].Assignment)
	assert.Equal(t, 1, entries[0].Checks)
	assert.Equal(t, "Five", entries[1].Title)

	got, err := Find(dir, 5)
	require.NoError(t, err)
	assert.Equal(t, "Five", got.Title)

	_, err = Find(dir, 8)
	assert.Error(t, err)
}
