package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/webgrade/pkg/runner"
	"github.com/ormasoftchile/webgrade/pkg/score"
)

func result(id string, assignment int, earned float64, started time.Time) *runner.Result {
	results := []score.CheckResult{score.NewResult("a", earned, 4, "d")}
	return &runner.Result{
		RunID:      id,
		Assignment: assignment,
		BaseURL:    "http://student.test",
		Status:     runner.StatusCompleted,
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Results:    results,
		Summary:    score.Summarize(results),
	}
}

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	in := result("r1", 3, 2, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	require.NoError(t, s.Put(ctx, in))
	out, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, in.Results, out.Results)
	assert.Equal(t, 50.0, out.Summary.Percentage)

	_, err = s.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutReplaces(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Put(ctx, result("r1", 3, 1, started)))
	require.NoError(t, s.Put(ctx, result("r1", 3, 4, started)))

	list, err := s.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 4.0, list[0].Earned)
}

func TestList(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Put(ctx, result("old", 3, 1, t0)))
	require.NoError(t, s.Put(ctx, result("new", 3, 2, t0.Add(time.Hour))))
	require.NoError(t, s.Put(ctx, result("other", 4, 4, t0.Add(2*time.Hour))))

	all, err := s.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "other", all[0].ID)
	assert.True(t, all[2].StartedAt.Equal(t0))

	a3, err := s.List(ctx, 3, 0)
	require.NoError(t, err)
	require.Len(t, a3, 2)
	assert.Equal(t, "new", a3[0].ID)

	limited, err := s.List(ctx, 0, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), result("r1", 1, 4, time.Now())))
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Get(context.Background(), "r1")
	assert.NoError(t, err)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, ":memory:", DSN(":memory:"))
	assert.Equal(t, "file:x.db?mode=ro", DSN("file:x.db?mode=ro"))
	assert.Contains(t, DSN("runs.db"), "file:runs.db?")
}
