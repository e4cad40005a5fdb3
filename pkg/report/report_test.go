package report

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/webgrade/pkg/runner"
	"github.com/ormasoftchile/webgrade/pkg/score"
)

func sample() *runner.Result {
	results := []score.CheckResult{
		score.NewResult("Password field", 3, 3, `input[type="password"] found`),
		score.NewResult("Course grid | cards", 2, 5, "2 grid items\nfound"),
		score.NewResult("Labs link to GitHub", 0, 2, "Link to github not found"),
	}
	c := score.NewCollector()
	for _, r := range results {
		c.Record(r)
	}
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &runner.Result{
		RunID:      "run-1",
		Assignment: 3,
		Title:      "Kanbas",
		BaseURL:    "http://student.test",
		Strict:     true,
		Status:     runner.StatusFailed,
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Results:    c.Results(),
		Summary:    c.Summarize(),
		Shortfalls: c.Shortfalls(),
	}
}

func TestMarkdown(t *testing.T) {
	out := Markdown(sample())

	assert.Contains(t, out, "# Assignment 3: Kanbas")
	assert.Contains(t, out, "**Score: 5 / 10 (50.00%)**, 1 passed, 2 not passed, strict run failed")
	assert.Contains(t, out, `| 2 | Course grid \| cards | 2 / 5 | partial | 2 grid items found |`)
	assert.Contains(t, out, "| 3 | Labs link to GitHub | 0 / 2 | fail |")
	assert.Contains(t, out, "## Shortfalls")

	first := strings.Index(out, "Password field")
	last := strings.Index(out, "Labs link to GitHub")
	assert.Less(t, first, last, "rows follow run order")
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, sample()))
	out := buf.String()

	assert.Contains(t, out, "<title>Assignment 3 report</title>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>Labs link to GitHub</td>")
	assert.Contains(t, out, "input[type=&quot;password&quot;] found")
}

func TestJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	res := sample()
	require.NoError(t, WriteJSON(&buf, res))
	assert.Contains(t, buf.String(), `"totalPossible": 10`)

	back, err := ReadJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, res.Summary, back.Summary)
	assert.Equal(t, res.Results, back.Results)
	assert.True(t, res.StartedAt.Equal(back.StartedAt))
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	paths, err := Save(dir, sample())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "assignment-3-run-1.json"), paths.JSON)
	assert.FileExists(t, paths.HTML)

	back, err := LoadFile(paths.JSON)
	require.NoError(t, err)
	assert.Equal(t, "run-1", back.RunID)
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary(sample())
	assert.Contains(t, out, "Assignment 3")
	assert.Contains(t, out, "5 / 10  (50.00%)")
	assert.Contains(t, out, "1 passed")
	assert.Contains(t, out, "Strict")
	assert.Contains(t, out, "1.5s")
}

func TestRenderTable(t *testing.T) {
	res := sample()
	res.Results = append(res.Results, score.NewResult("見出しは赤い文字で表示される必要があります", 1, 1, "ok"))
	out := RenderTable(res.Results, 60)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[1], GlyphPassed)
	assert.Contains(t, lines[2], GlyphPartial)
	assert.Contains(t, lines[3], GlyphFailed)
	assert.Contains(t, lines[2], "2 grid items")
	assert.Contains(t, lines[4], "…", "wide criterion is truncated")
}

func TestRenderMarkdownFallsBackGracefully(t *testing.T) {
	out := RenderMarkdown(sample(), 80)
	assert.Contains(t, out, "Labs link to GitHub")
}
