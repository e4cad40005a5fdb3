package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/webgrade/pkg/runner"
	"github.com/ormasoftchile/webgrade/pkg/score"
)

// Status glyphs.
const (
	GlyphPassed  = "✓"
	GlyphPartial = "◐"
	GlyphFailed  = "✗"
)

var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	passedStyle  = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	partialStyle = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	failedStyle  = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)

	summaryBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)
)

// Glyph returns the status glyph of a result.
func Glyph(r score.CheckResult) string {
	switch {
	case r.Passed:
		return GlyphPassed
	case r.Points.Earned > 0:
		return GlyphPartial
	}
	return GlyphFailed
}

func styled(r score.CheckResult, s string) string {
	switch {
	case r.Passed:
		return passedStyle.Render(s)
	case r.Points.Earned > 0:
		return partialStyle.Render(s)
	}
	return failedStyle.Render(s)
}

// RenderSummary is the boxed score line printed after a run.
func RenderSummary(res *runner.Result) string {
	s := res.Summary
	total := fmt.Sprintf("%g / %g  (%.2f%%)", s.TotalEarned, s.TotalPossible, s.Percentage)
	lines := []string{
		titleStyle.Render(fmt.Sprintf("Assignment %d", res.Assignment)) + dimStyle.Render("  "+res.RunID),
		"Score    " + scoreStyle(s).Render(total),
		fmt.Sprintf("Checks   %s  %s",
			passedStyle.Render(fmt.Sprintf("%d passed", s.PassedCount)),
			failedStyle.Render(fmt.Sprintf("%d not passed", s.FailedCount))),
	}
	if res.Strict {
		status := passedStyle.Render(res.Status)
		if res.Status == runner.StatusFailed {
			status = failedStyle.Render(res.Status)
		}
		lines = append(lines, "Strict   "+status)
	}
	if d := res.Duration(); d > 0 {
		lines = append(lines, dimStyle.Render("Duration "+d.Round(time.Millisecond).String()))
	}
	return summaryBox.Render(strings.Join(lines, "\n"))
}

func scoreStyle(s score.Report) lipgloss.Style {
	switch {
	case s.TotalPossible > 0 && s.TotalEarned == s.TotalPossible:
		return passedStyle
	case s.TotalEarned > 0:
		return partialStyle
	}
	return failedStyle
}

// RenderTable lays results out in aligned columns no wider than width.
// Criterion and details are truncated by display width, so wide runes keep
// the columns straight.
func RenderTable(results []score.CheckResult, width int) string {
	if width <= 0 {
		width = 100
	}
	const pointsWidth = 11

	nameWidth := runewidth.StringWidth("Criterion")
	for _, r := range results {
		nameWidth = max(nameWidth, runewidth.StringWidth(r.Criterion))
	}
	nameWidth = min(nameWidth, max(16, width/2))
	detailWidth := max(10, width-nameWidth-pointsWidth-6)

	var b strings.Builder
	header := fmt.Sprintf("  %s  %s  %s",
		runewidth.FillRight("Criterion", nameWidth),
		runewidth.FillRight("Points", pointsWidth),
		"Details")
	b.WriteString(dimStyle.Render(header))
	b.WriteString("\n")
	for _, r := range results {
		name := runewidth.FillRight(runewidth.Truncate(r.Criterion, nameWidth, "…"), nameWidth)
		points := runewidth.FillRight(fmt.Sprintf("%g/%g", r.Points.Earned, r.Points.Possible), pointsWidth)
		details := runewidth.Truncate(strings.ReplaceAll(r.Details, "\n", " "), detailWidth, "…")
		fmt.Fprintf(&b, "%s %s  %s  %s\n", styled(r, Glyph(r)), name, styled(r, points), details)
	}
	return b.String()
}

// RenderMarkdown renders the Markdown report for the terminal. It falls back
// to the plain Markdown when glamour cannot render.
func RenderMarkdown(res *runner.Result, width int) string {
	src := Markdown(res)
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return src
	}
	out, err := r.Render(src)
	if err != nil {
		return src
	}
	return strings.TrimRight(out, "\n")
}
