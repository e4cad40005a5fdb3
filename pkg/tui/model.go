package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/ormasoftchile/webgrade/pkg/browser"
	"github.com/ormasoftchile/webgrade/pkg/runner"
	"github.com/ormasoftchile/webgrade/pkg/suite"
	"github.com/ormasoftchile/webgrade/pkg/trace"
)

// CheckState tracks one check in the list.
type CheckState struct {
	ID       string
	Name     string
	Kind     string
	Route    string
	Status   string // pending, running, passed, partial, failed
	Earned   float64
	Possible float64
	Duration time.Duration
	Details  string
	Notes    []string // navigation retries, login walls, idle timeouts
}

// Model is the Bubble Tea model of a live grading run.
type Model struct {
	title    string
	checks   []CheckState
	index    map[string]int
	selected int
	spinner  spinner.Model
	status   string // idle, running, completed, failed
	result   *runner.Result
	err      error
	width    int
	height   int
	cancel   context.CancelFunc
}

// NewModel lists every check of s as pending. cancel, if set, stops the run
// when the user quits.
func NewModel(s *suite.Suite, cancel context.CancelFunc) Model {
	checks := make([]CheckState, 0, len(s.Checks))
	index := make(map[string]int, len(s.Checks))
	for i, p := range s.Checks {
		id := trace.CheckID(i)
		index[id] = i
		checks = append(checks, CheckState{
			ID:       id,
			Name:     p.Name,
			Kind:     string(p.Kind),
			Route:    p.Route,
			Status:   "pending",
			Possible: p.Points.Best,
		})
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	title := fmt.Sprintf("Assignment %d", s.Assignment)
	if s.Title != "" {
		title += ": " + s.Title
	}
	return Model{
		title:   title,
		checks:  checks,
		index:   index,
		spinner: sp,
		status:  "idle",
		cancel:  cancel,
	}
}

// --- Messages ---

// traceEventMsg delivers a trace event to the TUI.
type traceEventMsg struct {
	Event trace.Event
}

// runCompleteMsg signals run completion.
type runCompleteMsg struct {
	Result *runner.Result
	Err    error
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.selected > 0 {
				m.selected--
			}
		case key.Matches(msg, keys.Down):
			if m.selected < len(m.checks)-1 {
				m.selected++
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case traceEventMsg:
		m.applyTraceEvent(msg.Event)

	case runCompleteMsg:
		m.result = msg.Result
		m.err = msg.Err
		m.status = "completed"
		if msg.Err != nil {
			m.status = "failed"
		}
	}
	return m, nil
}

// applyTraceEvent updates check states based on trace events.
func (m *Model) applyTraceEvent(evt trace.Event) {
	id, _ := evt.Data["check_id"].(string)
	i, ok := m.index[id]
	if !ok {
		return
	}
	c := &m.checks[i]

	switch evt.Type {
	case trace.EventCheckStart:
		c.Status = "running"
		m.status = "running"
		m.selected = i
	case trace.EventCheckComplete:
		c.Status, _ = evt.Data["status"].(string)
		c.Earned = number(evt.Data["earned"])
		c.Possible = number(evt.Data["possible"])
		c.Details, _ = evt.Data["details"].(string)
		if d, ok := evt.Data["duration"].(string); ok {
			c.Duration, _ = time.ParseDuration(d)
		}
	case trace.EventNavigationRetry:
		c.Notes = append(c.Notes, fmt.Sprintf("retry %v: %v", evt.Data["attempt"], evt.Data["error"]))
	case trace.EventLoginWall:
		c.Notes = append(c.Notes, fmt.Sprintf("login wall at %v, session primed", evt.Data["url"]))
	case trace.EventIdleTimeout:
		c.Notes = append(c.Notes, "page never went idle, continued")
	}
}

// number reads a float from trace data, which holds float64 in-process and
// after a JSON round trip.
func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("  webgrade: " + m.title))
	b.WriteString("\n\n")

	for i, c := range m.checks {
		icon := m.icon(c.Status)
		line := fmt.Sprintf("%s %s [%s]", icon, c.Name, c.Kind)
		if c.Status != "pending" && c.Status != "running" {
			line += fmt.Sprintf("  %g/%g", c.Earned, c.Possible)
		}
		if c.Duration > 0 {
			line += "  " + dimStyle.Render(c.Duration.Truncate(time.Millisecond).String())
		}
		if i == m.selected {
			b.WriteString(selectedStyle.Render("▸ ") + line)
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch m.status {
	case "idle":
		b.WriteString(dimStyle.Render("  Starting browser..."))
	case "running":
		b.WriteString(m.spinner.View() + dimStyle.Render(" Grading..."))
	case "completed", "failed":
		b.WriteString(m.summaryLine())
	}

	if m.selected < len(m.checks) {
		c := m.checks[m.selected]
		if c.Details != "" || len(c.Notes) > 0 {
			body := c.Route
			if c.Details != "" {
				body += "\n" + c.Details
			}
			for _, n := range c.Notes {
				body += "\n" + dimStyle.Render(n)
			}
			b.WriteString("\n\n")
			b.WriteString(detailStyle.Render(body))
		}
	}

	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render(keys.help()))
	return b.String()
}

func (m Model) summaryLine() string {
	if m.result == nil {
		msg := "run did not finish"
		if m.err != nil {
			msg = m.err.Error()
		}
		return failedStyle.Bold(true).Render("  ✗ " + msg)
	}
	s := m.result.Summary
	line := fmt.Sprintf("  Score %g/%g (%.2f%%), %d passed, %d not passed",
		s.TotalEarned, s.TotalPossible, s.Percentage, s.PassedCount, s.FailedCount)
	if m.err != nil {
		return failedStyle.Bold(true).Render(line + "  ✗ " + m.err.Error())
	}
	return passedStyle.Bold(true).Render(line)
}

func (m Model) icon(status string) string {
	switch status {
	case "pending":
		return dimStyle.Render(GlyphPending)
	case "running":
		return m.spinner.View()
	case "passed":
		return passedStyle.Render(GlyphPassed)
	case "partial":
		return partialStyle.Render(GlyphPartial)
	case "failed":
		return failedStyle.Render(GlyphFailed)
	}
	return "?"
}

// Result returns the finished run, if any.
func (m Model) Result() (*runner.Result, error) { return m.result, m.err }

// --- Runner integration ---

// Run grades s while the TUI follows along. Quitting early cancels the run;
// the remaining checks are still recorded, as zero-credit errors.
func Run(ctx context.Context, s *suite.Suite, page browser.Page, nav *browser.Navigator, opts runner.Options) (*runner.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if opts.Trace == nil {
		opts.Trace = trace.NewWriter(nil, uuid.NewString())
	}
	p := tea.NewProgram(NewModel(s, cancel), tea.WithAltScreen())
	opts.Trace.Subscribe(func(e trace.Event) { p.Send(traceEventMsg{Event: e}) })

	done := make(chan runCompleteMsg, 1)
	go func() {
		res, err := runner.Run(ctx, s, page, nav, opts)
		msg := runCompleteMsg{Result: res, Err: err}
		done <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("terminal UI: %w", err)
	}
	msg := <-done
	return msg.Result, msg.Err
}
