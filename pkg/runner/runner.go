// Package runner executes a check suite against one live page and collects
// one result per check, in suite order.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ormasoftchile/webgrade/pkg/browser"
	"github.com/ormasoftchile/webgrade/pkg/score"
	"github.com/ormasoftchile/webgrade/pkg/suite"
	"github.com/ormasoftchile/webgrade/pkg/templates"
	"github.com/ormasoftchile/webgrade/pkg/trace"
)

// ErrShortfall is returned by strict runs in which a check earned less than
// full credit. The result is still complete.
var ErrShortfall = errors.New("strict mode: checks below full credit")

// ErrDone is returned by Step once every check has run.
var ErrDone = errors.New("all checks have run")

// Default budgets.
const (
	DefaultCheckTimeout = 90 * time.Second
	DefaultRunTimeout   = 30 * time.Minute
)

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Options is the run policy.
type Options struct {
	// Strict fails the run when any check earns less than full credit.
	// Lenient runs accept partial credit.
	Strict       bool
	CheckTimeout time.Duration
	RunTimeout   time.Duration
	Trace        *trace.Writer
	Logger       *slog.Logger
}

// Result is a finished run.
type Result struct {
	RunID      string              `json:"runId"`
	Assignment int                 `json:"assignment"`
	Title      string              `json:"title,omitempty"`
	BaseURL    string              `json:"baseUrl"`
	Strict     bool                `json:"strict"`
	Status     string              `json:"status"`
	StartedAt  time.Time           `json:"startedAt"`
	FinishedAt time.Time           `json:"finishedAt"`
	Results    []score.CheckResult `json:"results"`
	Summary    score.Report        `json:"summary"`
	Shortfalls []score.CheckResult `json:"shortfalls,omitempty"`
}

// Duration is the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Session is a run in progress. Checks execute one at a time through Step,
// which lets a debugger interleave inspection between them.
type Session struct {
	ID string

	suite     *suite.Suite
	checks    []templates.Check
	env       templates.Env
	opts      Options
	collector *score.Collector
	trace     *trace.Writer
	log       *slog.Logger
	next      int
	started   time.Time
}

// NewSession builds every check of s. A plan that cannot be built aborts the
// run before anything is navigated.
func NewSession(s *suite.Suite, page browser.Page, nav *browser.Navigator, opts Options) (*Session, error) {
	checks, err := templates.BuildAll(s.Checks)
	if err != nil {
		return nil, fmt.Errorf("build suite: %w", err)
	}
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = DefaultCheckTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	id := uuid.NewString()
	tw := opts.Trace
	if tw == nil {
		tw = trace.NewWriter(nil, id)
	} else if tw.RunID() != "" {
		id = tw.RunID()
	}
	log := opts.Logger.With("run_id", id, "assignment", s.Assignment)

	sess := &Session{
		ID:        id,
		suite:     s,
		checks:    checks,
		opts:      opts,
		collector: score.NewCollector(),
		trace:     tw,
		log:       log,
		started:   time.Now(),
	}
	sess.env = templates.Env{Page: page, Nav: nav, Log: log}
	if nav != nil {
		nav.OnEvent = sess.onNavEvent
	}

	tw.EmitRunStart(s.Assignment, s.Title, baseURL(nav), len(checks), opts.Strict)
	log.Info("run started", "checks", len(checks), "strict", opts.Strict)
	return sess, nil
}

func baseURL(nav *browser.Navigator) string {
	if nav == nil {
		return ""
	}
	return nav.Config().BaseURL
}

var navEventTypes = map[string]trace.EventType{
	"retry":        trace.EventNavigationRetry,
	"login_wall":   trace.EventLoginWall,
	"idle_timeout": trace.EventIdleTimeout,
}

func (s *Session) onNavEvent(ev browser.NavEvent) {
	kind, ok := navEventTypes[ev.Kind]
	if !ok {
		return
	}
	s.trace.EmitNavigation(s.next, kind, ev.URL, ev.Attempt, ev.Err)
}

// Done reports whether every check has run.
func (s *Session) Done() bool { return s.next >= len(s.checks) }

// Position returns the index of the next check.
func (s *Session) Position() int { return s.next }

// Plans returns the suite's plans in order.
func (s *Session) Plans() []templates.Plan { return s.suite.Checks }

// Results returns the results recorded so far.
func (s *Session) Results() []score.CheckResult { return s.collector.Results() }

// Summary reduces the results recorded so far.
func (s *Session) Summary() score.Report { return s.collector.Summarize() }

// Step runs the next check and records its result. The check gets its own
// timeout budget below ctx.
func (s *Session) Step(ctx context.Context) (score.CheckResult, error) {
	if s.Done() {
		return score.CheckResult{}, ErrDone
	}
	i := s.next
	c := s.checks[i]

	s.trace.EmitCheckStart(i, c.Name(), string(c.Plan.Kind), c.Plan.Route)
	start := time.Now()

	cctx, cancel := context.WithTimeout(ctx, s.opts.CheckTimeout)
	res := c.Run(cctx, s.env)
	cancel()

	elapsed := time.Since(start)
	s.collector.Record(res)
	s.next++

	s.trace.EmitCheckComplete(i, res, elapsed)
	s.log.Info("check complete",
		"check", trace.CheckID(i),
		"kind", c.Plan.Kind,
		"earned", res.Points.Earned,
		"possible", res.Points.Possible,
		"duration", elapsed)
	if !res.Passed {
		s.log.Debug("check shortfall", "check", trace.CheckID(i), "details", res.Details)
	}
	return res, nil
}

// Finish runs any remaining checks and produces the result. In strict mode a
// shortfall yields ErrShortfall alongside the complete result.
func (s *Session) Finish(ctx context.Context) (*Result, error) {
	for !s.Done() {
		if _, err := s.Step(ctx); err != nil {
			return nil, err
		}
	}

	res := &Result{
		RunID:      s.ID,
		Assignment: s.suite.Assignment,
		Title:      s.suite.Title,
		BaseURL:    baseURL(s.env.Nav),
		Strict:     s.opts.Strict,
		Status:     StatusCompleted,
		StartedAt:  s.started,
		FinishedAt: time.Now(),
		Results:    s.collector.Results(),
		Summary:    s.collector.Summarize(),
		Shortfalls: s.collector.Shortfalls(),
	}

	var err error
	if s.opts.Strict && len(res.Shortfalls) > 0 {
		res.Status = StatusFailed
		err = fmt.Errorf("%w: %d of %d", ErrShortfall, len(res.Shortfalls), len(res.Results))
	}

	s.trace.EmitRunComplete(res.Summary, res.Status, len(res.Shortfalls), res.Duration())
	s.log.Info("run complete",
		"status", res.Status,
		"earned", res.Summary.TotalEarned,
		"possible", res.Summary.TotalPossible,
		"percentage", res.Summary.Percentage)
	return res, err
}

// Run executes every check of s in order. Cancellation or the run timeout
// does not skip checks: the remaining ones record zero-credit errors so the
// result always covers the whole suite.
func Run(ctx context.Context, s *suite.Suite, page browser.Page, nav *browser.Navigator, opts Options) (*Result, error) {
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, opts.RunTimeout)
	defer cancel()

	sess, err := NewSession(s, page, nav, opts)
	if err != nil {
		return nil, err
	}
	return sess.Finish(ctx)
}
