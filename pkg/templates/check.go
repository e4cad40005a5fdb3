package templates

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ormasoftchile/webgrade/pkg/browser"
	"github.com/ormasoftchile/webgrade/pkg/rubric"
	"github.com/ormasoftchile/webgrade/pkg/score"
)

// Tier is the credit level an assertion reached.
type Tier int

const (
	TierZero Tier = iota
	TierAlmost
	TierBetter
	// TierPartial is the highest declared partial tier.
	TierPartial
	TierBest
)

func (t Tier) String() string {
	switch t {
	case TierBest:
		return "best"
	case TierPartial:
		return "partial"
	case TierBetter:
		return "better"
	case TierAlmost:
		return "almost"
	}
	return "zero"
}

// Earned maps a tier onto declared points. An undeclared better tier falls
// to almost, an undeclared almost tier to zero.
func Earned(p rubric.Points, t Tier) float64 {
	switch t {
	case TierBest:
		return p.Best
	case TierPartial:
		return p.Partial()
	case TierBetter:
		if p.Better != nil {
			return *p.Better
		}
		return p.Lower()
	case TierAlmost:
		return p.Lower()
	}
	return p.Zero
}

// Env is what a check runs against.
type Env struct {
	Page browser.Page
	Nav  *browser.Navigator
	Log  *slog.Logger
}

func (e Env) idleTimeout() time.Duration {
	if e.Nav != nil {
		return e.Nav.Config().IdleTimeout
	}
	return browser.DefaultIdleTimeout
}

// outcome is an assertion's verdict.
type outcome struct {
	tier    Tier
	details string
}

type assertFunc func(ctx context.Context, env Env) (outcome, error)

// Check is an executable, plan-bound check.
type Check struct {
	Plan   Plan
	assert assertFunc
}

// Name is the criterion text the check reports under.
func (c Check) Name() string { return c.Plan.Name }

// Build binds p to its template. Errors mean the plan itself is unusable: an
// unknown kind or an invalid predicate.
func Build(p Plan) (Check, error) {
	build, ok := catalog[p.Kind]
	if !ok {
		return Check{}, fmt.Errorf("check %q: unknown template kind %q", p.Name, p.Kind)
	}
	fn, err := build(p.Params)
	if err != nil {
		return Check{}, fmt.Errorf("check %q: %w", p.Name, err)
	}
	return Check{Plan: p, assert: fn}, nil
}

// BuildAll builds every plan, stopping at the first unusable one.
func BuildAll(plans []Plan) ([]Check, error) {
	checks := make([]Check, 0, len(plans))
	for _, p := range plans {
		c, err := Build(p)
		if err != nil {
			return nil, err
		}
		checks = append(checks, c)
	}
	return checks, nil
}

// Run navigates to the plan's route, evaluates the template and always
// returns exactly one result with possible == best. Errors and panics earn
// the zero tier with "Error: " details. Dialogs opened during the check are
// accepted and noted in the details.
func (c Check) Run(ctx context.Context, env Env) (res score.CheckResult) {
	points := c.Plan.Points
	fail := func(msg string) score.CheckResult {
		return score.NewResult(c.Plan.Name, points.Zero, points.Best, "Error: "+msg)
	}

	var mu sync.Mutex
	var dialogs []string
	env.Page.OnDialog(func(d browser.Dialog) bool {
		mu.Lock()
		defer mu.Unlock()
		dialogs = append(dialogs, fmt.Sprintf("%s %q", d.Type, d.Message))
		return true
	})
	defer env.Page.OnDialog(browser.AcceptAll)

	defer func() {
		if r := recover(); r != nil {
			res = fail(fmt.Sprintf("panic: %v", r))
		}
	}()

	if env.Nav != nil {
		if err := env.Nav.Goto(ctx, env.Page, c.Plan.Route); err != nil {
			return fail(err.Error())
		}
	}
	out, err := c.assert(ctx, env)
	if err != nil {
		return fail(err.Error())
	}

	details := out.details
	mu.Lock()
	if len(dialogs) > 0 {
		details += "; dialogs: " + strings.Join(dialogs, ", ")
	}
	mu.Unlock()
	return score.NewResult(c.Plan.Name, Earned(points, out.tier), points.Best, details)
}
