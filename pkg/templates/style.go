package templates

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr/vm"

	"github.com/ormasoftchile/webgrade/pkg/extract"
	"github.com/ormasoftchile/webgrade/pkg/stylexpr"
)

type tierPredicate struct {
	tier    Tier
	source  string
	program *vm.Program
}

func compileTiers(p Params) ([]tierPredicate, error) {
	var preds []tierPredicate
	for _, t := range []struct {
		tier Tier
		src  string
	}{
		{TierBest, p.Tiers.Best},
		{TierBetter, p.Tiers.Better},
		{TierAlmost, p.Tiers.Almost},
	} {
		if strings.TrimSpace(t.src) == "" {
			continue
		}
		prog, err := stylexpr.Compile(t.src)
		if err != nil {
			return nil, fmt.Errorf("compile %s predicate %q: %w", t.tier, t.src, err)
		}
		preds = append(preds, tierPredicate{tier: t.tier, source: t.src, program: prog})
	}
	return preds, nil
}

// cssStyle locates the target element and reads its computed style. Without
// tier predicates the element's existence earns full credit; with them the
// first predicate that holds picks the tier.
func cssStyle(p Params) (assertFunc, error) {
	preds, err := compileTiers(p)
	if err != nil {
		return nil, err
	}
	sel := p.Selector
	if sel == "" {
		sel = extract.DefaultSelector
	}
	props := p.Properties
	if len(props) == 0 {
		props = []string{"color", "background-color"}
	}

	return func(ctx context.Context, env Env) (outcome, error) {
		n, err := env.Page.Count(ctx, sel)
		if err != nil {
			return outcome{}, err
		}
		style := map[string]string{}
		if n > 0 {
			if style, err = env.Page.ComputedStyle(ctx, sel, 0, props...); err != nil {
				return outcome{}, err
			}
		}
		summary := describeStyle(sel, n, style, p)

		if len(preds) == 0 {
			if n == 0 {
				return outcome{TierZero, fmt.Sprintf("No element matching %q found", sel)}, nil
			}
			return outcome{TierBest, summary}, nil
		}

		for _, pr := range preds {
			ok, err := stylexpr.Eval(pr.program, n, style)
			if err != nil {
				return outcome{}, fmt.Errorf("eval %s predicate %q: %w", pr.tier, pr.source, err)
			}
			if ok {
				return outcome{pr.tier, fmt.Sprintf("%s; %s tier: %s", summary, pr.tier, pr.source)}, nil
			}
		}
		return outcome{TierZero, summary + "; no tier predicate held"}, nil
	}, nil
}

func describeStyle(sel string, n int, style map[string]string, p Params) string {
	if n == 0 {
		return fmt.Sprintf("No element matching %q (count 0)", sel)
	}
	keys := make([]string, 0, len(style))
	for k := range style {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, style[k]))
	}
	s := fmt.Sprintf("%d element(s) matching %q; %s", n, sel, strings.Join(parts, ", "))
	if p.Foreground != "" {
		fg := colorMatch(style["color"], p.Foreground)
		bg := colorMatch(style["background-color"], p.Background)
		s += fmt.Sprintf("; expected %s on %s (foreground %s, background %s)", p.Foreground, p.Background, fg, bg)
	}
	return s
}

func colorMatch(value, name string) string {
	want, ok1 := extract.ParseColor(name)
	got, ok2 := extract.ParseColor(value)
	if ok1 && ok2 && got.Equal(want) {
		return "matches"
	}
	return "differs"
}
