package templates

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ormasoftchile/webgrade/pkg/browser"
	"github.com/ormasoftchile/webgrade/pkg/extract"
)

type builder func(Params) (assertFunc, error)

var catalog = map[Kind]builder{
	KindFormInput:     formInput,
	KindCheckboxRadio: checkboxRadio,
	KindSelect:        selectExists,
	KindNavigation:    navigation,
	KindLinkExists:    linkExists,
	KindCSSStyle:      cssStyle,
	KindGridLayout:    gridLayout,
	KindResponsive:    responsive,
	KindBootstrap:     bootstrap,
	KindGeneric:       generic,
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// squash lowercases s and drops separators so "first-name", "firstName"
// and "first_name" compare equal.
func squash(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "")
}

func fieldMatches(field string, values ...string) bool {
	if field == "" || field == extract.DefaultField {
		return true
	}
	f := squash(field)
	for _, v := range values {
		if v != "" && strings.Contains(squash(v), f) {
			return true
		}
	}
	return false
}

func attr(ctx context.Context, page browser.Page, sel string, i int, name string) (string, error) {
	v, _, err := page.Attribute(ctx, sel, i, name)
	return v, err
}

// formInput: full when an input has the extracted type (and, for plain text
// inputs, a matching field name); partial when only the field name matches.
func formInput(p Params) (assertFunc, error) {
	const sel = "input, textarea"
	return func(ctx context.Context, env Env) (outcome, error) {
		n, err := env.Page.Count(ctx, sel)
		if err != nil {
			return outcome{}, err
		}
		wrongType := ""
		for i := 0; i < n; i++ {
			typ, err := attr(ctx, env.Page, sel, i, "type")
			if err != nil {
				return outcome{}, err
			}
			if typ == "" {
				typ = "text"
			}
			typ = strings.ToLower(typ)
			var names []string
			for _, a := range []string{"name", "id", "placeholder", "aria-label", "autocomplete"} {
				v, err := attr(ctx, env.Page, sel, i, a)
				if err != nil {
					return outcome{}, err
				}
				names = append(names, v)
			}
			fieldOK := fieldMatches(p.Field, names...)
			typeOK := typ == p.InputType
			if typeOK && (fieldOK || p.InputType != "text") {
				return outcome{TierBest, fmt.Sprintf("Found %s input for %s", typ, p.Field)}, nil
			}
			if fieldOK && p.Field != extract.DefaultField && wrongType == "" {
				wrongType = typ
			}
		}
		if wrongType != "" {
			return outcome{TierPartial, fmt.Sprintf("Found %s input but type is %q, expected %q", p.Field, wrongType, p.InputType)}, nil
		}
		return outcome{TierZero, fmt.Sprintf("No %s input for %s found", p.InputType, p.Field)}, nil
	}, nil
}

func checkboxRadio(p Params) (assertFunc, error) {
	const sel = `input[type="checkbox"], input[type="radio"]`
	return func(ctx context.Context, env Env) (outcome, error) {
		n, err := env.Page.Count(ctx, sel)
		if err != nil {
			return outcome{}, err
		}
		for i := 0; i < n; i++ {
			v, err := attr(ctx, env.Page, sel, i, "value")
			if err != nil {
				return outcome{}, err
			}
			if fieldMatches(p.Field, v) {
				typ, _ := attr(ctx, env.Page, sel, i, "type")
				return outcome{TierBest, fmt.Sprintf("Found %s with value %q", typ, v)}, nil
			}
		}
		return outcome{TierZero, fmt.Sprintf("No checkbox or radio for %s found (%d candidates)", p.Field, n)}, nil
	}, nil
}

func selectExists(p Params) (assertFunc, error) {
	sel := p.Selector
	if sel == "" {
		sel = "select"
	}
	return func(ctx context.Context, env Env) (outcome, error) {
		n, err := env.Page.Count(ctx, sel)
		if err != nil {
			return outcome{}, err
		}
		if n == 0 {
			return outcome{TierZero, "No select element found"}, nil
		}
		return outcome{TierBest, fmt.Sprintf("Found %d select element(s)", n)}, nil
	}, nil
}

const clickableSelector = `button, a, [role="button"], input[type="submit"], input[type="button"]`

// navigation clicks the first control whose label matches and checks where
// the click lands. The default label matches any button.
func navigation(p Params) (assertFunc, error) {
	label := p.Label
	if label == "" {
		label = extract.DefaultButton
	}
	sel := clickableSelector
	var re *regexp.Regexp
	if label == extract.DefaultButton {
		sel = `button, input[type="submit"], [role="button"]`
	} else {
		var err error
		if re, err = regexp.Compile("(?i)" + label); err != nil {
			return nil, fmt.Errorf("label pattern %q: %w", label, err)
		}
	}
	return func(ctx context.Context, env Env) (outcome, error) {
		n, err := env.Page.Count(ctx, sel)
		if err != nil {
			return outcome{}, err
		}
		idx := -1
		text := ""
		for i := 0; i < n && idx < 0; i++ {
			t, err := env.Page.Text(ctx, sel, i)
			if err != nil {
				return outcome{}, err
			}
			if re == nil || re.MatchString(t) {
				idx, text = i, t
			}
		}
		if idx < 0 {
			return outcome{TierZero, fmt.Sprintf("No element matching /%s/ found", label)}, nil
		}

		before := env.Page.URL()
		if err := env.Page.Click(ctx, sel, idx); err != nil {
			return outcome{}, fmt.Errorf("click %q: %w", text, err)
		}
		if err := env.Page.WaitIdle(ctx, env.idleTimeout()); err != nil && !errors.Is(err, browser.ErrTimeout) {
			return outcome{}, err
		}
		after := env.Page.URL()
		if strings.Contains(strings.ToLower(after), strings.ToLower(p.Target)) {
			return outcome{TierBest, fmt.Sprintf("Clicked %q and reached %s", text, after)}, nil
		}
		if after == before {
			return outcome{TierPartial, fmt.Sprintf("Clicked %q but stayed on %s, expected %s", text, after, p.Target)}, nil
		}
		return outcome{TierPartial, fmt.Sprintf("Clicked %q and reached %s, expected %s", text, after, p.Target)}, nil
	}, nil
}

func linkExists(p Params) (assertFunc, error) {
	const sel = "a[href]"
	return func(ctx context.Context, env Env) (outcome, error) {
		n, err := env.Page.Count(ctx, sel)
		if err != nil {
			return outcome{}, err
		}
		want := strings.ToLower(p.Target)
		for i := 0; i < n; i++ {
			href, err := attr(ctx, env.Page, sel, i, "href")
			if err != nil {
				return outcome{}, err
			}
			if strings.Contains(strings.ToLower(href), want) {
				return outcome{TierBest, fmt.Sprintf("Link to %s found: %s", orAny(p.Target), href)}, nil
			}
		}
		return outcome{TierZero, fmt.Sprintf("Link to %s not found (%d links checked)", orAny(p.Target), n)}, nil
	}, nil
}

func orAny(s string) string {
	if s == "" {
		return "any page"
	}
	return s
}

func countItems(ctx context.Context, page browser.Page, sel string) (int, error) {
	if sel == "" {
		sel = GridItemSelector
	}
	return page.Count(ctx, sel)
}

func gridLayout(p Params) (assertFunc, error) {
	minItems := p.MinItems
	if minItems <= 0 {
		minItems = gridMinItems
	}
	return func(ctx context.Context, env Env) (outcome, error) {
		n, err := countItems(ctx, env.Page, p.Selector)
		if err != nil {
			return outcome{}, err
		}
		switch {
		case n >= minItems:
			return outcome{TierBest, fmt.Sprintf("Found %d grid items", n)}, nil
		case n > 0:
			return outcome{TierPartial, fmt.Sprintf("Found %d grid items, expected at least %d", n, minItems)}, nil
		}
		return outcome{TierZero, "No grid items found"}, nil
	}, nil
}

// responsive resizes the viewport, checks the sidebar's visibility and
// restores the desktop viewport.
func responsive(p Params) (assertFunc, error) {
	width := p.ViewportWidth
	if width == 0 {
		width = WideWidth
	}
	expect := width > NarrowWidth
	if p.ExpectVisible != nil {
		expect = *p.ExpectVisible
	}
	sel := p.Selector
	if sel == "" {
		sel = SidebarSelector
	}
	return func(ctx context.Context, env Env) (outcome, error) {
		if err := env.Page.SetViewport(ctx, browser.Viewport{Width: width, Height: browser.DefaultViewport.Height}); err != nil {
			return outcome{}, err
		}
		defer env.Page.SetViewport(context.WithoutCancel(ctx), browser.DefaultViewport)

		n, err := env.Page.Count(ctx, sel)
		if err != nil {
			return outcome{}, err
		}
		if n == 0 {
			return outcome{TierZero, "Sidebar not found"}, nil
		}
		visible, err := env.Page.Visible(ctx, sel, 0)
		if err != nil {
			return outcome{}, err
		}
		state := map[bool]string{true: "visible", false: "hidden"}
		if visible == expect {
			return outcome{TierBest, fmt.Sprintf("Sidebar %s at %dpx as expected", state[visible], width)}, nil
		}
		return outcome{TierPartial, fmt.Sprintf("Sidebar %s at %dpx, expected %s", state[visible], width, state[expect])}, nil
	}, nil
}

func bootstrap(p Params) (assertFunc, error) {
	sel := p.Selector
	if sel == "" {
		sel = BootstrapSelector
	}
	return func(ctx context.Context, env Env) (outcome, error) {
		n, err := env.Page.Count(ctx, sel)
		if err != nil {
			return outcome{}, err
		}
		if n == 0 {
			return outcome{TierZero, "No Bootstrap classes found"}, nil
		}
		return outcome{TierBest, fmt.Sprintf("Found %d element(s) using Bootstrap classes", n)}, nil
	}, nil
}

func generic(p Params) (assertFunc, error) {
	sel := p.Selector
	if sel == "" {
		sel = "body"
	}
	return func(ctx context.Context, env Env) (outcome, error) {
		n, err := env.Page.Count(ctx, sel)
		if err != nil {
			return outcome{}, err
		}
		if n == 0 {
			return outcome{TierZero, "Page did not load: no " + sel + " element"}, nil
		}
		return outcome{TierBest, "Page loaded: " + env.Page.URL()}, nil
	}, nil
}
