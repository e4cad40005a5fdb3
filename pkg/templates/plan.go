package templates

import (
	"slices"
	"strings"

	"github.com/ormasoftchile/webgrade/pkg/extract"
	"github.com/ormasoftchile/webgrade/pkg/rubric"
	"github.com/ormasoftchile/webgrade/pkg/stylexpr"
)

// Selectors shared by the layout templates.
const (
	GridItemSelector  = `[class*="grid-item"], [class*="-grid"] > *, [class*="grid-container"] > *, .row > [class*="col"]`
	SidebarSelector   = `#sidebar, .sidebar, [class*="sidebar"], #wd-kanbas-navigation, .wd-kanbas-navigation, aside, nav.navigation`
	BootstrapSelector = `.container, .container-fluid, .row, [class*="col-"], .btn, .card, .navbar, .nav, .form-control, .form-select, .table, .list-group, .d-flex, [class*="d-md-"], [class*="d-lg-"]`
)

// Responsive widths.
const (
	NarrowWidth = 480
	WideWidth   = 1280
)

// gridMinItems is the item count that earns full grid credit.
const gridMinItems = 3

// Params are the extracted template parameters. Only the fields a kind uses
// are set.
type Params struct {
	InputType     string       `yaml:"inputType,omitempty"     json:"inputType,omitempty"`
	Field         string       `yaml:"field,omitempty"         json:"field,omitempty"`
	Label         string       `yaml:"label,omitempty"         json:"label,omitempty"`
	Target        string       `yaml:"target,omitempty"        json:"target,omitempty"`
	Selector      string       `yaml:"selector,omitempty"      json:"selector,omitempty"`
	Foreground    string       `yaml:"foreground,omitempty"    json:"foreground,omitempty"`
	Background    string       `yaml:"background,omitempty"    json:"background,omitempty"`
	Properties    []string     `yaml:"properties,omitempty"    json:"properties,omitempty"`
	Tiers         rubric.Tiers `yaml:"tiers,omitempty"         json:"tiers,omitempty"`
	ViewportWidth int          `yaml:"viewportWidth,omitempty" json:"viewportWidth,omitempty"`
	ExpectVisible *bool        `yaml:"expectVisible,omitempty" json:"expectVisible,omitempty"`
	MinItems      int          `yaml:"minItems,omitempty"      json:"minItems,omitempty"`
}

// Plan is a criterion resolved to a template and its parameters. Plans are
// what a generated suite file stores.
type Plan struct {
	Name   string        `yaml:"name"   json:"name"`
	Route  string        `yaml:"route"  json:"route"`
	Kind   Kind          `yaml:"kind"   json:"kind"`
	Rule   string        `yaml:"rule,omitempty" json:"rule,omitempty"`
	Params Params        `yaml:"params" json:"params"`
	Points rubric.Points `yaml:"points" json:"points"`
}

// Resolve selects the template for c and extracts its parameters.
func Resolve(c rubric.Criterion) Plan {
	rule := SelectRule(c)
	p := Plan{
		Name:   c.OriginalText,
		Route:  c.Route,
		Kind:   rule.Kind,
		Rule:   rule.Name,
		Points: c.Points,
	}
	if p.Route == "" {
		p.Route = "/"
	}
	d := c.Detail

	switch p.Kind {
	case KindFormInput:
		p.Params.InputType = extract.InputType(d)
		p.Params.Field = extract.FieldName(d)
	case KindCheckboxRadio:
		p.Params.Field = extract.FieldName(d)
	case KindSelect:
		p.Params.Selector = "select"
	case KindNavigation:
		p.Params.Label = extract.ButtonText(d)
		p.Params.Target = extract.NavigationTarget(d)
	case KindLinkExists:
		p.Params.Target = extract.LinkTarget(d)
	case KindCSSStyle:
		p.Params = resolveStyle(c)
	case KindGridLayout:
		p.Params.Selector = GridItemSelector
		p.Params.MinItems = gridMinItems
	case KindResponsive:
		narrow := isNarrow(d)
		p.Params.Selector = SidebarSelector
		p.Params.ViewportWidth = WideWidth
		if narrow {
			p.Params.ViewportWidth = NarrowWidth
		}
		expect := !narrow
		p.Params.ExpectVisible = &expect
	case KindBootstrap:
		p.Params.Selector = BootstrapSelector
	case KindGeneric:
		p.Params.Selector = "body"
	}
	return p
}

// ResolveAll resolves every criterion in rubric order.
func ResolveAll(rb *rubric.Rubric) []Plan {
	plans := make([]Plan, 0, len(rb.Criteria))
	for _, c := range rb.Criteria {
		plans = append(plans, Resolve(c))
	}
	return plans
}

func isNarrow(detail string) bool {
	d := strings.ToLower(detail)
	for _, k := range []string{"mobile", "narrow", "small", "480", "phone", "hidden", "hide", "collapse"} {
		if strings.Contains(d, k) {
			return true
		}
	}
	return false
}

// resolveStyle builds CSS-style parameters. A StyleSpec on the criterion
// wins; a grid detail becomes an item-count predicate; otherwise the
// element's existence earns credit and its colors are reported.
func resolveStyle(c rubric.Criterion) Params {
	var p Params
	pair := extract.Colors(c.Detail)
	if pair.Foreground != nil {
		p.Foreground = pair.Foreground.Name
		p.Background = pair.Background.Name
	}
	p.Selector = extract.ElementSelector(c.Detail)

	if spec := c.Style; spec != nil {
		if spec.Selector != "" {
			p.Selector = spec.Selector
		}
		p.Properties = append(p.Properties, spec.Properties...)
		p.Tiers = spec.Tiers
	} else if strings.Contains(strings.ToLower(c.Detail), "grid") {
		p.Selector = GridItemSelector
		p.Tiers = rubric.Tiers{Best: "count >= 3", Better: "count >= 1"}
	}

	props := []string{"color", "background-color"}
	props = append(props, p.Properties...)
	for _, src := range []string{p.Tiers.Best, p.Tiers.Better, p.Tiers.Almost} {
		props = append(props, stylexpr.Properties(src)...)
	}
	slices.Sort(props)
	p.Properties = slices.Compact(props)
	return p
}
