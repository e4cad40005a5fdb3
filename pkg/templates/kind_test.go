package templates

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/webgrade/pkg/rubric"
)

func TestRuleOrder(t *testing.T) {
	want := []Kind{
		KindFormInput, KindCheckboxRadio, KindSelect, KindNavigation, KindLinkExists,
		KindCSSStyle, KindGridLayout, KindResponsive, KindBootstrap, KindGeneric,
	}
	require.Len(t, Rules, len(want))
	for i, r := range Rules {
		assert.Equal(t, want[i], r.Kind, "rule %d (%s)", i, r.Name)
	}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name string
		c    rubric.Criterion
		want Kind
	}{
		{"form input", rubric.Criterion{TestType: rubric.TestFormInput, Category: "CSS", Detail: "grid"}, KindFormInput},
		{"checkbox", rubric.Criterion{TestType: rubric.TestFormCheckbox}, KindCheckboxRadio},
		{"radio", rubric.Criterion{TestType: rubric.TestFormRadio}, KindCheckboxRadio},
		{"select", rubric.Criterion{TestType: rubric.TestFormSelect}, KindSelect},
		{"navigation", rubric.Criterion{TestType: rubric.TestNavigationClick, Detail: "responsive"}, KindNavigation},
		{"link", rubric.Criterion{TestType: rubric.TestLinkExists}, KindLinkExists},
		{"css category beats grid", rubric.Criterion{TestType: rubric.TestLayout, Category: "CSS", Detail: "grid layout"}, KindCSSStyle},
		{"css category case", rubric.Criterion{Category: "Basic css"}, KindCSSStyle},
		{"grid", rubric.Criterion{TestType: rubric.TestLayout, Detail: "Grid of cards"}, KindGridLayout},
		{"responsive", rubric.Criterion{TestType: rubric.TestGeneric, Detail: "Responsive sidebar"}, KindResponsive},
		{"bootstrap", rubric.Criterion{Detail: "uses Bootstrap"}, KindBootstrap},
		{"generic", rubric.Criterion{TestType: rubric.TestGeneric, Detail: "page loads"}, KindGeneric},
		{"unknown type", rubric.Criterion{TestType: "hover_menu"}, KindGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(tt.c))
		})
	}
}

func TestSelectProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 300
	properties := gopter.NewProperties(params)

	testTypes := make([]any, 0, len(rubric.KnownTestTypes)+1)
	for _, tt := range rubric.KnownTestTypes {
		testTypes = append(testTypes, string(tt))
	}
	testTypes = append(testTypes, "")
	words := gen.OneConstOf("CSS", "grid", "responsive", "bootstrap", "layout", "", "Grid", "css")

	properties.Property("Select is a function of testType, category and detail", prop.ForAll(
		func(tt, category, detail, text, route string) bool {
			a := rubric.Criterion{TestType: rubric.TestType(tt), Category: category, Detail: detail, OriginalText: text, Route: route}
			b := rubric.Criterion{TestType: rubric.TestType(tt), Category: category, Detail: detail, OriginalText: "other", Route: "/elsewhere",
				Points: rubric.Points{Best: 9}}
			return Select(a) == Select(b) && Select(a) == Select(a)
		},
		gen.OneConstOf(testTypes...), words, words, gen.AlphaString(), gen.AlphaString(),
	))

	properties.Property("Select agrees with the first matching rule", prop.ForAll(
		func(tt, category, detail string) bool {
			c := rubric.Criterion{TestType: rubric.TestType(tt), Category: category, Detail: detail}
			for _, r := range Rules {
				if r.Match(c) {
					return Select(c) == r.Kind
				}
			}
			return false
		},
		gen.OneConstOf(testTypes...), words, words,
	))

	properties.TestingRun(t)
}

func TestResolve(t *testing.T) {
	p := Resolve(rubric.Criterion{
		OriginalText: "Password",
		TestType:     rubric.TestFormInput,
		Detail:       "password field",
		Points:       rubric.Points{Best: 3, Almost: rubric.Float(1)},
	})
	assert.Equal(t, KindFormInput, p.Kind)
	assert.Equal(t, "/", p.Route, "empty route defaults to root")
	assert.Equal(t, "password", p.Params.InputType)
	assert.Equal(t, "password", p.Params.Field)
	assert.Equal(t, "form input", p.Rule)

	p = Resolve(rubric.Criterion{TestType: rubric.TestNavigationClick, Detail: "sign in goes to dashboard"})
	assert.Equal(t, `sign ?in`, p.Params.Label)
	assert.Equal(t, "Dashboard", p.Params.Target)

	p = Resolve(rubric.Criterion{Detail: "responsive sidebar hidden on mobile"})
	assert.Equal(t, KindResponsive, p.Kind)
	assert.Equal(t, NarrowWidth, p.Params.ViewportWidth)
	require.NotNil(t, p.Params.ExpectVisible)
	assert.False(t, *p.Params.ExpectVisible)

	p = Resolve(rubric.Criterion{Category: "CSS", Detail: "heading red on white"})
	assert.Equal(t, "h1, h2, h3", p.Params.Selector)
	assert.Equal(t, "red", p.Params.Foreground)
	assert.Equal(t, "white", p.Params.Background)
	assert.True(t, p.Params.Tiers.Empty())

	p = Resolve(rubric.Criterion{Category: "CSS", Detail: "grid layout"})
	assert.Equal(t, GridItemSelector, p.Params.Selector)
	assert.Equal(t, "count >= 3", p.Params.Tiers.Best)

	p = Resolve(rubric.Criterion{Category: "CSS", Detail: "div border", Style: &rubric.StyleSpec{
		Selector: ".box",
		Tiers:    rubric.Tiers{Best: `px("border-top-width") >= 2`},
	}})
	assert.Equal(t, ".box", p.Params.Selector)
	assert.Contains(t, p.Params.Properties, "border-top-width")
	assert.Contains(t, p.Params.Properties, "color")
}

func TestEarned(t *testing.T) {
	full := rubric.Points{Best: 5, Better: rubric.Float(3), Almost: rubric.Float(1)}
	bestOnly := rubric.Points{Best: 2}
	noBetter := rubric.Points{Best: 3, Almost: rubric.Float(1)}

	assert.Equal(t, 5.0, Earned(full, TierBest))
	assert.Equal(t, 3.0, Earned(full, TierPartial))
	assert.Equal(t, 3.0, Earned(full, TierBetter))
	assert.Equal(t, 1.0, Earned(full, TierAlmost))
	assert.Equal(t, 0.0, Earned(full, TierZero))

	assert.Equal(t, 0.0, Earned(bestOnly, TierPartial))
	assert.Equal(t, 1.0, Earned(noBetter, TierPartial))
	assert.Equal(t, 1.0, Earned(noBetter, TierBetter))
}
