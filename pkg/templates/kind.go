// Package templates turns rubric criteria into executable browser checks.
// Select maps a criterion onto one template kind with an ordered rule list,
// Resolve extracts the kind's parameters into a Plan, and Build binds a Plan
// to the template's check closure.
package templates

import (
	"strings"

	"github.com/ormasoftchile/webgrade/pkg/rubric"
)

// Kind identifies a check template.
type Kind string

const (
	KindFormInput     Kind = "form_input"
	KindCheckboxRadio Kind = "checkbox_radio"
	KindSelect        Kind = "select"
	KindNavigation    Kind = "navigation"
	KindLinkExists    Kind = "link_exists"
	KindCSSStyle      Kind = "css_style"
	KindGridLayout    Kind = "grid_layout"
	KindResponsive    Kind = "responsive"
	KindBootstrap     Kind = "bootstrap"
	KindGeneric       Kind = "generic"
)

// Kinds lists every template kind.
var Kinds = []Kind{
	KindFormInput, KindCheckboxRadio, KindSelect, KindNavigation, KindLinkExists,
	KindCSSStyle, KindGridLayout, KindResponsive, KindBootstrap, KindGeneric,
}

// Rule is one dispatch step.
type Rule struct {
	Name  string
	Kind  Kind
	Match func(rubric.Criterion) bool
}

func testTypeIs(types ...rubric.TestType) func(rubric.Criterion) bool {
	return func(c rubric.Criterion) bool {
		for _, t := range types {
			if c.TestType == t {
				return true
			}
		}
		return false
	}
}

func categoryContains(s string) func(rubric.Criterion) bool {
	return func(c rubric.Criterion) bool {
		return strings.Contains(strings.ToUpper(c.Category), strings.ToUpper(s))
	}
}

func detailContains(s string) func(rubric.Criterion) bool {
	return func(c rubric.Criterion) bool {
		return strings.Contains(strings.ToLower(c.Detail), s)
	}
}

// Rules is evaluated top-down; the first match wins. Generic is the
// catch-all and must stay last.
var Rules = []Rule{
	{"form input", KindFormInput, testTypeIs(rubric.TestFormInput)},
	{"checkbox or radio", KindCheckboxRadio, testTypeIs(rubric.TestFormCheckbox, rubric.TestFormRadio)},
	{"select", KindSelect, testTypeIs(rubric.TestFormSelect)},
	{"navigation click", KindNavigation, testTypeIs(rubric.TestNavigationClick)},
	{"link exists", KindLinkExists, testTypeIs(rubric.TestLinkExists)},
	{"CSS category", KindCSSStyle, categoryContains("CSS")},
	{"grid detail", KindGridLayout, detailContains("grid")},
	{"responsive detail", KindResponsive, detailContains("responsive")},
	{"bootstrap detail", KindBootstrap, detailContains("bootstrap")},
	{"fallback", KindGeneric, func(rubric.Criterion) bool { return true }},
}

// Select returns the template kind for c. It depends only on the test type,
// category and detail.
func Select(c rubric.Criterion) Kind {
	for _, r := range Rules {
		if r.Match(c) {
			return r.Kind
		}
	}
	return KindGeneric
}

// SelectRule is Select that also reports which rule matched.
func SelectRule(c rubric.Criterion) Rule {
	for _, r := range Rules {
		if r.Match(c) {
			return r
		}
	}
	return Rules[len(Rules)-1]
}
