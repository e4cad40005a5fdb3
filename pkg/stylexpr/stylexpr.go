// Package stylexpr compiles and evaluates the tier predicates of a CSS style
// check. A predicate is an expr boolean over the first matched element's
// computed style:
//
//	count                  number of matched elements
//	style                  property -> computed value
//	value("prop")          trimmed computed value
//	px("prop")             leading number of the value ("3px" -> 3)
//	match("prop", "re")    regexp match against the value
//	isColor("prop", "red") color equality, any notation
//
// The expr operator form value("color") matches "^rgb" works too.
package stylexpr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ormasoftchile/webgrade/pkg/extract"
)

// Env is the predicate environment for count matches with computed style.
func Env(count int, style map[string]string) map[string]any {
	if style == nil {
		style = map[string]string{}
	}
	value := func(prop string) string { return strings.TrimSpace(style[prop]) }
	return map[string]any{
		"count": count,
		"style": style,
		"value": value,
		"px": func(prop string) float64 {
			return leadingNumber(value(prop))
		},
		"match": func(prop, pattern string) bool {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return false
			}
			return re.MatchString(value(prop))
		},
		"isColor": func(prop, name string) bool {
			want, ok := extract.ParseColor(name)
			if !ok {
				return false
			}
			got, ok := extract.ParseColor(value(prop))
			return ok && got.Equal(want)
		},
	}
}

var numberPrefix = regexp.MustCompile(`^-?[0-9]*\.?[0-9]+`)

func leadingNumber(s string) float64 {
	m := numberPrefix.FindString(s)
	if m == "" {
		return 0
	}
	v, _ := strconv.ParseFloat(m, 64)
	return v
}

// Compile type-checks src against Env and requires a boolean result.
func Compile(src string) (*vm.Program, error) {
	return expr.Compile(src, expr.Env(Env(0, nil)), expr.AsBool())
}

// Eval runs a compiled predicate.
func Eval(prog *vm.Program, count int, style map[string]string) (bool, error) {
	out, err := expr.Run(prog, Env(count, style))
	if err != nil {
		return false, err
	}
	ok, _ := out.(bool)
	return ok, nil
}

var propRef = regexp.MustCompile(`(?:px|value|match|isColor)\(\s*["']([a-zA-Z-]+)["']`)

// Properties lists the CSS properties src reads through its helpers, in
// order of appearance.
func Properties(src string) []string {
	var props []string
	for _, m := range propRef.FindAllStringSubmatch(src, -1) {
		props = append(props, m[1])
	}
	return props
}

// Check reports a compile error for src, if any.
func Check(src string) error {
	if _, err := Compile(src); err != nil {
		return fmt.Errorf("predicate %q: %w", src, err)
	}
	return nil
}
