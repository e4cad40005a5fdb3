// Package extract maps free-text rubric details onto normalized concepts.
// Every extractor is total: it never fails and falls back to a documented
// default when no keyword matches. Matching is case-insensitive and the first
// keyword in priority order wins.
package extract

import (
	"regexp"
	"strings"
)

// keyword maps a substring of the detail to a normalized value.
type keyword struct {
	match string
	value string
}

// wordKeywords are keywords too short to match inside other words.
var wordKeywords = map[string]*regexp.Regexp{
	"dob": regexp.MustCompile(`\bdob\b`),
}

func firstMatch(detail string, table []keyword, def string) string {
	d := strings.ToLower(detail)
	for _, k := range table {
		if re, ok := wordKeywords[k.match]; ok {
			if re.MatchString(d) {
				return k.value
			}
			continue
		}
		if strings.Contains(d, k.match) {
			return k.value
		}
	}
	return def
}

var inputTypes = []keyword{
	{"password", "password"},
	{"email", "email"},
	{"date", "date"},
	{"number", "number"},
	{"file", "file"},
	{"range", "range"},
}

// InputType returns the HTML input type named by detail. Default "text".
func InputType(detail string) string {
	return firstMatch(detail, inputTypes, "text")
}

var fieldNames = []keyword{
	{"username", "username"},
	{"password", "password"},
	{"email", "email"},
	{"first name", "firstname"},
	{"firstname", "firstname"},
	{"last name", "lastname"},
	{"lastname", "lastname"},
	{"salary", "salary"},
	{"dob", "dob"},
	{"birth", "dob"},
	{"rating", "rating"},
}

// DefaultField is the FieldName fallback. It matches any input.
const DefaultField = "input"

// FieldName returns the form field named by detail. Default "input".
func FieldName(detail string) string {
	return firstMatch(detail, fieldNames, DefaultField)
}

var navigationTargets = []keyword{
	{"profile", "Profile"},
	{"dashboard", "Dashboard"},
	{"signin", "Signin"},
	{"sign in", "Signin"},
	{"signup", "Signup"},
	{"sign up", "Signup"},
	{"modules", "Modules"},
	{"assignments", "Assignments"},
	{"home", "Home"},
}

// NavigationTarget returns the route segment a navigation should land on.
// Default "" accepts any destination.
func NavigationTarget(detail string) string {
	return firstMatch(detail, navigationTargets, "")
}

var buttonTexts = []keyword{
	{"signin", `sign ?in`},
	{"sign in", `sign ?in`},
	{"signup", `sign ?up`},
	{"sign up", `sign ?up`},
	{"signout", `sign ?out`},
	{"sign out", `sign ?out`},
}

// DefaultButton is the ButtonText fallback: any button element.
const DefaultButton = "button"

// ButtonText returns a case-insensitive regex fragment for the label of the
// control to click. Default "button".
func ButtonText(detail string) string {
	return firstMatch(detail, buttonTexts, DefaultButton)
}

var linkTargets = []keyword{
	{"github", "github"},
	{"account", "Account"},
	{"dashboard", "Dashboard"},
	{"labs", "Labs"},
	{"calendar", "Calendar"},
	{"inbox", "Inbox"},
	{"northeastern", "northeastern"},
}

// LinkTarget returns the substring an anchor href must contain. Default ""
// matches any anchor with an href.
func LinkTarget(detail string) string {
	return firstMatch(detail, linkTargets, "")
}

var elementSelectors = []keyword{
	{"heading", "h1, h2, h3"},
	{"paragraph", "p"},
	{"div", "div"},
	{"span", "span"},
}

// DefaultSelector is the ElementSelector fallback.
const DefaultSelector = "body > *"

// ElementSelector returns a CSS selector for the element kind named by
// detail. Default "body > *".
func ElementSelector(detail string) string {
	return firstMatch(detail, elementSelectors, DefaultSelector)
}

// ColorPair is a foreground/background pair. Both are nil when detail names
// no "<color> on <color>" pair.
type ColorPair struct {
	Foreground *Color
	Background *Color
}

var colorPairPattern = regexp.MustCompile(`(?i)\b([a-z]+)\s+on\s+([a-z]+)\b`)

// Colors extracts a "<color> on <color>" pair. Only recognized color names
// count, so "click on button" yields no pair.
func Colors(detail string) ColorPair {
	for _, m := range colorPairPattern.FindAllStringSubmatch(detail, -1) {
		fg, ok1 := ParseColor(m[1])
		bg, ok2 := ParseColor(m[2])
		if ok1 && ok2 {
			return ColorPair{Foreground: &fg, Background: &bg}
		}
	}
	return ColorPair{}
}
