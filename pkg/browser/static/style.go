package static

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"

	"github.com/ormasoftchile/webgrade/pkg/extract"
)

// styleRule is one selector of a qualified rule, flattened out of any
// enclosing @media block.
type styleRule struct {
	selector    cascadia.Sel
	specificity [3]int
	order       int
	media       string
	decls       []*css.Declaration
}

func parseStylesheets(sheets []string) []styleRule {
	var rules []styleRule
	order := 0
	var walk func(rs []*css.Rule, media string)
	walk = func(rs []*css.Rule, media string) {
		for _, r := range rs {
			switch r.Kind {
			case css.QualifiedRule:
				for _, s := range r.Selectors {
					sel, err := cascadia.Parse(s)
					if err != nil || sel.PseudoElement() != "" {
						continue
					}
					rules = append(rules, styleRule{
						selector:    sel,
						specificity: [3]int(sel.Specificity()),
						order:       order,
						media:       media,
						decls:       r.Declarations,
					})
					order++
				}
			case css.AtRule:
				switch strings.TrimPrefix(strings.ToLower(r.Name), "@") {
				case "media":
					m := r.Prelude
					if media != "" {
						m = media + " and " + m
					}
					walk(r.Rules, m)
				case "supports", "layer":
					walk(r.Rules, media)
				}
			}
		}
	}
	for _, text := range sheets {
		sheet, err := parser.Parse(text)
		if err != nil {
			continue
		}
		walk(sheet.Rules, "")
	}
	return rules
}

var widthQuery = regexp.MustCompile(`\(\s*(min|max)-width\s*:\s*([0-9.]+)\s*(px|em|rem)?\s*\)`)

// matchMedia evaluates the width conditions of a media prelude. Comma
// separated queries are alternatives; anything other than screen/all
// media types never matches.
func matchMedia(prelude string, width int) bool {
	if strings.TrimSpace(prelude) == "" {
		return true
	}
	for _, q := range strings.Split(strings.ToLower(prelude), ",") {
		if matchQuery(q, width) {
			return true
		}
	}
	return false
}

func matchQuery(q string, width int) bool {
	if strings.Contains(q, "print") || strings.Contains(q, "speech") {
		return false
	}
	for _, m := range widthQuery.FindAllStringSubmatch(q, -1) {
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return false
		}
		if m[3] == "em" || m[3] == "rem" {
			v *= 16
		}
		w := float64(width)
		if m[1] == "min" && w < v {
			return false
		}
		if m[1] == "max" && w > v {
			return false
		}
	}
	return true
}

var inherited = map[string]bool{
	"color": true, "font-family": true, "font-size": true, "font-weight": true,
	"font-style": true, "line-height": true, "text-align": true, "visibility": true,
	"letter-spacing": true, "text-transform": true, "white-space": true,
	"cursor": true, "list-style-type": true,
}

var blockTags = map[string]string{
	"html": "block", "body": "block", "div": "block", "p": "block", "section": "block",
	"article": "block", "header": "block", "footer": "block", "nav": "block",
	"aside": "block", "main": "block", "form": "block", "fieldset": "block",
	"h1": "block", "h2": "block", "h3": "block", "h4": "block", "h5": "block", "h6": "block",
	"ul": "block", "ol": "block", "dl": "block", "dt": "block", "dd": "block",
	"pre": "block", "blockquote": "block", "figure": "block", "hr": "block", "address": "block",
	"li": "list-item", "table": "table", "tr": "table-row", "td": "table-cell", "th": "table-cell",
	"thead": "table-header-group", "tbody": "table-row-group", "tfoot": "table-footer-group",
	"button": "inline-block", "input": "inline-block", "select": "inline-block", "textarea": "inline-block",
	"head": "none", "script": "none", "style": "none", "title": "none", "meta": "none",
	"link": "none", "template": "none",
}

var fontWeights = map[string]string{"normal": "400", "bold": "700", "lighter": "100", "bolder": "900"}

func defaults(tag string) map[string]string {
	display, ok := blockTags[tag]
	if !ok {
		display = "inline"
	}
	d := map[string]string{
		"display":          display,
		"color":            "rgb(0, 0, 0)",
		"background-color": "rgba(0, 0, 0, 0)",
		"visibility":       "visible",
		"position":         "static",
		"float":            "none",
		"z-index":          "auto",
		"font-weight":      "400",
		"font-style":       "normal",
		"text-align":       "start",
		"border-style":     "none",
		"border-width":     "0px",
	}
	d["grid-template-columns"] = "none"
	for _, side := range []string{"top", "right", "bottom", "left"} {
		d["margin-"+side] = "0px"
		d["padding-"+side] = "0px"
		d["border-"+side+"-width"] = "0px"
		d["border-"+side+"-style"] = "none"
	}
	return d
}

// userAgent holds the tag-specific browser rules. They apply over inherited
// values and under author declarations.
func userAgent(tag string) map[string]string {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6", "b", "strong", "th":
		return map[string]string{"font-weight": "700"}
	case "em", "i":
		return map[string]string{"font-style": "italic"}
	}
	return nil
}

// cascade computes styles for one query; results are cached per node.
type cascade struct {
	rules []styleRule
	width int
	cache map[*html.Node]map[string]string
}

func (p *Page) cascade() *cascade {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &cascade{
		rules: p.rules,
		width: p.viewport.Width,
		cache: map[*html.Node]map[string]string{},
	}
}

type applied struct {
	decl      *css.Declaration
	important bool
	inline    bool
	spec      [3]int
	order     int
}

func (c *cascade) computed(n *html.Node) map[string]string {
	if s, ok := c.cache[n]; ok {
		return s
	}
	var candidates []applied
	for _, r := range c.rules {
		if !matchMedia(r.media, c.width) || !r.selector.Match(n) {
			continue
		}
		for _, d := range r.decls {
			candidates = append(candidates, applied{decl: d, important: d.Important, spec: r.specificity, order: r.order})
		}
	}
	for _, d := range bootstrapDisplay(attr(n, "class"), c.width) {
		candidates = append(candidates, applied{decl: d, important: true, spec: [3]int{0, 1, 0}, order: len(c.rules)})
	}
	if inline := strings.TrimSpace(attr(n, "style")); inline != "" {
		// the parser drops the value of a final declaration without ";"
		if !strings.HasSuffix(inline, ";") {
			inline += ";"
		}
		if decls, err := parser.ParseDeclarations(inline); err == nil {
			for _, d := range decls {
				if strings.TrimSpace(d.Value) == "" {
					continue
				}
				candidates = append(candidates, applied{decl: d, important: d.Important, inline: true, order: len(c.rules) + 1})
			}
		}
	}
	slices.SortStableFunc(candidates, func(a, b applied) int {
		if a.important != b.important {
			return boolCmp(a.important, b.important)
		}
		if a.inline != b.inline {
			return boolCmp(a.inline, b.inline)
		}
		for i := range a.spec {
			if a.spec[i] != b.spec[i] {
				return a.spec[i] - b.spec[i]
			}
		}
		return a.order - b.order
	})

	declared := map[string]string{}
	for _, a := range candidates {
		expand(declared, strings.ToLower(strings.TrimSpace(a.decl.Property)), strings.TrimSpace(a.decl.Value))
	}

	var parent map[string]string
	if n.Parent != nil && n.Parent.Type == html.ElementNode {
		parent = c.computed(n.Parent)
	}

	style := defaults(n.Data)
	for k, v := range parent {
		if inherited[k] || strings.HasPrefix(k, "--") {
			style[k] = v
		}
	}
	for k, v := range userAgent(n.Data) {
		style[k] = v
	}
	for k, v := range declared {
		if v == "inherit" {
			if pv, ok := parent[k]; ok {
				style[k] = pv
			}
			continue
		}
		style[k] = v
	}
	for k, v := range style {
		style[k] = normalize(k, resolveVars(v, style))
	}
	c.cache[n] = style
	return style
}

func boolCmp(a, b bool) int {
	if a {
		return 1
	}
	if b {
		return -1
	}
	return 0
}

// expand writes a declaration into m, splitting the common shorthands into
// the longhands computed style reports.
func expand(m map[string]string, prop, value string) {
	value = strings.TrimSpace(strings.TrimSuffix(value, "!important"))
	switch prop {
	case "margin", "padding":
		for side, v := range boxSides(value) {
			m[prop+"-"+side] = v
		}
		m[prop] = value
	case "border", "border-top", "border-right", "border-bottom", "border-left":
		width, style, color := "", "", ""
		for _, tok := range strings.Fields(value) {
			switch {
			case isBorderStyle(tok):
				style = tok
			case isLength(tok) || tok == "thin" || tok == "medium" || tok == "thick":
				width = tok
			default:
				color = tok
			}
		}
		sides := []string{strings.TrimPrefix(prop, "border-")}
		if prop == "border" {
			sides = []string{"top", "right", "bottom", "left"}
		}
		if width == "" && style != "" && style != "none" {
			width = "medium"
		}
		for _, side := range sides {
			if width != "" {
				m["border-"+side+"-width"] = width
			}
			if style != "" {
				m["border-"+side+"-style"] = style
			}
			if color != "" {
				m["border-"+side+"-color"] = color
			}
		}
		if prop == "border" {
			if width != "" {
				m["border-width"] = width
			}
			if style != "" {
				m["border-style"] = style
			}
			if color != "" {
				m["border-color"] = color
			}
		}
	case "border-width", "border-style", "border-color":
		kind := strings.TrimPrefix(prop, "border-")
		for side, v := range boxSides(value) {
			m["border-"+side+"-"+kind] = v
		}
		m[prop] = value
	case "background":
		for _, tok := range strings.Fields(value) {
			if _, ok := extract.ParseColor(tok); ok || tok == "transparent" {
				m["background-color"] = tok
			}
		}
		m[prop] = value
	default:
		m[prop] = value
	}
}

func boxSides(value string) map[string]string {
	f := strings.Fields(value)
	switch len(f) {
	case 1:
		return map[string]string{"top": f[0], "right": f[0], "bottom": f[0], "left": f[0]}
	case 2:
		return map[string]string{"top": f[0], "right": f[1], "bottom": f[0], "left": f[1]}
	case 3:
		return map[string]string{"top": f[0], "right": f[1], "bottom": f[2], "left": f[1]}
	case 4:
		return map[string]string{"top": f[0], "right": f[1], "bottom": f[2], "left": f[3]}
	}
	return nil
}

func isBorderStyle(s string) bool {
	switch s {
	case "none", "hidden", "dotted", "dashed", "solid", "double", "groove", "ridge", "inset", "outset":
		return true
	}
	return false
}

var lengthPattern = regexp.MustCompile(`^-?[0-9.]+(px|em|rem|%|pt|vh|vw)?$`)

func isLength(s string) bool { return lengthPattern.MatchString(s) }

var varRef = regexp.MustCompile(`var\(\s*(--[\w-]+)\s*(?:,\s*([^)]*))?\)`)

func resolveVars(v string, style map[string]string) string {
	for i := 0; i < 4 && strings.Contains(v, "var("); i++ {
		v = varRef.ReplaceAllStringFunc(v, func(ref string) string {
			m := varRef.FindStringSubmatch(ref)
			if val, ok := style[m[1]]; ok {
				return val
			}
			return strings.TrimSpace(m[2])
		})
	}
	return v
}

// normalize converts values to the form a browser's computed style reports:
// colors as rgb(), bare zero lengths as 0px and keyword weights as numbers.
func normalize(prop, v string) string {
	v = strings.TrimSpace(v)
	switch {
	case prop == "color" || strings.HasSuffix(prop, "-color"):
		if strings.EqualFold(v, "transparent") {
			return "rgba(0, 0, 0, 0)"
		}
		if c, ok := extract.ParseColor(v); ok && !strings.HasPrefix(strings.ToLower(v), "rgba") {
			return c.String()
		}
		return v
	case prop == "font-weight":
		if w, ok := fontWeights[strings.ToLower(v)]; ok {
			return w
		}
		return v
	case v == "0":
		return "0px"
	}
	return v
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}
