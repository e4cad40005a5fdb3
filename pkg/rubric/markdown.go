package rubric

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	// "Assignment 3" anywhere in the first H1.
	assignmentPattern = regexp.MustCompile(`(?i)assignment\s*#?\s*(\d+)`)
	// "[3/2/1]", "[3/-/1]", "[5/2]", "[4]" at the start of an item.
	tierPattern = regexp.MustCompile(`^\[\s*([0-9.]+)\s*(?:/\s*([0-9.]+|-)\s*)?(?:/\s*([0-9.]+|-)\s*)?\]\s*`)
	// Trailing "(route: /x, type: form_input, category: CSS)".
	attrPattern = regexp.MustCompile(`\(([a-zA-Z]+\s*:[^()]*)\)\s*$`)
)

// ParseMarkdown imports a rubric written as a Markdown list. The first H1
// names the assignment; headings may carry default attributes; each list item
// whose text starts with a tier block becomes one criterion:
//
//	# Assignment 3
//	## Account (route: /Kanbas/Account/Signin)
//	- [3/-/1] Password field uses a password input (type: form_input)
//
// List items without a tier block are ignored.
func ParseMarkdown(source []byte) (*Rubric, error) {
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	rb := &Rubric{}
	defaults := map[string]string{}
	var parseErr error

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || parseErr != nil {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Heading:
			heading := extractText(n, source)
			if n.Level == 1 && rb.Title == "" {
				rb.Title = heading
				if m := assignmentPattern.FindStringSubmatch(heading); m != nil {
					rb.AssignmentNumber, _ = strconv.Atoi(m[1])
				}
				return ast.WalkSkipChildren, nil
			}
			label, attrs := splitAttrs(heading)
			defaults = attrs
			if _, ok := defaults["category"]; !ok && label != "" {
				defaults["category"] = label
			}
			return ast.WalkSkipChildren, nil

		case *ast.ListItem:
			item := extractText(n, source)
			c, ok, err := parseItem(item, defaults)
			if err != nil {
				parseErr = fmt.Errorf("criterion %q: %w", item, err)
				return ast.WalkStop, nil
			}
			if ok {
				rb.Criteria = append(rb.Criteria, c)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	if parseErr != nil {
		return nil, parseErr
	}
	return rb, nil
}

func parseItem(item string, defaults map[string]string) (Criterion, bool, error) {
	m := tierPattern.FindStringSubmatch(item)
	if m == nil {
		return Criterion{}, false, nil
	}
	var c Criterion
	best, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return c, false, fmt.Errorf("best tier: %w", err)
	}
	c.Points.Best = best
	if c.Points.Better, err = optionalTier(m[2]); err != nil {
		return c, false, fmt.Errorf("better tier: %w", err)
	}
	if c.Points.Almost, err = optionalTier(m[3]); err != nil {
		return c, false, fmt.Errorf("almost tier: %w", err)
	}

	body, attrs := splitAttrs(item[len(m[0]):])
	merged := make(map[string]string, len(defaults)+len(attrs))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range attrs {
		merged[k] = v
	}

	c.OriginalText = body
	c.Detail = body
	if d, ok := merged["detail"]; ok {
		c.Detail = d
	}
	c.Route = merged["route"]
	if c.Route == "" {
		c.Route = "/"
	}
	c.TestType = TestType(merged["type"])
	if c.TestType == "" {
		c.TestType = TestGeneric
	}
	c.Category = merged["category"]
	return c, true, nil
}

func optionalTier(s string) (*float64, error) {
	if s == "" || s == "-" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// splitAttrs separates a trailing "(key: value, ...)" block from s.
func splitAttrs(s string) (string, map[string]string) {
	attrs := map[string]string{}
	loc := attrPattern.FindStringSubmatchIndex(s)
	if loc == nil {
		return strings.TrimSpace(s), attrs
	}
	for _, part := range strings.Split(s[loc[2]:loc[3]], ",") {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		attrs[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return strings.TrimSpace(s[:loc[0]]), attrs
}

func extractText(node ast.Node, source []byte) string {
	var sb strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch c := child.(type) {
		case *ast.Text:
			sb.Write(c.Segment.Value(source))
			if c.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(c.Value)
		default:
			sb.WriteString(extractText(child, source))
		}
	}
	return strings.TrimSpace(sb.String())
}
