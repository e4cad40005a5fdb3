package static

import (
	"strings"

	"github.com/aymerick/douceur/css"
)

// Bootstrap 5 breakpoints, in the order the utilities cascade.
var breakpoints = []struct {
	infix string
	min   int
}{
	{"", 0},
	{"sm", 576},
	{"md", 768},
	{"lg", 992},
	{"xl", 1200},
	{"xxl", 1400},
}

var displayValues = map[string]bool{
	"none": true, "inline": true, "inline-block": true, "block": true, "grid": true,
	"inline-grid": true, "table": true, "table-row": true, "table-cell": true,
	"flex": true, "inline-flex": true,
}

// bootstrapDisplay emulates the responsive display utilities (d-none,
// d-md-block, ...) for pages that load Bootstrap from a CDN the static driver
// does not fetch. The widest applicable breakpoint wins, as in the real
// stylesheet.
func bootstrapDisplay(class string, width int) []*css.Declaration {
	if !strings.Contains(class, "d-") {
		return nil
	}
	best, value := -1, ""
	for _, cls := range strings.Fields(class) {
		rest, ok := strings.CutPrefix(cls, "d-")
		if !ok {
			continue
		}
		for i, bp := range breakpoints {
			v := rest
			if bp.infix != "" {
				if v, ok = strings.CutPrefix(rest, bp.infix+"-"); !ok {
					continue
				}
			}
			if displayValues[v] && width >= bp.min && i > best {
				best, value = i, v
			}
		}
	}
	if best < 0 {
		return nil
	}
	return []*css.Declaration{{Property: "display", Value: value, Important: true}}
}
