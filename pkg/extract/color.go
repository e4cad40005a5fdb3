package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is a named or parsed sRGB color.
type Color struct {
	Name    string
	R, G, B uint8
}

// String returns the color in computed-style form, e.g. "rgb(255, 0, 0)".
func (c Color) String() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

// Equal compares colors by channel values.
func (c Color) Equal(o Color) bool {
	return c.R == o.R && c.G == o.G && c.B == o.B
}

// namedColors covers the CSS keywords rubric details use.
var namedColors = map[string][3]uint8{
	"black":     {0, 0, 0},
	"white":     {255, 255, 255},
	"red":       {255, 0, 0},
	"green":     {0, 128, 0},
	"blue":      {0, 0, 255},
	"yellow":    {255, 255, 0},
	"orange":    {255, 165, 0},
	"purple":    {128, 0, 128},
	"pink":      {255, 192, 203},
	"brown":     {165, 42, 42},
	"gray":      {128, 128, 128},
	"grey":      {128, 128, 128},
	"lightgray": {211, 211, 211},
	"lightgrey": {211, 211, 211},
	"darkgray":  {169, 169, 169},
	"lightblue": {173, 216, 230},
	"darkblue":  {0, 0, 139},
	"navy":      {0, 0, 128},
	"teal":      {0, 128, 128},
	"aqua":      {0, 255, 255},
	"cyan":      {0, 255, 255},
	"fuchsia":   {255, 0, 255},
	"magenta":   {255, 0, 255},
	"lime":      {0, 255, 0},
	"maroon":    {128, 0, 0},
	"olive":     {128, 128, 0},
	"silver":    {192, 192, 192},
	"gold":      {255, 215, 0},
	"violet":    {238, 130, 238},
	"indigo":    {75, 0, 130},
}

var rgbPattern = regexp.MustCompile(`^rgba?\(\s*(\d{1,3})\s*[, ]\s*(\d{1,3})\s*[, ]\s*(\d{1,3})`)

// ParseColor accepts a CSS color name, #rgb, #rrggbb, rgb() or rgba().
func ParseColor(s string) (Color, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if rgb, ok := namedColors[s]; ok {
		return Color{Name: s, R: rgb[0], G: rgb[1], B: rgb[2]}, true
	}
	if strings.HasPrefix(s, "#") {
		return parseHex(s)
	}
	if m := rgbPattern.FindStringSubmatch(s); m != nil {
		var ch [3]uint8
		for i := range ch {
			v, err := strconv.Atoi(m[i+1])
			if err != nil || v > 255 {
				return Color{}, false
			}
			ch[i] = uint8(v)
		}
		return Color{R: ch[0], G: ch[1], B: ch[2]}, true
	}
	return Color{}, false
}

func parseHex(s string) (Color, bool) {
	if n := len(s); n != 4 && n != 7 {
		return Color{}, false
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, false
	}
	r, g, b := c.RGB255()
	return Color{R: r, G: g, B: b}, true
}
