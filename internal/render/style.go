package render

import (
	"fmt"
	"image/color"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Style is how one layer is drawn. A nil Stroke or Fill skips that pass.
type Style struct {
	Stroke        color.Color
	StrokeWidthMM float64
	Fill          color.Color
}

// DefaultStyle is a 0.5 mm red outline without fill.
func DefaultStyle() Style {
	return Style{Stroke: color.RGBA{R: 255, A: 255}, StrokeWidthMM: 0.5}
}

// StrokePixels converts the stroke width to pixels at dpi.
func (s Style) StrokePixels(dpi float64) float64 {
	return s.StrokeWidthMM / 25.4 * dpi
}

var named = map[string]string{
	"black":   "#000000",
	"white":   "#ffffff",
	"red":     "#ff0000",
	"green":   "#008000",
	"lime":    "#00ff00",
	"blue":    "#0000ff",
	"yellow":  "#ffff00",
	"orange":  "#ffa500",
	"purple":  "#800080",
	"magenta": "#ff00ff",
	"cyan":    "#00ffff",
	"gray":    "#808080",
	"grey":    "#808080",
	"brown":   "#a52a2a",
	"navy":    "#000080",
}

// ParseColor accepts a CSS colour name, "#rgb", "#rrggbb" or "#rrggbbaa".
// "none" and "" return nil.
func ParseColor(s string) (color.Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "none", "transparent":
		return nil, nil
	}
	if hex, ok := named[s]; ok {
		s = hex
	}
	alpha := uint8(255)
	if len(s) == 9 && s[0] == '#' {
		var a uint8
		if _, err := fmt.Sscanf(s[7:], "%02x", &a); err != nil {
			return nil, fmt.Errorf("invalid colour %q", s)
		}
		alpha, s = a, s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return nil, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	if alpha == 255 {
		return color.RGBA{R: r, G: g, B: b, A: 255}, nil
	}
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}
