// Package extent computes the map window and output pixel size for one
// feature, and the affine geotransform that ties the two together.
package extent

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"tilexport/internal/geom"
)

const metersPerInch = 0.0254

var (
	ErrEmptyGeometry    = errors.New("empty geometry")
	ErrDegenerateExtent = errors.New("degenerate extent")
	ErrOversizeRaster   = errors.New("raster exceeds max width")
	ErrZeroSize         = errors.New("pixel size must be positive")
)

// Size is an output raster size in pixels.
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// Rounding selects how the aspect-preserving width of bbox mode becomes an
// integer.
type Rounding int

const (
	// Nearest rounds half away from zero.
	Nearest Rounding = iota
	// Truncate drops the fraction, like an integer cast.
	Truncate
)

func ParseRounding(s string) (Rounding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nearest":
		return Nearest, nil
	case "truncate":
		return Truncate, nil
	}
	return Nearest, fmt.Errorf("unknown rounding %q", s)
}

func (r Rounding) String() string {
	if r == Truncate {
		return "truncate"
	}
	return "nearest"
}

func (r Rounding) apply(v float64) int {
	if r == Truncate {
		return int(v)
	}
	return int(math.Round(v))
}

// FixedScaleParams describes a window of WindowPx pixels at ReferenceDPI
// shown at 1:Scale, rendered to a Size x Size image.
type FixedScaleParams struct {
	Scale        float64
	WindowPx     float64
	ReferenceDPI float64
	Size         int
	// MetersPerUnit converts the window side into CRS units; 0 means metres.
	MetersPerUnit float64
}

func DefaultFixedScale() FixedScaleParams {
	return FixedScaleParams{Scale: 6464, WindowPx: 800, ReferenceDPI: 96, Size: 3000}
}

// FixedScaleSide is the ground length in metres of windowPx screen pixels
// at referenceDPI when displayed at 1:scale.
func FixedScaleSide(scale, windowPx, referenceDPI float64) float64 {
	return windowPx * (scale / referenceDPI * metersPerInch)
}

// FixedScale centres a square window of FixedScaleSide on the area-weighted
// centroid of g.
func FixedScale(g orb.Geometry, p FixedScaleParams) (geom.BBox, Size, error) {
	if geom.PointCount(g) == 0 {
		return geom.BBox{}, Size{}, ErrEmptyGeometry
	}
	if p.Size <= 0 {
		return geom.BBox{}, Size{}, ErrZeroSize
	}
	side := FixedScaleSide(p.Scale, p.WindowPx, p.ReferenceDPI)
	if p.MetersPerUnit > 0 {
		side /= p.MetersPerUnit
	}
	if !(side > 0) || math.IsInf(side, 0) {
		return geom.BBox{}, Size{}, fmt.Errorf("%w: window side %v", ErrDegenerateExtent, side)
	}
	c, _ := planar.CentroidArea(g)
	return Centered(c[0], c[1], side), Size{Width: p.Size, Height: p.Size}, nil
}

// Centered returns the square of the given side centred on (cx, cy).
func Centered(cx, cy, side float64) geom.BBox {
	h := side / 2
	return geom.BBox{MinX: cx - h, MinY: cy - h, MaxX: cx + h, MaxY: cy + h}
}

// BBoxParams pads a feature's bounding box by Padding of each axis on each
// side and renders it Height pixels tall.
type BBoxParams struct {
	Padding  float64
	Height   int
	Rounding Rounding
	// MaxWidth caps the computed width; 0 disables the cap.
	MaxWidth int
}

func DefaultBBox() BBoxParams {
	return BBoxParams{Padding: 0.10, Height: 3000, Rounding: Nearest, MaxWidth: 30000}
}

// PaddedBounds returns the padded bounding box of g and an output size
// whose width/height ratio follows the box.
func PaddedBounds(g orb.Geometry, p BBoxParams) (geom.BBox, Size, error) {
	bb, ok := geom.BoundsOf(g)
	if !ok {
		return geom.BBox{}, Size{}, ErrEmptyGeometry
	}
	padded := bb.Pad(p.Padding, p.Padding)
	w, err := AspectWidth(padded, p.Height, p.Rounding)
	if err != nil {
		return geom.BBox{}, Size{}, err
	}
	if p.MaxWidth > 0 && w > p.MaxWidth {
		return geom.BBox{}, Size{}, fmt.Errorf("%w: %d > %d", ErrOversizeRaster, w, p.MaxWidth)
	}
	return padded, Size{Width: w, Height: p.Height}, nil
}

// AspectWidth scales height by the width/height ratio of e.
func AspectWidth(e geom.BBox, height int, r Rounding) (int, error) {
	if height <= 0 {
		return 0, ErrZeroSize
	}
	ew, eh := e.Width(), e.Height()
	if !(ew > 0) || !(eh > 0) {
		return 0, fmt.Errorf("%w: %gx%g", ErrDegenerateExtent, ew, eh)
	}
	w := r.apply(float64(height) * ew / eh)
	if w < 1 {
		return 0, fmt.Errorf("%w: width rounds to %d px", ErrDegenerateExtent, w)
	}
	return w, nil
}
