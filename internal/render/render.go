// Package render rasterises vector layers into an RGBA buffer covering a
// map extent.
package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/paulmach/orb"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/fixed"

	"tilexport/internal/extent"
	"tilexport/internal/geom"
)

// StyledLayer pairs a loaded layer with the style it is drawn in.
type StyledLayer struct {
	Layer *geom.Layer
	Style Style
}

// Renderer draws layers at a fixed DPI over a solid background. It keeps
// no state between calls but is not meant for concurrent use.
type Renderer struct {
	Background color.Color
	DPI        float64
}

func New(background color.Color, dpi float64) *Renderer {
	if background == nil {
		background = color.White
	}
	return &Renderer{Background: background, DPI: dpi}
}

// Render draws layers in order, so later layers paint over earlier ones.
func (r *Renderer) Render(layers []StyledLayer, e geom.BBox, size extent.Size) (*image.RGBA, error) {
	gt, err := extent.NewGeoTransform(e, size.Width, size.Height)
	if err != nil {
		return nil, err
	}
	toPx, ok := gt.Invert()
	if !ok {
		return nil, extent.ErrDegenerateExtent
	}
	img := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(r.Background), image.Point{}, draw.Src)

	c := newCanvas(img, toPx)
	for _, l := range layers {
		if l.Layer == nil {
			continue
		}
		strokePx := l.Style.StrokePixels(r.DPI)
		pxW, _ := gt.PixelSize()
		view := e.Buffer(math.Max(strokePx, pointPx(strokePx)) * pxW)
		for _, f := range l.Layer.Features {
			bb, ok := geom.BoundsOf(f.Geometry)
			if !ok || !bb.Intersects(view) {
				continue
			}
			c.drawGeometry(f.Geometry, l.Style, strokePx)
		}
	}
	return img, nil
}

// pointPx is the side of the square marker used for point features.
func pointPx(strokePx float64) float64 {
	return math.Max(3*strokePx, 6)
}

// canvas holds the rasterx pipeline for one image. Fill and stroke share a
// scanner, so each pass is cleared before and after drawing. ScannerGV
// fills with non-zero winding only.
type canvas struct {
	toPx   extent.GeoTransform
	filler *rasterx.Filler
	dasher *rasterx.Dasher
}

func newCanvas(img *image.RGBA, toPx extent.GeoTransform) *canvas {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	return &canvas{
		toPx:   toPx,
		filler: rasterx.NewFiller(w, h, scanner),
		dasher: rasterx.NewDasher(w, h, scanner),
	}
}

// maxPx keeps far off-image vertices inside the 26.6 fixed-point range.
const maxPx = 1 << 24

func to26_6(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(math.Max(-maxPx, math.Min(maxPx, v)) * 64))
}

func (c *canvas) pt(p orb.Point) fixed.Point26_6 {
	x, y := c.toPx.Apply(p[0], p[1])
	return pt26_6(orb.Point{x, y})
}

func pt26_6(px orb.Point) fixed.Point26_6 {
	return fixed.Point26_6{X: to26_6(px[0]), Y: to26_6(px[1])}
}

func (c *canvas) drawGeometry(g orb.Geometry, s Style, strokePx float64) {
	switch v := g.(type) {
	case orb.Point:
		c.drawPoints([]orb.Point{v}, s, strokePx)
	case orb.MultiPoint:
		c.drawPoints(v, s, strokePx)
	case orb.LineString:
		c.stroke([][]orb.Point{v}, false, s, strokePx)
	case orb.MultiLineString:
		parts := make([][]orb.Point, len(v))
		for i, ls := range v {
			parts[i] = ls
		}
		c.stroke(parts, false, s, strokePx)
	case orb.Ring:
		c.drawPolygon(orb.Polygon{v}, s, strokePx)
	case orb.Polygon:
		c.drawPolygon(v, s, strokePx)
	case orb.MultiPolygon:
		for _, p := range v {
			c.drawPolygon(p, s, strokePx)
		}
	case orb.Collection:
		for _, sub := range v {
			c.drawGeometry(sub, s, strokePx)
		}
	case orb.Bound:
		c.drawPolygon(v.ToPolygon(), s, strokePx)
	}
}

func (c *canvas) drawPolygon(p orb.Polygon, s Style, strokePx float64) {
	rings := make([][]orb.Point, 0, len(p))
	for _, r := range p {
		if len(r) >= 3 {
			rings = append(rings, r)
		}
	}
	if len(rings) == 0 {
		return
	}
	if s.Fill != nil {
		c.fill(rings, s.Fill)
	}
	c.stroke(rings, true, s, strokePx)
}

// fill paints an outer ring and its holes. The scanner only knows
// non-zero winding, so holes are wound against the outer ring in pixel
// space, which leaves them empty whatever order the source used.
func (c *canvas) fill(rings [][]orb.Point, clr color.Color) {
	c.filler.Clear()
	var outer orb.Orientation
	for i, r := range rings {
		px := make(orb.Ring, len(r))
		for j, p := range r {
			x, y := c.toPx.Apply(p[0], p[1])
			px[j] = orb.Point{x, y}
		}
		o := px.Orientation()
		if i == 0 {
			outer = o
		} else if o != 0 && o == outer {
			px.Reverse()
		}
		c.filler.Start(pt26_6(px[0]))
		for _, p := range px[1:] {
			c.filler.Line(pt26_6(p))
		}
		c.filler.Stop(true)
	}
	c.filler.SetWinding(true)
	c.filler.SetColor(clr)
	c.filler.Draw()
	c.filler.Clear()
}

func (c *canvas) stroke(parts [][]orb.Point, closed bool, s Style, strokePx float64) {
	if s.Stroke == nil || strokePx <= 0 {
		return
	}
	c.dasher.Clear()
	c.dasher.SetStroke(to26_6(strokePx), fixed.I(4),
		rasterx.RoundCap, rasterx.RoundCap, rasterx.RoundGap, rasterx.Round, nil, 0)
	drawn := false
	for _, part := range parts {
		if len(part) < 2 {
			continue
		}
		c.dasher.Start(c.pt(part[0]))
		for _, p := range part[1:] {
			c.dasher.Line(c.pt(p))
		}
		c.dasher.Stop(closed)
		drawn = true
	}
	if drawn {
		c.dasher.SetWinding(true)
		c.dasher.SetColor(s.Stroke)
		c.dasher.Draw()
	}
	c.dasher.Clear()
}

func (c *canvas) drawPoints(pts []orb.Point, s Style, strokePx float64) {
	clr := s.Stroke
	if clr == nil {
		clr = s.Fill
	}
	if clr == nil {
		return
	}
	half := fixed.Int26_6(math.Round(pointPx(strokePx) * 32))
	c.filler.Clear()
	for _, p := range pts {
		q := c.pt(p)
		c.filler.Start(fixed.Point26_6{X: q.X - half, Y: q.Y - half})
		c.filler.Line(fixed.Point26_6{X: q.X + half, Y: q.Y - half})
		c.filler.Line(fixed.Point26_6{X: q.X + half, Y: q.Y + half})
		c.filler.Line(fixed.Point26_6{X: q.X - half, Y: q.Y + half})
		c.filler.Stop(true)
	}
	c.filler.SetWinding(true)
	c.filler.SetColor(clr)
	c.filler.Draw()
	c.filler.Clear()
}
