package tui

import (
	"math"
	"strings"

	"github.com/paulmach/orb"

	"tilexport/internal/geom"
)

// preview draws one feature outline in braille, fitted to the tile
// extent with the aspect ratio kept.
type preview struct {
	extent geom.BBox
	w, h   int // in cells

	scale      float64 // micro-pixels per map unit
	offX, offY float64
}

func newPreview(extent geom.BBox, w, h int) (preview, bool) {
	p := preview{extent: extent, w: w, h: h}
	ew, eh := extent.Width(), extent.Height()
	if !(ew > 0 && eh > 0) || w <= 1 || h <= 1 {
		return p, false
	}
	wMic, hMic := float64(w*2-1), float64(h*4-1)
	p.scale = math.Min(wMic/ew, hMic/eh)
	p.offX = (wMic - ew*p.scale) / 2
	p.offY = (hMic - eh*p.scale) / 2
	return p, true
}

// screenXYMicro maps a map coordinate into the 2x4 microgrid, y down.
func (p preview) screenXYMicro(x, y float64) (int, int) {
	sx := p.offX + (x-p.extent.MinX)*p.scale
	sy := p.offY + (p.extent.MaxY-y)*p.scale
	return int(math.Round(sx)), int(math.Round(sy))
}

func (p preview) path(b *brailleBuf, pts []orb.Point, closed bool) {
	if len(pts) == 0 {
		return
	}
	px, py := p.screenXYMicro(pts[0][0], pts[0][1])
	if len(pts) == 1 {
		b.marker(px, py)
		return
	}
	for _, pt := range pts[1:] {
		x, y := p.screenXYMicro(pt[0], pt[1])
		b.drawLineMicro(px, py, x, y)
		px, py = x, y
	}
	if closed {
		x, y := p.screenXYMicro(pts[0][0], pts[0][1])
		b.drawLineMicro(px, py, x, y)
	}
}

func (p preview) draw(b *brailleBuf, g orb.Geometry) {
	switch v := g.(type) {
	case orb.Point:
		x, y := p.screenXYMicro(v[0], v[1])
		b.marker(x, y)
	case orb.MultiPoint:
		for _, pt := range v {
			p.draw(b, pt)
		}
	case orb.LineString:
		p.path(b, v, false)
	case orb.MultiLineString:
		for _, ls := range v {
			p.path(b, ls, false)
		}
	case orb.Ring:
		p.path(b, v, true)
	case orb.Polygon:
		for _, r := range v {
			p.path(b, r, true)
		}
	case orb.MultiPolygon:
		for _, poly := range v {
			p.draw(b, poly)
		}
	case orb.Collection:
		for _, c := range v {
			p.draw(b, c)
		}
	case orb.Bound:
		p.draw(b, v.ToRing())
	}
}

// renderPreview returns h lines of w cells showing g inside extent, or ""
// when there is nothing to draw.
func renderPreview(g orb.Geometry, extent geom.BBox, w, h int) string {
	if g == nil {
		return ""
	}
	p, ok := newPreview(extent, w, h)
	if !ok {
		return ""
	}
	b := newBrailleBuf(w, h)
	p.draw(b, g)
	if b.empty() {
		return ""
	}
	return strings.Join(b.toLines(), "\n")
}
