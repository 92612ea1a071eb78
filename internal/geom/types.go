package geom

import (
	"errors"

	"github.com/paulmach/orb"

	"tilexport/internal/crs"
)

// BBox is an axis-aligned rectangle in layer CRS units. It doubles as the
// map extent handed to the renderer and the georeferencer.
type BBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

func (b BBox) Width() float64  { return b.MaxX - b.MinX }
func (b BBox) Height() float64 { return b.MaxY - b.MinY }

func (b BBox) Center() (float64, float64) {
	return (b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2
}

// Pad grows the box by fx of its width on the left and right and by fy of
// its height at the top and bottom.
func (b BBox) Pad(fx, fy float64) BBox {
	px := b.Width() * fx
	py := b.Height() * fy
	return BBox{MinX: b.MinX - px, MinY: b.MinY - py, MaxX: b.MaxX + px, MaxY: b.MaxY + py}
}

// Buffer grows the box by d on every side.
func (b BBox) Buffer(d float64) BBox {
	return BBox{MinX: b.MinX - d, MinY: b.MinY - d, MaxX: b.MaxX + d, MaxY: b.MaxY + d}
}

func (b BBox) Intersects(o BBox) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX && b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

// Extend grows b to cover o.
func (b BBox) Extend(o BBox) BBox {
	if o.MinX < b.MinX {
		b.MinX = o.MinX
	}
	if o.MinY < b.MinY {
		b.MinY = o.MinY
	}
	if o.MaxX > b.MaxX {
		b.MaxX = o.MaxX
	}
	if o.MaxY > b.MaxY {
		b.MaxY = o.MaxY
	}
	return b
}

// BoundsOf returns the bbox of g and false when g carries no coordinates.
func BoundsOf(g orb.Geometry) (BBox, bool) {
	if g == nil || PointCount(g) == 0 {
		return BBox{}, false
	}
	b := g.Bound()
	return BBox{MinX: b.Min[0], MinY: b.Min[1], MaxX: b.Max[0], MaxY: b.Max[1]}, true
}

// PointCount counts the vertices of g.
func PointCount(g orb.Geometry) int {
	switch v := g.(type) {
	case nil:
		return 0
	case orb.Point:
		return 1
	case orb.MultiPoint:
		return len(v)
	case orb.LineString:
		return len(v)
	case orb.MultiLineString:
		n := 0
		for _, ls := range v {
			n += len(ls)
		}
		return n
	case orb.Ring:
		return len(v)
	case orb.Polygon:
		n := 0
		for _, r := range v {
			n += len(r)
		}
		return n
	case orb.MultiPolygon:
		n := 0
		for _, p := range v {
			n += PointCount(p)
		}
		return n
	case orb.Collection:
		n := 0
		for _, c := range v {
			n += PointCount(c)
		}
		return n
	case orb.Bound:
		return 4
	}
	return 0
}

// Feature is one record of a vector layer.
type Feature struct {
	Index    int
	ID       string
	Label    string
	Attrs    map[string]string
	Geometry orb.Geometry
}

// Layer is a loaded vector dataset.
type Layer struct {
	Name     string
	Path     string
	CRS      crs.CRS
	Fields   []string
	Features []Feature
	BBox     BBox
}

// HasField reports whether the dataset declares the attribute, even when
// individual features leave it blank.
func (l *Layer) HasField(name string) bool {
	for _, f := range l.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// hasAttr reports whether the field is declared or carried by any feature.
func (l *Layer) hasAttr(name string) bool {
	if l.HasField(name) {
		return true
	}
	for _, f := range l.Features {
		if _, ok := f.Attrs[name]; ok {
			return true
		}
	}
	return false
}

// ErrInvalidLayer wraps every failure to open or validate an input dataset.
var ErrInvalidLayer = errors.New("invalid layer")

// LoadOptions names the attribute fields used for output naming and an
// optional CRS that replaces whatever the dataset declares. RequireID
// rejects a dataset that has no IDField at all.
type LoadOptions struct {
	IDField     string
	LabelField  string
	CRSOverride *crs.CRS
	RequireID   bool
}
