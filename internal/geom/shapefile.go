package geom

import (
	"fmt"
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

// loadShapefile reads the .shp and its attribute table. A missing table is
// an error when needTable is set; go-shp would otherwise return no fields.
func loadShapefile(path string, needTable bool) (*Layer, error) {
	if needTable {
		dbf := path[:len(path)-len("shp")] + "dbf"
		if _, err := os.Stat(dbf); err != nil {
			return nil, fmt.Errorf("attribute table: %w", err)
		}
	}
	r, err := shp.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	fields := r.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.String()
	}
	l := &Layer{Fields: names}
	for r.Next() {
		n, s := r.Shape()
		attrs := make(map[string]string, len(names))
		for i, name := range names {
			attrs[name] = strings.Trim(r.ReadAttribute(n, i), " \x00")
		}
		l.Features = append(l.Features, Feature{Attrs: attrs, Geometry: shapeGeometry(s)})
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if l.CRS, err = sidecarCRS(path); err != nil {
		return nil, err
	}
	return l, nil
}

// shapeGeometry converts a shapefile record to orb. Z and M values are
// dropped; Null shapes become nil.
func shapeGeometry(s shp.Shape) orb.Geometry {
	switch v := s.(type) {
	case *shp.Point:
		return orb.Point{v.X, v.Y}
	case *shp.PointZ:
		return orb.Point{v.X, v.Y}
	case *shp.PointM:
		return orb.Point{v.X, v.Y}
	case *shp.MultiPoint:
		return multiPoint(v.Points)
	case *shp.MultiPointZ:
		return multiPoint(v.Points)
	case *shp.MultiPointM:
		return multiPoint(v.Points)
	case *shp.PolyLine:
		return lines(splitParts(v.Parts, v.Points))
	case *shp.PolyLineZ:
		return lines(splitParts(v.Parts, v.Points))
	case *shp.PolyLineM:
		return lines(splitParts(v.Parts, v.Points))
	case *shp.Polygon:
		return polygons(splitParts(v.Parts, v.Points))
	case *shp.PolygonZ:
		return polygons(splitParts(v.Parts, v.Points))
	case *shp.PolygonM:
		return polygons(splitParts(v.Parts, v.Points))
	}
	return nil
}

func multiPoint(pts []shp.Point) orb.Geometry {
	if len(pts) == 0 {
		return nil
	}
	mp := make(orb.MultiPoint, len(pts))
	for i, p := range pts {
		mp[i] = orb.Point{p.X, p.Y}
	}
	return mp
}

func splitParts(parts []int32, pts []shp.Point) [][]orb.Point {
	out := make([][]orb.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(pts))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(pts) {
			continue
		}
		part := make([]orb.Point, 0, end-start)
		for _, p := range pts[start:end] {
			part = append(part, orb.Point{p.X, p.Y})
		}
		if len(part) > 0 {
			out = append(out, part)
		}
	}
	return out
}

func lines(parts [][]orb.Point) orb.Geometry {
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return orb.LineString(parts[0])
	}
	mls := make(orb.MultiLineString, len(parts))
	for i, p := range parts {
		mls[i] = orb.LineString(p)
	}
	return mls
}

// polygons groups shapefile rings: a clockwise ring starts a new polygon,
// a counter-clockwise ring is a hole of the polygon before it.
func polygons(parts [][]orb.Point) orb.Geometry {
	var mp orb.MultiPolygon
	for _, p := range parts {
		ring := orb.Ring(p)
		if ring.Orientation() == orb.CW || len(mp) == 0 {
			mp = append(mp, orb.Polygon{ring})
			continue
		}
		last := len(mp) - 1
		mp[last] = append(mp[last], ring)
	}
	switch len(mp) {
	case 0:
		return nil
	case 1:
		return mp[0]
	}
	return mp
}
