package geom

import (
	"encoding/xml"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"tilexport/internal/crs"
)

type kmlRing struct {
	Coordinates string `xml:"LinearRing>coordinates"`
}

type kmlPolygon struct {
	Outer kmlRing   `xml:"outerBoundaryIs"`
	Inner []kmlRing `xml:"innerBoundaryIs"`
}

type kmlCoords struct {
	Coordinates string `xml:"coordinates"`
}

type kmlMulti struct {
	Polygons    []kmlPolygon `xml:"Polygon"`
	LineStrings []kmlCoords  `xml:"LineString"`
	Points      []kmlCoords  `xml:"Point"`
}

type kmlPlacemark struct {
	ID         string      `xml:"id,attr"`
	Name       string      `xml:"name"`
	Point      *kmlCoords  `xml:"Point"`
	LineString *kmlCoords  `xml:"LineString"`
	Polygon    *kmlPolygon `xml:"Polygon"`
	Multi      *kmlMulti   `xml:"MultiGeometry"`
	Data       []kmlData   `xml:"ExtendedData>Data"`
	SimpleData []kmlData   `xml:"ExtendedData>SchemaData>SimpleData"`
}

type kmlData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
	Text  string `xml:",chardata"`
}

// loadKML extracts Placemarks from anywhere in the document (Document and
// Folder nesting included). KML coordinates are "lon,lat[,alt]"; altitude
// is ignored and the CRS is always WGS 84.
func loadKML(path string) (*Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	l := &Layer{CRS: crs.FromEPSG(4326), Fields: []string{"name"}}
	seen := map[string]bool{"name": true}
	dec := xml.NewDecoder(f)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Placemark" {
			continue
		}
		var pm kmlPlacemark
		if err := dec.DecodeElement(&pm, &se); err != nil {
			return nil, err
		}
		attrs := map[string]string{"name": strings.TrimSpace(pm.Name)}
		if pm.ID != "" {
			attrs["id"] = pm.ID
		}
		for _, d := range pm.Data {
			attrs[d.Name] = strings.TrimSpace(d.Value)
			if !seen[d.Name] {
				seen[d.Name] = true
				l.Fields = append(l.Fields, d.Name)
			}
		}
		for _, d := range pm.SimpleData {
			attrs[d.Name] = strings.TrimSpace(d.Text)
			if !seen[d.Name] {
				seen[d.Name] = true
				l.Fields = append(l.Fields, d.Name)
			}
		}
		l.Features = append(l.Features, Feature{Attrs: attrs, Geometry: pm.geometry()})
	}
	if len(l.Features) == 0 {
		return nil, errors.New("kml: no placemarks found")
	}
	return l, nil
}

func (pm kmlPlacemark) geometry() orb.Geometry {
	switch {
	case pm.Polygon != nil:
		return pm.Polygon.polygon()
	case pm.LineString != nil:
		return orb.LineString(parseKMLCoords(pm.LineString.Coordinates))
	case pm.Point != nil:
		pts := parseKMLCoords(pm.Point.Coordinates)
		if len(pts) == 0 {
			return nil
		}
		return pts[0]
	case pm.Multi != nil:
		var c orb.Collection
		for _, p := range pm.Multi.Polygons {
			c = append(c, p.polygon())
		}
		for _, ls := range pm.Multi.LineStrings {
			c = append(c, orb.LineString(parseKMLCoords(ls.Coordinates)))
		}
		for _, p := range pm.Multi.Points {
			if pts := parseKMLCoords(p.Coordinates); len(pts) > 0 {
				c = append(c, pts[0])
			}
		}
		if len(pm.Multi.LineStrings) == 0 && len(pm.Multi.Points) == 0 {
			mp := make(orb.MultiPolygon, 0, len(c))
			for _, g := range c {
				mp = append(mp, g.(orb.Polygon))
			}
			return mp
		}
		return c
	}
	return nil
}

func (p kmlPolygon) polygon() orb.Polygon {
	poly := orb.Polygon{orb.Ring(parseKMLCoords(p.Outer.Coordinates))}
	for _, in := range p.Inner {
		poly = append(poly, orb.Ring(parseKMLCoords(in.Coordinates)))
	}
	return poly
}

// parseKMLCoords splits whitespace-separated "lon,lat[,alt]" tuples.
func parseKMLCoords(s string) []orb.Point {
	var pts []orb.Point
	for _, tuple := range strings.Fields(s) {
		vals := strings.Split(tuple, ",")
		if len(vals) < 2 {
			continue
		}
		lon, err1 := strconv.ParseFloat(strings.TrimSpace(vals[0]), 64)
		lat, err2 := strconv.ParseFloat(strings.TrimSpace(vals[1]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		pts = append(pts, orb.Point{lon, lat})
	}
	return pts
}
