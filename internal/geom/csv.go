package geom

import (
	"encoding/csv"
	"errors"
	"os"
	"strings"

	"github.com/paulmach/orb/encoding/wkt"
)

// loadCSV reads a CSV whose geometry is WKT in one column.
// Column detection: wkt|geometry|geom|the_geom (case-insensitive); every
// other column is an attribute.
func loadCSV(path string) (*Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errors.New("empty csv")
	}
	header := recs[0]
	idxGeom := -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "wkt", "geometry", "geom", "the_geom":
			if idxGeom == -1 {
				idxGeom = i
			}
		}
	}
	if idxGeom == -1 {
		return nil, errors.New("csv: geometry column not found")
	}

	l := &Layer{}
	for i, h := range header {
		if i != idxGeom {
			l.Fields = append(l.Fields, strings.TrimSpace(h))
		}
	}
	for _, row := range recs[1:] {
		attrs := make(map[string]string, len(header)-1)
		for i, h := range header {
			if i == idxGeom || i >= len(row) {
				continue
			}
			attrs[strings.TrimSpace(h)] = row[i]
		}
		ft := Feature{Attrs: attrs}
		// a bad WKT cell leaves the geometry nil; export reports it per feature
		if idxGeom < len(row) {
			if g, err := wkt.Unmarshal(strings.TrimSpace(row[idxGeom])); err == nil {
				ft.Geometry = g
			}
		}
		l.Features = append(l.Features, ft)
	}
	if l.CRS, err = sidecarCRS(path); err != nil {
		return nil, err
	}
	return l, nil
}
