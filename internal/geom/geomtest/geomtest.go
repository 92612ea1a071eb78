// Package geomtest writes small vector fixtures for tests.
package geomtest

import (
	"os"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
)

// Record is one polygon feature: rings as [][x,y] with the first ring the
// outer boundary (clockwise, as shapefiles expect).
type Record struct {
	ID    string
	Label string
	Rings [][][2]float64
}

// Square returns a clockwise square ring with lower-left (x, y).
func Square(x, y, side float64) [][2]float64 {
	return [][2]float64{{x, y}, {x, y + side}, {x + side, y + side}, {x + side, y}, {x, y}}
}

// WriteShapefile writes a polygon shapefile with ID and Label fields and,
// when prj is non-empty, a .prj sidecar.
func WriteShapefile(t testing.TB, path string, prj string, recs []Record) {
	t.Helper()
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		t.Fatalf("create shapefile: %v", err)
	}
	if err := w.SetFields([]shp.Field{
		shp.StringField("ID", 16),
		shp.StringField("Label", 64),
	}); err != nil {
		t.Fatalf("set fields: %v", err)
	}
	for _, r := range recs {
		parts := make([][]shp.Point, 0, len(r.Rings))
		for _, ring := range r.Rings {
			pts := make([]shp.Point, len(ring))
			for i, p := range ring {
				pts[i] = shp.Point{X: p[0], Y: p[1]}
			}
			parts = append(parts, pts)
		}
		poly := shp.Polygon(*shp.NewPolyLine(parts))
		n := w.Write(&poly)
		if err := w.WriteAttribute(int(n), 0, r.ID); err != nil {
			t.Fatalf("write ID: %v", err)
		}
		if err := w.WriteAttribute(int(n), 1, r.Label); err != nil {
			t.Fatalf("write Label: %v", err)
		}
	}
	w.Close()
	base := strings.TrimSuffix(path, ".shp")
	// go-shp v0.1.1 names the table "<base>dbf"; readers look for "<base>.dbf".
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		t.Fatalf("move attribute table: %v", err)
	}
	if prj != "" {
		if err := os.WriteFile(base+".prj", []byte(prj), 0o644); err != nil {
			t.Fatalf("write prj: %v", err)
		}
	}
}

// UTM33S is an ESRI-style .prj body for WGS 84 / UTM zone 33S.
const UTM33S = `PROJCS["WGS_1984_UTM_Zone_33S",GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",500000.0],PARAMETER["False_Northing",10000000.0],PARAMETER["Central_Meridian",15.0],PARAMETER["Scale_Factor",0.9996],PARAMETER["Latitude_Of_Origin",0.0],UNIT["Meter",1.0]]`
