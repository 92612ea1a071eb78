package export

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"tilexport/internal/config"
	"tilexport/internal/crs"
	"tilexport/internal/extent"
	"tilexport/internal/geom"
	"tilexport/internal/geom/geomtest"
	"tilexport/internal/geotiff"
	"tilexport/internal/logger"
)

type recorder struct {
	layer    string
	total    int
	results  []Result
	summary  Summary
	finished int
}

func (r *recorder) Started(layer string, total int) { r.layer, r.total = layer, total }
func (r *recorder) FeatureDone(res Result)          { r.results = append(r.results, res) }
func (r *recorder) Finished(s Summary)              { r.summary = s; r.finished++ }

// fixture writes a UTM 33S shapefile: a valid square, a record with no
// rings, and a second record whose name collides with the first.
func fixture(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "landuse.shp")
	geomtest.WriteShapefile(t, path, geomtest.UTM33S, []geomtest.Record{
		{ID: "12", Label: "Downtown Core", Rings: [][][2]float64{geomtest.Square(99980, 199980, 40)}},
		{ID: "13", Label: "Nowhere"},
		{ID: "12", Label: "Downtown Core", Rings: [][][2]float64{geomtest.Square(100500, 200500, 100)}},
	})
	return path, filepath.Join(dir, "out")
}

func testConfig(input, out string) *config.Config {
	cfg := config.Default()
	cfg.Input, cfg.OutputDir = input, out
	cfg.FixedScale.Size = 64
	cfg.BBox.Height = 48
	return cfg
}

func newExporter(t *testing.T, cfg *config.Config, opts ...Option) *Exporter {
	t.Helper()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	e, err := New(cfg, append([]Option{WithLogger(logger.Discard())}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestRunFixedScale(t *testing.T) {
	input, out := fixture(t)
	cfg := testConfig(input, out)
	cfg.WorldFile = true
	rec := &recorder{}
	sum, err := newExporter(t, cfg, WithObserver(rec)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Total != 3 || sum.Exported != 2 || sum.Skipped != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if len(sum.Failures) != 1 || sum.Failures[0].Reason != ReasonEmptyGeometry || sum.Failures[0].ID != "13" {
		t.Errorf("failures = %+v", sum.Failures)
	}
	if rec.layer != "landuse" || rec.total != 3 || len(rec.results) != 3 || rec.finished != 1 {
		t.Errorf("observer saw %q/%d, %d results, %d finishes", rec.layer, rec.total, len(rec.results), rec.finished)
	}

	first := filepath.Join(out, "12_Downtown_Core.tiff")
	second := filepath.Join(out, "12_Downtown_Core_2.tiff")
	for _, p := range []string{first, second, geotiff.WorldFilePath(first)} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing output: %v", err)
		}
	}

	in, err := geotiff.ReadInfo(first)
	if err != nil {
		t.Fatal(err)
	}
	if in.Width != 64 || in.Height != 64 || in.EPSG != 32733 || in.DPI != 300 {
		t.Errorf("info = %+v", in)
	}
	side := extent.FixedScaleSide(6464, 800, 96)
	gt := in.GeoTransform
	if math.Abs(gt[0]-(100000-side/2)) > 1e-6 || math.Abs(gt[3]-(200000+side/2)) > 1e-6 {
		t.Errorf("origin = %v, %v", gt[0], gt[3])
	}
	if math.Abs(gt[1]-side/64) > 1e-9 || math.Abs(gt[5]+gt[1]) > 1e-9 || gt[2] != 0 || gt[4] != 0 {
		t.Errorf("geotransform = %v", gt)
	}
	if rec.results[0].GeoTransform != gt {
		t.Errorf("reported %v, wrote %v", rec.results[0].GeoTransform, gt)
	}
}

func TestRunBBoxMode(t *testing.T) {
	input, out := fixture(t)
	cfg := testConfig(input, out)
	cfg.Mode = config.ModeBBox
	if _, err := newExporter(t, cfg).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	in, err := geotiff.ReadInfo(filepath.Join(out, "12_Downtown_Core.tiff"))
	if err != nil {
		t.Fatal(err)
	}
	// 40 m square padded by 10% per side: 48 m across, 48 px tall.
	if in.Width != 48 || in.Height != 48 {
		t.Errorf("size = %dx%d", in.Width, in.Height)
	}
	if math.Abs(in.GeoTransform[0]-99976) > 1e-9 || math.Abs(in.GeoTransform[3]-200024) > 1e-9 {
		t.Errorf("geotransform = %v", in.GeoTransform)
	}
}

func TestRunAbort(t *testing.T) {
	input, out := fixture(t)
	cfg := testConfig(input, out)
	cfg.OnError = config.OnErrorAbort
	sum, err := newExporter(t, cfg).Run(context.Background())
	var fe *FeatureError
	if !errors.As(err, &fe) || fe.Reason != ReasonEmptyGeometry || fe.Index != 1 {
		t.Fatalf("err = %v, want empty_geometry FeatureError", err)
	}
	if !errors.Is(err, extent.ErrEmptyGeometry) || !IsFeatureError(err) {
		t.Errorf("error chain = %v", err)
	}
	if sum.Exported != 1 || sum.Skipped != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if _, err := os.Stat(filepath.Join(out, "12_Downtown_Core.tiff")); err != nil {
		t.Errorf("file written before the abort is gone: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "12_Downtown_Core_2.tiff")); !os.IsNotExist(err) {
		t.Errorf("feature after the abort was exported")
	}
}

func TestRunDuplicateError(t *testing.T) {
	input, out := fixture(t)
	cfg := testConfig(input, out)
	cfg.OnDuplicate = "error"
	sum, err := newExporter(t, cfg).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Exported != 1 || len(sum.Failures) != 2 || sum.Failures[1].Reason != ReasonDuplicateName {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRunInvalidLayer(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	cfg := testConfig(filepath.Join(dir, "missing.shp"), out)
	_, err := newExporter(t, cfg).Run(context.Background())
	if !errors.Is(err, geom.ErrInvalidLayer) {
		t.Fatalf("err = %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("output dir created for an invalid layer")
	}
}

func TestRunCancelled(t *testing.T) {
	input, out := fixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := newExporter(t, testConfig(input, out)).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if sum.Exported != 0 {
		t.Errorf("exported %d after cancel", sum.Exported)
	}
}

type failingGeoref struct{}

func (failingGeoref) Georeference(string, extent.GeoTransform, crs.CRS, float64) error {
	return errors.New("read-only filesystem")
}

func TestRunGeoreferenceFailure(t *testing.T) {
	input, out := fixture(t)
	cfg := testConfig(input, out)
	cfg.WorldFile = true
	sum, err := newExporter(t, cfg, WithGeoreferencer(failingGeoref{})).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Exported != 0 || sum.Skipped != 3 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Failures[0].Reason != ReasonEmptyGeometry || sum.Failures[1].Reason != ReasonGeoreference {
		t.Errorf("failures = %+v", sum.Failures)
	}
	if !errors.Is(&sum.Failures[1], sum.Failures[1].Err) {
		t.Error("FeatureError does not unwrap")
	}
	// Unplaced tiles are removed with their sidecars.
	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, de := range entries {
		t.Errorf("left behind %s", de.Name())
	}
}

// flakyGeoref fails its first call and then tags files normally.
type flakyGeoref struct{ calls int }

func (g *flakyGeoref) Georeference(path string, gt extent.GeoTransform, c crs.CRS, dpi float64) error {
	g.calls++
	if g.calls == 1 {
		return errors.New("disk full")
	}
	return geotiff.TagWriter{}.Georeference(path, gt, c, dpi)
}

func TestRunFailedFeatureFreesName(t *testing.T) {
	input, out := fixture(t)
	rec := &recorder{}
	sum, err := newExporter(t, testConfig(input, out), WithGeoreferencer(&flakyGeoref{}), WithObserver(rec)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Exported != 1 || sum.Skipped != 2 {
		t.Errorf("summary = %+v", sum)
	}
	if got := rec.results[2].Name; got != "12_Downtown_Core" {
		t.Errorf("duplicate after a failure named %q", got)
	}
	if _, err := os.Stat(filepath.Join(out, "12_Downtown_Core.tiff")); err != nil {
		t.Errorf("missing output: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "12_Downtown_Core_2.tiff")); !os.IsNotExist(err) {
		t.Error("suffix used with no earlier file")
	}
}

func TestRunMissingAttributeTable(t *testing.T) {
	input, out := fixture(t)
	if err := os.Remove(input[:len(input)-len("shp")] + "dbf"); err != nil {
		t.Fatal(err)
	}
	_, err := newExporter(t, testConfig(input, out)).Run(context.Background())
	if !errors.Is(err, geom.ErrInvalidLayer) {
		t.Fatalf("err = %v, want ErrInvalidLayer", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("output dir created without an attribute table")
	}
}

func TestPlan(t *testing.T) {
	input, out := fixture(t)
	e := newExporter(t, testConfig(input, out))
	l, _, err := e.LoadLayers()
	if err != nil {
		t.Fatal(err)
	}
	plan := e.Plan(l)
	if len(plan) != 3 {
		t.Fatalf("plan = %d entries", len(plan))
	}
	if plan[0].Name != "12_Downtown_Core" || plan[2].Name != "12_Downtown_Core_2" {
		t.Errorf("names = %q, %q", plan[0].Name, plan[2].Name)
	}
	if plan[1].Err == nil || plan[1].Err.Reason != ReasonEmptyGeometry {
		t.Errorf("plan[1].Err = %v", plan[1].Err)
	}
	if plan[0].Size != (extent.Size{Width: 64, Height: 64}) {
		t.Errorf("size = %v", plan[0].Size)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("Plan wrote to the output dir")
	}
	// Planning twice yields the same geotransforms.
	again := e.Plan(l)
	for i := range plan {
		if plan[i].GeoTransform != again[i].GeoTransform {
			t.Errorf("feature %d: %v != %v", i, plan[i].GeoTransform, again[i].GeoTransform)
		}
	}
}

func TestRunWKTWithoutLabels(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "sites.wkt")
	os.WriteFile(input, []byte("POLYGON ((0 0, 0 10, 10 10, 10 0, 0 0))\nPOINT (50 50)\n"), 0o644)
	out := filepath.Join(dir, "out")
	cfg := testConfig(input, out)
	cfg.IDField = "fid"
	sum, err := newExporter(t, cfg).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Exported != 2 {
		t.Errorf("summary = %+v", sum)
	}
	for _, name := range []string{"1.tiff", "2.tiff"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing %s", name)
		}
	}
}

func TestRunMissingFields(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "parks.geojson")
	os.WriteFile(input, []byte(`{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"ID":"1","Label":"Zoo/Park"},"geometry":{"type":"Point","coordinates":[0,0]}},
 {"type":"Feature","properties":{"ID":"","Label":"x"},"geometry":{"type":"Point","coordinates":[1,1]}},
 {"type":"Feature","properties":{"ID":"3","Label":null},"geometry":{"type":"Point","coordinates":[2,2]}}
]}`), 0o644)
	out := filepath.Join(dir, "out")
	cfg := testConfig(input, out)
	cfg.CRS.EPSG = 32733
	sum, err := newExporter(t, cfg).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Exported != 1 || len(sum.Failures) != 2 ||
		sum.Failures[0].Reason != ReasonMissingID || sum.Failures[1].Reason != ReasonMissingLabel {
		t.Errorf("summary = %+v", sum)
	}
	if _, err := os.Stat(filepath.Join(out, "1_Zoo_Park.tiff")); err != nil {
		t.Errorf("sanitized name missing: %v", err)
	}
}

func TestRunContextLayer(t *testing.T) {
	input, out := fixture(t)
	dir := filepath.Dir(input)
	roads := filepath.Join(dir, "roads.wkt")
	os.WriteFile(roads, []byte("LINESTRING (99000 200000, 101000 200000)\n"), 0o644)
	cfg := testConfig(input, out)
	cfg.ContextLayers = []config.ContextLayer{{Path: roads, Style: config.StyleConfig{Stroke: "gray"}}}
	e := newExporter(t, cfg)
	_, layers, err := e.LoadLayers()
	if err != nil {
		t.Fatal(err)
	}
	if len(layers) != 2 || layers[1].Layer.Name != "landuse" {
		t.Fatalf("layers = %+v", layers)
	}
	if sum, err := e.Run(context.Background()); err != nil || sum.Exported != 2 {
		t.Errorf("Run = %+v, %v", sum, err)
	}
}
