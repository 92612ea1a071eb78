package geotiff

import (
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"

	"golang.org/x/image/tiff"

	"tilexport/internal/crs"
	"tilexport/internal/extent"
	"tilexport/internal/geom"
)

const utm33s = `PROJCS["WGS_1984_UTM_Zone_33S",GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",500000.0],PARAMETER["False_Northing",10000000.0],PARAMETER["Central_Meridian",15.0],PARAMETER["Scale_Factor",0.9996],PARAMETER["Latitude_Of_Origin",0.0],UNIT["Meter",1.0]]`

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 5), B: 255, A: 255})
		}
	}
	return img
}

func writeTile(t *testing.T, c tiff.CompressionType) (string, *image.RGBA) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "12_Downtown_Core.tiff")
	img := testImage(30, 20)
	if err := WriteTIFF(path, img, c); err != nil {
		t.Fatalf("WriteTIFF: %v", err)
	}
	return path, img
}

func sampleGT(t *testing.T) extent.GeoTransform {
	t.Helper()
	gt, err := extent.NewGeoTransform(geom.BBox{MinX: 99315.893, MinY: 199315.893, MaxX: 100684.107, MaxY: 200684.107}, 30, 20)
	if err != nil {
		t.Fatal(err)
	}
	return gt
}

func decode(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := tiff.Decode(f)
	if err != nil {
		t.Fatalf("tiff.Decode: %v", err)
	}
	return img
}

func TestTagWriterRoundTrip(t *testing.T) {
	for _, comp := range []tiff.CompressionType{tiff.Uncompressed, tiff.Deflate} {
		path, src := writeTile(t, comp)
		c, err := crs.ParseWKT(utm33s)
		if err != nil {
			t.Fatal(err)
		}
		gt := sampleGT(t)
		if err := (TagWriter{}).Georeference(path, gt, c, 300); err != nil {
			t.Fatalf("Georeference: %v", err)
		}

		got := decode(t, path)
		if got.Bounds() != src.Bounds() {
			t.Fatalf("bounds = %v, want %v", got.Bounds(), src.Bounds())
		}
		r1, g1, b1, _ := got.At(13, 7).RGBA()
		r2, g2, b2, _ := src.At(13, 7).RGBA()
		if r1 != r2 || g1 != g2 || b1 != b2 {
			t.Errorf("pixel changed after tagging")
		}

		in, err := ReadInfo(path)
		if err != nil {
			t.Fatal(err)
		}
		if in.Width != 30 || in.Height != 20 {
			t.Errorf("size = %dx%d", in.Width, in.Height)
		}
		if !in.HasGeoTransform || in.GeoTransform != gt {
			t.Errorf("geotransform = %v, want %v", in.GeoTransform, gt)
		}
		if in.EPSG != 32733 || in.ModelType != modelProjected {
			t.Errorf("epsg = %d, model type = %d", in.EPSG, in.ModelType)
		}
		if in.Citation != "WGS_1984_UTM_Zone_33S" {
			t.Errorf("citation = %q", in.Citation)
		}
		if in.DPI != 300 {
			t.Errorf("dpi = %v", in.DPI)
		}
		if !sort.SliceIsSorted(in.Tags, func(i, j int) bool { return in.Tags[i] < in.Tags[j] }) {
			t.Errorf("tags not ascending: %v", in.Tags)
		}
	}
}

func TestTagWriterIdempotent(t *testing.T) {
	path, _ := writeTile(t, tiff.Uncompressed)
	c := crs.FromEPSG(32733)
	gt := sampleGT(t)
	if err := (TagWriter{}).Georeference(path, gt, c, 300); err != nil {
		t.Fatal(err)
	}
	first, _ := ReadInfo(path)
	st1, _ := os.Stat(path)
	if err := (TagWriter{}).Georeference(path, gt, c, 300); err != nil {
		t.Fatal(err)
	}
	second, _ := ReadInfo(path)
	st2, _ := os.Stat(path)
	if first.GeoTransform != second.GeoTransform || first.EPSG != second.EPSG ||
		first.Citation != second.Citation || len(first.Tags) != len(second.Tags) {
		t.Errorf("second pass changed info:\n%+v\n%+v", first, second)
	}
	if st1.Size() != st2.Size() {
		t.Errorf("file grew from %d to %d bytes", st1.Size(), st2.Size())
	}
	decode(t, path)
}

func TestTagWriterESRIString(t *testing.T) {
	path, _ := writeTile(t, tiff.Uncompressed)
	wkt := `PROJCS["Local_Grid",GEOGCS["GCS_Schwarzeck",DATUM["D_Schwarzeck",SPHEROID["Bessel_Namibia",6377483.865,299.1528128]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["Central_Meridian",17.0],UNIT["Meter",1.0]]`
	c, err := crs.ParseWKT(wkt)
	if err != nil {
		t.Fatal(err)
	}
	if err := (TagWriter{}).Georeference(path, sampleGT(t), c, 300); err != nil {
		t.Fatal(err)
	}
	in, _ := ReadInfo(path)
	if in.EPSG != 0 || in.ModelType != modelProjected {
		t.Errorf("epsg = %d, model type = %d", in.EPSG, in.ModelType)
	}
	if !strings.HasPrefix(in.Citation, esriPECitation+`PROJCS["Local_Grid"`) {
		t.Errorf("citation = %q", in.Citation)
	}
}

func TestTagWriterESRICodeKeepsWKT(t *testing.T) {
	path, _ := writeTile(t, tiff.Uncompressed)
	wkt := `PROJCS["Africa_Albers_Equal_Area_Conic",GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Albers"],PARAMETER["Central_Meridian",25.0],UNIT["Meter",1.0]]`
	c, err := crs.ParseWKT(wkt)
	if err != nil {
		t.Fatal(err)
	}
	// ESRI:102022 does not fit a GeoKey SHORT.
	c.EPSG = 102022
	if err := (TagWriter{}).Georeference(path, sampleGT(t), c, 300); err != nil {
		t.Fatal(err)
	}
	in, _ := ReadInfo(path)
	if in.EPSG != 0 {
		t.Errorf("epsg = %d, want none in the key directory", in.EPSG)
	}
	if !strings.HasPrefix(in.Citation, esriPECitation+`PROJCS["Africa_Albers_Equal_Area_Conic"`) {
		t.Errorf("citation = %q", in.Citation)
	}
}

func TestTagWriterGeographicAndRotated(t *testing.T) {
	path, _ := writeTile(t, tiff.Uncompressed)
	gt := extent.GeoTransform{17.0, 0.001, 0.0002, -22.5, 0.0001, -0.001}
	if err := (TagWriter{}).Georeference(path, gt, crs.FromEPSG(4326), 96); err != nil {
		t.Fatal(err)
	}
	in, _ := ReadInfo(path)
	if in.GeoTransform != gt {
		t.Errorf("rotated geotransform = %v, want %v", in.GeoTransform, gt)
	}
	if in.EPSG != 4326 || in.ModelType != modelGeographic {
		t.Errorf("epsg = %d, model type = %d", in.EPSG, in.ModelType)
	}
	for _, tag := range in.Tags {
		if tag == tagModelPixelScale || tag == tagModelTiepoint {
			t.Errorf("rotated transform also wrote tag %d", tag)
		}
	}
	decode(t, path)
}

// A hand-made big-endian 1x1 grayscale TIFF with the IFD after the pixel.
func writeBigEndian(t *testing.T, path string) {
	t.Helper()
	d := &ifd{order: binary.BigEndian}
	d.set(d.shortEntry(tagImageWidth, 1))
	d.set(d.shortEntry(tagImageLength, 1))
	d.set(d.shortEntry(258, 8))
	d.set(d.shortEntry(259, 1))
	d.set(d.shortEntry(262, 1))
	d.set(entry{tag: tagStripOffsets, typ: tLong, count: 1, data: []byte{0, 0, 0, 8}})
	d.set(d.shortEntry(277, 1))
	d.set(d.shortEntry(278, 1))
	d.set(entry{tag: tagStripByteCounts, typ: tLong, count: 1, data: []byte{0, 0, 0, 1}})
	buf := []byte{'M', 'M', 0, 42, 0, 0, 0, 10, 0x80, 0}
	buf = append(buf, d.encode(10)...)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestTagWriterBigEndian(t *testing.T) {
	path := filepath.Join(t.TempDir(), "be.tif")
	writeBigEndian(t, path)
	gt := extent.GeoTransform{500000, 2, 0, 7000000, 0, -2}
	if err := (TagWriter{}).Georeference(path, gt, crs.FromEPSG(32633), 300); err != nil {
		t.Fatal(err)
	}
	in, err := ReadInfo(path)
	if err != nil {
		t.Fatal(err)
	}
	if in.GeoTransform != gt || in.EPSG != 32633 || in.Width != 1 {
		t.Errorf("info = %+v", in)
	}
	img := decode(t, path)
	if g, ok := img.(*image.Gray); !ok || g.GrayAt(0, 0).Y != 0x80 {
		t.Errorf("decoded %T %v", img, img.At(0, 0))
	}
}

func TestNotTIFF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.tiff")
	os.WriteFile(path, []byte("PK\x03\x04 not a tiff"), 0o644)
	if err := (TagWriter{}).Georeference(path, extent.GeoTransform{}, crs.CRS{}, 0); !errors.Is(err, ErrNotTIFF) {
		t.Errorf("err = %v", err)
	}
	if _, err := ReadInfo(path); !errors.Is(err, ErrNotTIFF) {
		t.Errorf("ReadInfo err = %v", err)
	}
}

func TestWorldFile(t *testing.T) {
	dir := t.TempDir()
	raster := filepath.Join(dir, "12_Downtown_Core.tiff")
	gt := extent.GeoTransform{99315.893, 0.456, 0, 200684.107, 0, -0.456}
	c, _ := crs.ParseWKT(utm33s)
	if err := WriteWorldFile(raster, gt, c); err != nil {
		t.Fatal(err)
	}
	if WorldFilePath(raster) != filepath.Join(dir, "12_Downtown_Core.tfw") {
		t.Errorf("world file path = %s", WorldFilePath(raster))
	}
	b, err := os.ReadFile(WorldFilePath(raster))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Fields(string(b))
	if len(lines) != 6 || lines[0] != "0.456" || lines[1] != "0" || lines[3] != "-0.456" {
		t.Fatalf("world file = %q", lines)
	}
	// C and F name the centre of the top-left pixel.
	if c, _ := strconv.ParseFloat(lines[4], 64); math.Abs(c-99316.121) > 1e-6 {
		t.Errorf("C = %s", lines[4])
	}
	back, err := ReadWorldFile(WorldFilePath(raster))
	if err != nil {
		t.Fatal(err)
	}
	for i := range gt {
		if math.Abs(back[i]-gt[i]) > 1e-9 {
			t.Errorf("gt[%d] = %v, want %v", i, back[i], gt[i])
		}
	}
	prj, err := os.ReadFile(filepath.Join(dir, "12_Downtown_Core.prj"))
	if err != nil || string(prj) != utm33s {
		t.Errorf("prj = %q, %v", prj, err)
	}
}

func TestParseCompressionAndNew(t *testing.T) {
	if c, err := ParseCompression("Deflate"); err != nil || c != tiff.Deflate {
		t.Errorf("deflate = %v, %v", c, err)
	}
	if _, err := ParseCompression("lzw"); err == nil {
		t.Error("lzw accepted")
	}
	if g, err := New("tags"); err != nil || g == nil {
		t.Errorf("New(tags) = %v, %v", g, err)
	}
	if _, err := New("mapnik"); !errors.Is(err, ErrUnknownGeoreferencer) {
		t.Errorf("New(mapnik) err = %v", err)
	}
}
