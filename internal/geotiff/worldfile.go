package geotiff

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tilexport/internal/crs"
	"tilexport/internal/extent"
)

// WorldFilePath maps raster.tiff to raster.tfw.
func WorldFilePath(raster string) string {
	return strings.TrimSuffix(raster, filepath.Ext(raster)) + ".tfw"
}

// PRJPath maps raster.tiff to raster.prj.
func PRJPath(raster string) string {
	return strings.TrimSuffix(raster, filepath.Ext(raster)) + ".prj"
}

// WriteWorldFile writes the ESRI world file next to raster and, when c
// carries WKT, a .prj with it. World files reference the centre of the
// top-left pixel.
func WriteWorldFile(raster string, gt extent.GeoTransform, c crs.CRS) error {
	cx, cy := gt.Apply(0.5, 0.5)
	lines := []float64{gt[1], gt[4], gt[2], gt[5], cx, cy}
	var b strings.Builder
	for _, v := range lines {
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		b.WriteByte('\n')
	}
	if err := os.WriteFile(WorldFilePath(raster), []byte(b.String()), 0o644); err != nil {
		return err
	}
	if c.WKT == "" {
		return nil
	}
	return os.WriteFile(PRJPath(raster), []byte(c.WKT), 0o644)
}

// ReadWorldFile parses a six-line world file back into a geotransform.
func ReadWorldFile(path string) (extent.GeoTransform, error) {
	f, err := os.Open(path)
	if err != nil {
		return extent.GeoTransform{}, err
	}
	defer f.Close()
	var v []float64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		x, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return extent.GeoTransform{}, fmt.Errorf("%s line %d: %w", filepath.Base(path), len(v)+1, err)
		}
		v = append(v, x)
	}
	if err := sc.Err(); err != nil {
		return extent.GeoTransform{}, err
	}
	if len(v) != 6 {
		return extent.GeoTransform{}, fmt.Errorf("%s: %d values, want 6", filepath.Base(path), len(v))
	}
	a, d, b, e, c, f2 := v[0], v[1], v[2], v[3], v[4], v[5]
	return extent.GeoTransform{c - a/2 - b/2, a, b, f2 - d/2 - e/2, d, e}, nil
}
