// Package geotiff writes rendered tiles as TIFF files and attaches the
// georeferencing that GIS software needs to place them.
package geotiff

import (
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"strings"

	"golang.org/x/image/tiff"

	"tilexport/internal/crs"
	"tilexport/internal/extent"
)

// Georeferencer stores a geotransform and CRS in an existing raster file.
type Georeferencer interface {
	Georeference(path string, gt extent.GeoTransform, c crs.CRS, dpi float64) error
}

var ErrUnknownGeoreferencer = errors.New("unknown georeferencer")

// New returns the backend registered under name: "tags" (pure Go) or
// "gdal" (needs the gdal build tag).
func New(name string) (Georeferencer, error) {
	switch strings.ToLower(name) {
	case "", "tags":
		return TagWriter{}, nil
	case "gdal":
		return newGDAL()
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownGeoreferencer, name)
}

// ParseCompression maps a config value to a TIFF compression scheme.
func ParseCompression(s string) (tiff.CompressionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return tiff.Uncompressed, nil
	case "deflate":
		return tiff.Deflate, nil
	}
	return tiff.Uncompressed, fmt.Errorf("unknown compression %q", s)
}

// WriteTIFF encodes img to path, replacing any existing file. The file is
// closed before WriteTIFF returns.
func WriteTIFF(path string, img image.Image, c tiff.CompressionType) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return tiff.Encode(f, img, &tiff.Options{Compression: c, Predictor: c == tiff.Deflate})
}

// TagWriter georeferences a TIFF in place by rewriting its first IFD with
// GeoTIFF tags. Pixel data is left untouched.
type TagWriter struct{}

func (TagWriter) Georeference(path string, gt extent.GeoTransform, c crs.CRS, dpi float64) (err error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	d, err := readIFD(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		return err
	}

	applyGeoTags(d, gt, c, dpi)

	// A lone IFD after the pixel data is ours to replace; otherwise append.
	start := uint32(st.Size())
	if d.next == 0 {
		end, err := d.dataEnd()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if end >= 8 && int64(end) <= st.Size() {
			start = end
		}
	}
	start += start % 2
	buf := d.encode(start)
	if _, err := f.WriteAt(buf, int64(start)); err != nil {
		return err
	}
	var ptr [4]byte
	d.order.PutUint32(ptr[:], start)
	if _, err := f.WriteAt(ptr[:], 4); err != nil {
		return err
	}
	if size := int64(start) + int64(len(buf)); size < st.Size() {
		return f.Truncate(size)
	}
	return nil
}

func applyGeoTags(d *ifd, gt extent.GeoTransform, c crs.CRS, dpi float64) {
	if gt.NorthUp() {
		d.remove(tagModelTransformation)
		d.set(d.doubleEntry(tagModelPixelScale, gt[1], -gt[5], 0))
		d.set(d.doubleEntry(tagModelTiepoint, 0, 0, 0, gt[0], gt[3], 0))
	} else {
		d.remove(tagModelPixelScale)
		d.remove(tagModelTiepoint)
		d.set(d.doubleEntry(tagModelTransformation,
			gt[1], gt[2], 0, gt[0],
			gt[4], gt[5], 0, gt[3],
			0, 0, 0, 0,
			0, 0, 0, 1))
	}
	dir, ascii := geoKeys(c)
	d.set(d.shortEntry(tagGeoKeyDirectory, dir...))
	d.remove(tagGeoDoubleParams)
	if ascii != "" {
		d.set(asciiEntry(tagGeoASCIIParams, ascii))
	} else {
		d.remove(tagGeoASCIIParams)
	}
	if dpi > 0 {
		num, den := rational(dpi)
		d.set(d.rationalEntry(tagXResolution, num, den))
		d.set(d.rationalEntry(tagYResolution, num, den))
		d.set(d.shortEntry(tagResolutionUnit, 2))
	}
}

func rational(v float64) (uint32, uint32) {
	if v == math.Trunc(v) {
		return uint32(v), 1
	}
	return uint32(math.Round(v * 1000)), 1000
}
