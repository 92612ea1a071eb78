package extent

import (
	"fmt"

	"tilexport/internal/geom"
)

// GeoTransform maps pixel (col, row) to CRS coordinates:
//
//	x = gt[0] + col*gt[1] + row*gt[2]
//	y = gt[3] + col*gt[4] + row*gt[5]
//
// It uses the GDAL coefficient order.
type GeoTransform [6]float64

// NewGeoTransform builds the north-up transform that stretches e over a
// w x h raster. gt[5] is negative: rows run from yMax down to yMin.
func NewGeoTransform(e geom.BBox, w, h int) (GeoTransform, error) {
	if w <= 0 || h <= 0 {
		return GeoTransform{}, fmt.Errorf("%w: %dx%d", ErrZeroSize, w, h)
	}
	return GeoTransform{
		e.MinX,
		(e.MaxX - e.MinX) / float64(w),
		0,
		e.MaxY,
		0,
		(e.MinY - e.MaxY) / float64(h),
	}, nil
}

// Apply maps a pixel position to CRS coordinates.
func (gt GeoTransform) Apply(px, py float64) (float64, float64) {
	return gt[0] + px*gt[1] + py*gt[2], gt[3] + px*gt[4] + py*gt[5]
}

// Invert returns the transform from CRS coordinates back to pixels.
func (gt GeoTransform) Invert() (GeoTransform, bool) {
	det := gt[1]*gt[5] - gt[2]*gt[4]
	if det == 0 {
		return GeoTransform{}, false
	}
	inv := GeoTransform{}
	inv[1] = gt[5] / det
	inv[2] = -gt[2] / det
	inv[4] = -gt[4] / det
	inv[5] = gt[1] / det
	inv[0] = -(inv[1]*gt[0] + inv[2]*gt[3])
	inv[3] = -(inv[4]*gt[0] + inv[5]*gt[3])
	return inv, true
}

// NorthUp reports whether both rotation terms are zero.
func (gt GeoTransform) NorthUp() bool { return gt[2] == 0 && gt[4] == 0 }

// PixelSize returns the ground size of one pixel as positive numbers for a
// north-up transform.
func (gt GeoTransform) PixelSize() (float64, float64) { return gt[1], -gt[5] }

// Corners returns the CRS positions of the raster corners in the order
// top-left, top-right, bottom-right, bottom-left.
func (gt GeoTransform) Corners(w, h int) [4][2]float64 {
	var out [4][2]float64
	for i, p := range [4][2]float64{{0, 0}, {float64(w), 0}, {float64(w), float64(h)}, {0, float64(h)}} {
		x, y := gt.Apply(p[0], p[1])
		out[i] = [2]float64{x, y}
	}
	return out
}

func (gt GeoTransform) String() string {
	return fmt.Sprintf("[%.6f, %.9f, %g, %.6f, %g, %.9f]", gt[0], gt[1], gt[2], gt[3], gt[4], gt[5])
}
