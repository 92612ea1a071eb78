//go:build gdal

package geotiff

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/airbusgeo/godal"

	"tilexport/internal/crs"
	"tilexport/internal/extent"
)

var registerDrivers sync.Once

// GDAL georeferences through libgdal, the same calls a GDAL script makes:
// open for update, set the geotransform and spatial reference, close.
type GDAL struct{}

func newGDAL() (Georeferencer, error) {
	registerDrivers.Do(godal.RegisterInternalDrivers)
	return GDAL{}, nil
}

func (GDAL) Georeference(path string, gt extent.GeoTransform, c crs.CRS, dpi float64) (err error) {
	ds, err := godal.Open(path, godal.Update())
	if err != nil {
		return fmt.Errorf("gdal open %s: %w", path, err)
	}
	defer func() {
		if cerr := ds.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("gdal close %s: %w", path, cerr)
		}
	}()
	if err := ds.SetGeoTransform([6]float64(gt)); err != nil {
		return fmt.Errorf("set geotransform: %w", err)
	}
	if sr, err := spatialRef(c); err != nil {
		return err
	} else if sr != nil {
		defer sr.Close()
		if err := ds.SetSpatialRef(sr); err != nil {
			return fmt.Errorf("set spatial ref: %w", err)
		}
	}
	if dpi > 0 {
		v := strconv.FormatFloat(dpi, 'f', -1, 64)
		for _, key := range []string{"TIFFTAG_XRESOLUTION", "TIFFTAG_YRESOLUTION"} {
			if err := ds.SetMetadata(key, v); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
		if err := ds.SetMetadata("TIFFTAG_RESOLUTIONUNIT", "2"); err != nil {
			return fmt.Errorf("set TIFFTAG_RESOLUTIONUNIT: %w", err)
		}
	}
	return nil
}

func spatialRef(c crs.CRS) (*godal.SpatialRef, error) {
	switch {
	case c.WKT != "":
		sr, err := godal.NewSpatialRefFromWKT(c.WKT)
		if err != nil {
			return nil, fmt.Errorf("parse crs wkt: %w", err)
		}
		return sr, nil
	case c.EPSG > 0:
		sr, err := godal.NewSpatialRefFromEPSG(c.EPSG)
		if err != nil {
			return nil, fmt.Errorf("epsg %d: %w", c.EPSG, err)
		}
		return sr, nil
	}
	return nil, nil
}
