//go:build !gdal

package geotiff

import "errors"

var ErrGDALUnavailable = errors.New("gdal georeferencer not built in (rebuild with -tags gdal)")

func newGDAL() (Georeferencer, error) {
	return nil, ErrGDALUnavailable
}
