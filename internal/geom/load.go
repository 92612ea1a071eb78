package geom

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tilexport/internal/crs"
)

// Supported reports whether Load knows the file extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp", ".geojson", ".json", ".csv", ".wkt", ".kml":
		return true
	}
	return false
}

// Load opens a vector dataset, picking the reader from the file extension,
// and resolves each feature's ID and label from the configured fields.
// Every failure wraps ErrInvalidLayer.
func Load(path string, opts LoadOptions) (*Layer, error) {
	if opts.IDField == "" {
		opts.IDField = "ID"
	}
	if opts.LabelField == "" {
		opts.LabelField = "Label"
	}
	base := filepath.Base(path)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLayer, err)
	}

	var (
		l   *Layer
		err error
	)
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".shp":
		l, err = loadShapefile(path, opts.RequireID)
	case ".geojson", ".json":
		l, err = loadGeoJSON(path)
	case ".csv":
		l, err = loadCSV(path)
	case ".wkt":
		l, err = loadWKTFile(path, opts.IDField)
	case ".kml":
		l, err = loadKML(path)
	default:
		return nil, fmt.Errorf("%w: unsupported file: %s", ErrInvalidLayer, base)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidLayer, base, err)
	}
	if len(l.Features) == 0 {
		return nil, fmt.Errorf("%w: %s: no features", ErrInvalidLayer, base)
	}

	if opts.RequireID && !l.hasAttr(opts.IDField) {
		return nil, fmt.Errorf("%w: %s: no %q field", ErrInvalidLayer, base, opts.IDField)
	}

	l.Path = path
	l.Name = strings.TrimSuffix(base, filepath.Ext(base))
	if opts.CRSOverride != nil {
		l.CRS = *opts.CRSOverride
	}
	first := true
	for i := range l.Features {
		f := &l.Features[i]
		f.Index = i
		f.ID = strings.TrimSpace(f.Attrs[opts.IDField])
		f.Label = strings.TrimSpace(f.Attrs[opts.LabelField])
		bb, ok := BoundsOf(f.Geometry)
		if !ok {
			continue
		}
		if first {
			l.BBox = bb
			first = false
		} else {
			l.BBox = l.BBox.Extend(bb)
		}
	}
	return l, nil
}

// sidecarCRS reads the .prj next to a dataset that has no CRS of its own.
func sidecarCRS(path string) (crs.CRS, error) {
	return crs.LoadPRJ(path)
}
