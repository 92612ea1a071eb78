package export

import (
	"errors"
	"fmt"

	"tilexport/internal/extent"
	"tilexport/internal/naming"
)

// Reason classifies why a feature produced no tile.
type Reason string

const (
	ReasonMissingID        Reason = "missing_id"
	ReasonMissingLabel     Reason = "missing_label"
	ReasonEmptyGeometry    Reason = "empty_geometry"
	ReasonDegenerateExtent Reason = "degenerate_extent"
	ReasonOversizeRaster   Reason = "oversize_raster"
	ReasonDuplicateName    Reason = "duplicate_name"
	ReasonRender           Reason = "render"
	ReasonWrite            Reason = "write"
	ReasonGeoreference     Reason = "georeference"
)

var (
	ErrMissingID    = errors.New("feature has no id")
	ErrMissingLabel = errors.New("feature has no label")
)

// FeatureError reports one feature that could not be exported.
type FeatureError struct {
	Index  int
	ID     string
	Reason Reason
	Err    error
}

func (e *FeatureError) Error() string {
	id := e.ID
	if id == "" {
		id = "?"
	}
	return fmt.Sprintf("feature %d (id %s): %s: %v", e.Index, id, e.Reason, e.Err)
}

func (e *FeatureError) Unwrap() error { return e.Err }

// reasonFor maps extent and naming errors to a Reason.
func reasonFor(err error) Reason {
	switch {
	case errors.Is(err, extent.ErrEmptyGeometry):
		return ReasonEmptyGeometry
	case errors.Is(err, extent.ErrOversizeRaster):
		return ReasonOversizeRaster
	case errors.Is(err, naming.ErrDuplicateName):
		return ReasonDuplicateName
	}
	return ReasonDegenerateExtent
}
