package export

import (
	"log/slog"
	"time"

	"github.com/paulmach/orb"

	"tilexport/internal/extent"
	"tilexport/internal/geom"
)

// Result describes one feature after it was planned or exported.
type Result struct {
	Index        int
	ID           string
	Label        string
	Name         string
	Path         string
	Extent       geom.BBox
	Size         extent.Size
	GeoTransform extent.GeoTransform
	Geometry     orb.Geometry
	Elapsed      time.Duration
	Err          *FeatureError
}

// Summary totals one run.
type Summary struct {
	Layer     string
	OutputDir string
	Total     int
	Exported  int
	Skipped   int
	Failures  []FeatureError
	Elapsed   time.Duration
}

// Observer is told about progress as features are exported. Calls come
// from the exporting goroutine, in feature order.
type Observer interface {
	Started(layer string, total int)
	FeatureDone(r Result)
	Finished(s Summary)
}

// Multi fans each call out to every observer in order.
type Multi []Observer

func (m Multi) Started(layer string, total int) {
	for _, o := range m {
		o.Started(layer, total)
	}
}

func (m Multi) FeatureDone(r Result) {
	for _, o := range m {
		o.FeatureDone(r)
	}
}

func (m Multi) Finished(s Summary) {
	for _, o := range m {
		o.Finished(s)
	}
}

// LogObserver writes one structured record per event.
type LogObserver struct {
	L *slog.Logger
}

func (o LogObserver) Started(layer string, total int) {
	o.L.Info("export_started", "layer", layer, "features", total)
}

func (o LogObserver) FeatureDone(r Result) {
	if r.Err != nil {
		o.L.Warn("feature_skipped",
			"index", r.Index,
			"id", r.ID,
			"reason", string(r.Err.Reason),
			"err", r.Err.Err,
		)
		return
	}
	o.L.Info("feature_exported",
		"index", r.Index,
		"id", r.ID,
		"file", r.Path,
		"width", r.Size.Width,
		"height", r.Size.Height,
		"duration_ms", r.Elapsed.Milliseconds(),
	)
}

func (o LogObserver) Finished(s Summary) {
	o.L.Info("export_finished",
		"layer", s.Layer,
		"exported", s.Exported,
		"skipped", s.Skipped,
		"total", s.Total,
		"duration_ms", s.Elapsed.Milliseconds(),
	)
}
