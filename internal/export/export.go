// Package export runs the per-feature tile export: extent, name, render,
// write and georeference, one feature at a time.
package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/tiff"

	"tilexport/internal/config"
	"tilexport/internal/crs"
	"tilexport/internal/extent"
	"tilexport/internal/geom"
	"tilexport/internal/geotiff"
	"tilexport/internal/logger"
	"tilexport/internal/naming"
	"tilexport/internal/render"
)

// Ext is the extension of every exported tile.
const Ext = ".tiff"

type Exporter struct {
	cfg         *config.Config
	renderer    *render.Renderer
	georef      geotiff.Georeferencer
	compression tiff.CompressionType
	policy      naming.Policy
	observer    Observer
	log         *slog.Logger
}

type Option func(*Exporter)

func WithObserver(o Observer) Option { return func(e *Exporter) { e.observer = o } }

func WithGeoreferencer(g geotiff.Georeferencer) Option {
	return func(e *Exporter) { e.georef = g }
}

func WithLogger(l *slog.Logger) Option { return func(e *Exporter) { e.log = l } }

// New builds an Exporter from a validated config.
func New(cfg *config.Config, opts ...Option) (*Exporter, error) {
	bg, err := render.ParseColor(cfg.Background)
	if err != nil {
		return nil, fmt.Errorf("background: %w", err)
	}
	comp, err := geotiff.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	policy, err := naming.ParsePolicy(cfg.OnDuplicate)
	if err != nil {
		return nil, err
	}
	e := &Exporter{
		cfg:         cfg,
		renderer:    render.New(bg, cfg.DPI),
		compression: comp,
		policy:      policy,
		log:         logger.L(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.georef == nil {
		if e.georef, err = geotiff.New(cfg.Georeferencer); err != nil {
			return nil, err
		}
	}
	if e.observer == nil {
		e.observer = LogObserver{L: e.log}
	}
	return e, nil
}

// LoadLayers opens the main layer and the context layers and pairs each
// with its style, main layer last so it draws on top.
func (e *Exporter) LoadLayers() (*geom.Layer, []render.StyledLayer, error) {
	override, err := e.cfg.CRSOverride()
	if err != nil {
		return nil, nil, err
	}
	opts := geom.LoadOptions{
		IDField:     e.cfg.IDField,
		LabelField:  e.cfg.LabelField,
		CRSOverride: override,
		RequireID:   true,
	}
	main, err := geom.Load(e.cfg.Input, opts)
	if err != nil {
		return nil, nil, err
	}
	e.log.Info("layer_loaded",
		"layer", main.Name,
		"features", len(main.Features),
		"crs", main.CRS.String(),
	)

	var layers []render.StyledLayer
	for _, cl := range e.cfg.ContextLayers {
		l, err := geom.Load(cl.Path, geom.LoadOptions{CRSOverride: override})
		if err != nil {
			return nil, nil, fmt.Errorf("context layer: %w", err)
		}
		st, err := cl.Style.Build()
		if err != nil {
			return nil, nil, err
		}
		if !sameCRS(l.CRS, main.CRS) {
			e.log.Warn("context_layer_crs_mismatch", "layer", l.Name, "crs", l.CRS.String(), "main_crs", main.CRS.String())
		}
		layers = append(layers, render.StyledLayer{Layer: l, Style: st})
	}
	st, err := e.cfg.MainStyle()
	if err != nil {
		return nil, nil, err
	}
	layers = append(layers, render.StyledLayer{Layer: main, Style: st})
	return main, layers, nil
}

func sameCRS(a, b crs.CRS) bool {
	if a.EPSG > 0 || b.EPSG > 0 {
		return a.EPSG == b.EPSG
	}
	return a.IsZero() || b.IsZero() || a.Name == b.Name
}

// Plan computes name, extent, size and geotransform for every feature
// without rendering. Failed features carry Err.
func (e *Exporter) Plan(l *geom.Layer) []Result {
	reg := naming.NewRegistry(e.policy)
	out := make([]Result, 0, len(l.Features))
	for _, f := range l.Features {
		r, _ := e.prepare(l, f, reg)
		out = append(out, r)
	}
	return out
}

// Run exports every feature of the configured layer. It returns a
// *FeatureError when a feature fails under the abort policy, and ctx.Err()
// when cancelled between features.
func (e *Exporter) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	main, layers, err := e.LoadLayers()
	if err != nil {
		return Summary{}, err
	}
	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create output dir: %w", err)
	}
	if e.cfg.Mode == config.ModeFixedScale && main.CRS.Kind == crs.Geographic {
		e.log.Warn("fixed_scale_geographic_crs", "crs", main.CRS.String())
	}

	sum := Summary{Layer: main.Name, OutputDir: e.cfg.OutputDir, Total: len(main.Features)}
	finish := func() Summary {
		sum.Elapsed = time.Since(start)
		e.observer.Finished(sum)
		return sum
	}

	e.observer.Started(main.Name, len(main.Features))
	reg := naming.NewRegistry(e.policy)
	for _, f := range main.Features {
		if err := ctx.Err(); err != nil {
			return finish(), err
		}
		r := e.exportFeature(main, layers, f, reg)
		e.observer.FeatureDone(r)
		if r.Err == nil {
			sum.Exported++
			continue
		}
		sum.Skipped++
		sum.Failures = append(sum.Failures, *r.Err)
		if e.cfg.OnError == config.OnErrorAbort {
			return finish(), r.Err
		}
	}
	return finish(), nil
}

func (e *Exporter) exportFeature(l *geom.Layer, layers []render.StyledLayer, f geom.Feature, reg *naming.Registry) Result {
	start := time.Now()
	r, ferr := e.prepare(l, f, reg)
	if ferr != nil {
		return r
	}
	// A failed feature gives its name back and leaves no file behind.
	fail := func(reason Reason, err error) Result {
		reg.Release(r.Name)
		if reason == ReasonWrite || reason == ReasonGeoreference {
			e.discard(r.Path)
		}
		r.Err = &FeatureError{Index: f.Index, ID: f.ID, Reason: reason, Err: err}
		r.Elapsed = time.Since(start)
		return r
	}

	img, err := e.renderer.Render(layers, r.Extent, r.Size)
	if err != nil {
		return fail(ReasonRender, err)
	}
	if err := geotiff.WriteTIFF(r.Path, img, e.compression); err != nil {
		return fail(ReasonWrite, err)
	}
	if err := e.georef.Georeference(r.Path, r.GeoTransform, l.CRS, e.cfg.DPI); err != nil {
		return fail(ReasonGeoreference, err)
	}
	if e.cfg.WorldFile {
		if err := geotiff.WriteWorldFile(r.Path, r.GeoTransform, l.CRS); err != nil {
			return fail(ReasonWrite, err)
		}
	}
	r.Elapsed = time.Since(start)
	return r
}

// discard removes a tile and its sidecars after a failed write.
func (e *Exporter) discard(path string) {
	for _, p := range []string{path, geotiff.WorldFilePath(path), geotiff.PRJPath(path)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			e.log.Warn("remove_partial_output", "path", p, "err", err)
		}
	}
}

// prepare validates f and works out everything but the pixels.
func (e *Exporter) prepare(l *geom.Layer, f geom.Feature, reg *naming.Registry) (Result, *FeatureError) {
	r := Result{Index: f.Index, ID: f.ID, Label: f.Label, Geometry: f.Geometry}
	fail := func(reason Reason, err error) (Result, *FeatureError) {
		r.Err = &FeatureError{Index: f.Index, ID: f.ID, Reason: reason, Err: err}
		return r, r.Err
	}

	if f.ID == "" {
		return fail(ReasonMissingID, fmt.Errorf("%w: field %q", ErrMissingID, e.cfg.IDField))
	}
	if f.Label == "" && l.HasField(e.cfg.LabelField) {
		return fail(ReasonMissingLabel, fmt.Errorf("%w: field %q", ErrMissingLabel, e.cfg.LabelField))
	}

	var err error
	switch e.cfg.Mode {
	case config.ModeBBox:
		r.Extent, r.Size, err = extent.PaddedBounds(f.Geometry, e.cfg.BBoxParams())
	default:
		p := e.cfg.FixedScaleParams()
		if l.CRS.Kind == crs.Projected && l.CRS.UnitsToMeters > 0 {
			p.MetersPerUnit = l.CRS.UnitsToMeters
		}
		r.Extent, r.Size, err = extent.FixedScale(f.Geometry, p)
	}
	if err != nil {
		return fail(reasonFor(err), err)
	}
	if r.GeoTransform, err = extent.NewGeoTransform(r.Extent, r.Size.Width, r.Size.Height); err != nil {
		return fail(ReasonDegenerateExtent, err)
	}

	name, err := reg.Claim(naming.Sanitize(naming.Base(f.ID, f.Label)))
	if err != nil {
		return fail(reasonFor(err), err)
	}
	r.Name = name
	r.Path = filepath.Join(e.cfg.OutputDir, name+Ext)
	return r, nil
}

// IsFeatureError reports whether err came from a single feature rather
// than from loading or setup.
func IsFeatureError(err error) bool {
	var fe *FeatureError
	return errors.As(err, &fe)
}
