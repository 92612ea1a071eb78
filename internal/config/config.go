package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tilexport/internal/crs"
	"tilexport/internal/extent"
	"tilexport/internal/geom"
	"tilexport/internal/geotiff"
	"tilexport/internal/naming"
	"tilexport/internal/render"
)

// Export modes.
const (
	ModeFixedScale = "fixed_scale"
	ModeBBox       = "bbox"
)

// Per-feature failure policies.
const (
	OnErrorSkip  = "skip"
	OnErrorAbort = "abort"
)

var ErrInvalid = errors.New("invalid config")

// Config represents one export run.
type Config struct {
	Input         string           `yaml:"input"`
	OutputDir     string           `yaml:"output_dir"`
	Mode          string           `yaml:"mode"`
	IDField       string           `yaml:"id_field"`
	LabelField    string           `yaml:"label_field"`
	DPI           float64          `yaml:"dpi"`
	FixedScale    FixedScaleConfig `yaml:"fixed_scale"`
	BBox          BBoxConfig       `yaml:"bbox"`
	Style         StyleConfig      `yaml:"style"`
	Background    string           `yaml:"background"`
	ContextLayers []ContextLayer   `yaml:"context_layers"`
	CRS           CRSConfig        `yaml:"crs"`
	OnError       string           `yaml:"on_error"`
	OnDuplicate   string           `yaml:"on_duplicate"`
	Georeferencer string           `yaml:"georeferencer"`
	Compression   string           `yaml:"compression"`
	WorldFile     bool             `yaml:"world_file"`
	Log           LogConfig        `yaml:"log"`
}

type FixedScaleConfig struct {
	Scale        float64 `yaml:"scale"`
	WindowPx     float64 `yaml:"window_px"`
	ReferenceDPI float64 `yaml:"reference_dpi"`
	Size         int     `yaml:"size"`
}

type BBoxConfig struct {
	Padding  float64 `yaml:"padding"`
	Height   int     `yaml:"height"`
	Rounding string  `yaml:"rounding"`
	MaxWidth int     `yaml:"max_width"`
}

type StyleConfig struct {
	Stroke        string  `yaml:"stroke"`
	StrokeWidthMM float64 `yaml:"stroke_width_mm"`
	Fill          string  `yaml:"fill"`
}

type ContextLayer struct {
	Path  string      `yaml:"path"`
	Style StyleConfig `yaml:"style"`
}

// CRSConfig overrides the CRS read from the dataset. WKT wins over EPSG.
type CRSConfig struct {
	EPSG int    `yaml:"epsg"`
	WKT  string `yaml:"wkt"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns the stock settings: 1:6464 over an 800 px window at 96 dpi,
// 3000 px tiles at 300 dpi and a red 0.5 mm outline.
func Default() *Config {
	fs := extent.DefaultFixedScale()
	bb := extent.DefaultBBox()
	return &Config{
		Mode:       ModeFixedScale,
		IDField:    "ID",
		LabelField: "Label",
		DPI:        300,
		FixedScale: FixedScaleConfig{
			Scale:        fs.Scale,
			WindowPx:     fs.WindowPx,
			ReferenceDPI: fs.ReferenceDPI,
			Size:         fs.Size,
		},
		BBox: BBoxConfig{
			Padding:  bb.Padding,
			Height:   bb.Height,
			Rounding: bb.Rounding.String(),
			MaxWidth: bb.MaxWidth,
		},
		Style:         StyleConfig{Stroke: "red", StrokeWidthMM: 0.5, Fill: "none"},
		Background:    "white",
		OnError:       OnErrorSkip,
		OnDuplicate:   naming.Suffix.String(),
		Georeferencer: "tags",
		Compression:   "none",
		Log:           LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read layers the environment over Default and the file over both,
// without validating, so callers can apply flags first.
func Read(path string) (*Config, error) {
	cfg := Default()
	cfg.ApplyEnv()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from TILEXPORT_* and LOG_* variables.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Input, "TILEXPORT_INPUT")
	set(&c.OutputDir, "TILEXPORT_OUTPUT_DIR")
	set(&c.Mode, "TILEXPORT_MODE")
	set(&c.Log.Level, "LOG_LEVEL")
	set(&c.Log.Format, "LOG_FORMAT")
}

func invalid(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalid, field, fmt.Sprintf(format, args...))
}

// Validate checks every field an export depends on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Input) == "" {
		return invalid("input", "is required")
	}
	if !geom.Supported(c.Input) {
		return invalid("input", "%q is not a supported vector format", c.Input)
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return invalid("output_dir", "is required")
	}
	switch c.Mode {
	case ModeFixedScale, ModeBBox:
	default:
		return invalid("mode", "%q is not fixed_scale or bbox", c.Mode)
	}
	if c.IDField == "" {
		return invalid("id_field", "is required")
	}
	if c.DPI <= 0 {
		return invalid("dpi", "must be positive, got %v", c.DPI)
	}
	fs := c.FixedScale
	switch {
	case fs.Scale <= 0:
		return invalid("fixed_scale.scale", "must be positive, got %v", fs.Scale)
	case fs.WindowPx <= 0:
		return invalid("fixed_scale.window_px", "must be positive, got %v", fs.WindowPx)
	case fs.ReferenceDPI <= 0:
		return invalid("fixed_scale.reference_dpi", "must be positive, got %v", fs.ReferenceDPI)
	case fs.Size <= 0:
		return invalid("fixed_scale.size", "must be positive, got %d", fs.Size)
	}
	bb := c.BBox
	switch {
	case bb.Padding < 0:
		return invalid("bbox.padding", "must not be negative, got %v", bb.Padding)
	case bb.Height <= 0:
		return invalid("bbox.height", "must be positive, got %d", bb.Height)
	case bb.MaxWidth < 0:
		return invalid("bbox.max_width", "must not be negative, got %d", bb.MaxWidth)
	}
	if _, err := extent.ParseRounding(bb.Rounding); err != nil {
		return invalid("bbox.rounding", "%v", err)
	}
	if _, err := c.MainStyle(); err != nil {
		return invalid("style", "%v", err)
	}
	if _, err := render.ParseColor(c.Background); err != nil {
		return invalid("background", "%v", err)
	}
	for i, cl := range c.ContextLayers {
		if cl.Path == "" {
			return invalid(fmt.Sprintf("context_layers[%d].path", i), "is required")
		}
		if !geom.Supported(cl.Path) {
			return invalid(fmt.Sprintf("context_layers[%d].path", i), "%q is not a supported vector format", cl.Path)
		}
		if _, err := cl.Style.Build(); err != nil {
			return invalid(fmt.Sprintf("context_layers[%d].style", i), "%v", err)
		}
	}
	if _, err := c.CRSOverride(); err != nil {
		return invalid("crs.wkt", "%v", err)
	}
	switch c.OnError {
	case OnErrorSkip, OnErrorAbort:
	default:
		return invalid("on_error", "%q is not skip or abort", c.OnError)
	}
	if _, err := naming.ParsePolicy(c.OnDuplicate); err != nil {
		return invalid("on_duplicate", "%v", err)
	}
	switch strings.ToLower(c.Georeferencer) {
	case "tags", "gdal":
	default:
		return invalid("georeferencer", "%q is not tags or gdal", c.Georeferencer)
	}
	if _, err := geotiff.ParseCompression(c.Compression); err != nil {
		return invalid("compression", "%v", err)
	}
	return nil
}

// Build turns the YAML style into a render.Style.
func (s StyleConfig) Build() (render.Style, error) {
	stroke, err := render.ParseColor(s.Stroke)
	if err != nil {
		return render.Style{}, err
	}
	fill, err := render.ParseColor(s.Fill)
	if err != nil {
		return render.Style{}, err
	}
	if s.StrokeWidthMM < 0 {
		return render.Style{}, fmt.Errorf("stroke_width_mm must not be negative, got %v", s.StrokeWidthMM)
	}
	if stroke != nil && s.StrokeWidthMM == 0 {
		s.StrokeWidthMM = render.DefaultStyle().StrokeWidthMM
	}
	return render.Style{Stroke: stroke, StrokeWidthMM: s.StrokeWidthMM, Fill: fill}, nil
}

func (c *Config) MainStyle() (render.Style, error) { return c.Style.Build() }

func (c *Config) FixedScaleParams() extent.FixedScaleParams {
	return extent.FixedScaleParams{
		Scale:        c.FixedScale.Scale,
		WindowPx:     c.FixedScale.WindowPx,
		ReferenceDPI: c.FixedScale.ReferenceDPI,
		Size:         c.FixedScale.Size,
	}
}

func (c *Config) BBoxParams() extent.BBoxParams {
	r, _ := extent.ParseRounding(c.BBox.Rounding)
	return extent.BBoxParams{
		Padding:  c.BBox.Padding,
		Height:   c.BBox.Height,
		Rounding: r,
		MaxWidth: c.BBox.MaxWidth,
	}
}

// CRSOverride returns nil when the config names no CRS.
func (c *Config) CRSOverride() (*crs.CRS, error) {
	switch {
	case strings.TrimSpace(c.CRS.WKT) != "":
		v, err := crs.ParseWKT(c.CRS.WKT)
		if err != nil {
			return nil, err
		}
		return &v, nil
	case c.CRS.EPSG > 0:
		v := crs.FromEPSG(c.CRS.EPSG)
		return &v, nil
	}
	return nil, nil
}
