package main

import (
	"flag"
	"io"

	"tilexport/internal/config"
)

type options struct {
	configPath string
	input      string
	out        string
	mode       string
	scale      float64
	dryRun     bool
	watch      bool
	plain      bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("tilexport", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "YAML config file")
	fs.StringVar(&o.input, "input", "", "vector dataset (.shp, .geojson, .csv, .wkt, .kml)")
	fs.StringVar(&o.out, "out", "", "output directory")
	fs.StringVar(&o.mode, "mode", "", "fixed_scale or bbox")
	fs.Float64Var(&o.scale, "scale", 0, "map scale denominator for fixed_scale mode")
	fs.BoolVar(&o.dryRun, "dry-run", false, "print the planned tiles without writing")
	fs.BoolVar(&o.watch, "watch", false, "re-export whenever the input changes")
	fs.BoolVar(&o.plain, "plain", false, "log lines instead of the progress display")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.input == "" && fs.NArg() > 0 {
		o.input = fs.Arg(0)
	}
	return o, nil
}

// apply lays the flags that were given over cfg.
func (o options) apply(cfg *config.Config) {
	if o.input != "" {
		cfg.Input = o.input
	}
	if o.out != "" {
		cfg.OutputDir = o.out
	}
	if o.mode != "" {
		cfg.Mode = o.mode
	}
	if o.scale > 0 {
		cfg.FixedScale.Scale = o.scale
	}
}
