// Command tilexport writes one georeferenced TIFF per feature of a vector
// layer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"

	"tilexport/internal/config"
	"tilexport/internal/export"
	"tilexport/internal/logger"
	"tilexport/internal/tui"
	"tilexport/internal/watch"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	_ = godotenv.Load(".env")

	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	cfg, err := config.Read(opts.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tilexport:", err)
		return 1
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "tilexport:", err)
		return 1
	}

	useTUI := !opts.plain && !opts.dryRun && !opts.watch && isTerminal(os.Stdout)
	logOut, closeLog, err := logWriter(cfg.Log.File, useTUI)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tilexport:", err)
		return 1
	}
	defer closeLog()
	l := logger.Setup(cfg.Log.Level, cfg.Log.Format, logOut)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case opts.dryRun:
		return dryRun(cfg, l)
	case opts.watch:
		return watchAndExport(ctx, cfg, l)
	case useTUI:
		return exportWithTUI(ctx, cfg, l)
	}
	sum, err := exportOnce(ctx, cfg, l)
	return finish(sum, err, l)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// logWriter picks where logs go: the configured file, else stderr, or
// nowhere while the progress display owns the terminal.
func logWriter(path string, quiet bool) (io.Writer, func(), error) {
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return f, func() { f.Close() }, nil
	}
	if quiet {
		return io.Discard, func() {}, nil
	}
	return os.Stderr, func() {}, nil
}

func exportOnce(ctx context.Context, cfg *config.Config, l *slog.Logger, opts ...export.Option) (export.Summary, error) {
	exp, err := export.New(cfg, append([]export.Option{export.WithLogger(l)}, opts...)...)
	if err != nil {
		return export.Summary{}, err
	}
	return exp.Run(ctx)
}

// finish prints the summary and maps the run error to an exit code.
func finish(sum export.Summary, err error, l *slog.Logger) int {
	if sum.Layer != "" {
		printSummary(os.Stdout, sum)
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		l.Warn("export_cancelled", "exported", sum.Exported)
		fmt.Fprintln(os.Stderr, "tilexport: cancelled")
	case export.IsFeatureError(err):
		l.Error("export_aborted", "err", err)
		fmt.Fprintln(os.Stderr, "tilexport: aborted:", err)
	default:
		l.Error("export_failed", "err", err)
		fmt.Fprintln(os.Stderr, "tilexport:", err)
	}
	return 1
}

func dryRun(cfg *config.Config, l *slog.Logger) int {
	exp, err := export.New(cfg, export.WithLogger(l))
	if err != nil {
		fmt.Fprintln(os.Stderr, "tilexport:", err)
		return 1
	}
	layer, _, err := exp.LoadLayers()
	if err != nil {
		fmt.Fprintln(os.Stderr, "tilexport:", err)
		return 1
	}
	printPlan(os.Stdout, layer.Name, exp.Plan(layer))
	return 0
}

func exportWithTUI(ctx context.Context, cfg *config.Config, l *slog.Logger) int {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(tui.New(cancel))
	type outcome struct {
		sum export.Summary
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		obs := export.Multi{tui.NewObserver(p), export.LogObserver{L: l}}
		sum, err := exportOnce(runCtx, cfg, l, export.WithObserver(obs))
		done <- outcome{sum, err}
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		l.Error("tui_error", "err", err)
	}
	res := <-done
	return finish(res.sum, res.err, l)
}

// watchAndExport exports once, then again after every change to the input
// until interrupted.
func watchAndExport(ctx context.Context, cfg *config.Config, l *slog.Logger) int {
	runOnce := func(ctx context.Context) {
		sum, err := exportOnce(ctx, cfg, l)
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("export_failed", "err", err)
		}
		if sum.Layer != "" {
			printSummary(os.Stdout, sum)
		}
	}
	runOnce(ctx)

	w, err := watch.New(cfg.Input, runOnce, l)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tilexport:", err)
		return 1
	}
	if err := w.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "tilexport:", err)
		return 1
	}
	return 0
}
