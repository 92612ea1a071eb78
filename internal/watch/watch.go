// Package watch re-runs an export whenever its input dataset changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the dataset must stay quiet before a run.
const DefaultDebounce = 500 * time.Millisecond

// Watcher monitors the directory of one dataset. Changes to the dataset or
// to any sidecar with the same base name (.dbf, .shx, .prj, ...) trigger
// run once the writes settle.
type Watcher struct {
	Debounce time.Duration

	dir     string
	stem    string
	run     func(ctx context.Context)
	log     *slog.Logger
	watcher *fsnotify.Watcher
}

// New creates a watcher for input. Nothing is watched until Run.
func New(input string, run func(ctx context.Context), log *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	base := filepath.Base(abs)
	return &Watcher{
		Debounce: DefaultDebounce,
		dir:      filepath.Dir(abs),
		stem:     strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base))),
		run:      run,
		log:      log,
		watcher:  fsWatcher,
	}, nil
}

// Matches reports whether name is the dataset or one of its sidecars.
// Hidden and editor temp files never match.
func (w *Watcher) Matches(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil || filepath.Dir(abs) != w.dir {
		return false
	}
	base := filepath.Base(abs)
	if base == "" || base[0] == '.' || strings.HasSuffix(base, "~") {
		return false
	}
	ext := filepath.Ext(base)
	if ext == "" {
		return false
	}
	return strings.ToLower(strings.TrimSuffix(base, ext)) == w.stem
}

// Run watches until ctx is done, calling run after each burst of changes.
// Runs never overlap; changes seen during a run schedule one more.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch folder %s: %w", w.dir, err)
	}
	w.log.Info("watch_started", "dir", w.dir, "dataset", w.stem)

	fire := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !w.Matches(event.Name) {
				continue
			}
			w.log.Debug("watch_event", "file", event.Name, "op", event.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.Debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			w.log.Info("watch_triggered", "dataset", w.stem)
			w.run(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch_error", "err", err)
		}
	}
}
