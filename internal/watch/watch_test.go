package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tilexport/internal/logger"
)

func TestMatches(t *testing.T) {
	dir := t.TempDir()
	w, err := New(filepath.Join(dir, "landuse.shp"), func(context.Context) {}, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer w.watcher.Close()

	cases := []struct {
		name string
		want bool
	}{
		{"landuse.shp", true},
		{"landuse.dbf", true},
		{"landuse.prj", true},
		{"LANDUSE.SHX", true},
		{"landuse.shp.xml", false},
		{"landuse", false},
		{"roads.shp", false},
		{".landuse.shp", false},
		{"landuse.shp~", false},
		{filepath.Join("sub", "landuse.shp"), false},
	}
	for _, tc := range cases {
		if got := w.Matches(filepath.Join(dir, tc.name)); got != tc.want {
			t.Errorf("Matches(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRunDebounces(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "sites.wkt")
	if err := os.WriteFile(input, []byte("POINT (0 0)\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	runs := make(chan struct{}, 10)
	w, err := New(input, func(context.Context) { runs <- struct{}{} }, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	w.Debounce = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	os.WriteFile(filepath.Join(dir, "other.wkt"), []byte("POINT (1 1)\n"), 0o644)
	for i := 0; i < 3; i++ {
		os.WriteFile(input, []byte("POINT (2 2)\n"), 0o644)
	}
	os.WriteFile(filepath.Join(dir, "sites.prj"), []byte("GEOGCS[\"WGS 84\"]"), 0o644)

	select {
	case <-runs:
	case <-time.After(5 * time.Second):
		t.Fatal("no run after the input changed")
	}
	select {
	case <-runs:
		t.Error("burst of writes triggered more than one run")
	case <-time.After(400 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
