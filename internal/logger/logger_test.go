package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	l := Setup("debug", "json", &buf)
	l.Debug("feature_exported", "file", "12_Downtown_Core.tiff", "width", 3000)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("not json: %q", buf.String())
	}
	if rec["msg"] != "feature_exported" || rec["file"] != "12_Downtown_Core.tiff" || rec["width"] != float64(3000) {
		t.Errorf("record = %v", rec)
	}
	if L() != l {
		t.Error("L does not return the installed logger")
	}
}

func TestSetupLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Setup("warn", "text", &buf)
	l.Info("layer_loaded")
	l.Warn("feature_skipped", "reason", "empty_geometry")
	out := buf.String()
	if strings.Contains(out, "layer_loaded") || !strings.Contains(out, "reason=empty_geometry") {
		t.Errorf("output = %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"DEBUG": slog.LevelDebug, "warning": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo, "loud": slog.LevelInfo,
	} {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v", in, got)
		}
	}
}

func TestDiscard(t *testing.T) {
	if Discard().Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger enabled")
	}
}
