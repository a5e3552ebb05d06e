package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q): expected %v, got %v", in, want, got)
		}
	}
}

func TestJSONComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	base := InitLogger(Options{Level: slog.LevelInfo, Format: "json", Output: &buf})
	NewComponentLogger(base, "classifier").Info("classified", "kind", "general")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected json log line: %v", err)
	}
	if rec["component"] != "classifier" {
		t.Fatalf("expected component field, got %v", rec["component"])
	}
	if _, ok := rec["source"]; !ok {
		t.Fatalf("expected source location in json logs")
	}
}

func TestTextLoggerFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	log := InitLogger(Options{Level: slog.LevelWarn, Format: "text", Output: &buf})
	log.Info("hidden")
	log.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn line missing: %q", out)
	}
}
