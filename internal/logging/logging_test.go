package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"Warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_JSONAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, FormatJSON, "tplguard", "v0.1.0", "info")
	logger.Debug("hidden")
	logger.Info("compiled", "template", "a.html")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %d: %q", len(lines), buf.String())
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	for key, want := range map[string]string{
		"msg":      "compiled",
		"module":   "tplguard",
		"version":  "v0.1.0",
		"template": "a.html",
	} {
		if record[key] != want {
			t.Errorf("%s = %v, want %q", key, record[key], want)
		}
	}
}

func TestNew_EnvLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")

	var buf bytes.Buffer
	logger := New(&buf, FormatText, "tplguard", "dev", "")
	logger.Warn("dropped")
	if buf.Len() != 0 {
		t.Fatalf("warn record written at error level: %q", buf.String())
	}
	logger.Error("kept")
	if !strings.Contains(buf.String(), "msg=kept") {
		t.Fatalf("missing error record: %q", buf.String())
	}
}
