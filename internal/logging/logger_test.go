package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"unknown defaults to info", "unknown", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
	}{
		{"info filters debug", "info", false},
		{"debug passes debug", "debug", true},
		{"trace passes debug", "trace", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			hasDebug := strings.Contains(buf.String(), "debug message")
			if hasDebug != tt.logAtDebug {
				t.Errorf("debug visible = %v, want %v", hasDebug, tt.logAtDebug)
			}

			logger.Info("info message")
			if !strings.Contains(buf.String(), "info message") {
				t.Error("info message should always be visible")
			}
		})
	}
}

func TestNewTickLogger_InfoLevelReturnsNil(t *testing.T) {
	dir := t.TempDir()
	tl := NewTickLogger(dir, "info")
	if tl != nil {
		t.Fatal("expected nil TickLogger at info level")
	}
	// Nil receiver must be safe.
	tl.Log(map[string]any{"frame": 1})
	tl.Close()

	if _, err := os.Stat(filepath.Join(dir, "ticks.jsonl")); !os.IsNotExist(err) {
		t.Error("no ticks.jsonl should be created at info level")
	}
}

func TestTickLogger_WritesJSONL(t *testing.T) {
	dir := t.TempDir()
	tl := NewTickLogger(dir, "debug")
	if tl == nil {
		t.Fatal("expected non-nil TickLogger at debug level")
	}
	defer tl.Close()

	tl.Log(map[string]any{"frame": 7, "status": "RUNNING"})
	tl.Log(map[string]any{"frame": 8, "status": "SUCCESS"})
	tl.Close()

	data, err := os.ReadFile(filepath.Join(dir, "ticks.jsonl"))
	if err != nil {
		t.Fatalf("reading ticks.jsonl: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSONL lines, got %d", len(lines))
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("first line is not valid JSON: %v", err)
	}
	if entry["status"] != "RUNNING" {
		t.Errorf("expected status RUNNING, got %v", entry["status"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected automatic time field")
	}
}

func TestTickLogger_DoesNotMutateCallerMap(t *testing.T) {
	dir := t.TempDir()
	tl := NewTickLogger(dir, "trace")
	defer tl.Close()

	event := map[string]any{"frame": 1}
	tl.Log(event)
	if _, ok := event["time"]; ok {
		t.Error("caller's map was mutated")
	}
}
