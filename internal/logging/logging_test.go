package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			if got := LevelString(test.level); got != test.expected {
				t.Errorf("expected %q, got %q", test.expected, got)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected default level Info, got %v", cfg.Level)
	}
	if cfg.Format != FormatText {
		t.Errorf("expected default format Text, got %v", cfg.Format)
	}
	if cfg.Component != "wallpaper" {
		t.Errorf("expected default component wallpaper, got %s", cfg.Component)
	}
	if cfg.MaxSize <= 0 || cfg.MaxAge <= 0 || cfg.MaxBackups <= 0 {
		t.Error("expected positive rotation limits")
	}
}

func TestFileOutputWritesEntries(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.Format = FormatJSON
	cfg.FilePath = filepath.Join(dir, "wallpaper.log")

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.Info("host created", "monitor", 1, "section", "wallpaper2")
	logger.Sync()
	logger.Close()

	data, err := os.ReadFile(cfg.FilePath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	line := strings.TrimSpace(string(data))
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "host created" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry["component"] != "wallpaper" {
		t.Errorf("expected component attribute, got %v", entry["component"])
	}
}

func TestWithComponent(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.Format = FormatJSON
	cfg.FilePath = filepath.Join(dir, "wallpaper.log")

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Close()

	child := logger.WithComponent("pause")
	child.Info("state change")
	logger.Sync()

	data, err := os.ReadFile(cfg.FilePath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), `"component":"pause"`) {
		t.Errorf("expected pause component in output, got %s", data)
	}
}

func TestCrashHandlerRecover(t *testing.T) {
	dir := t.TempDir()
	h := NewCrashHandler(dir, "test", "runtime")

	func() {
		defer h.Recover()
		panic("surface exploded")
	}()

	matches, err := filepath.Glob(filepath.Join(dir, "crash-*.json"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one crash dump, got %v (err %v)", matches, err)
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("failed to read crash dump: %v", err)
	}

	var report CrashReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("crash dump is not JSON: %v", err)
	}
	if report.PanicValue != "surface exploded" {
		t.Errorf("unexpected panic value: %q", report.PanicValue)
	}
	if report.StackTrace == "" {
		t.Error("expected a stack trace")
	}
}

func TestRotation(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = filepath.Join(dir, "wallpaper.log")
	cfg.MaxSize = 1
	cfg.Compress = false

	rotator, err := NewFileRotator(cfg)
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	defer rotator.Close()

	// Two writes that together exceed 1 MB force a rotation.
	chunk := make([]byte, 600*1024)
	for i := range chunk {
		chunk[i] = 'x'
	}
	if _, err := rotator.Write(chunk); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if _, err := rotator.Write(chunk); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "wallpaper-*.log"))
	if len(matches) == 0 {
		t.Error("expected a rotated log file")
	}
}
