package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"DEBUG":   slog.LevelDebug,
		"Info":    slog.LevelInfo,
		"invalid": slog.LevelInfo,
		"":        slog.LevelInfo,
	}

	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestDefaultConfigIsConsoleOnlyAtInfoLevel(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != slog.LevelInfo {
		t.Errorf("Level = %v, want %v", cfg.Level, slog.LevelInfo)
	}
	if cfg.FilePath != "" {
		t.Errorf("FilePath = %q, want empty (no rotating file by default)", cfg.FilePath)
	}
	if cfg.MaxSize != 100 {
		t.Errorf("MaxSize = %d, want 100", cfg.MaxSize)
	}
	if cfg.MaxBackups != 5 {
		t.Errorf("MaxBackups = %d, want 5", cfg.MaxBackups)
	}
	if !cfg.Console {
		t.Error("Console = false, want true")
	}
}

func TestNewLoggerWritesJSONRecordsToConsoleOnly(t *testing.T) {
	logger, err := NewLogger(Config{Level: slog.LevelInfo, Console: true})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger == nil {
		t.Fatal("NewLogger returned a nil logger")
	}
}

func TestNewLoggerWithFilePathCreatesRotatingFileAndParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "nested", "run.log")

	logger, err := NewLogger(Config{
		Level:      slog.LevelDebug,
		FilePath:   logFile,
		MaxSize:    10,
		MaxBackups: 3,
		Console:    false,
	})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.Info("hello from the crawler", "url", "https://example.com")

	raw, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(raw), &record); err != nil {
		t.Fatalf("log line is not valid JSON: %v (%q)", err, raw)
	}
	if record["msg"] != "hello from the crawler" {
		t.Errorf("msg = %v, want %q", record["msg"], "hello from the crawler")
	}
	if record["url"] != "https://example.com" {
		t.Errorf("url = %v, want %q", record["url"], "https://example.com")
	}
}

func TestNewLoggerFansOutToConsoleAndFileTogether(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "run.log")

	logger, err := NewLogger(Config{
		Level:      slog.LevelInfo,
		FilePath:   logFile,
		MaxSize:    10,
		MaxBackups: 3,
		Console:    true,
	})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("fanned out")

	if _, err := os.Stat(logFile); err != nil {
		t.Errorf("expected log file to exist: %v", err)
	}
}

func TestNewLoggerFallsBackToConsoleWhenNoOutputConfigured(t *testing.T) {
	logger, err := NewLogger(Config{Level: slog.LevelInfo, Console: false})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger == nil {
		t.Fatal("a crawl run should never end up with a nil logger")
	}
}

func TestSetDefaultInstallsPackageLevelLogger(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "default.log")

	if err := SetDefault(Config{
		Level:      slog.LevelDebug,
		FilePath:   logFile,
		MaxSize:    10,
		MaxBackups: 3,
		Console:    false,
	}); err != nil {
		t.Fatalf("SetDefault: %v", err)
	}

	slog.Info("routed through the package default")

	if _, err := os.Stat(logFile); err != nil {
		t.Errorf("expected log file to exist: %v", err)
	}
}
