// Package logging builds the structured logger a crawl run writes through:
// JSON records on stdout, optionally duplicated to a size-rotated file, at
// a level selected by --verbose/--quiet.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config controls where a crawl run's log records go and how verbose they
// are.
type Config struct {
	Level      slog.Level
	FilePath   string // rotating file destination; empty disables file output
	MaxSize    int64  // megabytes per file before rotation
	MaxBackups int    // rotated files retained alongside the live one
	Console    bool   // also write JSON records to stdout
}

// DefaultConfig returns the logging defaults a crawl run gets when
// --log-file is never set: stdout only, at info level.
func DefaultConfig() *Config {
	return &Config{
		Level:      slog.LevelInfo,
		MaxSize:    100,
		MaxBackups: 5,
		Console:    true,
	}
}

// ParseLevel maps a --verbose/--quiet-style level name onto slog.Level,
// case-insensitively, falling back to info for anything unrecognized.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a run's *slog.Logger from config, fanning JSON records
// out to stdout, a rotating file, or both. A config with neither output
// enabled still logs to stdout — a crawl run should never run silent.
func NewLogger(config Config) (*slog.Logger, error) {
	var writers []io.Writer

	if config.Console {
		writers = append(writers, os.Stdout)
	}

	if config.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0o750); err != nil {
			return nil, err
		}
		writers = append(writers, NewRotatingFileWriter(config.FilePath, config.MaxSize, config.MaxBackups))
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	var w io.Writer = writers[0]
	if len(writers) > 1 {
		w = io.MultiWriter(writers...)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: config.Level})
	return slog.New(handler), nil
}

// SetDefault builds a logger per config and installs it as slog's package
// default, for the rare code path that logs through the top-level slog
// functions instead of holding its own *slog.Logger.
func SetDefault(config Config) error {
	logger, err := NewLogger(config)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}
