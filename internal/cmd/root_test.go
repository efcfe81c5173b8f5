package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"log/slog"

	"github.com/masahif/sqlitecrawler/internal/config"
)

func TestSetVersionInfo(t *testing.T) {
	SetVersionInfo("1.2.3", "2023-12-01T10:00:00Z")

	expected := "1.2.3 (built 2023-12-01T10:00:00Z)"
	if rootCmd.Version != expected {
		t.Errorf("rootCmd.Version = %q, want %q", rootCmd.Version, expected)
	}
}

func TestIsUsageError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{config.ErrInvalidConcurrency, true},
		{config.ErrMissingCustomUA, true},
		{config.ErrNoSeeds, true},
		{nil, false},
		{os.ErrNotExist, false},
	}
	for _, tc := range cases {
		if got := IsUsageError(tc.err); got != tc.want {
			t.Errorf("IsUsageError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestLogLevel(t *testing.T) {
	cases := []struct {
		name string
		cfg  *config.CrawlConfig
		want slog.Level
	}{
		{"default", &config.CrawlConfig{}, slog.LevelInfo},
		{"verbose", &config.CrawlConfig{Verbose: true}, slog.LevelDebug},
		{"quiet", &config.CrawlConfig{Quiet: true}, slog.LevelWarn},
		{"verbose wins over quiet", &config.CrawlConfig{Verbose: true, Quiet: true}, slog.LevelDebug},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := logLevel(tc.cfg); got != tc.want {
				t.Errorf("logLevel() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestResolveResumeSeedRequiresExactlyOneDatabase(t *testing.T) {
	dir := t.TempDir()

	if _, err := resolveResumeSeed(dir); err != config.ErrNoSeeds {
		t.Errorf("resolveResumeSeed(empty dir) = %v, want ErrNoSeeds", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "example_com_crawl.db"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	seed, err := resolveResumeSeed(dir)
	if err != nil {
		t.Fatalf("resolveResumeSeed: %v", err)
	}
	if want := "https://example_com/"; seed != want {
		t.Errorf("resolveResumeSeed() = %q, want %q", seed, want)
	}

	if err := os.WriteFile(filepath.Join(dir, "other_com_crawl.db"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := resolveResumeSeed(dir); err != config.ErrNoSeeds {
		t.Errorf("resolveResumeSeed(two dbs) = %v, want ErrNoSeeds", err)
	}
}

func TestShowCurrentConfigMarshalsYAML(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SeedURLs = []string{"https://example.com/"}
	if err := showCurrentConfig(cfg); err != nil {
		t.Errorf("showCurrentConfig: %v", err)
	}
}
