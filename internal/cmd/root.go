// Package cmd provides the command-line interface for SQLiteCrawler.
// It handles command parsing, configuration loading, and crawl execution.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/masahif/sqlitecrawler/internal/config"
	"github.com/masahif/sqlitecrawler/internal/crawlctl"
	"github.com/masahif/sqlitecrawler/internal/logging"
	"github.com/masahif/sqlitecrawler/internal/storage"
)

var (
	cfgFile   string
	version   string
	buildTime string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sqlitecrawler [URLs...]",
	Short: "A resumable SEO crawler backed by SQLite",
	Long: `SQLiteCrawler discovers a site's link graph, evaluates indexability, and
persists everything to a pair of SQLite databases it can resume from.`,
	Args: cobra.ArbitraryArgs,
	RunE: runCrawl,
}

// Execute runs the root command using a background context.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// ExecuteContext runs the root command under ctx, so cancellation (e.g. from
// a caught SIGINT) reaches the running crawl.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets version information for the CLI.
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

// IsUsageError reports whether err reflects a CLI misuse (bad flags,
// missing seeds, invalid configuration) rather than a runtime failure, so
// cmd/crawler/main.go can select the right exit code.
func IsUsageError(err error) bool {
	for _, sentinel := range []error{
		config.ErrInvalidConcurrency,
		config.ErrInvalidTimeout,
		config.ErrInvalidMaxWorkers,
		config.ErrInvalidMaxDepth,
		config.ErrMissingCustomUA,
		config.ErrNoSeeds,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./sqlitecrawler.yml)")

	rootCmd.Flags().Bool("show-config", false, "Display the effective configuration in YAML format and exit")

	rootCmd.Flags().String("data-dir", ".", "Directory holding the per-site {host}_crawl.db / {host}_pages.db pair")

	rootCmd.Flags().Int("max-pages", 0, "Hard cap on fetched pages (0 = unlimited)")
	rootCmd.Flags().Int("max-depth", 3, "Reject frontier children beyond this depth (0 fetches only seeds)")
	rootCmd.Flags().Bool("offsite", false, "Treat external-host links as crawlable and same-domain subdomains as internal")

	rootCmd.Flags().String("user-agent", "paradise-crawler", "UA preset: screaming-frog, paradise-crawler, googlebot, custom")
	rootCmd.Flags().String("custom-ua", "", "Literal User-Agent string (required when --user-agent=custom)")

	rootCmd.Flags().Float64P("timeout", "t", 20, "Per-request timeout in seconds")
	rootCmd.Flags().IntP("concurrency", "c", 10, "Number of concurrent fetch workers")
	rootCmd.Flags().Float64P("delay", "r", 0, "Minimum delay between requests to the same host, in seconds")

	rootCmd.Flags().Bool("ignore-robots", false, "Skip robots.txt disallow enforcement (robots.txt is still parsed for sitemaps)")
	rootCmd.Flags().Bool("skip-robots-sitemaps", false, "Do not read Sitemap: directives out of robots.txt")
	rootCmd.Flags().Bool("skip-sitemaps", false, "Do not discover or crawl sitemaps at all")

	rootCmd.Flags().Int("max-workers", 2, "Storage writer pool size per database")
	rootCmd.Flags().Bool("js", false, "Fetch pages with a headless-browser backend instead of plain HTTP")

	rootCmd.Flags().BoolP("verbose", "v", false, "Debug-level logging")
	rootCmd.Flags().BoolP("quiet", "q", false, "Warn-level logging only")

	rootCmd.Flags().String("log-file", "", "Also write JSON logs to this file, rotating it by size")
	rootCmd.Flags().Int64("log-max-size-mb", 100, "Rotate --log-file once it exceeds this many megabytes")
	rootCmd.Flags().Int("log-max-backups", 5, "Number of rotated --log-file backups to retain")

	rootCmd.Flags().Bool("reset-frontier", false, "Truncate the frontier table before starting")

	bindFlags := []struct {
		viperKey string
		flagName string
	}{
		{"data_dir", "data-dir"},
		{"max_pages", "max-pages"},
		{"max_depth", "max-depth"},
		{"offsite", "offsite"},
		{"user_agent", "user-agent"},
		{"custom_ua", "custom-ua"},
		{"concurrency", "concurrency"},
		{"skip_robots_sitemaps", "skip-robots-sitemaps"},
		{"skip_sitemaps", "skip-sitemaps"},
		{"max_workers", "max-workers"},
		{"js", "js"},
		{"verbose", "verbose"},
		{"quiet", "quiet"},
		{"log_file", "log-file"},
		{"log_max_size_mb", "log-max-size-mb"},
		{"log_max_backups", "log-max-backups"},
		{"reset_frontier", "reset-frontier"},
	}
	for _, bind := range bindFlags {
		if err := viper.BindPFlag(bind.viperKey, rootCmd.Flags().Lookup(bind.flagName)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}
}

// initConfig reads a config file and environment variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("sqlitecrawler")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SQLITECRAWLER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func showCurrentConfig(cfg *config.CrawlConfig) error {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: configuration validation failed: %v\n", err)
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal configuration to yaml: %w", err)
	}

	fmt.Printf("# Effective SQLiteCrawler configuration\n")
	fmt.Printf("# Environment variable prefix: SQLITECRAWLER_\n")
	fmt.Printf("# Priority: flags > environment > config file > defaults\n\n")
	fmt.Print(string(yamlData))
	return nil
}

func runCrawl(cmd *cobra.Command, args []string) error {
	showConfig, _ := cmd.Flags().GetBool("show-config")

	cfg := config.DefaultConfig()
	cfg.SeedURLs = args

	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	// timeout/delay are entered in fractional seconds on the command line;
	// mapstructure has no hook for float-seconds -> time.Duration, so they
	// are applied by hand after Unmarshal populates everything else.
	timeoutSeconds, _ := cmd.Flags().GetFloat64("timeout")
	cfg.Timeout = time.Duration(timeoutSeconds * float64(time.Second))
	delaySeconds, _ := cmd.Flags().GetFloat64("delay")
	cfg.Delay = time.Duration(delaySeconds * float64(time.Second))

	// --ignore-robots inverts onto RespectRobots, which has no matching flag
	// name for viper to bind directly.
	ignoreRobots, _ := cmd.Flags().GetBool("ignore-robots")
	cfg.RespectRobots = !ignoreRobots

	if cfg.UserAgentPreset == config.UACustom && cfg.CustomUA == "" {
		return config.ErrMissingCustomUA
	}

	if showConfig {
		return showCurrentConfig(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	firstSeed := ""
	if len(cfg.SeedURLs) > 0 {
		firstSeed = cfg.SeedURLs[0]
	} else {
		resumeSeed, err := resolveResumeSeed(cfg.DataDir)
		if err != nil {
			return err
		}
		firstSeed = resumeSeed
		fmt.Fprintf(os.Stderr, "No URLs given; resuming crawl for %s\n", firstSeed)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:      logLevel(cfg),
		Console:    true,
		FilePath:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		return fmt.Errorf("start logger: %w", err)
	}

	store, err := storage.Open(cfg.DataDir, firstSeed, cfg.MaxWorkers)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("close storage failed", "error", closeErr)
		}
	}()

	controller, err := crawlctl.New(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("start crawl controller: %w", err)
	}
	defer controller.Close()

	logger.Info("crawl starting",
		"seeds", cfg.SeedURLs,
		"data_dir", cfg.DataDir,
		"concurrency", cfg.Concurrency,
		"max_pages", cfg.MaxPages,
		"offsite", cfg.Offsite,
		"js", cfg.UseJS,
	)

	summary, runErr := controller.Run(cmd.Context())
	reportSummary(summary)
	return runErr
}

func logLevel(cfg *config.CrawlConfig) slog.Level {
	switch {
	case cfg.Verbose:
		return slog.LevelDebug
	case cfg.Quiet:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func reportSummary(s crawlctl.Summary) {
	fmt.Printf("Crawled %s pages in %s\n",
		humanize.Comma(s.PagesCrawled),
		s.Elapsed.Round(time.Second),
	)
	if len(s.ErrorCounts) == 0 {
		return
	}
	fmt.Println("Errors by kind:")
	for kind, n := range s.ErrorCounts {
		fmt.Printf("  %-20s %s\n", kind, humanize.Comma(int64(n)))
	}
}

// resolveResumeSeed looks for exactly one existing {host}_crawl.db in
// dataDir when no URLs are given on the command line, and reconstructs a
// synthetic seed URL from its host so storage.Open derives the same paths
// again. It never re-seeds the frontier; cfg.SeedURLs stays empty.
func resolveResumeSeed(dataDir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dataDir, "*_crawl.db"))
	if err != nil {
		return "", fmt.Errorf("scan data directory: %w", err)
	}
	if len(matches) != 1 {
		return "", config.ErrNoSeeds
	}
	base := filepath.Base(matches[0])
	host := strings.TrimSuffix(base, "_crawl.db")
	return "https://" + host + "/", nil
}
