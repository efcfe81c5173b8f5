// Package config provides configuration management for the crawler.
// It defines the configuration structure, defaults, user-agent presets,
// and validation for a crawl run.
package config

import (
	"strings"
	"time"
)

// UserAgentPreset names a canned User-Agent string selectable via
// --user-agent.
type UserAgentPreset string

// Recognized presets.
const (
	UAScreamingFrog    UserAgentPreset = "screaming-frog"
	UAParadiseCrawler  UserAgentPreset = "paradise-crawler"
	UAGooglebot        UserAgentPreset = "googlebot"
	UACustom           UserAgentPreset = "custom"
	defaultUAPresetStr                 = "paradise-crawler"
)

var uaPresetStrings = map[UserAgentPreset]string{
	UAScreamingFrog:   "Mozilla/5.0 (compatible; Screaming Frog SEO Spider/20.0; +https://www.screamingfrog.co.uk/seo-spider/)",
	UAParadiseCrawler: "ParadiseCrawler/1.0 (+https://github.com/masahif/sqlitecrawler)",
	UAGooglebot:       "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
}

// ResolveUserAgent returns the effective User-Agent string: customUA when it
// is non-empty (whatever the preset), otherwise the preset's string, falling
// back to the paradise-crawler preset for an unknown or "custom" preset.
func ResolveUserAgent(preset UserAgentPreset, customUA string) string {
	if preset == UACustom || customUA != "" {
		if customUA != "" {
			return customUA
		}
	}
	if s, ok := uaPresetStrings[preset]; ok {
		return s
	}
	return uaPresetStrings[UAParadiseCrawler]
}

// CrawlConfig holds the full configuration for a crawl run, populated from
// CLI flags, environment variables (SQLITECRAWLER_* prefix), and an optional
// YAML config file, in that descending priority order (flags win).
type CrawlConfig struct {
	SeedURLs []string `mapstructure:"seed_urls" yaml:"seed_urls"`

	MaxPages int  `mapstructure:"max_pages" yaml:"max_pages"`
	MaxDepth int  `mapstructure:"max_depth" yaml:"max_depth"`
	Offsite  bool `mapstructure:"offsite" yaml:"offsite"`

	UserAgentPreset UserAgentPreset `mapstructure:"user_agent" yaml:"user_agent"`
	CustomUA        string          `mapstructure:"custom_ua" yaml:"custom_ua"`

	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
	Delay       time.Duration `mapstructure:"delay" yaml:"delay"`

	RespectRobots      bool `mapstructure:"respect_robots" yaml:"respect_robots"`
	SkipRobotsSitemaps bool `mapstructure:"skip_robots_sitemaps" yaml:"skip_robots_sitemaps"`
	SkipSitemaps       bool `mapstructure:"skip_sitemaps" yaml:"skip_sitemaps"`

	MaxWorkers int  `mapstructure:"max_workers" yaml:"max_workers"`
	UseJS      bool `mapstructure:"js" yaml:"js"`

	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
	Quiet   bool `mapstructure:"quiet" yaml:"quiet"`

	ResetFrontier bool `mapstructure:"reset_frontier" yaml:"reset_frontier"`

	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	LogFile       string `mapstructure:"log_file" yaml:"log_file"`
	LogMaxSizeMB  int64  `mapstructure:"log_max_size_mb" yaml:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups" yaml:"log_max_backups"`
}

// DefaultConfig returns a configuration with spec-mandated defaults.
func DefaultConfig() *CrawlConfig {
	return &CrawlConfig{
		MaxPages:        0, // unlimited
		MaxDepth:        3,
		Offsite:         false,
		UserAgentPreset: defaultUAPresetStr,
		Timeout:         20 * time.Second,
		Concurrency:     10,
		Delay:           0,
		RespectRobots:   true,
		MaxWorkers:      2,
		DataDir:         ".",
		LogMaxSizeMB:    100,
		LogMaxBackups:   5,
	}
}

// EffectiveUserAgent resolves the configured preset/custom UA into the
// literal string sent on the wire.
func (c *CrawlConfig) EffectiveUserAgent() string {
	return ResolveUserAgent(c.UserAgentPreset, c.CustomUA)
}

// Validate checks the configuration for internal consistency, returning one
// of the sentinel Err* values from errors.go on failure.
func (c *CrawlConfig) Validate() error {
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxWorkers <= 0 {
		return ErrInvalidMaxWorkers
	}
	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.UserAgentPreset == UACustom && strings.TrimSpace(c.CustomUA) == "" {
		return ErrMissingCustomUA
	}
	return nil
}
