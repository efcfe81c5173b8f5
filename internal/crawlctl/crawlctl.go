// Package crawlctl wires together every other internal package into the
// seed -> sitemap-discovery -> lease/dispatch/extract/enqueue crawl loop. A
// bounded set of goroutines pulls from a persistent queue, dispatched
// through an errgroup.WithContext + SetLimit fan-out for
// bounded-concurrency, first-error-wins shutdown.
package crawlctl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/masahif/sqlitecrawler/internal/config"
	"github.com/masahif/sqlitecrawler/internal/fetcher"
	"github.com/masahif/sqlitecrawler/internal/robots"
	"github.com/masahif/sqlitecrawler/internal/sitemap"
	"github.com/masahif/sqlitecrawler/internal/storage"
	"github.com/masahif/sqlitecrawler/internal/urlnorm"
)

// closer is satisfied by the headless-browser backend, whose Close takes no
// error (chromedp's allocator cancellation is fire-and-forget).
type closer interface {
	Close()
}

// Controller runs one crawl to completion (or exhaustion of its budget)
// against a Store already opened for the target site.
type Controller struct {
	cfg    *config.CrawlConfig
	store  *storage.Store
	logger *slog.Logger

	normalizer *urlnorm.Normalizer
	robotsC    *robots.Cache
	sitemapD   *sitemap.Discoverer
	fetchC     *fetcher.Client
	backendC   closer

	pagesCrawled atomic.Int64
	seedHosts    []string
}

// New builds a Controller for cfg against store. It constructs an HTTP
// backend unconditionally (robots.txt and sitemap fetches never render
// JavaScript) and, when cfg.UseJS is set, an additional headless-browser
// backend used only for page fetches.
func New(cfg *config.CrawlConfig, store *storage.Store, logger *slog.Logger) (*Controller, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ua := cfg.EffectiveUserAgent()
	httpBackend := fetcher.NewHTTPBackend(ua, cfg.Timeout, nil)

	var pageBackend fetcher.Backend = httpBackend
	var backendC closer
	if cfg.UseJS {
		sb, err := fetcher.NewScriptBackend(fetcher.ScriptBackendConfig{
			UserAgent:         ua,
			NavigationTimeout: cfg.Timeout,
			MaxParallel:       cfg.Concurrency,
		})
		if err != nil {
			return nil, fmt.Errorf("start headless backend: %w", err)
		}
		pageBackend = sb
		backendC = sb
	}

	seedHosts := make([]string, 0, len(cfg.SeedURLs))
	for _, seed := range cfg.SeedURLs {
		if u, err := url.Parse(seed); err == nil && u.Hostname() != "" {
			seedHosts = append(seedHosts, u.Hostname())
		}
	}

	return &Controller{
		cfg:        cfg,
		store:      store,
		logger:     logger,
		normalizer: urlnorm.New(seedHosts, cfg.Offsite),
		robotsC:    robots.New(httpBackend, store.Robots, ua, !cfg.RespectRobots),
		sitemapD:   sitemap.New(httpBackend, ua),
		fetchC:     fetcher.New(pageBackend, cfg.Delay),
		backendC:   backendC,
		seedHosts:  seedHosts,
	}, nil
}

// Close releases the headless-browser backend, if one was started.
func (c *Controller) Close() {
	if c.backendC != nil {
		c.backendC.Close()
	}
}

// Summary is the end-of-run report handed back to internal/cmd.
type Summary struct {
	Elapsed      time.Duration
	PagesCrawled int64
	ErrorCounts  map[string]int
}

// stampCrawlID writes a fresh crawl_id into the crawl database's meta table
// on first run; a resumed run keeps its original id.
func (c *Controller) stampCrawlID(ctx context.Context) error {
	if _, ok, err := c.store.Meta.Get(ctx, "crawl_id"); err != nil {
		return err
	} else if ok {
		return nil
	}
	return c.store.Meta.Set(ctx, "crawl_id", uuid.NewString())
}
