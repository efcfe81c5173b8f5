package crawlctl

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/masahif/sqlitecrawler/internal/model"
	"github.com/masahif/sqlitecrawler/internal/sitemap"
	"github.com/masahif/sqlitecrawler/internal/storage"
)

// Run seeds the frontier, discovers sitemaps unless disabled, and then
// drives the lease/dispatch/extract/enqueue loop until the frontier drains,
// the page budget is spent, or ctx is cancelled.
func (c *Controller) Run(ctx context.Context) (Summary, error) {
	start := time.Now()

	if c.cfg.ResetFrontier {
		if err := c.store.Frontier.Reset(ctx); err != nil {
			return Summary{}, fmt.Errorf("reset frontier: %w", err)
		}
	}
	if err := c.stampCrawlID(ctx); err != nil {
		return Summary{}, fmt.Errorf("stamp crawl id: %w", err)
	}
	if crawlID, ok, err := c.store.Meta.Get(ctx, "crawl_id"); err == nil && ok {
		c.logger = c.logger.With("crawl_id", crawlID)
	}
	if err := c.seed(ctx); err != nil {
		return Summary{}, fmt.Errorf("seed frontier: %w", err)
	}
	if !c.cfg.SkipSitemaps {
		c.discoverSitemaps(ctx)
	}

	if err := c.drain(ctx); err != nil {
		return c.summary(ctx, start), err
	}
	return c.summary(ctx, start), nil
}

// seed interns each configured seed URL and enqueues it at depth 0.
func (c *Controller) seed(ctx context.Context) error {
	for _, raw := range c.cfg.SeedURLs {
		canonical, err := c.normalizer.Normalize(nil, raw)
		if err != nil {
			c.logger.Warn("skipping malformed seed", "url", raw, "error", err)
			_ = c.store.Errors.Record(ctx, 0, model.ErrMalformedURL, err.Error())
			continue
		}
		class := c.normalizer.Classify(canonical)
		u, err := url.Parse(canonical)
		if err != nil {
			continue
		}
		urlID, err := c.store.URLs.Intern(ctx, canonical, u.Host, u.Scheme, class)
		if err != nil {
			return err
		}
		if _, err := c.store.Frontier.Enqueue(ctx, urlID, 0, nil, c.cfg.MaxDepth); err != nil {
			return err
		}
	}
	return nil
}

// discoverSitemaps walks each seed host's sitemap tree and enqueues the page
// URLs it lists. Failures are logged and skipped — a missing or broken
// sitemap never aborts the crawl.
func (c *Controller) discoverSitemaps(ctx context.Context) {
	for _, raw := range c.cfg.SeedURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			continue
		}
		scheme := u.Scheme
		if scheme == "" {
			scheme = "https"
		}

		var robotsSitemaps []string
		if !c.cfg.SkipRobotsSitemaps {
			robotsSitemaps, err = c.robotsC.Sitemaps(ctx, scheme, u.Host)
			if err != nil {
				c.logger.Warn("robots.txt sitemap lookup failed", "host", u.Host, "error", err)
			}
		}
		roots := sitemap.DiscoverRoots(robotsSitemaps, scheme, u.Host)

		discovered, err := c.sitemapD.Walk(ctx, roots)
		if err != nil {
			c.logger.Warn("sitemap discovery failed", "host", u.Host, "error", err)
			continue
		}
		c.logger.Info("sitemap discovery complete", "host", u.Host, "sitemaps_visited", discovered.VisitedCount, "urls_found", len(discovered.Entries))

		for _, entry := range discovered.Entries {
			c.enqueueSitemapEntry(ctx, entry, discovered.SourceOf[entry.Loc])
		}
	}
}

func (c *Controller) enqueueSitemapEntry(ctx context.Context, entry sitemap.Entry, sourceSitemapURL string) {
	canonical, err := c.normalizer.Normalize(nil, entry.Loc)
	if err != nil {
		return
	}
	class := c.normalizer.Classify(canonical)
	u, err := url.Parse(canonical)
	if err != nil {
		return
	}
	urlID, err := c.store.URLs.Intern(ctx, canonical, u.Host, u.Scheme, class)
	if err != nil {
		c.logger.Warn("intern sitemap url failed", "url", canonical, "error", err)
		return
	}

	if sourceSitemapURL != "" {
		if sitemapCanonical, err := c.normalizer.Normalize(nil, sourceSitemapURL); err == nil {
			if sURL, err := url.Parse(sitemapCanonical); err == nil {
				sitemapURLID, err := c.store.URLs.Intern(ctx, sitemapCanonical, sURL.Host, sURL.Scheme, model.ClassificationOther)
				if err == nil {
					_ = c.store.Sitemaps.RecordListing(ctx, urlID, sitemapURLID, storage.ListingMeta{
							LastMod:    entry.LastMod,
							ChangeFreq: entry.ChangeFreq,
							Priority:   entry.Priority,
						})
				}
			}
		}
	}

	if len(entry.Hreflang) > 0 {
		hreflangEntries := make([]storage.HreflangEntry, 0, len(entry.Hreflang))
		for _, h := range entry.Hreflang {
			hrefCanonical, err := c.normalizer.Normalize(nil, h.Href)
			if err != nil {
				continue
			}
			hu, err := url.Parse(hrefCanonical)
			if err != nil {
				continue
			}
			hrefID, err := c.store.URLs.Intern(ctx, hrefCanonical, hu.Host, hu.Scheme, c.normalizer.Classify(hrefCanonical))
			if err != nil {
				continue
			}
			hreflangEntries = append(hreflangEntries, storage.HreflangEntry{
				URLID: urlID, Source: storage.HreflangSitemap, LanguageCode: h.Lang, HrefURLID: hrefID,
			})
		}
		if len(hreflangEntries) > 0 {
			_ = c.store.Hreflang.ReplaceForURL(ctx, urlID, storage.HreflangSitemap, hreflangEntries)
		}
	}

	if class != model.ClassificationInternal && !(c.cfg.Offsite && class == model.ClassificationExternal) {
		return
	}
	// Sitemap-sourced URLs are treated as additional crawl roots, not
	// children of the page that referenced the sitemap.
	if _, err := c.store.Frontier.Enqueue(ctx, urlID, 0, nil, c.cfg.MaxDepth); err != nil {
		c.logger.Warn("enqueue sitemap url failed", "url", canonical, "error", err)
	}
}

// drain runs the lease/dispatch loop: each iteration leases up to
// cfg.Concurrency frontier rows and fans their processing out through an
// errgroup bounded to the same limit, so at most cfg.Concurrency fetches are
// ever in flight.
func (c *Controller) drain(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.cfg.MaxPages > 0 && c.pagesCrawled.Load() >= int64(c.cfg.MaxPages) {
			return nil
		}

		batch := c.cfg.Concurrency
		if c.cfg.MaxPages > 0 {
			if remaining := int64(c.cfg.MaxPages) - c.pagesCrawled.Load(); remaining < int64(batch) {
				batch = int(remaining)
			}
		}
		if batch <= 0 {
			return nil
		}

		entries, err := c.store.Frontier.Lease(ctx, batch)
		if err != nil {
			return fmt.Errorf("lease frontier: %w", err)
		}
		if len(entries) == 0 {
			hasQueued, err := c.store.Frontier.HasQueued(ctx)
			if err != nil {
				return fmt.Errorf("check frontier: %w", err)
			}
			if !hasQueued {
				return nil
			}
			// Every remaining queued row is already leased in-process
			// (e.g. by an earlier iteration whose completion is still
			// pending); nothing new to dispatch this pass.
			return nil
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.cfg.Concurrency)
		for _, entry := range entries {
			entry := entry
			g.Go(func() error {
				return c.processEntry(gctx, entry)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
}

func (c *Controller) summary(ctx context.Context, start time.Time) Summary {
	counts, err := c.store.Errors.CountsByKind(ctx)
	if err != nil {
		c.logger.Warn("could not tally error counts for summary", "error", err)
	}
	byName := make(map[string]int, len(counts))
	for kind, n := range counts {
		byName[string(kind)] = n
	}
	return Summary{
		Elapsed:      time.Since(start),
		PagesCrawled: c.pagesCrawled.Load(),
		ErrorCounts:  byName,
	}
}
