// Package robots implements the crawler's robots.txt cache: one fetch per
// host per run, parsed with github.com/temoto/robotstxt, with the
// permissive-on-server-error handling original_source/robots.py established
// (a 5xx or timeout fetching robots.txt does not block the crawl).
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/masahif/sqlitecrawler/internal/model"
	"github.com/masahif/sqlitecrawler/internal/storage"
)

// Fetcher is the minimal HTTP surface robots needs, satisfied by
// internal/fetcher's backends. Kept as a small local interface instead of
// importing internal/fetcher directly, so robots does not depend on the
// fetcher package and tests can supply a fake.
type Fetcher interface {
	Get(ctx context.Context, url, userAgent string) (*http.Response, error)
}

type cacheEntry struct {
	data      *robotstxt.RobotsData
	sitemaps  []string
	fetchedAt time.Time
	fetchOK   bool
}

// Cache fetches and parses robots.txt once per host per run and writes a
// record of each fetch through storage.RobotsCacheRepository. The stored
// records are not read back: a new run fetches robots.txt again for every
// host it visits.
type Cache struct {
	fetcher   Fetcher
	store     *storage.RobotsCacheRepository
	userAgent string
	ignore    bool

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// New builds a Cache. When ignore is true, Allowed always returns true
// without fetching anything (the --ignore-robots flag).
func New(fetcher Fetcher, store *storage.RobotsCacheRepository, userAgent string, ignore bool) *Cache {
	return &Cache{
		fetcher:   fetcher,
		store:     store,
		userAgent: userAgent,
		ignore:    ignore,
		entries:   make(map[string]*cacheEntry),
	}
}

// Allowed reports whether the cache's user agent may fetch path on host per
// that host's robots.txt, plus whether that robots.txt was actually available. A
// robots.txt that could not be fetched (network error, timeout, or 5xx) or
// whose body could not be read is treated as permissive: the URL is allowed,
// unavailable is true, and no error is returned, matching
// original_source/robots.py's fetch_robots_txt. A missing robots.txt (404)
// is not "unavailable" — it is a normal, fetched answer of "allow
// everything" and unavailable is false. A robots.txt that was fetched but
// failed to parse returns (true, true, *model.CrawlError{Kind:
// RobotsUnavailable}); since that kind is non-fatal, callers should record
// the error and still treat the URL as allowed, per the crawl controller's
// per-URL error policy.
func (c *Cache) Allowed(ctx context.Context, scheme, host, path string) (allowed bool, unavailable bool, err error) {
	if c.ignore {
		return true, false, nil
	}
	entry, err := c.get(ctx, scheme, host)
	if err != nil {
		return true, true, err
	}
	if !entry.fetchOK {
		return true, true, nil
	}
	if entry.data == nil {
		return true, false, nil
	}
	if path == "" {
		path = "/"
	}
	group := entry.data.FindGroup(c.userAgent)
	return group.Test(path), false, nil
}

// Sitemaps returns the sitemap URLs a host's robots.txt declares. Callers
// fall back to well-known paths when this returns none.
func (c *Cache) Sitemaps(ctx context.Context, scheme, host string) ([]string, error) {
	entry, err := c.get(ctx, scheme, host)
	if err != nil {
		return nil, err
	}
	return entry.sitemaps, nil
}

func (c *Cache) get(ctx context.Context, scheme, host string) (*cacheEntry, error) {
	c.mu.Lock()
	if e, ok := c.entries[host]; ok {
		c.mu.Unlock()
		return e, nil
	}
	c.mu.Unlock()

	entry, fetchErr := c.fetchAndParse(ctx, scheme, host)
	if entry == nil {
		return nil, fetchErr
	}

	c.mu.Lock()
	c.entries[host] = entry
	c.mu.Unlock()

	if c.store != nil {
		var raw []byte
		if entry.data != nil {
			raw = []byte(strings.Join(entry.sitemaps, "\n")) // best-effort: raw text not retained past parse
		}
		_ = c.store.Save(ctx, storage.RobotsCacheEntry{
			Host:             host,
			RawText:          raw,
			FetchedAt:        entry.fetchedAt,
			ParseOK:          entry.fetchOK,
			DeclaredSitemaps: entry.sitemaps,
		})
	}

	return entry, fetchErr
}

func (c *Cache) fetchAndParse(ctx context.Context, scheme, host string) (*cacheEntry, error) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)
	resp, err := c.fetcher.Get(ctx, robotsURL, c.userAgent)
	now := time.Now().UTC()
	if err != nil {
		// Network error or timeout fetching robots.txt: permissive.
		return &cacheEntry{fetchedAt: now, fetchOK: false}, nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		return &cacheEntry{fetchedAt: now, fetchOK: false}, nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return &cacheEntry{fetchedAt: now, fetchOK: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return &cacheEntry{fetchedAt: now, fetchOK: false}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return &cacheEntry{fetchedAt: now, fetchOK: false}, nil
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return &cacheEntry{fetchedAt: now, fetchOK: false}, model.NewCrawlError(model.ErrRobotsUnavailable, robotsURL, err)
	}

	return &cacheEntry{
		data:      data,
		sitemaps:  data.Sitemaps,
		fetchedAt: now,
		fetchOK:   true,
	}, nil
}
