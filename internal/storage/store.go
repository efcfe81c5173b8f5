package storage

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Store owns the two physically separate SQLite databases for one crawl run
// and the repository objects built on top of them.
type Store struct {
	crawl *database
	pages *database

	crawlWriter *writer
	pagesWriter *writer

	URLs         *URLRepository
	Frontier     *FrontierRepository
	Content      *ContentRepository
	Links        *LinkRepository
	Redirects    *RedirectRepository
	Hreflang     *HreflangRepository
	Indexability *IndexabilityRepository
	Sitemaps     *SitemapRepository
	Robots       *RobotsCacheRepository
	Errors       *ErrorRepository
	Pages        *PagesRepository
	Meta         *MetaRepository
}

// Open opens (creating if absent) the {host}_crawl.db / {host}_pages.db pair
// under dataDir, where host is derived from the first seed URL per
// DBPathsForSeed. maxWorkers sizes each database's writer pool.
func Open(dataDir, firstSeedURL string, maxWorkers int) (*Store, error) {
	pagesPath, crawlPath := DBPathsForSeed(dataDir, firstSeedURL)

	crawlDB, err := openDatabase(crawlPath, crawlSchemaSQL)
	if err != nil {
		return nil, fmt.Errorf("open crawl database: %w", err)
	}
	if err := checkSchemaVersion(crawlDB.write); err != nil {
		_ = crawlDB.close()
		return nil, err
	}

	pagesDB, err := openDatabase(pagesPath, pagesSchemaSQL)
	if err != nil {
		_ = crawlDB.close()
		return nil, fmt.Errorf("open pages database: %w", err)
	}
	if err := checkSchemaVersion(pagesDB.write); err != nil {
		_ = crawlDB.close()
		_ = pagesDB.close()
		return nil, err
	}

	const writeQueueSize = 1000
	cw := newWriter(crawlDB.write, maxWorkers, writeQueueSize)
	pw := newWriter(pagesDB.write, maxWorkers, writeQueueSize)

	s := &Store{
		crawl:       crawlDB,
		pages:       pagesDB,
		crawlWriter: cw,
		pagesWriter: pw,
	}

	s.URLs = &URLRepository{db: crawlDB, w: cw}
	s.Frontier = &FrontierRepository{db: crawlDB, w: cw}
	s.Content = &ContentRepository{db: crawlDB, w: cw}
	s.Links = &LinkRepository{db: crawlDB, w: cw}
	s.Redirects = &RedirectRepository{db: crawlDB, w: cw}
	s.Hreflang = &HreflangRepository{db: crawlDB, w: cw}
	s.Indexability = &IndexabilityRepository{db: crawlDB, w: cw}
	s.Sitemaps = &SitemapRepository{db: crawlDB, w: cw}
	s.Robots = &RobotsCacheRepository{db: crawlDB, w: cw}
	s.Errors = &ErrorRepository{db: crawlDB, w: cw}
	s.Pages = &PagesRepository{db: pagesDB, w: pw}
	s.Meta = &MetaRepository{db: crawlDB, w: cw}

	return s, nil
}

// Close shuts down both writer pools and closes both databases.
func (s *Store) Close() error {
	s.crawlWriter.close()
	s.pagesWriter.close()

	crawlErr := s.crawl.close()
	pagesErr := s.pages.close()
	if crawlErr != nil {
		return crawlErr
	}
	return pagesErr
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9_]`)

// DBPathsForSeed derives the {host}_pages.db / {host}_crawl.db filenames
// from the first seed URL's host: lowercase, strip a leading "www.",
// replace "." and "-" with "_".
func DBPathsForSeed(dataDir, seedURL string) (pagesPath, crawlPath string) {
	name := websiteDBName(seedURL)
	return filepath.Join(dataDir, name+"_pages.db"), filepath.Join(dataDir, name+"_crawl.db")
}

func websiteDBName(seedURL string) string {
	host := hostOf(seedURL)
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	safe := strings.NewReplacer(".", "_", "-", "_").Replace(host)
	safe = nonAlnum.ReplaceAllString(safe, "_")
	if safe == "" {
		safe = "crawl"
	}
	return safe
}

func hostOf(rawURL string) string {
	// Deliberately minimal: this runs before the URL normalizer is
	// available (it needs the seed host to build its host set), so it
	// only strips scheme and path/port, not a full net/url parse.
	s := rawURL
	if idx := strings.Index(s, "://"); idx != -1 {
		s = s[idx+3:]
	}
	if idx := strings.IndexAny(s, "/:?#"); idx != -1 {
		s = s[:idx]
	}
	return s
}
