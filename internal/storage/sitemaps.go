package storage

import (
	"context"
	"database/sql"
	"time"
)

// SitemapRepository records which sitemap listed which URL, for provenance.
// The listings are not consulted to skip sitemaps on later runs.
type SitemapRepository struct {
	db *database
	w  *writer
}

// ListingMeta carries the optional per-<url> attributes a urlset entry may
// declare (https://www.sitemaps.org/protocol.html), recorded alongside the
// listing itself.
type ListingMeta struct {
	LastMod    string
	ChangeFreq string
	Priority   *float64
}

// RecordListing notes that sitemapURLID lists urlID, ignoring duplicates.
// meta's fields are stored as-is (lastmod is not date-validated; sitemaps.org
// tolerates a bare date or a full timestamp).
func (r *SitemapRepository) RecordListing(ctx context.Context, urlID, sitemapURLID int64, meta ListingMeta) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return r.w.submit(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT OR IGNORE INTO sitemaps_listed (url_id, sitemap_url_id, discovered_at, lastmod, changefreq, priority)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			urlID, sitemapURLID, now,
			nullableString(meta.LastMod), nullableString(meta.ChangeFreq), meta.Priority,
		)
		return err
	})
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ListedBy returns the sitemap URL ids that have listed urlID.
func (r *SitemapRepository) ListedBy(ctx context.Context, urlID int64) ([]int64, error) {
	rows, err := r.db.read.QueryContext(ctx, `SELECT sitemap_url_id FROM sitemaps_listed WHERE url_id = ?`, urlID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
