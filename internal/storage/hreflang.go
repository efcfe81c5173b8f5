package storage

import (
	"context"
	"database/sql"
)

// HreflangSource distinguishes where an hreflang annotation was declared.
type HreflangSource string

const (
	HreflangSitemap HreflangSource = "sitemap"
	HreflangHeader  HreflangSource = "header"
	HreflangHTML    HreflangSource = "html"
)

// HreflangEntry is one alternate-language annotation for a page.
type HreflangEntry struct {
	URLID        int64
	Source       HreflangSource
	LanguageCode string
	HrefURLID    int64
}

// HreflangRepository persists hreflang annotations, unifying the three
// provenance flavors (sitemap/header/html) into one table via the source
// column.
type HreflangRepository struct {
	db *database
	w  *writer
}

// ReplaceForURL deletes existing entries for urlID with the given source and
// inserts the new set, so re-processing a page (or a sitemap that lists it
// again) doesn't accumulate duplicates.
func (r *HreflangRepository) ReplaceForURL(ctx context.Context, urlID int64, source HreflangSource, entries []HreflangEntry) error {
	return r.w.submit(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM hreflang WHERE url_id = ? AND source = ?`, urlID, string(source)); err != nil {
			return err
		}
		for _, e := range entries {
			if _, err := tx.Exec(
				`INSERT INTO hreflang (url_id, source, language_code, href_url_id) VALUES (?, ?, ?, ?)`,
				urlID, string(source), e.LanguageCode, e.HrefURLID,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// ForURL returns all hreflang entries recorded for a URL across all sources.
func (r *HreflangRepository) ForURL(ctx context.Context, urlID int64) ([]HreflangEntry, error) {
	rows, err := r.db.read.QueryContext(ctx,
		`SELECT url_id, source, language_code, href_url_id FROM hreflang WHERE url_id = ?`, urlID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []HreflangEntry
	for rows.Next() {
		var e HreflangEntry
		var source string
		if err := rows.Scan(&e.URLID, &source, &e.LanguageCode, &e.HrefURLID); err != nil {
			return nil, err
		}
		e.Source = HreflangSource(source)
		out = append(out, e)
	}
	return out, rows.Err()
}
