package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// RobotsCacheEntry is the durable record of a fetched robots.txt, written by
// the in-memory robots cache (internal/robots).
type RobotsCacheEntry struct {
	Host             string
	RawText          []byte
	FetchedAt        time.Time
	ParseOK          bool
	DeclaredSitemaps []string
}

// RobotsCacheRepository persists RobotsCacheEntry rows.
type RobotsCacheRepository struct {
	db *database
	w  *writer
}

// Save upserts the robots.txt cache entry for a host.
func (r *RobotsCacheRepository) Save(ctx context.Context, e RobotsCacheEntry) error {
	return r.w.submit(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO robots_cache (host, raw_text, fetched_at, parse_ok, declared_sitemaps)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(host) DO UPDATE SET
				raw_text = excluded.raw_text,
				fetched_at = excluded.fetched_at,
				parse_ok = excluded.parse_ok,
				declared_sitemaps = excluded.declared_sitemaps
		`,
			e.Host, e.RawText, e.FetchedAt.UTC().Format(time.RFC3339Nano), boolToInt(e.ParseOK),
			strings.Join(e.DeclaredSitemaps, "\n"),
		)
		return err
	})
}

// Get returns the cached robots.txt entry for a host, if present.
func (r *RobotsCacheRepository) Get(ctx context.Context, host string) (RobotsCacheEntry, bool, error) {
	var e RobotsCacheEntry
	var fetchedAt string
	var parseOK int
	var sitemaps string
	e.Host = host
	err := r.db.read.QueryRowContext(ctx,
		`SELECT raw_text, fetched_at, parse_ok, declared_sitemaps FROM robots_cache WHERE host = ?`, host,
	).Scan(&e.RawText, &fetchedAt, &parseOK, &sitemaps)
	if err == sql.ErrNoRows {
		return RobotsCacheEntry{}, false, nil
	}
	if err != nil {
		return RobotsCacheEntry{}, false, err
	}
	e.FetchedAt, err = time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return RobotsCacheEntry{}, false, err
	}
	e.ParseOK = parseOK != 0
	if sitemaps != "" {
		e.DeclaredSitemaps = strings.Split(sitemaps, "\n")
	}
	return e, true, nil
}
