package storage

import (
	"context"
	"database/sql"
	"strings"
)

// Content is one page's extracted structural metadata.
type Content struct {
	URLID             int64
	Title             string
	MetaDescription   string
	H1Count           int
	H2Count           int
	FirstH1           string
	FirstH2           string
	WordCount         int
	CanonicalURLID    *int64
	MetaRobotsTokens  []string
	InternalLinkCount int
	ExternalLinkCount int
}

// ContentRepository persists Content rows, normalizing distinct meta-robots
// token sets into meta_robots_sets so repeated token combinations (e.g.
// "index, follow") share one row.
type ContentRepository struct {
	db *database
	w  *writer
}

// Save writes c, atomically overwriting any prior content row for the same
// URL.
func (r *ContentRepository) Save(ctx context.Context, c Content) error {
	return r.w.submit(ctx, func(tx *sql.Tx) error {
		var metaRobotsID *int64
		if len(c.MetaRobotsTokens) > 0 {
			id, err := internMetaRobots(tx, c.MetaRobotsTokens)
			if err != nil {
				return err
			}
			metaRobotsID = &id
		}

		_, err := tx.Exec(`
			INSERT INTO content (
				url_id, title, meta_description, h1_count, h2_count, first_h1, first_h2,
				word_count, canonical_url_id, meta_robots_id, internal_link_count, external_link_count
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(url_id) DO UPDATE SET
				title = excluded.title,
				meta_description = excluded.meta_description,
				h1_count = excluded.h1_count,
				h2_count = excluded.h2_count,
				first_h1 = excluded.first_h1,
				first_h2 = excluded.first_h2,
				word_count = excluded.word_count,
				canonical_url_id = excluded.canonical_url_id,
				meta_robots_id = excluded.meta_robots_id,
				internal_link_count = excluded.internal_link_count,
				external_link_count = excluded.external_link_count
		`,
			c.URLID, c.Title, c.MetaDescription, c.H1Count, c.H2Count, c.FirstH1, c.FirstH2,
			c.WordCount, c.CanonicalURLID, metaRobotsID, c.InternalLinkCount, c.ExternalLinkCount,
		)
		return err
	})
}

func internMetaRobots(tx *sql.Tx, tokens []string) (int64, error) {
	key := strings.Join(tokens, ",")
	res, err := tx.Exec(`INSERT OR IGNORE INTO meta_robots_sets (tokens) VALUES (?)`, key)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return res.LastInsertId()
	}
	var id int64
	err = tx.QueryRow(`SELECT id FROM meta_robots_sets WHERE tokens = ?`, key).Scan(&id)
	return id, err
}

// MetaRobotsTokens returns the parsed token list for a meta_robots_sets id.
func (r *ContentRepository) MetaRobotsTokens(ctx context.Context, id int64) ([]string, error) {
	var tokens string
	err := r.db.read.QueryRowContext(ctx, `SELECT tokens FROM meta_robots_sets WHERE id = ?`, id).Scan(&tokens)
	if err != nil {
		return nil, err
	}
	if tokens == "" {
		return nil, nil
	}
	return strings.Split(tokens, ","), nil
}
