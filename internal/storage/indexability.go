package storage

import (
	"context"
	"database/sql"
)

// IndexabilityVerdict is the outcome of evaluating a page's indexability
// signals (robots.txt, HTML meta robots, X-Robots-Tag header) plus the
// reasons bitmap explaining any "no" (internal/model reason flags).
type IndexabilityVerdict struct {
	URLID             int64
	RobotsTxtAllows   *bool
	HTMLMetaAllows    *bool
	HTTPHeaderAllows  *bool
	OverallIndexable  bool
	ReasonsBitmap     uint32
}

// IndexabilityRepository persists indexability verdicts.
type IndexabilityRepository struct {
	db *database
	w  *writer
}

// Save writes v, overwriting any prior verdict for the same URL.
func (r *IndexabilityRepository) Save(ctx context.Context, v IndexabilityVerdict) error {
	return r.w.submit(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO indexability (url_id, robots_txt_allows, html_meta_allows, http_header_allows, overall_indexable, reasons_bitmap)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(url_id) DO UPDATE SET
				robots_txt_allows = excluded.robots_txt_allows,
				html_meta_allows = excluded.html_meta_allows,
				http_header_allows = excluded.http_header_allows,
				overall_indexable = excluded.overall_indexable,
				reasons_bitmap = excluded.reasons_bitmap
		`,
			v.URLID, nullableBool(v.RobotsTxtAllows), nullableBool(v.HTMLMetaAllows), nullableBool(v.HTTPHeaderAllows),
			boolToInt(v.OverallIndexable), v.ReasonsBitmap,
		)
		return err
	})
}

// Get returns the stored verdict for a URL, if any.
func (r *IndexabilityRepository) Get(ctx context.Context, urlID int64) (IndexabilityVerdict, bool, error) {
	var v IndexabilityVerdict
	var robotsTxt, htmlMeta, httpHeader sql.NullBool
	var overall int
	v.URLID = urlID
	err := r.db.read.QueryRowContext(ctx,
		`SELECT robots_txt_allows, html_meta_allows, http_header_allows, overall_indexable, reasons_bitmap
		 FROM indexability WHERE url_id = ?`, urlID,
	).Scan(&robotsTxt, &htmlMeta, &httpHeader, &overall, &v.ReasonsBitmap)
	if err == sql.ErrNoRows {
		return IndexabilityVerdict{}, false, nil
	}
	if err != nil {
		return IndexabilityVerdict{}, false, err
	}
	v.RobotsTxtAllows = fromNullBool(robotsTxt)
	v.HTMLMetaAllows = fromNullBool(htmlMeta)
	v.HTTPHeaderAllows = fromNullBool(httpHeader)
	v.OverallIndexable = overall != 0
	return v, true, nil
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	return boolToInt(*b)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func fromNullBool(n sql.NullBool) *bool {
	if !n.Valid {
		return nil
	}
	v := n.Bool
	return &v
}
