package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/masahif/sqlitecrawler/internal/model"
)

// ErrorRepository durably records per-URL crawl errors into crawl_errors,
// supplementing the in-memory error taxonomy (internal/model) with a count
// that survives a crash.
type ErrorRepository struct {
	db *database
	w  *writer
}

// Record appends one error occurrence. urlID may be zero for errors not tied
// to a specific URL (e.g. a malformed seed argument).
func (r *ErrorRepository) Record(ctx context.Context, urlID int64, kind model.ErrorKind, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return r.w.submit(ctx, func(tx *sql.Tx) error {
		var id any
		if urlID != 0 {
			id = urlID
		}
		_, err := tx.Exec(
			`INSERT INTO crawl_errors (url_id, kind, message, occurred_at) VALUES (?, ?, ?, ?)`,
			id, string(kind), message, now,
		)
		return err
	})
}

// CountsByKind returns the number of recorded errors for each kind, used in
// the end-of-run summary.
func (r *ErrorRepository) CountsByKind(ctx context.Context) (map[model.ErrorKind]int, error) {
	rows, err := r.db.read.QueryContext(ctx, `SELECT kind, COUNT(*) FROM crawl_errors GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[model.ErrorKind]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		out[model.ErrorKind(kind)] = count
	}
	return out, rows.Err()
}
