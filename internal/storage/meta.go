package storage

import (
	"context"
	"database/sql"
)

// MetaRepository is a generic key/value accessor for the meta table present
// in both databases, used for schema_version, blob_format, and stamping the
// current crawl_id.
type MetaRepository struct {
	db *database
	w  *writer
}

// Get returns the value for key, if set.
func (r *MetaRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.read.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set upserts key to value.
func (r *MetaRepository) Set(ctx context.Context, key, value string) error {
	return r.w.submit(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value,
		)
		return err
	})
}
