package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/masahif/sqlitecrawler/internal/model"
)

// URLRepository assigns and looks up the stable integer identity for each
// normalized URL.
type URLRepository struct {
	db *database
	w  *writer
}

// Intern maps a normalized URL to a stable id, creating a row on first
// sighting. Concurrent callers racing on the same URL observe the same id:
// the insert is attempted first, and a unique-constraint failure falls back
// to a select within the same transaction.
func (r *URLRepository) Intern(ctx context.Context, canonical, host, scheme string, class model.Classification) (int64, error) {
	var id int64
	err := r.w.submit(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`INSERT OR IGNORE INTO urls (canonical, host, scheme, classification) VALUES (?, ?, ?, ?)`,
			canonical, host, scheme, string(class),
		)
		if err != nil {
			return fmt.Errorf("insert url: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 1 {
			id, err = res.LastInsertId()
			return err
		}
		return tx.QueryRow(`SELECT id FROM urls WHERE canonical = ?`, canonical).Scan(&id)
	})
	return id, err
}

// Lookup resolves a canonical URL string to its id without creating one,
// returning (0, false, nil) if unseen.
func (r *URLRepository) Lookup(ctx context.Context, canonical string) (int64, bool, error) {
	var id int64
	err := r.db.read.QueryRowContext(ctx, `SELECT id FROM urls WHERE canonical = ?`, canonical).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// Canonical returns the canonical string for a url id.
func (r *URLRepository) Canonical(ctx context.Context, id int64) (string, error) {
	var canonical string
	err := r.db.read.QueryRowContext(ctx, `SELECT canonical FROM urls WHERE id = ?`, id).Scan(&canonical)
	return canonical, err
}
