package storage

import (
	"context"
	"database/sql"
)

// RedirectHop is one entry in a captured redirect chain.
type RedirectHop struct {
	TargetURLID int64
	StatusCode  int
}

// RedirectRepository persists per-hop redirect rows and the materialized
// summary used for quick lookups.
type RedirectRepository struct {
	db *database
	w  *writer
}

// SaveChain writes the hop-indexed rows for sourceURLID's redirect chain and
// the corresponding redirect_summary row. hops must be contiguous starting
// at index 0; looped indicates the chain was truncated because it revisited
// an earlier URL. finalStatus is the status code the chain actually
// resolved to (the terminal, non-redirect response), which is not
// necessarily the status code of the last hop in hops — each hop records
// the 3xx that produced it, not the response at the end of the chain.
func (r *RedirectRepository) SaveChain(ctx context.Context, sourceURLID int64, hops []RedirectHop, looped bool, finalStatus int) error {
	return r.w.submit(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM redirects WHERE source_url_id = ?`, sourceURLID); err != nil {
			return err
		}
		for i, hop := range hops {
			if _, err := tx.Exec(
				`INSERT INTO redirects (source_url_id, hop_index, target_url_id, status_code) VALUES (?, ?, ?, ?)`,
				sourceURLID, i, hop.TargetURLID, hop.StatusCode,
			); err != nil {
				return err
			}
		}
		if len(hops) == 0 {
			_, err := tx.Exec(`DELETE FROM redirect_summary WHERE source_url_id = ?`, sourceURLID)
			return err
		}
		final := hops[len(hops)-1]
		loopedInt := 0
		if looped {
			loopedInt = 1
		}
		_, err := tx.Exec(`
			INSERT INTO redirect_summary (source_url_id, chain_length, final_status, final_target_url_id, looped)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(source_url_id) DO UPDATE SET
				chain_length = excluded.chain_length,
				final_status = excluded.final_status,
				final_target_url_id = excluded.final_target_url_id,
				looped = excluded.looped
		`, sourceURLID, len(hops), finalStatus, final.TargetURLID, loopedInt)
		return err
	})
}

// Summary reports the materialized redirect_summary row for a URL, if any.
func (r *RedirectRepository) Summary(ctx context.Context, sourceURLID int64) (chainLength, finalStatus int, finalTargetURLID int64, looped bool, ok bool, err error) {
	var loopedInt int
	row := r.db.read.QueryRowContext(ctx,
		`SELECT chain_length, final_status, final_target_url_id, looped FROM redirect_summary WHERE source_url_id = ?`,
		sourceURLID,
	)
	err = row.Scan(&chainLength, &finalStatus, &finalTargetURLID, &loopedInt)
	if err == sql.ErrNoRows {
		return 0, 0, 0, false, false, nil
	}
	if err != nil {
		return 0, 0, 0, false, false, err
	}
	return chainLength, finalStatus, finalTargetURLID, loopedInt != 0, true, nil
}
