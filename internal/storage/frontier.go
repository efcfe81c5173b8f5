package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// FrontierEntry is one row of the persistent crawl queue.
type FrontierEntry struct {
	URLID    int64
	Depth    int
	ParentID *int64
	Status   string
}

// FrontierRepository implements the persistent crawl queue: enqueue, lease,
// complete, reset. Leasing is tracked with an in-process set (not
// persisted) so a crash leaves leased rows "queued" on disk for the next
// run to pick up — at-least-once semantics.
type FrontierRepository struct {
	db *database
	w  *writer

	mu     sync.Mutex
	leased map[int64]bool
}

func (r *FrontierRepository) leasedSet() map[int64]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.leased == nil {
		r.leased = make(map[int64]bool)
	}
	return r.leased
}

// Enqueue inserts a queued row for urlID if one does not already exist.
// Reports rejected=true (and does nothing) when depth exceeds maxDepth.
func (r *FrontierRepository) Enqueue(ctx context.Context, urlID int64, depth int, parentID *int64, maxDepth int) (rejected bool, err error) {
	if depth > maxDepth {
		return true, nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err = r.w.submit(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT OR IGNORE INTO frontier (url_id, depth, parent_url_id, status, enqueued_at, updated_at)
			 VALUES (?, ?, ?, 'queued', ?, ?)`,
			urlID, depth, parentID, now, now,
		)
		return err
	})
	return false, err
}

// Lease atomically selects up to n queued rows not currently leased
// in-process, marks them leased in memory, and returns them in insertion
// order.
func (r *FrontierRepository) Lease(ctx context.Context, n int) ([]FrontierEntry, error) {
	leased := r.leasedSet()

	rows, err := r.db.read.QueryContext(ctx,
		`SELECT url_id, depth, parent_url_id FROM frontier WHERE status = 'queued' ORDER BY rowid ASC LIMIT ?`,
		n*4, // over-fetch to skip in-process leased rows without an extra round trip
	)
	if err != nil {
		return nil, fmt.Errorf("lease query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []FrontierEntry
	r.mu.Lock()
	for rows.Next() && len(entries) < n {
		var e FrontierEntry
		var parent sql.NullInt64
		if err := rows.Scan(&e.URLID, &e.Depth, &parent); err != nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("scan frontier row: %w", err)
		}
		if leased[e.URLID] {
			continue
		}
		if parent.Valid {
			pid := parent.Int64
			e.ParentID = &pid
		}
		e.Status = "queued"
		leased[e.URLID] = true
		entries = append(entries, e)
	}
	r.mu.Unlock()

	return entries, rows.Err()
}

// Complete transitions a frontier row to done and releases its in-process
// lease. Idempotent.
func (r *FrontierRepository) Complete(ctx context.Context, urlID int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err := r.w.submit(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE frontier SET status = 'done', updated_at = ? WHERE url_id = ?`, now, urlID)
		return err
	})
	r.mu.Lock()
	delete(r.leased, urlID)
	r.mu.Unlock()
	return err
}

// HasQueued reports whether any frontier row is still queued.
func (r *FrontierRepository) HasQueued(ctx context.Context) (bool, error) {
	var count int
	err := r.db.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM frontier WHERE status = 'queued'`).Scan(&count)
	return count > 0, err
}

// Reset truncates the frontier table, used by --reset-frontier. urls and
// pages are retained.
func (r *FrontierRepository) Reset(ctx context.Context) error {
	err := r.w.submit(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM frontier`)
		return err
	})
	r.mu.Lock()
	r.leased = nil
	r.mu.Unlock()
	return err
}

// IsDone reports whether a frontier row exists and is done for urlID.
func (r *FrontierRepository) IsDone(ctx context.Context, urlID int64) (bool, error) {
	var status string
	err := r.db.read.QueryRowContext(ctx, `SELECT status FROM frontier WHERE url_id = ?`, urlID).Scan(&status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status == "done", nil
}
