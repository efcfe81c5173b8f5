package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/masahif/sqlitecrawler/internal/model"
)

// WriteFunc is a unit of work executed inside a single transaction by a
// writer goroutine.
type WriteFunc func(tx *sql.Tx) error

type writeJob struct {
	fn   WriteFunc
	done chan error
}

// writer serializes writes to one database through a small pool of
// goroutines fed by a bounded queue, enforcing a single-writer discipline
// per database.
type writer struct {
	db   *sql.DB
	jobs chan writeJob
	stop chan struct{}
}

func newWriter(db *sql.DB, workers, queueSize int) *writer {
	w := &writer{
		db:   db,
		jobs: make(chan writeJob, queueSize),
		stop: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go w.run()
	}
	return w
}

func (w *writer) run() {
	for {
		select {
		case <-w.stop:
			return
		case job := <-w.jobs:
			job.done <- w.execute(job.fn)
		}
	}
}

func (w *writer) execute(fn WriteFunc) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// submit enqueues a write job, returning a StorageBusy CrawlError if it
// cannot be queued before ctx is done.
func (w *writer) submit(ctx context.Context, fn WriteFunc) error {
	done := make(chan error, 1)
	select {
	case w.jobs <- writeJob{fn: fn, done: done}:
	case <-ctx.Done():
		return model.NewCrawlError(model.ErrStorageBusy, "", ctx.Err())
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return model.NewCrawlError(model.ErrStorageBusy, "", ctx.Err())
	}
}

func (w *writer) close() {
	close(w.stop)
}
