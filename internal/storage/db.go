// Package storage provides the two-database persistence layer for the
// crawler: a normalized "crawl" database (urls, frontier, content, links,
// ...) and a "pages" database holding compressed response bodies and
// headers. Both are SQLite databases opened in WAL mode through
// modernc.org/sqlite, following the single-writer-connection discipline the
// teacher repo established.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

var pragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA cache_size = -64000",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA busy_timeout = 30000",
}

// database wraps a single SQLite file's write handle (one connection, so
// writes always serialize) and a separate read pool that can proceed
// concurrently with the writer.
type database struct {
	write *sql.DB
	read  *sql.DB
}

func openDatabase(path, schemaSQL string) (*database, error) {
	write, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	write.SetMaxOpenConns(1)
	write.SetMaxIdleConns(1)
	write.SetConnMaxLifetime(30 * time.Minute)

	for _, p := range pragmas {
		if _, err := write.Exec(p); err != nil {
			_ = write.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	if _, err := write.Exec(schemaSQL); err != nil {
		_ = write.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	read, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		_ = write.Close()
		return nil, fmt.Errorf("open %s read pool: %w", path, err)
	}
	read.SetMaxOpenConns(4)

	return &database{write: write, read: read}, nil
}

func (d *database) close() error {
	readErr := d.read.Close()
	writeErr := d.write.Close()
	if writeErr != nil {
		return writeErr
	}
	return readErr
}

// checkSchemaVersion reads meta.schema_version, stamping it with the
// current SchemaVersion if absent, and returns a plain error naming both
// versions, with a hint, if a stamped version differs from what this build
// expects.
func checkSchemaVersion(db *sql.DB) error {
	var version string
	err := db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		_, err := db.Exec("INSERT INTO meta (key, value) VALUES ('schema_version', ?), ('blob_format', ?)", SchemaVersion, BlobFormat)
		return err
	case err != nil:
		return fmt.Errorf("read schema_version: %w", err)
	case version != SchemaVersion:
		return fmt.Errorf("schema_version mismatch: database has %q, this build expects %q; run with a matching build or a fresh database directory", version, SchemaVersion)
	}
	return nil
}
