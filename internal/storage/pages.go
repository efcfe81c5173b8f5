package storage

import (
	"bytes"
	"compress/zlib"
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"
)

// Page is one fetched page's raw artifacts, stored in the pages database
// separately from the normalized metadata so bulk blobs never bloat the
// metadata database's working set.
type Page struct {
	URLID          int64
	FinalStatus    int
	FetchedAt      time.Time
	Headers        []byte // raw, pre-compression
	Body           []byte // raw, pre-compression
	ContentType    string
	Encoding       string
}

// PagesRepository stores and retrieves compressed page artifacts. Headers
// and body are compressed with raw zlib (BlobFormat) rather than the
// base64-wrapped text the original Python implementation used, since a
// BLOB column has no need for a text-safe encoding.
type PagesRepository struct {
	db *database
	w  *writer
}

// Save compresses p.Headers/p.Body and upserts the page row.
func (r *PagesRepository) Save(ctx context.Context, p Page) error {
	headersBlob, err := compress(p.Headers)
	if err != nil {
		return fmt.Errorf("compress headers: %w", err)
	}
	bodyBlob, err := compress(p.Body)
	if err != nil {
		return fmt.Errorf("compress body: %w", err)
	}

	return r.w.submit(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO pages (url_id, final_status_code, fetched_at, headers_blob, body_blob, content_type, encoding)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(url_id) DO UPDATE SET
				final_status_code = excluded.final_status_code,
				fetched_at = excluded.fetched_at,
				headers_blob = excluded.headers_blob,
				body_blob = excluded.body_blob,
				content_type = excluded.content_type,
				encoding = excluded.encoding
		`,
			p.URLID, p.FinalStatus, p.FetchedAt.UTC().Format(time.RFC3339Nano), headersBlob, bodyBlob, p.ContentType, p.Encoding,
		)
		return err
	})
}

// Get retrieves and decompresses the page artifacts for a URL.
func (r *PagesRepository) Get(ctx context.Context, urlID int64) (Page, bool, error) {
	var p Page
	var fetchedAt string
	var headersBlob, bodyBlob []byte
	p.URLID = urlID
	err := r.db.read.QueryRowContext(ctx,
		`SELECT final_status_code, fetched_at, headers_blob, body_blob, content_type, encoding FROM pages WHERE url_id = ?`,
		urlID,
	).Scan(&p.FinalStatus, &fetchedAt, &headersBlob, &bodyBlob, &p.ContentType, &p.Encoding)
	if err == sql.ErrNoRows {
		return Page{}, false, nil
	}
	if err != nil {
		return Page{}, false, err
	}
	p.FetchedAt, err = time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return Page{}, false, err
	}
	if p.Headers, err = decompress(headersBlob); err != nil {
		return Page{}, false, fmt.Errorf("decompress headers: %w", err)
	}
	if p.Body, err = decompress(bodyBlob); err != nil {
		return Page{}, false, fmt.Errorf("decompress body: %w", err)
	}
	return p, true, nil
}

func compress(raw []byte) ([]byte, error) {
	if raw == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(blob []byte) ([]byte, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer func() { _ = zr.Close() }()
	return io.ReadAll(zr)
}
