package storage

import (
	"context"
	"database/sql"
)

// Rel flags carried in links.rel_flags (bitmap, mirrors the model.Reason*
// indexability flags' style of a compact integer flag set).
const (
	RelNofollow = 1 << iota
	RelSponsored
	RelUGC
)

// Link is one anchor discovered on a page.
type Link struct {
	SourceURLID int64
	TargetURLID int64
	AnchorText  string
	XPath       string
	Href        string
	RelFlags    int
	LinkType    string // "internal" or "external"
}

// LinkRepository persists links in batches, interning anchor text/xpath/href
// strings into their lookup tables to keep the links table itself narrow.
type LinkRepository struct {
	db *database
	w  *writer
}

// maxLinkBatch bounds how many links one transaction covers, keeping
// individual writer transactions small.
const maxLinkBatch = 500

// SaveBatch persists links in chunks of maxLinkBatch, each in its own
// transaction.
func (r *LinkRepository) SaveBatch(ctx context.Context, links []Link) error {
	for start := 0; start < len(links); start += maxLinkBatch {
		end := start + maxLinkBatch
		if end > len(links) {
			end = len(links)
		}
		chunk := links[start:end]
		if err := r.w.submit(ctx, func(tx *sql.Tx) error {
			for _, l := range chunk {
				anchorID, err := internLookup(tx, "anchor_texts", "text", l.AnchorText)
				if err != nil {
					return err
				}
				xpathID, err := internLookup(tx, "xpaths", "path", l.XPath)
				if err != nil {
					return err
				}
				hrefID, err := internLookup(tx, "hrefs", "href", l.Href)
				if err != nil {
					return err
				}
				_, err = tx.Exec(
					`INSERT INTO links (source_url_id, target_url_id, anchor_text_id, xpath_id, href_id, rel_flags, link_type)
					 VALUES (?, ?, ?, ?, ?, ?, ?)`,
					l.SourceURLID, l.TargetURLID, anchorID, xpathID, hrefID, l.RelFlags, l.LinkType,
				)
				if err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// internLookup performs the insert-or-select pattern shared by the
// anchor_texts/xpaths/hrefs lookup tables. An empty value still gets a row
// (some anchors and hrefs are legitimately empty strings).
func internLookup(tx *sql.Tx, table, column, value string) (int64, error) {
	res, err := tx.Exec(`INSERT OR IGNORE INTO `+table+` (`+column+`) VALUES (?)`, value)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return res.LastInsertId()
	}
	var id int64
	err = tx.QueryRow(`SELECT id FROM `+table+` WHERE `+column+` = ?`, value).Scan(&id)
	return id, err
}
