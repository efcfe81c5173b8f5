package storage

// crawlSchemaSQL defines the normalized metadata database ({host}_crawl.db).
// Table names and columns follow the entities in the data model: urls,
// frontier, content, redirects (+ redirect_summary), links (with their
// anchor/xpath/href lookup tables), hreflang, indexability, sitemaps_listed,
// and robots_cache.
const crawlSchemaSQL = `
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS urls (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    canonical      TEXT UNIQUE NOT NULL,
    host           TEXT NOT NULL,
    scheme         TEXT NOT NULL,
    classification TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_urls_host ON urls(host);

CREATE TABLE IF NOT EXISTS frontier (
    url_id        INTEGER PRIMARY KEY REFERENCES urls(id),
    depth         INTEGER NOT NULL,
    parent_url_id INTEGER REFERENCES urls(id),
    status        TEXT NOT NULL CHECK (status IN ('queued','done')),
    enqueued_at   TEXT NOT NULL,
    updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_frontier_status ON frontier(status, enqueued_at);

CREATE TABLE IF NOT EXISTS meta_robots_sets (
    id     INTEGER PRIMARY KEY AUTOINCREMENT,
    tokens TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS content (
    url_id              INTEGER PRIMARY KEY REFERENCES urls(id),
    title               TEXT,
    meta_description    TEXT,
    h1_count            INTEGER NOT NULL DEFAULT 0,
    h2_count            INTEGER NOT NULL DEFAULT 0,
    first_h1            TEXT,
    first_h2            TEXT,
    word_count          INTEGER NOT NULL DEFAULT 0,
    canonical_url_id    INTEGER REFERENCES urls(id),
    meta_robots_id      INTEGER REFERENCES meta_robots_sets(id),
    internal_link_count INTEGER NOT NULL DEFAULT 0,
    external_link_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS redirects (
    source_url_id INTEGER NOT NULL REFERENCES urls(id),
    hop_index     INTEGER NOT NULL,
    target_url_id INTEGER NOT NULL REFERENCES urls(id),
    status_code   INTEGER NOT NULL,
    PRIMARY KEY (source_url_id, hop_index)
);

CREATE TABLE IF NOT EXISTS redirect_summary (
    source_url_id       INTEGER PRIMARY KEY REFERENCES urls(id),
    chain_length        INTEGER NOT NULL,
    final_status        INTEGER NOT NULL,
    final_target_url_id INTEGER NOT NULL REFERENCES urls(id),
    looped              INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS anchor_texts (
    id   INTEGER PRIMARY KEY AUTOINCREMENT,
    text TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS xpaths (
    id   INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS hrefs (
    id   INTEGER PRIMARY KEY AUTOINCREMENT,
    href TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS links (
    source_url_id  INTEGER NOT NULL REFERENCES urls(id),
    target_url_id  INTEGER NOT NULL REFERENCES urls(id),
    anchor_text_id INTEGER REFERENCES anchor_texts(id),
    xpath_id       INTEGER REFERENCES xpaths(id),
    href_id        INTEGER REFERENCES hrefs(id),
    rel_flags      INTEGER NOT NULL DEFAULT 0,
    link_type      TEXT NOT NULL CHECK (link_type IN ('internal','external'))
);
CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_url_id);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_url_id);

CREATE TABLE IF NOT EXISTS hreflang (
    url_id       INTEGER NOT NULL REFERENCES urls(id),
    source       TEXT NOT NULL CHECK (source IN ('sitemap','header','html')),
    language_code TEXT NOT NULL,
    href_url_id  INTEGER NOT NULL REFERENCES urls(id)
);
CREATE INDEX IF NOT EXISTS idx_hreflang_url ON hreflang(url_id);

CREATE TABLE IF NOT EXISTS indexability (
    url_id             INTEGER PRIMARY KEY REFERENCES urls(id),
    robots_txt_allows  INTEGER,
    html_meta_allows   INTEGER,
    http_header_allows INTEGER,
    overall_indexable  INTEGER NOT NULL,
    reasons_bitmap     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sitemaps_listed (
    url_id         INTEGER NOT NULL REFERENCES urls(id),
    sitemap_url_id INTEGER NOT NULL REFERENCES urls(id),
    discovered_at  TEXT NOT NULL,
    lastmod        TEXT,
    changefreq     TEXT,
    priority       REAL,
    PRIMARY KEY (url_id, sitemap_url_id)
);

CREATE TABLE IF NOT EXISTS robots_cache (
    host             TEXT PRIMARY KEY,
    raw_text         BLOB,
    fetched_at       TEXT NOT NULL,
    parse_ok         INTEGER NOT NULL,
    declared_sitemaps TEXT
);

CREATE TABLE IF NOT EXISTS crawl_errors (
    url_id      INTEGER REFERENCES urls(id),
    kind        TEXT NOT NULL,
    message     TEXT,
    occurred_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_crawl_errors_kind ON crawl_errors(kind);
`

// pagesSchemaSQL defines the bulky-artifact database ({host}_pages.db).
const pagesSchemaSQL = `
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pages (
    url_id           INTEGER PRIMARY KEY,
    final_status_code INTEGER NOT NULL,
    fetched_at       TEXT NOT NULL,
    headers_blob     BLOB,
    body_blob        BLOB,
    content_type     TEXT,
    encoding         TEXT
);
`

// SchemaVersion is stamped into meta('schema_version') on first open. A
// mismatch on subsequent opens makes Open fail (see checkSchemaVersion).
const SchemaVersion = "1"

// BlobFormat documents how pages.headers_blob/body_blob are encoded: raw
// zlib bytes in the BLOB column, not the base64-wrapped text the original
// Python implementation used for portability.
const BlobFormat = "zlib-raw"
