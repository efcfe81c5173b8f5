// Package sitemap discovers and parses XML sitemaps: sitemap indexes,
// urlsets, and the xhtml:link hreflang annotations urlset entries may carry.
// Grounded on original_source/robots.py's process_sitemap/
// crawl_sitemaps_recursive/discover_sitemaps_from_domain, reimplemented
// against typed encoding/xml structs instead of BeautifulSoup's untyped tree
// walk.
package sitemap

import (
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// HreflangLink is one xhtml:link alternate-language annotation on a urlset
// entry.
type HreflangLink struct {
	Lang string
	Href string
}

// Entry is one <url> element from a urlset sitemap.
type Entry struct {
	Loc        string
	LastMod    string
	ChangeFreq string
	Priority   *float64
	Hreflang   []HreflangLink
}

// ParseResult is the outcome of parsing one sitemap document: either a set
// of nested sitemap URLs (sitemap index) or a set of page entries (urlset),
// never both.
type ParseResult struct {
	NestedSitemaps []string
	Entries        []Entry
}

type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []xmlURL `xml:"url"`
}

type xmlURL struct {
	Loc        string    `xml:"loc"`
	LastMod    string    `xml:"lastmod"`
	ChangeFreq string    `xml:"changefreq"`
	Priority   string    `xml:"priority"`
	Links      []xmlLink `xml:"link"`
}

// xmlLink covers the xhtml:link hreflang extension
// (https://www.sitemaps.org/protocol.html#localization); Go's xml decoder
// matches on local name regardless of namespace prefix by default.
type xmlLink struct {
	Rel      string `xml:"rel,attr"`
	Hreflang string `xml:"hreflang,attr"`
	Href     string `xml:"href,attr"`
}

type xmlSitemapIndex struct {
	XMLName  xml.Name      `xml:"sitemapindex"`
	Sitemaps []xmlIndexRef `xml:"sitemap"`
}

type xmlIndexRef struct {
	Loc string `xml:"loc"`
}

// Parse decodes a sitemap document, transparently gzip-decompressing when
// the body is gzip-magic-prefixed (sitemap.xml.gz is common in the wild even
// without a matching Content-Encoding header).
func Parse(body []byte) (ParseResult, error) {
	if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return ParseResult{}, fmt.Errorf("open gzip sitemap: %w", err)
		}
		decompressed, err := io.ReadAll(gz)
		_ = gz.Close()
		if err != nil {
			return ParseResult{}, fmt.Errorf("decompress sitemap: %w", err)
		}
		body = decompressed
	}

	rootName, err := sniffRootElement(body)
	if err != nil {
		return ParseResult{}, fmt.Errorf("sniff sitemap root element: %w", err)
	}

	switch rootName {
	case "sitemapindex":
		var idx xmlSitemapIndex
		if err := xml.Unmarshal(body, &idx); err != nil {
			return ParseResult{}, fmt.Errorf("decode sitemap index: %w", err)
		}
		nested := make([]string, 0, len(idx.Sitemaps))
		for _, s := range idx.Sitemaps {
			if s.Loc != "" {
				nested = append(nested, s.Loc)
			}
		}
		return ParseResult{NestedSitemaps: nested}, nil

	case "urlset":
		var set xmlURLSet
		if err := xml.Unmarshal(body, &set); err != nil {
			return ParseResult{}, fmt.Errorf("decode urlset: %w", err)
		}
		entries := make([]Entry, 0, len(set.URLs))
		for _, u := range set.URLs {
			if u.Loc == "" {
				continue
			}
			e := Entry{
				Loc:        u.Loc,
				LastMod:    strings.TrimSpace(u.LastMod),
				ChangeFreq: strings.TrimSpace(u.ChangeFreq),
				Priority:   parsePriority(u.Priority),
			}
			for _, l := range u.Links {
				if l.Hreflang != "" && l.Href != "" {
					e.Hreflang = append(e.Hreflang, HreflangLink{Lang: l.Hreflang, Href: l.Href})
				}
			}
			entries = append(entries, e)
		}
		return ParseResult{Entries: entries}, nil

	default:
		return ParseResult{}, fmt.Errorf("unrecognized sitemap root element %q", rootName)
	}
}

// parsePriority parses a sitemap <priority> value (0.0-1.0 per the sitemaps.org
// protocol), returning nil for an absent or malformed value rather than
// failing the whole entry over one cosmetic field.
func parsePriority(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

// sniffRootElement reads just far enough to find the document's first start
// element, mirroring the original's find_all("sitemap")/find_all("url")
// branch without decoding the whole document twice.
func sniffRootElement(body []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := decoder.Token()
		if err != nil {
			return "", err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

// WellKnownPaths are the fallback sitemap locations tried when robots.txt
// declares none, per original_source/robots.py's discover_sitemaps_from_domain.
var WellKnownPaths = []string{"/sitemap.xml", "/sitemap_index.xml", "/sitemaps.xml"}
