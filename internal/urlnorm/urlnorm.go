// Package urlnorm canonicalizes URLs into a stable string form and
// classifies them relative to a crawl's seed hosts, so that two URLs
// referring to the same resource compare equal and non-http schemes never
// reach the frontier.
package urlnorm

import (
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/masahif/sqlitecrawler/internal/model"
)

// socialSuffixes and networkSuffixes are static host suffix tables used by
// Classify. They cover the common cases; anything else falls through to
// internal/external based on host comparison.
var socialSuffixes = []string{
	"facebook.com", "twitter.com", "x.com", "linkedin.com", "instagram.com",
	"youtube.com", "pinterest.com", "tiktok.com", "reddit.com",
}

var networkSuffixes = []string{
	"cloudflare.com", "akamai.net", "akamaized.net", "fastly.net",
	"amazonaws.com", "googleusercontent.com", "cloudfront.net",
}

// Normalizer canonicalizes and classifies URLs against a fixed set of seed
// hosts, resolving whether same-host subdomains are treated as internal.
type Normalizer struct {
	seedHosts        map[string]bool
	includeSubdomain bool
}

// New builds a Normalizer scoped to the given seed hosts (already
// lower-cased). includeSubdomains controls whether a.b.example.com is
// classified internal against a seed host example.com (the --offsite-adjacent
// "same registrable domain" behavior); false requires an exact host match.
func New(seedHosts []string, includeSubdomains bool) *Normalizer {
	set := make(map[string]bool, len(seedHosts))
	for _, h := range seedHosts {
		set[strings.ToLower(h)] = true
	}
	return &Normalizer{seedHosts: set, includeSubdomain: includeSubdomains}
}

// Normalize resolves href against base (if href is relative) and returns the
// canonical string form: lowercased scheme/host, default ports dropped,
// dot-segments resolved, query keys sorted, fragment dropped.
func (n *Normalizer) Normalize(base *url.URL, href string) (string, error) {
	href = strings.TrimSpace(href)
	href = strings.Map(dropSmartQuotes, href)

	ref, err := url.Parse(href)
	if err != nil {
		return "", model.NewCrawlError(model.ErrMalformedURL, href, err)
	}

	resolved := ref
	if base != nil {
		resolved = base.ResolveReference(ref)
	}
	if resolved.Host == "" && resolved.Scheme != "" && resolved.Scheme != "http" && resolved.Scheme != "https" {
		// mailto:, tel:, javascript: and similar — not an error, just
		// never becomes a frontier candidate.
		return resolved.String(), nil
	}

	resolved.Scheme = strings.ToLower(resolved.Scheme)
	resolved.Host = strings.ToLower(resolved.Host)
	stripDefaultPort(resolved)
	resolved.Path = cleanPath(resolved.Path)
	resolved.RawQuery = sortQuery(resolved.RawQuery)
	resolved.Fragment = ""
	resolved.RawFragment = ""

	return resolved.String(), nil
}

// Classify categorizes a canonical URL string relative to the Normalizer's
// seed hosts.
func (n *Normalizer) Classify(canonical string) model.Classification {
	u, err := url.Parse(canonical)
	if err != nil {
		return model.ClassificationOther
	}

	switch u.Scheme {
	case "mailto":
		return model.ClassificationMail
	case "http", "https":
		// fall through to host-based classification below
	default:
		return model.ClassificationOther
	}

	host := strings.ToLower(u.Hostname())
	if hasSuffix(host, socialSuffixes) {
		return model.ClassificationSocial
	}
	if hasSuffix(host, networkSuffixes) {
		return model.ClassificationNetwork
	}

	if n.seedHosts[host] {
		return model.ClassificationInternal
	}
	if n.includeSubdomain {
		reg, err := publicsuffix.EffectiveTLDPlusOne(host)
		if err == nil {
			for seed := range n.seedHosts {
				if seedReg, err := publicsuffix.EffectiveTLDPlusOne(seed); err == nil && seedReg == reg {
					return model.ClassificationInternal
				}
			}
		}
	}

	return model.ClassificationExternal
}

func hasSuffix(host string, suffixes []string) bool {
	for _, s := range suffixes {
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}

func dropSmartQuotes(r rune) rune {
	switch r {
	case '‘', '’':
		return '\''
	case '“', '”':
		return '"'
	}
	return r
}

func stripDefaultPort(u *url.URL) {
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = u.Hostname()
	}
}

// cleanPath collapses repeated slashes and resolves . / .. segments without
// depending on the filesystem semantics of path.Clean (which would turn an
// empty path into "." — not desired for URLs).
func cleanPath(p string) string {
	if p == "" {
		return p
	}
	trailingSlash := strings.HasSuffix(p, "/") && p != "/"
	segments := strings.Split(p, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	result := "/" + strings.Join(out, "/")
	if trailingSlash && result != "/" {
		result += "/"
	}
	return result
}

// sortQuery re-encodes a raw query string with keys sorted lexicographically
// so that two URLs differing only in parameter order compare equal.
func sortQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return raw
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		vs := values[k]
		sort.Strings(vs)
		for j, v := range vs {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
