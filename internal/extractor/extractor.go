// Package extractor pulls structural signals out of a parsed HTML document:
// title, meta description, meta robots tokens, canonical link, heading
// counts and first occurrences, word count, the outbound link graph (with
// anchor text, rel attributes, and an XPath locating each anchor), and
// HTML-embedded hreflang annotations.
package extractor

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Link is one outbound anchor found in the document.
type Link struct {
	Href       string
	AnchorText string
	Rel        string
	XPath      string
}

// HreflangLink is one <link rel="alternate" hreflang="..."> annotation found
// in <head>.
type HreflangLink struct {
	Lang string
	Href string
}

// Result is everything extracted from one HTML document.
type Result struct {
	Title            string
	MetaDescription  string
	MetaRobots       []string
	CanonicalHref    string
	H1Count          int
	H2Count          int
	FirstH1          string
	FirstH2          string
	WordCount        int
	ContentHash      string
	Links            []Link
	Hreflang         []HreflangLink
}

// Extract parses htmlContent and returns its extracted signals. It never
// resolves relative hrefs to absolute URLs — that is internal/urlnorm's job,
// given the page's own final URL as base.
func Extract(htmlContent []byte) (*Result, error) {
	doc, err := html.Parse(strings.NewReader(string(htmlContent)))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	result := &Result{}
	inBody := false
	var wordCount int

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "body":
				inBody = true
			case "title":
				if result.Title == "" {
					result.Title = strings.TrimSpace(textContent(n))
				}
			case "meta":
				parseMeta(n, result)
			case "link":
				parseLink(n, result)
			case "h1":
				result.H1Count++
				if result.FirstH1 == "" {
					result.FirstH1 = strings.TrimSpace(textContent(n))
				}
			case "h2":
				result.H2Count++
				if result.FirstH2 == "" {
					result.FirstH2 = strings.TrimSpace(textContent(n))
				}
			case "a":
				parseAnchor(n, result)
			case "script", "style", "noscript":
				// Text inside these does not count as page content; skip
				// their subtree entirely rather than descending into it.
				return
			}
		}
		if n.Type == html.TextNode && inBody {
			wordCount += len(strings.Fields(n.Data))
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	result.WordCount = wordCount
	hash := sha256.Sum256(htmlContent)
	result.ContentHash = fmt.Sprintf("%x", hash)

	return result, nil
}

func parseMeta(n *html.Node, result *Result) {
	var name, content, httpEquiv string
	for _, attr := range n.Attr {
		switch attr.Key {
		case "name":
			name = strings.ToLower(attr.Val)
		case "content":
			content = attr.Val
		case "http-equiv":
			httpEquiv = strings.ToLower(attr.Val)
		}
	}
	switch {
	case name == "description":
		result.MetaDescription = content
	case name == "robots", httpEquiv == "x-robots-tag":
		result.MetaRobots = SplitTokens(content)
	}
}

func parseLink(n *html.Node, result *Result) {
	var rel, href, hreflang string
	for _, attr := range n.Attr {
		switch attr.Key {
		case "rel":
			rel = strings.ToLower(strings.TrimSpace(attr.Val))
		case "href":
			href = attr.Val
		case "hreflang":
			hreflang = attr.Val
		}
	}
	switch {
	case rel == "canonical" && href != "":
		result.CanonicalHref = href
	case rel == "alternate" && hreflang != "" && href != "":
		result.Hreflang = append(result.Hreflang, HreflangLink{Lang: hreflang, Href: href})
	}
}

func parseAnchor(n *html.Node, result *Result) {
	var href, rel string
	for _, attr := range n.Attr {
		switch attr.Key {
		case "href":
			href = attr.Val
		case "rel":
			rel = attr.Val
		}
	}
	if href == "" || strings.HasPrefix(href, "javascript:") {
		return
	}
	result.Links = append(result.Links, Link{
		Href:       href,
		AnchorText: strings.TrimSpace(textContent(n)),
		Rel:        rel,
		XPath:      xpathFor(n),
	})
}

// textContent recursively concatenates the text nodes under n.
func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if text := textContent(c); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// SplitTokens splits a comma/whitespace separated attribute value (also
// used by internal/crawlctl for the X-Robots-Tag response header) into
// lowercase tokens.
func SplitTokens(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// xpathFor builds an absolute, index-qualified XPath for n by walking up
// its ancestor chain and counting preceding same-tag siblings at each
// level, e.g. "/html[1]/body[1]/div[2]/a[1]".
func xpathFor(n *html.Node) string {
	var segments []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		idx := 1
		for s := cur.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode && s.Data == cur.Data {
				idx++
			}
		}
		segments = append([]string{fmt.Sprintf("%s[%d]", cur.Data, idx)}, segments...)
	}
	return "/" + strings.Join(segments, "/")
}
