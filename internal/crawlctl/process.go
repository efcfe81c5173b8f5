package crawlctl

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/masahif/sqlitecrawler/internal/extractor"
	"github.com/masahif/sqlitecrawler/internal/fetcher"
	"github.com/masahif/sqlitecrawler/internal/indexability"
	"github.com/masahif/sqlitecrawler/internal/model"
	"github.com/masahif/sqlitecrawler/internal/storage"
)

// processEntry fetches one leased frontier entry to completion, persists
// its page, content, links, and indexability verdict, enqueues its internal
// links, and marks the entry done. A URL robots.txt disallows is never
// fetched: only its indexability verdict (robots_txt_allows=false) is
// recorded before the entry is marked done. When robots.txt itself could
// not be fetched, the fetch proceeds (robots is permissive on failure) but
// the resulting indexability verdict carries ReasonRobotsUnavailable so a
// permissive verdict caused by a broken robots.txt stays distinguishable
// from one caused by a robots.txt that explicitly allows everything. A
// returned error propagates through the owning errgroup and is treated as
// fatal by drain; per-URL failures are recorded and swallowed here instead.
func (c *Controller) processEntry(ctx context.Context, entry storage.FrontierEntry) error {
	canonical, err := c.store.URLs.Canonical(ctx, entry.URLID)
	if err != nil {
		return err
	}
	requestURL, err := url.Parse(canonical)
	if err != nil {
		_ = c.store.Errors.Record(ctx, entry.URLID, model.ErrMalformedURL, err.Error())
		return c.store.Frontier.Complete(ctx, entry.URLID)
	}

	allowed, robotsUnavailable, robotsErr := c.robotsC.Allowed(ctx, requestURL.Scheme, requestURL.Host, requestURL.Path)
	if robotsErr != nil {
		c.recordCrawlError(ctx, entry.URLID, robotsErr)
		allowed = true
	}

	if !allowed {
		if err := c.store.Indexability.Save(ctx, storage.IndexabilityVerdict{
			URLID:            entry.URLID,
			RobotsTxtAllows:  boolPtr(false),
			HTMLMetaAllows:   boolPtr(true),
			HTTPHeaderAllows: boolPtr(true),
			OverallIndexable: false,
			ReasonsBitmap:    model.ReasonRobotsDisallow,
		}); err != nil {
			c.logger.Warn("save indexability verdict failed", "url_id", entry.URLID, "error", err)
		}
		return c.store.Frontier.Complete(ctx, entry.URLID)
	}

	resp, err := c.fetchC.Fetch(ctx, canonical)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		var ce *model.CrawlError
		if errors.As(err, &ce) && ce.Kind.IsFatal() {
			return ce
		}
		_ = c.store.Errors.Record(ctx, entry.URLID, classifyFetchErr(err), err.Error())
		return c.store.Frontier.Complete(ctx, entry.URLID)
	}

	if err := c.persistFetch(ctx, entry, requestURL, resp, robotsUnavailable); err != nil {
		if ctx.Err() != nil {
			return err
		}
		var ce *model.CrawlError
		if errors.As(err, &ce) && ce.Kind.IsFatal() {
			return ce
		}
		c.recordCrawlError(ctx, entry.URLID, err)
		return c.store.Frontier.Complete(ctx, entry.URLID)
	}

	c.pagesCrawled.Add(1)
	return c.store.Frontier.Complete(ctx, entry.URLID)
}

func (c *Controller) persistFetch(ctx context.Context, entry storage.FrontierEntry, requestURL *url.URL, resp *fetcher.Response, robotsUnavailable bool) error {
	if err := c.store.Pages.Save(ctx, storage.Page{
		URLID:       entry.URLID,
		FinalStatus: resp.StatusCode,
		FetchedAt:   resp.FetchedAt,
		Headers:     flattenHeaders(resp.Headers),
		Body:        resp.Body,
		ContentType: resp.ContentType,
	}); err != nil {
		return err
	}

	if err := c.saveRedirectChain(ctx, entry.URLID, resp); err != nil {
		c.logger.Warn("save redirect chain failed", "url_id", entry.URLID, "error", err)
	}

	finalURL, err := url.Parse(resp.FinalURL)
	if err != nil {
		finalURL = requestURL
	}

	headerRobots := extractor.SplitTokens(resp.Headers.Get("X-Robots-Tag"))

	var extracted *extractor.Result
	if looksLikeHTML(resp.ContentType) {
		extracted, err = extractor.Extract(resp.Body)
		if err != nil {
			c.logger.Warn("extract html failed", "url", resp.FinalURL, "error", err)
			extracted = nil
		}
	}

	var metaRobots []string
	if extracted != nil {
		metaRobots = extracted.MetaRobots
	}
	verdict := indexability.Evaluate(indexability.Inputs{
		RobotsTxtAllows:      true,
		RobotsTxtUnavailable: robotsUnavailable,
		MetaRobots:           metaRobots,
		HeaderRobots:         headerRobots,
		FinalStatusCode:      resp.StatusCode,
	})
	if err := c.store.Indexability.Save(ctx, storage.IndexabilityVerdict{
		URLID:            entry.URLID,
		RobotsTxtAllows:  &verdict.RobotsTxtAllows,
		HTMLMetaAllows:   &verdict.HTMLMetaAllows,
		HTTPHeaderAllows: &verdict.HTTPHeaderAllows,
		OverallIndexable: verdict.OverallIndexable,
		ReasonsBitmap:    verdict.ReasonsBitmap,
	}); err != nil {
		c.logger.Warn("save indexability verdict failed", "url_id", entry.URLID, "error", err)
	}

	if extracted == nil {
		return nil
	}
	return c.persistExtracted(ctx, entry, finalURL, extracted)
}

func (c *Controller) persistExtracted(ctx context.Context, entry storage.FrontierEntry, finalURL *url.URL, extracted *extractor.Result) error {
	var canonicalURLID *int64
	if extracted.CanonicalHref != "" {
		if id, err := c.internHref(ctx, finalURL, extracted.CanonicalHref); err == nil {
			canonicalURLID = &id
		}
	}

	links := make([]storage.Link, 0, len(extracted.Links))
	var internalCount, externalCount int
	for _, l := range extracted.Links {
		targetURLID, class, err := c.internLinkTargetID(ctx, finalURL, l.Href)
		if err != nil {
			continue
		}
		switch class {
		case model.ClassificationInternal:
			internalCount++
			c.enqueueDiscoveredLink(ctx, targetURLID, entry)
		case model.ClassificationExternal:
			externalCount++
			if c.cfg.Offsite {
				c.enqueueDiscoveredLink(ctx, targetURLID, entry)
			}
		}
		links = append(links, storage.Link{
			SourceURLID: entry.URLID,
			TargetURLID: targetURLID,
			AnchorText:  l.AnchorText,
			XPath:       l.XPath,
			Href:        l.Href,
			RelFlags:    relFlags(l.Rel),
			LinkType:    linkType(class),
		})
	}
	if len(links) > 0 {
		if err := c.store.Links.SaveBatch(ctx, links); err != nil {
			c.logger.Warn("save links failed", "url_id", entry.URLID, "error", err)
		}
	}

	if err := c.store.Content.Save(ctx, storage.Content{
		URLID:             entry.URLID,
		Title:             extracted.Title,
		MetaDescription:   extracted.MetaDescription,
		H1Count:           extracted.H1Count,
		H2Count:           extracted.H2Count,
		FirstH1:           extracted.FirstH1,
		FirstH2:           extracted.FirstH2,
		WordCount:         extracted.WordCount,
		CanonicalURLID:    canonicalURLID,
		MetaRobotsTokens:  extracted.MetaRobots,
		InternalLinkCount: internalCount,
		ExternalLinkCount: externalCount,
	}); err != nil {
		return err
	}

	if len(extracted.Hreflang) > 0 {
		entries := make([]storage.HreflangEntry, 0, len(extracted.Hreflang))
		for _, h := range extracted.Hreflang {
			hrefID, _, err := c.internLinkTargetID(ctx, finalURL, h.Href)
			if err != nil {
				continue
			}
			entries = append(entries, storage.HreflangEntry{
				URLID: entry.URLID, Source: storage.HreflangHTML, LanguageCode: h.Lang, HrefURLID: hrefID,
			})
		}
		if len(entries) > 0 {
			if err := c.store.Hreflang.ReplaceForURL(ctx, entry.URLID, storage.HreflangHTML, entries); err != nil {
				c.logger.Warn("save html hreflang failed", "url_id", entry.URLID, "error", err)
			}
		}
	}

	return nil
}

func (c *Controller) enqueueDiscoveredLink(ctx context.Context, targetURLID int64, parent storage.FrontierEntry) {
	if parent.Depth+1 > c.cfg.MaxDepth {
		return
	}
	parentID := parent.URLID
	if _, err := c.store.Frontier.Enqueue(ctx, targetURLID, parent.Depth+1, &parentID, c.cfg.MaxDepth); err != nil {
		c.logger.Warn("enqueue discovered link failed", "url_id", targetURLID, "error", err)
	}
}

// internHref normalizes href against base and interns it, returning only
// the id (for the canonical-link field, whose classification is not
// otherwise needed).
func (c *Controller) internHref(ctx context.Context, base *url.URL, href string) (int64, error) {
	id, _, err := c.internLinkTargetID(ctx, base, href)
	return id, err
}

func (c *Controller) internLinkTargetID(ctx context.Context, base *url.URL, href string) (int64, model.Classification, error) {
	canonical, err := c.normalizer.Normalize(base, href)
	if err != nil {
		return 0, "", err
	}
	class := c.normalizer.Classify(canonical)
	u, err := url.Parse(canonical)
	if err != nil {
		return 0, "", err
	}
	id, err := c.store.URLs.Intern(ctx, canonical, u.Host, u.Scheme, class)
	return id, class, err
}

func (c *Controller) saveRedirectChain(ctx context.Context, sourceURLID int64, resp *fetcher.Response) error {
	if len(resp.Hops) == 0 {
		return c.store.Redirects.SaveChain(ctx, sourceURLID, nil, false, resp.StatusCode)
	}
	hops := make([]storage.RedirectHop, 0, len(resp.Hops))
	for _, hop := range resp.Hops {
		canonical, err := c.normalizer.Normalize(nil, hop.URL)
		if err != nil {
			continue
		}
		u, err := url.Parse(canonical)
		if err != nil {
			continue
		}
		id, err := c.store.URLs.Intern(ctx, canonical, u.Host, u.Scheme, c.normalizer.Classify(canonical))
		if err != nil {
			continue
		}
		hops = append(hops, storage.RedirectHop{TargetURLID: id, StatusCode: hop.StatusCode})
	}
	return c.store.Redirects.SaveChain(ctx, sourceURLID, hops, resp.Looped, resp.StatusCode)
}

func (c *Controller) recordCrawlError(ctx context.Context, urlID int64, err error) {
	var ce *model.CrawlError
	if errors.As(err, &ce) {
		_ = c.store.Errors.Record(ctx, urlID, ce.Kind, ce.Error())
		return
	}
	_ = c.store.Errors.Record(ctx, urlID, model.ErrNetworkError, err.Error())
}

func boolPtr(b bool) *bool { return &b }

func classifyFetchErr(err error) model.ErrorKind {
	var ce *model.CrawlError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.ErrTimeout
	}
	return model.ErrNetworkError
}

func relFlags(rel string) int {
	var flags int
	for _, tok := range strings.Fields(strings.ToLower(rel)) {
		switch tok {
		case "nofollow":
			flags |= storage.RelNofollow
		case "sponsored":
			flags |= storage.RelSponsored
		case "ugc":
			flags |= storage.RelUGC
		}
	}
	return flags
}

func linkType(class model.Classification) string {
	if class == model.ClassificationInternal {
		return "internal"
	}
	return "external"
}

func looksLikeHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" || strings.Contains(ct, "html")
}

func flattenHeaders(h map[string][]string) []byte {
	var b strings.Builder
	for k, values := range h {
		for _, v := range values {
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteByte('\n')
		}
	}
	return []byte(b.String())
}
