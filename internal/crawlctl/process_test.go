package crawlctl

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/masahif/sqlitecrawler/internal/fetcher"
	"github.com/masahif/sqlitecrawler/internal/model"
	"github.com/masahif/sqlitecrawler/internal/robots"
	"github.com/masahif/sqlitecrawler/internal/storage"
)

type fakeRobotsFetcher struct{ body string }

func (f fakeRobotsFetcher) Get(_ context.Context, _, _ string) (*http.Response, error) {
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

type failingBackend struct{ t *testing.T }

func (b failingBackend) Fetch(_ context.Context, rawURL string) (*fetcher.Response, error) {
	b.t.Fatalf("Fetch called for %s, want no fetch of a robots-disallowed URL", rawURL)
	return nil, nil
}

type fixedResponseBackend struct{ resp *fetcher.Response }

func (b fixedResponseBackend) Fetch(_ context.Context, _ string) (*fetcher.Response, error) {
	return b.resp, nil
}

type erroringRobotsFetcher struct{}

func (erroringRobotsFetcher) Get(_ context.Context, _, _ string) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestProcessEntryRecordsTerminalStatusInRedirectSummary(t *testing.T) {
	cfg := newTestConfig()
	c := newTestController(t, cfg)
	ctx := context.Background()

	urlID, err := c.store.URLs.Intern(ctx, "https://example.com/old", "example.com", "https", "internal")
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	if _, err := c.store.Frontier.Enqueue(ctx, urlID, 0, nil, cfg.MaxDepth); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	entries, err := c.store.Frontier.Lease(ctx, 1)
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Lease returned %d entries, want 1", len(entries))
	}

	c.robotsC = robots.New(fakeRobotsFetcher{body: ""}, c.store.Robots, "testbot", true)
	c.fetchC = fetcher.New(fixedResponseBackend{resp: &fetcher.Response{
		FinalURL:    "https://example.com/new",
		StatusCode:  200,
		ContentType: "application/octet-stream",
		Hops:        []fetcher.Hop{{URL: "https://example.com/new", StatusCode: 301}},
		FetchedAt:   time.Now(),
	}}, 0)

	if err := c.processEntry(ctx, entries[0]); err != nil {
		t.Fatalf("processEntry: %v", err)
	}

	_, finalStatus, _, _, ok, err := c.store.Redirects.Summary(ctx, urlID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if !ok {
		t.Fatalf("no redirect_summary row was written")
	}
	if finalStatus != 200 {
		t.Errorf("finalStatus = %d, want 200 (the resolved page), not 301 (the redirect hop)", finalStatus)
	}
}

func TestProcessEntryFlagsRobotsUnavailableInIndexabilityVerdict(t *testing.T) {
	cfg := newTestConfig()
	c := newTestController(t, cfg)
	ctx := context.Background()

	urlID, err := c.store.URLs.Intern(ctx, "https://example.com/", "example.com", "https", "internal")
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	if _, err := c.store.Frontier.Enqueue(ctx, urlID, 0, nil, cfg.MaxDepth); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	entries, err := c.store.Frontier.Lease(ctx, 1)
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Lease returned %d entries, want 1", len(entries))
	}

	c.robotsC = robots.New(erroringRobotsFetcher{}, c.store.Robots, "testbot", false)
	c.fetchC = fetcher.New(fixedResponseBackend{resp: &fetcher.Response{
		FinalURL:    "https://example.com/",
		StatusCode:  200,
		ContentType: "text/html",
		Body:        []byte("<html><body>hi</body></html>"),
		FetchedAt:   time.Now(),
	}}, 0)

	if err := c.processEntry(ctx, entries[0]); err != nil {
		t.Fatalf("processEntry: %v", err)
	}

	verdict, ok, err := c.store.Indexability.Get(ctx, urlID)
	if err != nil {
		t.Fatalf("Indexability.Get: %v", err)
	}
	if !ok {
		t.Fatalf("no indexability row was written")
	}
	if verdict.RobotsTxtAllows == nil || !*verdict.RobotsTxtAllows {
		t.Errorf("RobotsTxtAllows = %v, want true (robots.txt fetch failures are permissive)", verdict.RobotsTxtAllows)
	}
	if !verdict.OverallIndexable {
		t.Errorf("OverallIndexable = false, want true")
	}
	if verdict.ReasonsBitmap&model.ReasonRobotsUnavailable == 0 {
		t.Errorf("ReasonsBitmap = %#x, want ReasonRobotsUnavailable set", verdict.ReasonsBitmap)
	}
}

func TestProcessEntrySkipsFetchWhenRobotsDisallow(t *testing.T) {
	cfg := newTestConfig()
	c := newTestController(t, cfg)
	ctx := context.Background()

	urlID, err := c.store.URLs.Intern(ctx, "https://example.com/private", "example.com", "https", "internal")
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	if _, err := c.store.Frontier.Enqueue(ctx, urlID, 0, nil, cfg.MaxDepth); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	entries, err := c.store.Frontier.Lease(ctx, 1)
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Lease returned %d entries, want 1", len(entries))
	}

	c.robotsC = robots.New(fakeRobotsFetcher{body: "User-agent: *\nDisallow: /private\n"}, c.store.Robots, "testbot", false)
	c.fetchC = fetcher.New(failingBackend{t: t}, 0)

	if err := c.processEntry(ctx, entries[0]); err != nil {
		t.Fatalf("processEntry: %v", err)
	}

	if _, ok, err := c.store.Pages.Get(ctx, urlID); err != nil {
		t.Fatalf("Pages.Get: %v", err)
	} else if ok {
		t.Fatalf("a page row was written for a robots-disallowed URL")
	}

	verdict, ok, err := c.store.Indexability.Get(ctx, urlID)
	if err != nil {
		t.Fatalf("Indexability.Get: %v", err)
	}
	if !ok {
		t.Fatalf("no indexability row was written for a robots-disallowed URL")
	}
	if verdict.RobotsTxtAllows == nil || *verdict.RobotsTxtAllows {
		t.Errorf("RobotsTxtAllows = %v, want false", verdict.RobotsTxtAllows)
	}
	if verdict.OverallIndexable {
		t.Errorf("OverallIndexable = true, want false")
	}

	done, err := c.store.Frontier.IsDone(ctx, urlID)
	if err != nil {
		t.Fatalf("IsDone: %v", err)
	}
	if !done {
		t.Errorf("frontier entry not marked done")
	}
}

func TestRelFlags(t *testing.T) {
	cases := []struct {
		rel  string
		want int
	}{
		{"", 0},
		{"nofollow", storage.RelNofollow},
		{"sponsored", storage.RelSponsored},
		{"ugc", storage.RelUGC},
		{"nofollow sponsored", storage.RelNofollow | storage.RelSponsored},
		{"NoFollow UGC", storage.RelNofollow | storage.RelUGC},
		{"noopener", 0},
	}
	for _, tc := range cases {
		if got := relFlags(tc.rel); got != tc.want {
			t.Errorf("relFlags(%q) = %d, want %d", tc.rel, got, tc.want)
		}
	}
}

func TestLinkType(t *testing.T) {
	if got := linkType(model.ClassificationInternal); got != "internal" {
		t.Errorf("linkType(Internal) = %q, want internal", got)
	}
	for _, c := range []model.Classification{model.ClassificationExternal, model.ClassificationSocial, model.ClassificationOther} {
		if got := linkType(c); got != "external" {
			t.Errorf("linkType(%v) = %q, want external", c, got)
		}
	}
}

func TestLooksLikeHTML(t *testing.T) {
	cases := []struct {
		contentType string
		want        bool
	}{
		{"", true},
		{"text/html; charset=utf-8", true},
		{"application/xhtml+xml", true},
		{"TEXT/HTML", true},
		{"application/json", false},
		{"image/png", false},
	}
	for _, tc := range cases {
		if got := looksLikeHTML(tc.contentType); got != tc.want {
			t.Errorf("looksLikeHTML(%q) = %v, want %v", tc.contentType, got, tc.want)
		}
	}
}

func TestFlattenHeaders(t *testing.T) {
	got := string(flattenHeaders(map[string][]string{
		"X-Robots-Tag": {"noindex"},
	}))
	if got != "X-Robots-Tag: noindex\n" {
		t.Errorf("flattenHeaders = %q", got)
	}
}

func TestClassifyFetchErr(t *testing.T) {
	if got := classifyFetchErr(context.DeadlineExceeded); got != model.ErrTimeout {
		t.Errorf("classifyFetchErr(DeadlineExceeded) = %v, want ErrTimeout", got)
	}

	wrapped := model.NewCrawlError(model.ErrStorageFatal, "https://example.com/", errors.New("disk full"))
	if got := classifyFetchErr(wrapped); got != model.ErrStorageFatal {
		t.Errorf("classifyFetchErr(CrawlError) = %v, want ErrStorageFatal", got)
	}

	if got := classifyFetchErr(errors.New("connection reset")); got != model.ErrNetworkError {
		t.Errorf("classifyFetchErr(plain error) = %v, want ErrNetworkError", got)
	}
}
