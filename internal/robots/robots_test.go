package robots

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
)

type fakeFetcher struct {
	responses map[string]*http.Response
	err       error
	calls     int
}

func (f *fakeFetcher) Get(_ context.Context, url, _ string) (*http.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	resp, ok := f.responses[url]
	if !ok {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(bytes.NewReader(nil))}, nil
	}
	return resp, nil
}

func newResp(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader([]byte(body)))}
}

func TestAllowedRespectsDisallowRule(t *testing.T) {
	f := &fakeFetcher{responses: map[string]*http.Response{
		"https://example.com/robots.txt": newResp(200, "User-agent: *\nDisallow: /private\n"),
	}}
	c := New(f, nil, "testbot", false)

	allowed, unavailable, err := c.Allowed(context.Background(), "https", "example.com", "/private/page")
	if err != nil {
		t.Fatalf("Allowed: %v", err)
	}
	if allowed {
		t.Fatalf("Allowed = true, want false for disallowed path")
	}
	if unavailable {
		t.Fatalf("unavailable = true, want false for a cleanly fetched robots.txt")
	}

	allowed, unavailable, err = c.Allowed(context.Background(), "https", "example.com", "/public/page")
	if err != nil {
		t.Fatalf("Allowed: %v", err)
	}
	if !allowed {
		t.Fatalf("Allowed = false, want true for unrestricted path")
	}
	if unavailable {
		t.Fatalf("unavailable = true, want false for a cleanly fetched robots.txt")
	}
}

func TestAllowedIsPermissiveOn404(t *testing.T) {
	f := &fakeFetcher{responses: map[string]*http.Response{}}
	c := New(f, nil, "testbot", false)

	allowed, unavailable, err := c.Allowed(context.Background(), "https", "example.com", "/anything")
	if err != nil {
		t.Fatalf("Allowed: %v", err)
	}
	if !allowed {
		t.Fatalf("Allowed = false, want true when robots.txt is absent")
	}
	if unavailable {
		t.Fatalf("unavailable = true, want false for a 404 (robots.txt absent is a normal answer, not an unavailable one)")
	}
}

func TestAllowedIsPermissiveOnServerError(t *testing.T) {
	f := &fakeFetcher{responses: map[string]*http.Response{
		"https://example.com/robots.txt": newResp(503, ""),
	}}
	c := New(f, nil, "testbot", false)

	allowed, unavailable, err := c.Allowed(context.Background(), "https", "example.com", "/anything")
	if err != nil {
		t.Fatalf("Allowed: %v", err)
	}
	if !allowed {
		t.Fatalf("Allowed = false, want true on 5xx robots.txt")
	}
	if !unavailable {
		t.Fatalf("unavailable = false, want true on 5xx robots.txt")
	}
}

func TestAllowedIgnoresRobotsWhenDisabled(t *testing.T) {
	f := &fakeFetcher{responses: map[string]*http.Response{
		"https://example.com/robots.txt": newResp(200, "User-agent: *\nDisallow: /\n"),
	}}
	c := New(f, nil, "testbot", true)

	allowed, unavailable, err := c.Allowed(context.Background(), "https", "example.com", "/anything")
	if err != nil {
		t.Fatalf("Allowed: %v", err)
	}
	if !allowed {
		t.Fatalf("Allowed = false, want true when robots are ignored")
	}
	if unavailable {
		t.Fatalf("unavailable = true, want false when robots are ignored outright")
	}
	if f.calls != 0 {
		t.Fatalf("fetcher called %d times, want 0 when ignore=true", f.calls)
	}
}

func TestSitemapsFromRobotsTxt(t *testing.T) {
	f := &fakeFetcher{responses: map[string]*http.Response{
		"https://example.com/robots.txt": newResp(200, "User-agent: *\nSitemap: https://example.com/sitemap.xml\n"),
	}}
	c := New(f, nil, "testbot", false)

	sitemaps, err := c.Sitemaps(context.Background(), "https", "example.com")
	if err != nil {
		t.Fatalf("Sitemaps: %v", err)
	}
	if len(sitemaps) != 1 || sitemaps[0] != "https://example.com/sitemap.xml" {
		t.Fatalf("Sitemaps = %v", sitemaps)
	}
}

func TestFetchIsCachedPerHost(t *testing.T) {
	f := &fakeFetcher{responses: map[string]*http.Response{
		"https://example.com/robots.txt": newResp(200, "User-agent: *\nAllow: /\n"),
	}}
	c := New(f, nil, "testbot", false)

	for i := 0; i < 3; i++ {
		if _, _, err := c.Allowed(context.Background(), "https", "example.com", "/x"); err != nil {
			t.Fatalf("Allowed: %v", err)
		}
	}
	if f.calls != 1 {
		t.Fatalf("fetcher called %d times, want 1 (cached after first fetch)", f.calls)
	}
}
