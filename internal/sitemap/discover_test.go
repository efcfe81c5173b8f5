package sitemap

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
)

type fakeFetcher struct {
	pages map[string]string
	hits  map[string]int
}

func (f *fakeFetcher) Get(_ context.Context, url, _ string) (*http.Response, error) {
	f.hits[url]++
	body, ok := f.pages[url]
	if !ok {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(bytes.NewReader(nil))}, nil
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader([]byte(body)))}, nil
}

func TestWalkExpandsSitemapIndexAndDedupes(t *testing.T) {
	f := &fakeFetcher{
		hits: make(map[string]int),
		pages: map[string]string{
			"https://example.com/sitemap_index.xml": `<sitemapindex>
				<sitemap><loc>https://example.com/sitemap-a.xml</loc></sitemap>
				<sitemap><loc>https://example.com/sitemap-b.xml</loc></sitemap>
				<sitemap><loc>https://example.com/sitemap-a.xml</loc></sitemap>
			</sitemapindex>`,
			"https://example.com/sitemap-a.xml": `<urlset><url><loc>https://example.com/a1</loc></url></urlset>`,
			"https://example.com/sitemap-b.xml": `<urlset><url><loc>https://example.com/b1</loc></url></urlset>`,
		},
	}

	d := New(f, "testbot")
	result, err := d.Walk(context.Background(), []string{"https://example.com/sitemap_index.xml"})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	if len(result.Entries) != 2 {
		t.Fatalf("Entries = %v, want 2", result.Entries)
	}
	if f.hits["https://example.com/sitemap-a.xml"] != 1 {
		t.Errorf("sitemap-a fetched %d times, want 1 (dedup)", f.hits["https://example.com/sitemap-a.xml"])
	}
	if result.SourceOf["https://example.com/a1"] != "https://example.com/sitemap-a.xml" {
		t.Errorf("SourceOf[a1] = %q", result.SourceOf["https://example.com/a1"])
	}
}

func TestWalkContinuesPastOneBadSitemap(t *testing.T) {
	f := &fakeFetcher{
		hits: make(map[string]int),
		pages: map[string]string{
			"https://example.com/sitemap-good.xml": `<urlset><url><loc>https://example.com/ok</loc></url></urlset>`,
		},
	}

	d := New(f, "testbot")
	result, err := d.Walk(context.Background(), []string{
		"https://example.com/sitemap-missing.xml",
		"https://example.com/sitemap-good.xml",
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(result.Entries) != 1 || result.Entries[0].Loc != "https://example.com/ok" {
		t.Fatalf("Entries = %v", result.Entries)
	}
	if result.VisitedCount != 2 {
		t.Errorf("VisitedCount = %d, want 2", result.VisitedCount)
	}
}

func TestWalkStopsExpandingIndexesPastMaxDepth(t *testing.T) {
	f := &fakeFetcher{
		hits: make(map[string]int),
		pages: map[string]string{
			"https://example.com/root.xml":   `<sitemapindex><sitemap><loc>https://example.com/level1.xml</loc></sitemap></sitemapindex>`,
			"https://example.com/level1.xml": `<sitemapindex><sitemap><loc>https://example.com/level2.xml</loc></sitemap></sitemapindex>`,
			"https://example.com/level2.xml": `<sitemapindex><sitemap><loc>https://example.com/level3.xml</loc></sitemap></sitemapindex>`,
			"https://example.com/level3.xml": `<sitemapindex><sitemap><loc>https://example.com/level4.xml</loc></sitemap></sitemapindex>`,
			"https://example.com/level4.xml": `<urlset><url><loc>https://example.com/deep</loc></url></urlset>`,
		},
	}

	d := New(f, "testbot")
	result, err := d.Walk(context.Background(), []string{"https://example.com/root.xml"})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	if len(result.Entries) != 0 {
		t.Fatalf("Entries = %v, want none (level4 sits past max index depth)", result.Entries)
	}
	if f.hits["https://example.com/level4.xml"] != 0 {
		t.Errorf("level4 fetched %d times, want 0 (nested past maxSitemapIndexDepth)", f.hits["https://example.com/level4.xml"])
	}
	if f.hits["https://example.com/level3.xml"] != 1 {
		t.Errorf("level3 fetched %d times, want 1", f.hits["https://example.com/level3.xml"])
	}
}
