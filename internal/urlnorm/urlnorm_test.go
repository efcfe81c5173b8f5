package urlnorm

import (
	"net/url"
	"testing"

	"github.com/masahif/sqlitecrawler/internal/model"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestNormalizeQueryOrderIsStable(t *testing.T) {
	n := New([]string{"a.example"}, false)
	base := mustParse(t, "https://a.example/")

	got1, err := n.Normalize(base, "https://a.example/p?b=2&a=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got2, err := n.Normalize(base, "https://a.example/p?a=1&b=2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got1 != got2 {
		t.Errorf("expected equal normalization, got %q vs %q", got1, got2)
	}
}

func TestNormalizeDropsDefaultPortAndFragment(t *testing.T) {
	n := New([]string{"a.example"}, false)
	base := mustParse(t, "https://a.example/")

	got, err := n.Normalize(base, "HTTPS://A.Example:443/x/../y/#frag")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://a.example/y/"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := New([]string{"a.example"}, false)
	base := mustParse(t, "https://a.example/")

	once, err := n.Normalize(base, "https://a.example/p?b=2&a=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	onceURL := mustParse(t, once)
	twice, err := n.Normalize(onceURL, once)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if once != twice {
		t.Errorf("normalize not idempotent: %q vs %q", once, twice)
	}
}

func TestNormalizeMalformedURL(t *testing.T) {
	n := New([]string{"a.example"}, false)
	base := mustParse(t, "https://a.example/")

	_, err := n.Normalize(base, "http://[::1")
	if err == nil {
		t.Fatal("expected error for malformed URL")
	}
	var ce *model.CrawlError
	if !asCrawlError(err, &ce) {
		t.Fatalf("expected *model.CrawlError, got %T", err)
	}
	if ce.Kind != model.ErrMalformedURL {
		t.Errorf("got kind %v, want %v", ce.Kind, model.ErrMalformedURL)
	}
}

func asCrawlError(err error, target **model.CrawlError) bool {
	ce, ok := err.(*model.CrawlError)
	if ok {
		*target = ce
	}
	return ok
}

func TestClassify(t *testing.T) {
	n := New([]string{"a.example"}, false)

	tests := []struct {
		url  string
		want model.Classification
	}{
		{"https://a.example/page", model.ClassificationInternal},
		{"https://b.example/page", model.ClassificationExternal},
		{"https://facebook.com/foo", model.ClassificationSocial},
		{"https://cdn.cloudflare.com/x.js", model.ClassificationNetwork},
		{"mailto:a@b.com", model.ClassificationMail},
	}

	for _, tt := range tests {
		if got := n.Classify(tt.url); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
