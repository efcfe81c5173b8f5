// Package fetcher retrieves pages over HTTP (or, with --js, a scripted
// browser), capturing the full redirect chain and enforcing a per-host rate
// limit.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// maxRedirectHops bounds a single redirect chain; a chain revisiting a URL
// before this limit is marked looped rather than followed further.
const maxRedirectHops = 10

// maxBodyBytes bounds how much of a response body is read into memory.
const maxBodyBytes = 32 * 1024 * 1024

// retryBackoffs is the exponential backoff schedule applied to a connection
// error or 5xx response on a page fetch: two retries, at 250ms then 1s. A
// 4xx response is terminal and never retried.
var retryBackoffs = []time.Duration{250 * time.Millisecond, 1 * time.Second}

// Hop is one redirect response in a chain.
type Hop struct {
	URL        string
	StatusCode int
}

// Response is the result of fetching a URL to completion, including the
// full redirect chain that led to the final response.
type Response struct {
	FinalURL    string
	StatusCode  int
	Headers     http.Header
	Body        []byte
	ContentType string
	Hops        []Hop
	Looped      bool
	FetchedAt   time.Time
}

// Backend fetches one URL to completion. httpBackend serves plain HTTP(S);
// scriptBackend renders JavaScript first via chromedp when --js is set.
type Backend interface {
	Fetch(ctx context.Context, rawURL string) (*Response, error)
}

// Client wraps a Backend with per-host rate limiting, the shared entry point
// internal/crawlctl uses for every page fetch.
type Client struct {
	backend Backend
	limiter *hostLimiter
}

// New builds a Client. delay is the minimum spacing between requests to the
// same host.
func New(backend Backend, delay time.Duration) *Client {
	return &Client{backend: backend, limiter: newHostLimiter(delay)}
}

// Fetch waits for this host's rate limit slot, then delegates to the
// backend.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if err := c.limiter.wait(ctx, u.Host); err != nil {
		return nil, err
	}
	return c.backend.Fetch(ctx, rawURL)
}

// httpBackend is the plain HTTP(S) Backend, and also the Fetcher internal
// robots and internal/sitemap use for their own lighter-weight GETs.
type httpBackend struct {
	client    *http.Client
	userAgent string
	headers   map[string]string
}

// NewHTTPBackend builds an httpBackend. It disables the standard library's
// automatic redirect following (http.ErrUseLastResponse) so Fetch can walk
// and record the chain itself, one hop at a time.
func NewHTTPBackend(userAgent string, timeout time.Duration, extraHeaders map[string]string) *httpBackend {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &httpBackend{client: client, userAgent: userAgent, headers: extraHeaders}
}

// Get performs a single, non-redirect-following GET, for callers (robots,
// sitemap) that only need one response and handle status codes themselves.
func (b *httpBackend) Get(ctx context.Context, rawURL, userAgent string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if userAgent == "" {
		userAgent = b.userAgent
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}
	return b.client.Do(req)
}

// getWithRetry issues one hop's GET, retrying a connection error or 5xx
// response per retryBackoffs. A 4xx (or any other non-5xx) response is
// returned immediately without retry; a 5xx that survives every retry is
// handed back as the final response rather than an error, and a connection
// error that survives every retry is returned as that error.
func (b *httpBackend) getWithRetry(ctx context.Context, rawURL string) (*http.Response, error) {
	var resp *http.Response
	var err error
	for attempt := 0; ; attempt++ {
		resp, err = b.Get(ctx, rawURL, "")
		retryable := err != nil || resp.StatusCode >= 500
		if !retryable || attempt >= len(retryBackoffs) {
			return resp, err
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryBackoffs[attempt]):
		}
	}
}

// Fetch walks the redirect chain manually, recording every hop, up to
// maxRedirectHops or until a non-3xx response or a revisited URL (looped).
func (b *httpBackend) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	current := rawURL
	visited := map[string]bool{}
	var hops []Hop
	looped := false

	for {
		resp, err := b.getWithRetry(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", current, err)
		}

		if !isRedirect(resp.StatusCode) {
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			_ = resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read body of %s: %w", current, err)
			}
			return &Response{
				FinalURL:    current,
				StatusCode:  resp.StatusCode,
				Headers:     resp.Header,
				Body:        body,
				ContentType: resp.Header.Get("Content-Type"),
				Hops:        hops,
				Looped:      looped,
				FetchedAt:   time.Now().UTC(),
			}, nil
		}

		location := resp.Header.Get("Location")
		_ = resp.Body.Close()
		if location == "" {
			return nil, fmt.Errorf("redirect from %s has no Location header", current)
		}
		target, err := resolveRedirect(current, location)
		if err != nil {
			return nil, fmt.Errorf("resolve redirect target from %s: %w", current, err)
		}

		visited[current] = true
		hops = append(hops, Hop{URL: target, StatusCode: resp.StatusCode})

		if visited[target] || len(hops) >= maxRedirectHops {
			looped = visited[target]
			return &Response{
				FinalURL:   target,
				StatusCode: resp.StatusCode,
				Hops:       hops,
				Looped:     looped,
				FetchedAt:  time.Now().UTC(),
			}, nil
		}
		current = target
	}
}

func isRedirect(status int) bool {
	return status >= 300 && status < 400 && status != http.StatusNotModified
}

func resolveRedirect(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}
