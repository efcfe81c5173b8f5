package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// scriptBackend implements Backend by rendering the page in headless Chrome
// via chromedp, for the --js flag. Adapted from
// JakeFAU-realtime-cpi-crawler's internal/fetcher/headless.Fetcher: same
// allocator-per-process/context-per-fetch shape, network-event response
// capture for status/headers, and OuterHTML extraction after the DOM
// settles. It does not attempt to capture a scripted redirect chain the way
// httpBackend does for plain HTTP — a JS-driven navigation's "redirects" are
// client-side history entries, not HTTP 3xx hops, so Fetch returns a
// Response with no Hops, describing only the final rendered document.
type scriptBackend struct {
	userAgent         string
	navigationTimeout time.Duration
	allocator         context.Context
	allocCancel       context.CancelFunc
	limiter           chan struct{}
}

// ScriptBackendConfig controls the headless browser pool.
type ScriptBackendConfig struct {
	UserAgent         string
	NavigationTimeout time.Duration
	MaxParallel       int
}

// NewScriptBackend starts one shared headless Chrome allocator for the run.
// Close must be called when the crawl finishes to tear it down.
func NewScriptBackend(cfg ScriptBackendConfig) (*scriptBackend, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &scriptBackend{
		userAgent:         cfg.UserAgent,
		navigationTimeout: cfg.NavigationTimeout,
		allocator:         allocCtx,
		allocCancel:       allocCancel,
		limiter:           limiter,
	}, nil
}

// Close tears down the shared headless allocator.
func (b *scriptBackend) Close() {
	b.allocCancel()
}

// Fetch navigates to rawURL with headless Chrome, waits for the body to
// settle, and returns the rendered HTML.
func (b *scriptBackend) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if err := b.acquire(ctx); err != nil {
		return nil, err
	}
	defer b.release()

	taskCtx, taskCancel := chromedp.NewContext(b.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, b.navigationTimeout)
	defer cancel()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	var html, finalURL string
	actions := []chromedp.Action{
		b.networkSetupAction(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, fmt.Errorf("chromedp run %s: %w", rawURL, err)
	}

	status, headers, respURL := meta.snapshotWithFallbacks(rawURL, finalURL)
	if headers == nil {
		headers = http.Header{}
	}

	return &Response{
		FinalURL:    respURL,
		StatusCode:  status,
		Headers:     headers,
		Body:        []byte(html),
		ContentType: headers.Get("Content-Type"),
		FetchedAt:   time.Now().UTC(),
	}, nil
}

func (b *scriptBackend) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if b.userAgent != "" {
			if err := emulation.SetUserAgentOverride(b.userAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (b *scriptBackend) acquire(ctx context.Context) error {
	if b.limiter == nil {
		return nil
	}
	select {
	case b.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (b *scriptBackend) release() {
	if b.limiter == nil {
		return
	}
	select {
	case <-b.limiter:
	default:
	}
}

type responseMeta struct {
	mu      sync.RWMutex
	status  int
	headers http.Header
	url     string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{headers: http.Header{}}
}

func (m *responseMeta) captureEvent(ev any) {
	event, ok := ev.(*network.EventResponseReceived)
	if !ok || event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		headers.Add(key, fmt.Sprint(value))
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.headers = headers
	m.url = event.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) snapshot() (int, http.Header, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dst := make(http.Header, len(m.headers))
	for k, values := range m.headers {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
	return m.status, dst, m.url
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, http.Header, string) {
	status, headers, respURL := m.snapshot()
	switch {
	case respURL != "":
	case finalURL != "":
		respURL = finalURL
	default:
		respURL = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, headers, respURL
}
