package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	stealth "github.com/anatolykoptev/go-stealth"
)

// maxPageBytes caps how much of a watch page or caption body is read.
const maxPageBytes = 8 * 1024 * 1024

// PageGetter fetches a page with the given request headers and returns the
// body and HTTP status.
type PageGetter interface {
	Get(ctx context.Context, url string, headers map[string]string) ([]byte, int, error)
}

// HTTPGetter is a PageGetter over a plain net/http client.
type HTTPGetter struct {
	Client *http.Client
}

func (g HTTPGetter) Get(ctx context.Context, url string, headers map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return data, resp.StatusCode, nil
}

// BrowserGetter sends requests through the stealth client, which carries a
// Chrome TLS fingerprint. The caption host throttles non-browser handshakes.
type BrowserGetter struct {
	client *stealth.BrowserClient
}

// NewBrowserGetter builds a stealth-backed getter with a 15s timeout.
func NewBrowserGetter() (*BrowserGetter, error) {
	bc, err := stealth.NewClient(stealth.WithTimeout(15))
	if err != nil {
		return nil, fmt.Errorf("stealth client init: %w", err)
	}
	return &BrowserGetter{client: bc}, nil
}

func (g *BrowserGetter) Get(ctx context.Context, url string, headers map[string]string) ([]byte, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	h := stealth.ChromeHeaders()
	for k, v := range headers {
		h[strings.ToLower(k)] = v
	}
	data, _, status, err := g.client.Do(http.MethodGet, url, h, nil)
	if err != nil {
		return nil, status, fmt.Errorf("browser fetch: %w", err)
	}
	return data, status, nil
}
