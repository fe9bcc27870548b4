package engine

import (
	"context"

	stealth "github.com/anatolykoptev/go-stealth"
)

// ConnectRetry paces postgres and redis dials at startup. Request paths
// never retry.
var ConnectRetry = stealth.DefaultRetryConfig

// RetryDo retries fn on transient network errors with exponential backoff.
func RetryDo[T any](ctx context.Context, rc stealth.RetryConfig, fn func() (T, error)) (T, error) {
	return stealth.RetryDo(ctx, rc, fn)
}

// CaptionAcceptLanguage is sent with every caption and watch-page request.
const CaptionAcceptLanguage = "id,en;q=0.9"

// RandomUserAgent returns a browser User-Agent string.
func RandomUserAgent() string { return stealth.RandomUserAgent() }

// BrowserHeaders returns the identity headers the caption host expects:
// a browser User-Agent, a Referer pointing at the watch page and a fixed
// Accept-Language. Bare requests are rejected upstream.
func BrowserHeaders(referer string) map[string]string {
	h := map[string]string{
		"User-Agent":      RandomUserAgent(),
		"Accept-Language": CaptionAcceptLanguage,
	}
	if referer != "" {
		h["Referer"] = referer
	}
	return h
}
