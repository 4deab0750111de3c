// Package remote fetches ad tags from third-party ad servers so they can be
// previewed without hand-copying markup.
package remote

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultMaxBytes = 4 << 20
	maxRedirects    = 5
)

// Tag is a fetched ad tag.
type Tag struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
}

// Markup returns the tag as a loadable document fragment. JavaScript tags
// are wrapped in a script element; anything else is passed through.
func (t Tag) Markup() string {
	if strings.Contains(t.ContentType, "javascript") {
		return "<script>\n" + t.Body + "\n</script>"
	}
	return t.Body
}

// Fetcher retrieves ad tags over HTTP.
type Fetcher struct {
	client   *resty.Client
	logger   *zap.Logger
	maxBytes int64
}

// NewFetcher builds a fetcher with redirects capped and browser-like Accept
// headers, since some ad servers vary responses on them.
func NewFetcher(logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(defaultTimeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects)).
		SetHeader("User-Agent", "adforge-preview/1.0").
		SetHeader("Accept", "text/html,application/xhtml+xml,application/javascript;q=0.9,*/*;q=0.8")

	return &Fetcher{
		client:   client,
		logger:   logger.Named("remote"),
		maxBytes: defaultMaxBytes,
	}
}

// Fetch retrieves the tag at rawURL. Only http and https targets are
// accepted and the response body is size-capped.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Tag, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid tag url: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", target.Scheme)
	}
	if target.Host == "" {
		return nil, fmt.Errorf("tag url has no host")
	}

	resp, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch tag: %w", err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s (url: %s)", status, resp.Status(), rawURL)
	}
	body := resp.Body()
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("tag exceeds %d bytes", f.maxBytes)
	}

	tag := &Tag{
		URL:         rawURL,
		ContentType: resp.Header().Get("Content-Type"),
		Body:        string(body),
	}
	f.logger.Info("fetched tag",
		zap.String("url", rawURL),
		zap.Int("bytes", len(body)),
		zap.String("content_type", tag.ContentType))
	return tag, nil
}
