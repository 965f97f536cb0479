package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single live-source request.
const DefaultTimeout = 30 * time.Second

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 32 << 20

// ClientOptions configures the HTTP client shared by a source.
type ClientOptions struct {
	Timeout   time.Duration
	UserAgent string
	Transport http.RoundTripper
}

// BaseSource provides common functionality for source implementations.
// Embed this in concrete sources to get Name, Series and GetBytes.
type BaseSource struct {
	name      string
	series    SeriesKey
	client    *http.Client
	userAgent string
}

// NewBaseSource creates a base source with a bounded HTTP client.
func NewBaseSource(name string, key SeriesKey, opts ClientOptions) BaseSource {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "cnbtaylor/1.0"
	}
	return BaseSource{
		name:      name,
		series:    key,
		client:    &http.Client{Timeout: timeout, Transport: opts.Transport},
		userAgent: ua,
	}
}

func (b *BaseSource) Name() string      { return b.name }
func (b *BaseSource) Series() SeriesKey { return b.series }

// GetBytes performs a GET and returns the response body. Non-2xx responses
// are reported as *HTTPError.
func (b *BaseSource) GetBytes(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", b.name, err)
	}
	req.Header.Set("User-Agent", b.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", b.name, err)
	}
	return body, nil
}

// NewRaw stamps a raw result with the source's identity.
func (b *BaseSource) NewRaw() *Raw {
	return &Raw{Source: b.name, Series: b.series, FetchedAt: time.Now()}
}
