// ABOUTME: HTTP implementation of the engine's Sender capability
// ABOUTME: One attempt per call; retry accounting belongs to the sync queue

package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/guildpost/guildpost/internal/engine"
)

// maxResponseBody caps how much of a backend reply is retained on a queue item.
const maxResponseBody = 64 * 1024

// HTTPSender delivers queued mutations over HTTP. A transport failure is
// returned as an error; an HTTP response of any status is returned as a
// Response so the queue can classify remote rejections separately.
type HTTPSender struct {
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
}

// Option configures an HTTPSender.
type Option func(*HTTPSender)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *HTTPSender) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithTimeout sets the per-request timeout on the default client.
func WithTimeout(d time.Duration) Option {
	return func(s *HTTPSender) {
		if d > 0 {
			s.httpClient.Timeout = d
		}
	}
}

// WithHeader adds a default header sent on every request, e.g. an
// Authorization token. Per-item headers take precedence.
func WithHeader(key, value string) Option {
	return func(s *HTTPSender) {
		s.headers[key] = value
	}
}

// NewHTTPSender creates a sender that resolves relative queue URLs against
// baseURL. An empty baseURL requires absolute URLs on every queue item.
func NewHTTPSender(baseURL string, opts ...Option) *HTTPSender {
	s := &HTTPSender{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		headers:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ensure HTTPSender implements the engine's Sender contract.
var _ engine.Sender = (*HTTPSender)(nil)

// Send performs a single HTTP request for the queued mutation.
func (s *HTTPSender) Send(ctx context.Context, req engine.Request) (*engine.Response, error) {
	target, err := s.resolve(req.URL)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range s.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		// Transport-level failure: no usable answer from the backend.
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &engine.Response{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status: resp.StatusCode,
		Data:   data,
	}, nil
}

func (s *HTTPSender) resolve(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing queue item url: %w", err)
	}
	if u.IsAbs() {
		return raw, nil
	}
	if s.baseURL == "" {
		return "", fmt.Errorf("relative url %q with no base url configured", raw)
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return s.baseURL + raw, nil
}
