package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/florianilch/finctl/internal/apierror"
)

// DefaultTimeout bounds a whole request including a possible refresh and replay.
const DefaultTimeout = 60 * time.Second

// maxErrorBodyBytes caps how much of an error response is read for normalization.
const maxErrorBodyBytes = 1 << 20

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	timeout   time.Duration
	userAgent string
}

// WithTimeout sets the overall per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *clientConfig) {
		c.userAgent = ua
	}
}

// Client issues JSON requests against the finance API. Paths are resolved relative
// to the base URL and every failure is returned as an *apierror.Error.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
}

// New creates a Client for baseURL sending requests through transport, typically a
// *Transport.
func New(baseURL string, transport http.RoundTripper, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if transport == nil {
		return nil, fmt.Errorf("missing transport")
	}

	cfg := &clientConfig{
		timeout:   DefaultTimeout,
		userAgent: "finctl",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.timeout,
		},
		userAgent: cfg.userAgent,
	}, nil
}

// BaseURL returns the URL all paths are resolved against.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Do sends a request and decodes a successful JSON response into out.
// body is JSON-encoded when non-nil; params are merged into the query string.
// out may be nil to discard the payload.
func (c *Client) Do(ctx context.Context, method, path string, body any, params url.Values, out any) error {
	target, err := c.resolve(path, params)
	if err != nil {
		return apierror.InvalidRequest(err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apierror.InvalidRequest(fmt.Errorf("encoding request body: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return apierror.InvalidRequest(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apierror.Normalize(err)
	}
	defer func() { _ = resp.Body.Close() }()

	slog.DebugContext(ctx, "api request",
		"method", method,
		"path", target.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		if err != nil {
			return apierror.Network(fmt.Errorf("reading error response: %w", err))
		}
		return apierror.FromResponse(resp.StatusCode, data)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return apierror.InvalidResponse(resp.StatusCode, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, params, out)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, nil, out)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, nil, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// resolve joins path onto the base URL and merges params into its query.
func (c *Client) resolve(path string, params url.Values) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}
	if ref.IsAbs() || ref.Host != "" {
		return nil, fmt.Errorf("path %q must be relative to the base URL", path)
	}

	target := c.baseURL.ResolveReference(ref)
	if len(params) > 0 {
		query := target.Query()
		for key, values := range params {
			for _, v := range values {
				query.Add(key, v)
			}
		}
		target.RawQuery = query.Encode()
	}
	return target, nil
}
