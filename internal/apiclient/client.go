// Package apiclient is the bearer-authenticated JSON client shared by the
// source adapters. It adds per-call timeouts, token-bucket rate limiting,
// and retry with exponential backoff on transient failures.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/signald/internal/config"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultRate      = 5.0
	defaultBurst     = 5
	defaultUserAgent = "signald"
)

// Config configures a Client.
type Config struct {
	// BaseURL is prefixed to every request path.
	BaseURL string

	// Token is sent as a bearer token. Empty disables auth.
	Token config.Secret

	// Timeout bounds each individual HTTP call. Default: 15s.
	Timeout time.Duration

	// RatePerSecond and Burst size the token bucket. Default: 5/s, burst 5.
	RatePerSecond float64
	Burst         int

	Retry RetryConfig

	// HTTPClient supplies the base transport. Tests point it at httptest.
	HTTPClient *http.Client

	UserAgent string
	Logger    *zap.Logger
}

// Client performs JSON requests against one upstream API.
type Client struct {
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	retry     RetryConfig
	userAgent string
	logger    *zap.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = defaultRate
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Retry.ApplyDefaults()

	var transport http.RoundTripper = http.DefaultTransport
	if cfg.HTTPClient != nil && cfg.HTTPClient.Transport != nil {
		transport = cfg.HTTPClient.Transport
	}
	if cfg.Token.IsSet() {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token.Value()}),
			Base:   transport,
		}
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		http:      &http.Client{Timeout: timeout, Transport: transport},
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		retry:     cfg.Retry,
		userAgent: ua,
		logger:    logger,
	}, nil
}

// HTTPClient returns the authenticated client for SDKs that bring their own
// request building.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get issues a GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// GetWithHeader is Get that also returns the response headers of the
// successful attempt.
func (c *Client) GetWithHeader(ctx context.Context, path string, query url.Values, out any) (http.Header, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Do performs a request with rate limiting and retries. out may be nil.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	_, err := c.do(ctx, method, path, query, body, out)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (http.Header, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var header http.Header
	err := withRetry(ctx, c.retry, c.logger, func() (time.Duration, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("rate limiter: %w", err)
		}
		h, wait, err := c.once(ctx, method, target, payload, out)
		header = h
		return wait, err
	})
	if err != nil {
		return nil, err
	}
	return header, nil
}

// once performs a single attempt. The returned duration is a server-provided
// retry hint (Retry-After), zero when absent.
func (c *Client) once(ctx context.Context, method, target string, payload []byte, out any) (http.Header, time.Duration, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, &retryableError{err: fmt.Errorf("%s %s: %w", method, redactQuery(target), err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, 0, &retryableError{err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := strings.TrimSpace(string(data))
		if len(excerpt) > maxBodyExcerpt {
			excerpt = excerpt[:maxBodyExcerpt]
		}
		return nil, retryAfter(resp.Header), &StatusError{
			Method:     method,
			URL:        redactQuery(target),
			StatusCode: resp.StatusCode,
			Body:       excerpt,
		}
	}

	if out == nil || len(data) == 0 {
		return resp.Header, 0, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, 0, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.Header, 0, nil
}

func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// redactQuery drops the query string, which may carry tokens.
func redactQuery(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}
