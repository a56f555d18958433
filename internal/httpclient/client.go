// Package httpclient provides the outbound HTTP client used to fetch model
// artifacts, with per-request deadlines and bounded downloads.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Demr1on/batmap-app/internal/errors"
)

const (
	// DefaultTimeout applies when the request context has no deadline.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize bounds Fetch downloads.
	DefaultMaxBodySize int64 = 256 << 20

	defaultMaxIdleConns    = 10
	defaultIdleConnTimeout = 90 * time.Second
	defaultDialTimeout     = 30 * time.Second
	defaultUserAgent       = "batmap"
)

// Client wraps http.Client with context deadlines and an optional response
// hook. Safe for concurrent use.
type Client struct {
	client         *http.Client
	defaultTimeout time.Duration
	userAgent      string
	maxBodySize    int64

	hookMu        sync.RWMutex
	afterResponse func(*http.Request, *http.Response, error)
}

// Config holds client settings; zero values select defaults.
type Config struct {
	DefaultTimeout  time.Duration
	UserAgent       string
	MaxBodySize     int64
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:  DefaultTimeout,
		UserAgent:       defaultUserAgent,
		MaxBodySize:     DefaultMaxBodySize,
		MaxIdleConns:    defaultMaxIdleConns,
		IdleConnTimeout: defaultIdleConnTimeout,
	}
}

// New creates a client. A nil cfg selects DefaultConfig.
func New(cfg *Config) *Client {
	c := DefaultConfig()
	if cfg != nil {
		if cfg.DefaultTimeout > 0 {
			c.DefaultTimeout = cfg.DefaultTimeout
		}
		if cfg.UserAgent != "" {
			c.UserAgent = cfg.UserAgent
		}
		if cfg.MaxBodySize > 0 {
			c.MaxBodySize = cfg.MaxBodySize
		}
		if cfg.MaxIdleConns > 0 {
			c.MaxIdleConns = cfg.MaxIdleConns
		}
		if cfg.IdleConnTimeout > 0 {
			c.IdleConnTimeout = cfg.IdleConnTimeout
		}
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: defaultDialTimeout}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        c.MaxIdleConns,
		MaxIdleConnsPerHost: c.MaxIdleConns,
		IdleConnTimeout:     c.IdleConnTimeout,
	}

	return &Client{
		client:         &http.Client{Transport: transport},
		defaultTimeout: c.DefaultTimeout,
		userAgent:      c.UserAgent,
		maxBodySize:    c.MaxBodySize,
	}
}

// HTTPClient exposes the wrapped client, e.g. for transport substitution in
// tests.
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// Do executes req under ctx, applying the default timeout when ctx has no
// deadline. The caller closes the response body when err is nil.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}

	// The timeout context must outlive Do because the body is read later;
	// it is released when the body is closed.
	var cancel context.CancelFunc = func() {}
	if _, ok := ctx.Deadline(); !ok && c.defaultTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.defaultTimeout)
	}
	req = req.WithContext(ctx)

	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)

	c.hookMu.RLock()
	hook := c.afterResponse
	c.hookMu.RUnlock()
	if hook != nil {
		hook(req, resp, err)
	}

	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	return c.Do(ctx, req)
}

// Fetch downloads url and returns its body. Non-2xx responses and bodies
// larger than the configured limit are errors.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, errors.New(err).
			Component("httpclient").
			Category(errors.CategoryNetwork).
			Context("url", url).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Newf("unexpected status %d fetching %s", resp.StatusCode, url).
			Component("httpclient").
			Category(errors.CategoryHTTP).
			Context("status_code", resp.StatusCode).
			Build()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, errors.New(err).
			Component("httpclient").
			Category(errors.CategoryNetwork).
			Context("url", url).
			Build()
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, errors.Newf("response from %s exceeds %d bytes", url, c.maxBodySize).
			Component("httpclient").
			Category(errors.CategoryLimit).
			Timing("fetch", time.Since(start)).
			Build()
	}
	return body, nil
}

// SetAfterResponseHook registers fn to run after every request.
func (c *Client) SetAfterResponseHook(fn func(*http.Request, *http.Response, error)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.afterResponse = fn
}

// Close releases idle connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
