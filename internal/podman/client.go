package podman

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 * 1024
	maxStreamBody  = 16 * 1024 * 1024
	shortIDLength  = 12
)

// Client talks to the Docker-compatible REST API served by Podman. It holds
// one pooled http.Client and is safe for concurrent use.
type Client struct {
	baseURL    string
	apiVersion string
	timeout    time.Duration
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIVersion prefixes every path with /<version>, e.g. "v1.41".
func WithAPIVersion(version string) Option {
	return func(c *Client) {
		c.apiVersion = strings.TrimPrefix(version, "/")
	}
}

// WithTimeout bounds dialing and waiting for response headers.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client. The base URL must then be an
// http(s) URL.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the runtime at rawURL. Supported schemes
// are unix://, tcp://, http:// and https://.
func NewClient(rawURL string, opts ...Option) (*Client, error) {
	c := &Client{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(c)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse runtime url %q: %w", rawURL, err)
	}

	dialer := &net.Dialer{Timeout: c.timeout}
	transport := &http.Transport{
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: c.timeout,
	}

	switch u.Scheme {
	case "unix":
		socket := u.Path
		if socket == "" {
			return nil, fmt.Errorf("runtime url %q: missing socket path", rawURL)
		}
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", socket)
		}
		c.baseURL = "http://d"
	case "tcp":
		transport.DialContext = dialer.DialContext
		c.baseURL = "http://" + u.Host
	case "http", "https":
		transport.DialContext = dialer.DialContext
		c.baseURL = strings.TrimRight(u.String(), "/")
	default:
		return nil, fmt.Errorf("runtime url %q: unsupported scheme %q", rawURL, u.Scheme)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: transport}
	}
	return c, nil
}

// Ping checks that the runtime answers.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, "ping", http.MethodGet, "/_ping", nil, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Info returns the runtime's system information.
func (c *Client) Info(ctx context.Context) (map[string]any, error) {
	const op = "system info"
	resp, err := c.do(ctx, op, http.MethodGet, "/info", nil, nil)
	if err != nil {
		return nil, err
	}
	var info map[string]any
	if err := decodeJSON(op, resp, &info); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Client) path(p string) string {
	if c.apiVersion == "" {
		return p
	}
	return "/" + c.apiVersion + p
}

// do sends one request. Status codes >= 400 are turned into a DomainError
// when the runtime explains itself with a JSON message, and a TransportError
// otherwise. The caller owns the returned body.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	target := c.baseURL + c.path(path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, statusError(op, resp)
	}
	return resp, nil
}

func statusError(op string, resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("read error response: %w", err)}
	}

	var body apiErrorBody
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		return &DomainError{Op: op, Status: resp.StatusCode, Reason: body.Message}
	}
	return &TransportError{
		Op:  op,
		Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))),
	}
}

// decodeJSON reads and closes resp.Body into out.
func decodeJSON(op string, resp *http.Response, out any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}

// drain reads and closes resp.Body, discarding it.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxStreamBody))
	resp.Body.Close()
}

func shortID(id string) string {
	id = strings.TrimPrefix(id, "sha256:")
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}
	return id
}
