package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// API issues JSON requests against the backend. *Session implements it with
// credential attachment and renewal; repository clients depend only on this.
type API interface {
	Do(ctx context.Context, method, path string, in, out any) error
}

// ClientOptions configures Session construction.
type ClientOptions struct {
	HTTPClient *http.Client
	CookieJar  http.CookieJar
	Logger     *slog.Logger
	Timeout    time.Duration
}

// ClientOption mutates ClientOptions.
type ClientOption func(*ClientOptions)

// WithHTTPClient sets the base HTTP client. Its transport carries the
// session's requests and its jar, when set, holds the refresh cookie.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(opts *ClientOptions) {
		opts.HTTPClient = client
	}
}

// WithCookieJar overrides the jar holding the long-lived refresh cookie.
func WithCookieJar(jar http.CookieJar) ClientOption {
	return func(opts *ClientOptions) {
		opts.CookieJar = jar
	}
}

// WithLogger sets the logger for session, transport and cache events.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(opts *ClientOptions) {
		opts.Logger = logger
	}
}

// WithTimeout bounds every HTTP exchange, including a renewal and its replay.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(opts *ClientOptions) {
		opts.Timeout = timeout
	}
}

const maxErrorBody = 64 << 10

// restClient encodes and decodes JSON over one http.Client.
type restClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func (c *restClient) do(ctx context.Context, method, path string, in, out any) error {
	return c.doWithToken(ctx, method, path, "", in, out)
}

// doWithToken sends the request with an explicit bearer token. An empty token
// leaves the Authorization header to the client's transport.
func (c *restClient) doWithToken(ctx context.Context, method, path, token string, in, out any) error {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("building URL for %s: %w", path, err)
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend response", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       "/" + path,
			Detail:     parseDetail(raw),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}
