// Package hubapi is the transport client for the Work Hub notification
// endpoints: the REST snapshot, the unread counter, mark-as-read, and the
// server-sent event stream. It also owns the normalizer, the only place
// where wire shapes are turned into model.Notification values.
package hubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/workhub/internal/logger"
)

// Client is a thin HTTP client for the Work Hub REST API.
// It handles Bearer token authentication, JSON decoding, and
// automatic retry with exponential backoff on HTTP 429.
type Client struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	streamClient *http.Client
	maxRetries   int
	streamPath   string
	snapshotSize int
	normalizer   *Normalizer
	logger       *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the client used for REST calls and streams.
// The client is copied, so later options never modify hc. Streams drop
// the client timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		rc := *hc
		c.httpClient = &rc
		sc := *hc
		sc.Timeout = 0
		c.streamClient = &sc
	}
}

// WithTimeout bounds every REST request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithMaxRetries sets how often a rate-limited request is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithStreamPath overrides the event stream endpoint.
func WithStreamPath(p string) Option {
	return func(c *Client) {
		if p != "" {
			c.streamPath = p
		}
	}
}

// WithSnapshotSize sets the page size used when SnapshotOptions.Size is 0.
func WithSnapshotSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.snapshotSize = n
		}
	}
}

// WithNormalizer sets the normalizer applied to snapshot items.
func WithNormalizer(n *Normalizer) Option {
	return func(c *Client) {
		if n != nil {
			c.normalizer = n
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a new Work Hub HTTP client. The baseURL should be the
// root URL of the backend (e.g., https://hub.example.com) and token a
// Bearer access token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		streamClient: &http.Client{},
		maxRetries:   3,
		streamPath:   pathSubscribe,
		snapshotSize: 50,
		normalizer:   NewNormalizer(),
		logger:       logger.WithComponent("hubapi"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Normalizer returns the normalizer used by the client.
func (c *Client) Normalizer() *Normalizer { return c.normalizer }

// Get performs an HTTP GET request and unmarshals the JSON response.
// Slice values in query are sent as repeated keys.
func (c *Client) Get(
	ctx context.Context,
	path string,
	query url.Values,
	result interface{},
) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, path, result)
}

// Patch performs an HTTP PATCH request without a body and unmarshals the
// JSON response, if any.
func (c *Client) Patch(
	ctx context.Context,
	path string,
	result interface{},
) error {
	return c.do(ctx, http.MethodPatch, path, result)
}

// do is the core HTTP method that builds the request, handles auth,
// rate limiting with exponential backoff, and JSON decoding.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	result interface{},
) error {
	endpoint := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		c.authorize(req)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = &APIError{StatusCode: resp.StatusCode, Method: method, Path: path, Message: "rate limited"}
			c.logger.Debug("rate limited, retrying", "method", method, "path", path, "wait", waitDuration)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return &AuthError{
				BaseURL: c.baseURL,
				Message: "authentication failed (401): check your access token",
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{
				StatusCode: resp.StatusCode,
				Method:     method,
				Path:       path,
				Message:    errorMessage(respBody),
			}
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf(
				"unmarshaling response from %s %s: %w",
				method, path, err,
			)
		}

		return nil
	}

	return fmt.Errorf(
		"max retries (%d) exceeded: %w", c.maxRetries, lastErr,
	)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// errorMessage extracts the server message from an error body, preferring
// the envelope's message field.
func errorMessage(body []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil {
		if env.Message != "" {
			return env.Message
		}
		if env.Error != "" {
			return env.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
