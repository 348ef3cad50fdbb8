package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quant-agent/internal/logger"
	"quant-agent/internal/types"
)

// maxReasonLen bounds how much of an error body is copied into a ProviderError
const maxReasonLen = 200

// Client represents an HTTP client with common configuration and utilities
type Client struct {
	httpClient *http.Client
	provider   string
	baseURL    string
	headers    map[string]string
	useLogging bool
}

// logDebug logs debug messages using the global logger
func (c *Client) logDebug(ctx context.Context, msg string, args ...any) {
	if c.useLogging {
		logger.Debug(ctx, msg, args...)
	}
}

// logWarn logs warning messages using the global logger
func (c *Client) logWarn(ctx context.Context, msg string, args ...any) {
	if c.useLogging {
		logger.Warn(ctx, msg, args...)
	}
}

// logError logs error messages using the global logger
func (c *Client) logError(ctx context.Context, msg string, args ...any) {
	if c.useLogging {
		logger.Error(ctx, msg, args...)
	}
}

// ClientOption configures the API client
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithBaseURL sets the base URL for all requests
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHeader sets a default header for all requests
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithLogging enables logging for the API client
func WithLogging(enabled bool) ClientOption {
	return func(c *Client) {
		c.useLogging = enabled
	}
}

// WithHTTPClient replaces the underlying transport client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a new API client for the named provider
func NewClient(provider string, opts ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		provider:   provider,
		headers:    make(map[string]string),
		useLogging: false,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Provider returns the provider name used in errors
func (c *Client) Provider() string { return c.provider }

// Request represents an HTTP request configuration
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Headers map[string]string
	ctx     context.Context
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// NewRequest creates a new request
func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Query:   url.Values{},
		Headers: make(map[string]string),
		ctx:     context.Background(),
	}
}

// WithContext sets the context for the request
func (r *Request) WithContext(ctx context.Context) *Request {
	r.ctx = ctx
	return r
}

// WithBody sets the request body (will be JSON encoded)
func (r *Request) WithBody(body any) *Request {
	r.Body = body
	return r
}

// WithHeader sets a request-specific header
func (r *Request) WithHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// WithQuery adds a query parameter
func (r *Request) WithQuery(key, value string) *Request {
	r.Query.Set(key, value)
	return r
}

// Do executes the HTTP request. Any status outside 2xx becomes a
// *types.ProviderError whose Endpoint never includes the query string,
// so API keys stay out of logs and messages.
func (c *Client) Do(req *Request) (*Response, error) {
	full := c.baseURL + req.Path
	if len(req.Query) > 0 {
		full += "?" + req.Query.Encode()
	}

	var bodyReader io.Reader
	if req.Body != nil {
		jsonBody, err := json.Marshal(req.Body)
		if err != nil {
			return nil, c.fail(req, 0, "failed to marshal request body", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	httpReq, err := http.NewRequestWithContext(req.ctx, req.Method, full, bodyReader)
	if err != nil {
		return nil, c.fail(req, 0, "failed to create HTTP request", err)
	}

	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	c.logDebug(req.ctx, "HTTP Request", "provider", c.provider, "method", req.Method, "path", req.Path)

	startTime := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := req.ctx.Err(); ctxErr != nil {
			return nil, &types.TimeoutError{Op: c.provider + " " + req.Path, Elapsed: time.Since(startTime), Err: ctxErr}
		}
		c.logError(req.ctx, "HTTP request failed", "provider", c.provider, "path", req.Path, "error", err)
		return nil, c.fail(req, 0, "request failed", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, c.fail(req, httpResp.StatusCode, "failed to read response body", err)
	}

	c.logDebug(req.ctx, "HTTP Response",
		"provider", c.provider,
		"path", req.Path,
		"status", httpResp.StatusCode,
		"duration", time.Since(startTime),
		"bodySize", len(body))

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		c.logWarn(req.ctx, "HTTP error response",
			"provider", c.provider,
			"path", req.Path,
			"status", httpResp.StatusCode)
		return nil, c.fail(req, httpResp.StatusCode, truncate(strings.TrimSpace(string(body))), nil)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		Headers:    httpResp.Header,
	}, nil
}

func (c *Client) fail(req *Request, status int, reason string, err error) *types.ProviderError {
	return &types.ProviderError{
		Provider:   c.provider,
		Endpoint:   req.Path,
		StatusCode: status,
		Reason:     reason,
		Err:        err,
	}
}

// GET performs a GET request with query parameters
func (c *Client) GET(ctx context.Context, path string, query url.Values) (*Response, error) {
	req := NewRequest(http.MethodGet, path).WithContext(ctx)
	if query != nil {
		req.Query = query
	}
	return c.Do(req)
}

// POST performs a POST request with a JSON body
func (c *Client) POST(ctx context.Context, path string, body any, headers ...map[string]string) (*Response, error) {
	req := NewRequest(http.MethodPost, path).
		WithContext(ctx).
		WithBody(body)

	if len(headers) > 0 {
		for key, value := range headers[0] {
			req.WithHeader(key, value)
		}
	}

	return c.Do(req)
}

// ParseJSON decodes the body. A body that does not decode is reported as
// a ProviderError against the given endpoint, keeping the 2xx status.
func (r *Response) ParseJSON(provider, endpoint string, v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &types.ProviderError{
			Provider:   provider,
			Endpoint:   endpoint,
			StatusCode: r.StatusCode,
			Reason:     "malformed response body",
			Err:        err,
		}
	}
	return nil
}

// String returns the response body as a string
func (r *Response) String() string {
	return string(r.Body)
}

func truncate(s string) string {
	if len(s) <= maxReasonLen {
		return s
	}
	return s[:maxReasonLen] + "..."
}

// BrowserHeaders returns common browser headers to mimic a real browser request
func BrowserHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "text/html,application/json;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	}
}

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 1 * time.Second,
		MaxWait:     5 * time.Second,
	}
}

// Retryable reports whether another attempt could succeed. Client errors
// other than 429 and expired deadlines are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var te *types.TimeoutError
	if errors.As(err, &te) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pe *types.ProviderError
	if errors.As(err, &pe) {
		if pe.StatusCode == http.StatusTooManyRequests {
			return true
		}
		if pe.StatusCode >= 400 && pe.StatusCode < 500 {
			return false
		}
	}
	return true
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out. Waits double up to MaxWait and end early with ctx.
func Retry(ctx context.Context, config *RetryConfig, op string, fn func(ctx context.Context) error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	waitTime := config.InitialWait

	for attempt := 1; attempt <= attempts; attempt++ {
		logger.Debug(ctx, "Request attempt", "op", op, "attempt", attempt, "maxAttempts", attempts)

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) {
			return lastErr
		}

		// Don't wait after the last attempt
		if attempt < attempts {
			logger.Warn(ctx, "Request failed, retrying", "op", op, "attempt", attempt, "error", lastErr, "waitTime", waitTime)
			timer := time.NewTimer(waitTime)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return lastErr
			}
			waitTime *= 2
			if waitTime > config.MaxWait {
				waitTime = config.MaxWait
			}
		}
	}

	return fmt.Errorf("all %d retry attempts failed: %w", attempts, lastErr)
}
