package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/idbridge/internal/infra/buildinfo"
)

// DefaultTimeout is the per-request timeout of the underlying http.Client.
const DefaultTimeout = 10 * time.Second

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		if e.Code != "" {
			return fmt.Sprintf("[%s] %s (status %d)", e.Code, e.Message, e.StatusCode)
		}
		return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// Unauthorized reports whether the server rejected the credentials.
func (e *StatusError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsUnauthorized reports whether err is a 401 or 403 StatusError.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Unauthorized()
}

// HTTPClient provides JSON communication with the backend.
type HTTPClient struct {
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	apiKey    string
	userAgent string
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithRateLimit paces outbound requests to rps with the given burst.
// rps <= 0 disables pacing.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *HTTPClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithAPIKey sends key in the apikey header of every request.
func WithAPIKey(key string) ClientOption {
	return func(c *HTTPClient) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		if hc != nil {
			c.client = hc
		}
	}
}

// NewHTTPClient creates a new HTTP client for baseURL.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	// Ensure baseURL has a scheme
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	c := &HTTPClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: buildinfo.UserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET request. token is sent as a bearer credential when
// non-empty.
func (c *HTTPClient) Get(ctx context.Context, path, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req, token)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, path, token string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, token)
}

func (c *HTTPClient) do(req *http.Request, token string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.client.Do(req)
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// ParseResponse decodes a JSON response body into target and closes it.
// Non-2xx responses become a *StatusError.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{StatusCode: resp.StatusCode}
		// Try to parse error response
		var errResp struct {
			Code    string `json:"code"`
			Error   string `json:"error"`
			Message string `json:"message"`
			Msg     string `json:"msg"`
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err := json.Unmarshal(body, &errResp); err == nil {
			se.Code = firstNonEmpty(errResp.Code, errResp.Error)
			se.Message = firstNonEmpty(errResp.Message, errResp.Msg)
		}
		return se
	}

	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
