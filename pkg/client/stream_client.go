// Package client provides the HTTP client of the live counter daemon
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"LiveCounter/pkg/api"
)

// StreamClient talks to the stream control routes
type StreamClient struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption customizes a StreamClient
type ClientOption func(*StreamClient)

// WithHTTPClient replaces the underlying http.Client (tests, custom transports)
func WithHTTPClient(cli *http.Client) ClientOption {
	return func(c *StreamClient) {
		c.httpClient = cli
	}
}

// WithTimeout sets the request timeout. The connectivity test can take
// longer than the default.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *StreamClient) {
		c.httpClient.Timeout = timeout
	}
}

func NewStreamClient(addr string, opts ...ClientOption) *StreamClient {
	c := &StreamClient{
		baseURL:    strings.TrimRight(EnsureHTTPPrefix(addr), "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureHTTPPrefix adds http:// to a bare host:port
func EnsureHTTPPrefix(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	return "http://" + addr
}

// APIError is a non-2xx answer of the daemon
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s: %s (status=%d)", e.Kind, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s (status=%d)", e.Message, e.StatusCode)
}

// IsKind reports whether err is an APIError of the given kind
func IsKind(err error, kind string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

func (c *StreamClient) do(ctx context.Context, method, path string, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var errResp api.ErrorResponseHTTP
		if json.Unmarshal(body, &errResp) == nil && errResp.Kind != "" {
			apiErr.Kind = errResp.Kind
			apiErr.Message = errResp.ErrorMessage
		}
		// some routes carry a regular body on failure
		if out != nil {
			json.Unmarshal(body, out)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// Start starts a stream session
func (c *StreamClient) Start(ctx context.Context) (*api.StartStreamResponseHTTP, error) {
	var resp api.StartStreamResponseHTTP
	if err := c.do(ctx, http.MethodPost, "/api/v1/stream/start", &resp); err != nil {
		return nil, fmt.Errorf("start stream: %w", err)
	}
	return &resp, nil
}

// Stop stops the running session. Stopping an idle daemon is not an error.
func (c *StreamClient) Stop(ctx context.Context) (*api.StopStreamResponseHTTP, error) {
	var resp api.StopStreamResponseHTTP
	if err := c.do(ctx, http.MethodPost, "/api/v1/stream/stop", &resp); err != nil {
		return nil, fmt.Errorf("stop stream: %w", err)
	}
	return &resp, nil
}

func (c *StreamClient) Status(ctx context.Context) (*api.StreamStatusHTTP, error) {
	var resp api.StreamStatusHTTP
	if err := c.do(ctx, http.MethodGet, "/api/v1/stream/status", &resp); err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	return &resp, nil
}

func (c *StreamClient) Config(ctx context.Context) (*api.StreamConfigHTTP, error) {
	var resp api.StreamConfigHTTP
	if err := c.do(ctx, http.MethodGet, "/api/v1/stream/config", &resp); err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	return &resp, nil
}

func (c *StreamClient) Metric(ctx context.Context) (*api.MetricResponseHTTP, error) {
	var resp api.MetricResponseHTTP
	if err := c.do(ctx, http.MethodGet, "/api/v1/metric", &resp); err != nil {
		return nil, fmt.Errorf("get metric: %w", err)
	}
	return &resp, nil
}

// TestConnectivity runs the short test push. A failed push is reported in
// the response, not as an error.
func (c *StreamClient) TestConnectivity(ctx context.Context) (*api.TestConnectivityResponseHTTP, error) {
	var resp api.TestConnectivityResponseHTTP
	err := c.do(ctx, http.MethodPost, "/api/v1/stream/test", &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Kind == "" && apiErr.StatusCode == http.StatusBadGateway && resp.Message != "" {
		return &resp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("test connectivity: %w", err)
	}
	return &resp, nil
}

func (c *StreamClient) Audio(ctx context.Context) (*api.AudioStatusResponseHTTP, error) {
	var resp api.AudioStatusResponseHTTP
	if err := c.do(ctx, http.MethodGet, "/api/v1/audio", &resp); err != nil {
		return nil, fmt.Errorf("get audio: %w", err)
	}
	return &resp, nil
}

// Health returns nil when the daemon answers its liveness route
func (c *StreamClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil)
}
