// Package remote is the HTTP transport to the remote authority.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/kshitijomkar/ledger/internal/logging"
	"github.com/kshitijomkar/ledger/internal/models"
	syncpkg "github.com/kshitijomkar/ledger/internal/sync"
	"github.com/kshitijomkar/ledger/internal/sync/connectivity"
)

// Endpoint paths served by the remote authority.
const (
	PathSync       = "/api/v1/sync"
	PathSyncStatus = "/api/v1/sync-status"
	PathHealth     = "/health"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// maxErrorBody limits how much of an error response is read.
const maxErrorBody = 4 << 10

// HTTPError is a non-2xx response from the authority.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authority returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("authority returned %d: %s", e.StatusCode, e.Message)
}

// Unauthorized reports whether the authority rejected the credentials.
func (e *HTTPError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Client talks to the authority's sync endpoints.
type Client struct {
	baseURL *url.URL
	client  *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	base    *http.Client
	timeout time.Duration
}

// WithHTTPClient sets the client used beneath the token transport.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.base = c
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// NewClient creates a client for the authority at baseURL. A non-empty
// token is sent as a bearer token on every request.
func NewClient(baseURL, token string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid remote URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid remote URL %q: scheme must be http or https", baseURL)
	}

	o := clientOptions{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	var httpClient *http.Client
	if token != "" {
		ctx := context.Background()
		if o.base != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, o.base)
		}
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	} else if o.base != nil {
		c := *o.base
		httpClient = &c
	} else {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = o.timeout

	return &Client{baseURL: u, client: httpClient}, nil
}

// Pull fetches one page of changes.
func (c *Client) Pull(ctx context.Context, req *models.PullRequest) (*models.PullResponse, error) {
	q := url.Values{}
	if req.Since != nil {
		q.Set("since", req.Since.UTC().Format(time.RFC3339Nano))
	}
	if req.Cursor != "" {
		q.Set("cursor", req.Cursor)
	}
	if req.DeviceID != "" {
		q.Set("device_id", req.DeviceID)
	}

	var resp models.PullResponse
	if err := c.do(ctx, http.MethodGet, PathSyncStatus, q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Push submits a batch of changes.
func (c *Client) Push(ctx context.Context, req *models.PushRequest) (*models.PushResponse, error) {
	var resp models.PushResponse
	if err := c.do(ctx, http.MethodPost, PathSync, nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks that the authority is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, PathHealth, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.baseURL
	u.Path += path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	logging.Debug("Authority request", map[string]interface{}{
		"method":      method,
		"path":        path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(started).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readHTTPError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func readHTTPError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	httpErr := &HTTPError{StatusCode: resp.StatusCode}

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		httpErr.Message = payload.Error
	} else {
		httpErr.Message = strings.TrimSpace(string(data))
	}
	return httpErr
}

// Ensure *Client satisfies the engine and prober dependencies at compile time.
var (
	_ syncpkg.Remote             = (*Client)(nil)
	_ connectivity.HealthChecker = (*Client)(nil)
)
