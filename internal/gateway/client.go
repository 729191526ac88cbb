// Package gateway provides access to the REST-style data endpoint holding
// profiles, jobs, rankings and agent runs.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// maxErrorBody bounds how much of an error response body is kept.
const maxErrorBody = 4096

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gateway %s %s failed with status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client is a thin REST client authenticated with the service credential.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Client for baseURL (e.g. https://xyz.example.co/rest/v1).
func NewClient(baseURL, serviceKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("gateway base URL is required")
	}
	if strings.TrimSpace(serviceKey) == "" {
		return nil, fmt.Errorf("gateway service key is required")
	}

	c := &Client{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get fetches rows for a path with query string (see Query) and decodes them into out.
func (c *Client) Get(ctx context.Context, pathOrQuery string, out any) error {
	return c.do(ctx, http.MethodGet, pathOrQuery, nil, "", out)
}

// Patch applies a field-scoped partial update to the rows matched by filter.
// Callers that treat the write as incidental log the returned error and move on.
func (c *Client) Patch(ctx context.Context, table string, filter *Query, row any) error {
	path := table
	if filter != nil {
		path = filter.From(table).String()
	}
	return c.do(ctx, http.MethodPatch, path, row, "return=minimal", nil)
}

// Post inserts row into table and decodes the created row into out (may be nil).
func (c *Client) Post(ctx context.Context, table string, row any, out any) error {
	if out == nil {
		return c.do(ctx, http.MethodPost, table, row, "return=minimal", nil)
	}

	// The endpoint returns the representation as an array of created rows.
	var created []json.RawMessage
	if err := c.do(ctx, http.MethodPost, table, row, "return=representation", &created); err != nil {
		return err
	}
	if len(created) == 0 {
		return fmt.Errorf("gateway POST %s returned no rows", table)
	}
	if err := json.Unmarshal(created[0], out); err != nil {
		return fmt.Errorf("failed to decode created %s row: %w", table, err)
	}
	return nil
}

// RPC calls a named stored procedure with named arguments.
func (c *Client) RPC(ctx context.Context, name string, args any, out any) error {
	return c.do(ctx, http.MethodPost, "rpc/"+name, args, "", out)
}

func (c *Client) do(ctx context.Context, method, path string, body any, prefer string, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(path, "/"), reader)
	if err != nil {
		return fmt.Errorf("failed to create %s %s request: %w", method, path, err)
	}

	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s %s request failed: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read gateway %s %s response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := string(respBody)
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return &HTTPError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       text,
		}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode gateway %s %s response: %w", method, path, err)
	}
	return nil
}
