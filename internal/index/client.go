// Package index is the adapter for the external vector search service: a
// collection of hybrid dense+sparse documents queried with server-side
// metadata filters.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/competisearch/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
)

// Client is the consumer contract of the vector search service.
type Client interface {
	// Query issues one hybrid query and returns scored hits ordered by
	// decreasing relevance.
	Query(ctx context.Context, req QueryRequest) ([]Hit, error)
	// Fetch looks up documents by id. Missing ids are absent from the map.
	Fetch(ctx context.Context, ids []string) (map[string]Doc, error)
	// Upsert writes documents. Writes are idempotent per id.
	Upsert(ctx context.Context, docs []Doc) error
	// Ping checks service reachability.
	Ping(ctx context.Context) error
}

// HTTPClient talks to the vector index over its JSON HTTP API.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	collection string
}

// Option configures the HTTP client.
type Option func(*HTTPClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// NewHTTPClient creates a client for one collection of the index service.
func NewHTTPClient(baseURL, apiKey, collection string, opts ...Option) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("index base url is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("index collection is required")
	}
	c := &HTTPClient{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		collection: collection,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ Client = (*HTTPClient)(nil)

// apiResponse is the service's uniform response wrapper.
type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Output  json.RawMessage `json:"output"`
}

// Query implements Client.
func (c *HTTPClient) Query(ctx context.Context, req QueryRequest) ([]Hit, error) {
	out, err := c.post(ctx, fmt.Sprintf("/v1/collections/%s/query", c.collection), req)
	if err != nil {
		return nil, err
	}
	var hits []Hit
	if err := json.Unmarshal(out, &hits); err != nil {
		return nil, fmt.Errorf("%w: decode query output: %v", domain.ErrDependency, err)
	}
	return hits, nil
}

// Fetch implements Client.
func (c *HTTPClient) Fetch(ctx context.Context, ids []string) (map[string]Doc, error) {
	body := map[string][]string{"ids": ids}
	out, err := c.post(ctx, fmt.Sprintf("/v1/collections/%s/fetch", c.collection), body)
	if err != nil {
		return nil, err
	}
	docs := make(map[string]Doc)
	if err := json.Unmarshal(out, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode fetch output: %v", domain.ErrDependency, err)
	}
	return docs, nil
}

// Upsert implements Client.
func (c *HTTPClient) Upsert(ctx context.Context, docs []Doc) error {
	body := map[string][]Doc{"docs": docs}
	_, err := c.post(ctx, fmt.Sprintf("/v1/collections/%s/docs", c.collection), body)
	return err
}

// Ping implements Client.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: index ping: %v", domain.ErrDependency, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: index ping status %d", domain.ErrDependency, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: index request %s: %v", domain.ErrDependency, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read index response: %v", domain.ErrDependency, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: index status %d: %s", domain.ErrDependency, resp.StatusCode, truncate(data, 256))
	}

	var api apiResponse
	if err := json.Unmarshal(data, &api); err != nil {
		return nil, fmt.Errorf("%w: decode index response: %v", domain.ErrDependency, err)
	}
	if api.Code != 0 {
		return nil, fmt.Errorf("%w: index error code %d: %s", domain.ErrDependency, api.Code, api.Message)
	}
	return api.Output, nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// anyToString renders a decoded JSON field value as a trimmed string.
// Numeric values keep their shortest representation.
func anyToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}
