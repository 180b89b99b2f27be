// Package rerank adapts the external cross-encoder rerank service: given a
// query and candidate texts it returns per-candidate relevance scores.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kailas-cloud/competisearch/internal/domain"
)

const defaultTimeout = 60 * time.Second

// Client scores candidate texts against a query.
type Client interface {
	// Rerank returns a map of candidate index to relevance score. Candidates
	// the service did not score are absent from the map.
	Rerank(ctx context.Context, query string, documents []string) (map[int]float64, error)
}

// HTTPClient calls a rerank service over its JSON HTTP API.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// Config holds the rerank service settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewHTTPClient creates a rerank service client.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("rerank base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}, nil
}

var _ Client = (*HTTPClient)(nil)

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

// Rerank implements Client.
func (c *HTTPClient) Rerank(ctx context.Context, query string, documents []string) (map[int]float64, error) {
	if len(documents) == 0 {
		return map[int]float64{}, nil
	}

	payload, err := json.Marshal(rerankRequest{Model: c.model, Query: query, Documents: documents})
	if err != nil {
		return nil, fmt.Errorf("encode rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: rerank: %v", domain.ErrDependency, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read rerank response: %v", domain.ErrDependency, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: rerank status %d: %s", domain.ErrDependency, resp.StatusCode, truncate(data, 256))
	}

	var rr rerankResponse
	if err := json.Unmarshal(data, &rr); err != nil {
		return nil, fmt.Errorf("%w: decode rerank response: %v", domain.ErrDependency, err)
	}

	scores := make(map[int]float64, len(rr.Results))
	for _, r := range rr.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			continue
		}
		scores[r.Index] = r.RelevanceScore
	}
	return scores, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
