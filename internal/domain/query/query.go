// Package query defines the competitor search query, its validation rules
// and the canonical cache key derived from it.
package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/competisearch/internal/domain"
)

// Defaults and bounds for the tunable knobs.
const (
	DefaultRerankThreshold = 0.30
	DefaultMaxResults      = 20
	MinResults             = 1
	MaxResults             = 100
)

// Query is a validated, normalized competitor search request.
type Query struct {
	ProductID       string // optional; catalog lookup key
	ProductName     string
	ProductTrack    string
	ProductInfo     string
	SelectedCompany []string
	SelectedChannel []string
	RerankThreshold float64
	MaxResults      int
}

// Params are the raw request values before validation.
type Params struct {
	ProductID       string
	ProductName     string
	ProductTrack    string
	ProductInfo     string
	SelectedCompany []string
	SelectedChannel []string
	RerankThreshold *float64
	MaxResults      *int
}

// New validates and normalizes the raw parameters. Required fields must be
// non-empty after trimming; threshold and limit must be in range. All
// violations wrap domain.ErrValidation.
func New(p Params) (Query, error) {
	required := []struct{ name, value string }{
		{"product_name", p.ProductName},
		{"product_track", p.ProductTrack},
		{"product_info", p.ProductInfo},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return Query{}, fmt.Errorf("%w: required field %s is empty", domain.ErrValidation, f.name)
		}
	}

	threshold := DefaultRerankThreshold
	if p.RerankThreshold != nil {
		threshold = *p.RerankThreshold
	}
	if threshold < 0 || threshold > 1 {
		return Query{}, fmt.Errorf("%w: rerank_threshold must be in [0,1], got %g", domain.ErrValidation, threshold)
	}

	maxResults := DefaultMaxResults
	if p.MaxResults != nil {
		maxResults = *p.MaxResults
	}
	if maxResults < MinResults || maxResults > MaxResults {
		return Query{}, fmt.Errorf("%w: max_results must be in [%d,%d], got %d",
			domain.ErrValidation, MinResults, MaxResults, maxResults)
	}

	return Query{
		ProductID:       strings.TrimSpace(p.ProductID),
		ProductName:     strings.TrimSpace(p.ProductName),
		ProductTrack:    strings.TrimSpace(p.ProductTrack),
		ProductInfo:     strings.TrimSpace(p.ProductInfo),
		SelectedCompany: normalizeList(p.SelectedCompany),
		SelectedChannel: normalizeList(p.SelectedChannel),
		RerankThreshold: threshold,
		MaxResults:      maxResults,
	}, nil
}

// normalizeList trims entries and drops empties, preserving order.
func normalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

// cacheKeyPayload is the canonical serialized form of a query. Field names
// are fixed so the key stays stable across releases.
type cacheKeyPayload struct {
	ProductID       string   `json:"product_id"`
	ProductName     string   `json:"product_name"`
	ProductTrack    string   `json:"product_track"`
	ProductInfo     string   `json:"product_info"`
	SelectedCompany []string `json:"selected_company"`
	SelectedChannel []string `json:"selected_channel"`
	RerankThreshold float64  `json:"rerank_threshold"`
	MaxResults      int      `json:"max_results"`
	BizDt           string   `json:"biz_dt"`
}

// CacheKey returns the composite response-cache key for this query at the
// given index freshness. Filter lists are sorted so equivalent requests with
// reordered allow-lists share an entry.
func (q Query) CacheKey(bizDt string) string {
	payload := cacheKeyPayload{
		ProductID:       q.ProductID,
		ProductName:     q.ProductName,
		ProductTrack:    q.ProductTrack,
		ProductInfo:     q.ProductInfo,
		SelectedCompany: sortedCopy(q.SelectedCompany),
		SelectedChannel: sortedCopy(q.SelectedChannel),
		RerankThreshold: q.RerankThreshold,
		MaxResults:      q.MaxResults,
		BizDt:           bizDt,
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func sortedCopy(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	sort.Strings(out)
	return out
}
