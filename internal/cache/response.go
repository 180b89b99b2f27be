// Package cache provides the full-response cache: identical requests within
// the freshness window skip the entire retrieval pipeline.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kailas-cloud/competisearch/internal/metrics"
)

// Defaults for the response cache.
const (
	DefaultTTL     = 2 * time.Hour
	DefaultEntries = 20000
)

// ResponseCache stores serialized response envelopes keyed by the canonical
// query key. Writes are idempotent (same key, same value), so lost or raced
// writes are harmless.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// Memory is an in-process size- and TTL-bounded response cache.
type Memory struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemory creates an in-memory response cache.
func NewMemory(entries int, ttl time.Duration) *Memory {
	if entries <= 0 {
		entries = DefaultEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{lru: expirable.NewLRU[string, []byte](entries, nil, ttl)}
}

var _ ResponseCache = (*Memory)(nil)

// Get implements ResponseCache.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := m.lru.Get(key)
	if ok {
		metrics.CacheTotal.WithLabelValues("response", "hit").Inc()
	} else {
		metrics.CacheTotal.WithLabelValues("response", "miss").Inc()
	}
	return v, ok
}

// Set implements ResponseCache.
func (m *Memory) Set(_ context.Context, key string, value []byte) {
	m.lru.Add(key, value)
}
