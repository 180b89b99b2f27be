// Package search implements the competitor search pipeline: source-field
// resolution, multi-route recall, rank fusion, candidate assembly and
// reranking, wrapped in the client-visible response envelope.
package search

import (
	"context"

	"github.com/kailas-cloud/competisearch/internal/domain/product"
	"github.com/kailas-cloud/competisearch/internal/domain/route"
	"github.com/kailas-cloud/competisearch/internal/repository/freshness"
	"github.com/kailas-cloud/competisearch/internal/repository/routes"
)

// RouteSearcher runs one hybrid retrieval route.
type RouteSearcher interface {
	Search(ctx context.Context, q routes.Query) ([]route.Candidate, error)
}

// Catalog serves immutable product snapshots.
type Catalog interface {
	Snapshot(ctx context.Context) (*product.Snapshot, error)
}

// Freshness resolves the last-build marker for biz_dt and cache keying.
type Freshness interface {
	Resolve(ctx context.Context) freshness.Marker
}

// FieldExtractor synthesizes the product text-field set from free text.
type FieldExtractor interface {
	Extract(ctx context.Context, productInfo string) (map[string]string, error)
}

// Reranker scores candidate texts against the query text. The returned map
// is keyed by candidate index; unscored candidates are absent.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) (map[int]float64, error)
}

// ResponseCache stores serialized response envelopes.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}
