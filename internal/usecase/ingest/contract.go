// Package ingest builds the vector index from the product catalog: one
// document per product and non-empty text field, plus build metadata
// documents carrying the freshness marker.
package ingest

import (
	"context"

	"github.com/kailas-cloud/competisearch/internal/domain/product"
	"github.com/kailas-cloud/competisearch/internal/index"
	"github.com/kailas-cloud/competisearch/internal/sparse"
)

// Catalog loads product rows and drops its snapshot cache after a build.
type Catalog interface {
	Snapshot(ctx context.Context) (*product.Snapshot, error)
	Invalidate()
}

// Embedder produces unit dense vectors for document text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DocEncoder produces sparse document vectors and can be retrained on a
// fresh corpus.
type DocEncoder interface {
	EncodeDocument(text string) sparse.Vector
	Train(corpus []string)
}

// Upserter writes documents into the vector index.
type Upserter interface {
	Upsert(ctx context.Context, docs []index.Doc) error
}

// Invalidator drops a cached read so the next one sees the new build.
type Invalidator interface {
	Invalidate()
}
