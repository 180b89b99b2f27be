// Package routes executes single-field hybrid retrieval routes against the
// vector index, with a bounded memo for repeated identical queries.
package routes

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/competisearch/internal/domain/route"
	"github.com/kailas-cloud/competisearch/internal/index"
	"github.com/kailas-cloud/competisearch/internal/metrics"
	"github.com/kailas-cloud/competisearch/internal/sparse"
)

// DefaultTopK is the number of hits requested from the index per route.
const DefaultTopK = 80

// defaultMemoSize bounds the route memo. Query-shape cardinality is small in
// practice; the bound is there so a pathological client cannot grow the
// process without limit.
const defaultMemoSize = 4096

// Embedder produces unit dense vectors for query text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SparseEncoder produces sparse lexical-weight query vectors.
type SparseEncoder interface {
	EncodeQuery(text string) sparse.Vector
}

// Query describes one route search.
type Query struct {
	Field     string
	Track     string
	QueryText string
	TopK      int
	Companies []string
	Channels  []string
}

// Executor issues hybrid per-field queries and memoizes results.
type Executor struct {
	client  index.Client
	embed   Embedder
	encoder SparseEncoder
	memo    *lru.Cache[string, []route.Candidate]
	logger  *zap.Logger
}

// Option configures the executor.
type Option func(*Executor)

// WithMemoSize overrides the memo capacity.
func WithMemoSize(n int) Option {
	return func(e *Executor) {
		cache, _ := lru.New[string, []route.Candidate](n)
		e.memo = cache
	}
}

// NewExecutor creates a route search executor.
func NewExecutor(client index.Client, embed Embedder, encoder SparseEncoder, logger *zap.Logger, opts ...Option) *Executor {
	memo, _ := lru.New[string, []route.Candidate](defaultMemoSize)
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		client:  client,
		embed:   embed,
		encoder: encoder,
		memo:    memo,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search runs one hybrid route query. Empty query text short-circuits to nil
// without touching any backend. Successful results are memoized for the
// exact query shape.
func (e *Executor) Search(ctx context.Context, q Query) ([]route.Candidate, error) {
	if strings.TrimSpace(q.QueryText) == "" {
		return nil, nil
	}
	if q.TopK <= 0 {
		q.TopK = DefaultTopK
	}

	key := memoKey(q)
	if cands, ok := e.memo.Get(key); ok {
		metrics.CacheTotal.WithLabelValues("route", "hit").Inc()
		return cands, nil
	}
	metrics.CacheTotal.WithLabelValues("route", "miss").Inc()

	cands, err := e.search(ctx, q)
	if err != nil {
		return nil, err
	}
	e.memo.Add(key, cands)
	return cands, nil
}

func (e *Executor) search(ctx context.Context, q Query) ([]route.Candidate, error) {
	dense, err := e.embed.Embed(ctx, q.QueryText)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", q.Field, err)
	}
	sparseVec := e.encoder.EncodeQuery(q.QueryText)

	start := time.Now()
	hits, err := e.client.Query(ctx, index.QueryRequest{
		Vector:       dense,
		SparseVector: sparseVec,
		TopK:         q.TopK,
		Filter:       buildFilter(q.Track, q.Field, q.Companies, q.Channels),
		OutputFields: []string{
			index.FieldProductID, index.FieldCompany, index.FieldChannel,
			index.FieldProductName, index.FieldTrack, index.FieldField,
			index.FieldIngestDt, index.FieldBuildID, index.FieldDataVersion,
		},
		IncludeVector: false,
	})
	metrics.RouteSearchDuration.WithLabelValues(q.Field).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", q.Field, err)
	}

	seen := make(map[string]bool, len(hits))
	cands := make([]route.Candidate, 0, len(hits))
	for _, h := range hits {
		pid := h.StringField(index.FieldProductID)
		if pid == "" {
			// Documents are sharded as "<product_id>#<field>"; fall back to
			// the id prefix when the metadata field is missing.
			pid = strings.TrimSpace(strings.SplitN(h.ID, "#", 2)[0])
		}
		if pid == "" || seen[pid] {
			continue
		}
		seen[pid] = true
		cands = append(cands, route.Candidate{ProductID: pid, Score: h.Score})
	}
	return cands, nil
}

// buildFilter conjoins the route's server-side constraints: never match meta
// documents, exact track and field, and optional company/channel
// disjunctions.
func buildFilter(track, field string, companies, channels []string) string {
	return index.And(
		index.NeInt(index.FieldIsMeta, 1),
		index.Eq(index.FieldTrack, track),
		index.Eq(index.FieldField, field),
		index.AnyOf(index.FieldCompany, companies),
		index.AnyOf(index.FieldChannel, channels),
	)
}

// memoKey is the exact query shape. Allow-lists are sorted so equivalent
// filters share an entry.
func memoKey(q Query) string {
	return strings.Join([]string{
		q.Field,
		q.Track,
		q.QueryText,
		strconv.Itoa(q.TopK),
		sortedJoin(q.Companies),
		sortedJoin(q.Channels),
	}, "\x1f")
}

func sortedJoin(items []string) string {
	cp := make([]string, len(items))
	copy(cp, items)
	sort.Strings(cp)
	return strings.Join(cp, "|")
}
