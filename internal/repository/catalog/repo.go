// Package catalog reads the product table from the backing store and serves
// immutable per-request snapshots with a short-TTL cache.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kailas-cloud/competisearch/internal/domain"
	"github.com/kailas-cloud/competisearch/internal/domain/product"
	"github.com/kailas-cloud/competisearch/internal/metrics"
)

const (
	defaultSnapshotTTL = 10 * time.Minute
	snapshotKey        = "snapshot"
)

// Repo loads product records via pgx and caches the decoded snapshot.
type Repo struct {
	pool  *pgxpool.Pool
	table string
	cache *expirable.LRU[string, *product.Snapshot]
}

// Option configures the repository.
type Option func(*Repo)

// WithSnapshotTTL overrides the snapshot cache TTL.
func WithSnapshotTTL(ttl time.Duration) Option {
	return func(r *Repo) {
		r.cache = expirable.NewLRU[string, *product.Snapshot](1, nil, ttl)
	}
}

// New creates a catalog repository over the given pool and table.
func New(pool *pgxpool.Pool, table string, opts ...Option) *Repo {
	r := &Repo{
		pool:  pool,
		table: table,
		cache: expirable.NewLRU[string, *product.Snapshot](1, nil, defaultSnapshotTTL),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns the current catalog snapshot, refreshing it from the
// backing store when the cached one has expired. The returned snapshot is
// immutable; concurrent requests may share it.
func (r *Repo) Snapshot(ctx context.Context) (*product.Snapshot, error) {
	if snap, ok := r.cache.Get(snapshotKey); ok {
		metrics.CacheTotal.WithLabelValues("catalog", "hit").Inc()
		return snap, nil
	}
	metrics.CacheTotal.WithLabelValues("catalog", "miss").Inc()

	rows, err := r.loadRows(ctx)
	if err != nil {
		return nil, err
	}
	snap := product.NewSnapshot(rows)
	r.cache.Add(snapshotKey, snap)
	return snap, nil
}

// Invalidate drops the cached snapshot so the next request reloads. Called
// after an index build rewrites the table.
func (r *Repo) Invalidate() {
	r.cache.Remove(snapshotKey)
}

func (r *Repo) loadRows(ctx context.Context) ([]product.Record, error) {
	q := fmt.Sprintf(`SELECT product_id,
		COALESCE(company, ''), COALESCE(channel, ''),
		COALESCE(product_name, ''), COALESCE(track, ''),
		COALESCE(labels, ''), COALESCE(features, ''),
		COALESCE(summary_coverage, ''), COALESCE(summary_liability, ''),
		COALESCE(summary_exclusions, ''), COALESCE(summary_provisions, ''),
		COALESCE(summary_services, '')
	FROM %s WHERE product_id IS NOT NULL AND product_id <> ''`, pgx.Identifier{r.table}.Sanitize())

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: query catalog: %v", domain.ErrDependency, err)
	}
	defer rows.Close()

	var out []product.Record
	for rows.Next() {
		var rec product.Record
		var labels, features, coverage, liability, exclusions, provisions, services string
		if err := rows.Scan(
			&rec.ProductID, &rec.Company, &rec.Channel, &rec.ProductName, &rec.Track,
			&labels, &features, &coverage, &liability, &exclusions, &provisions, &services,
		); err != nil {
			return nil, fmt.Errorf("%w: scan catalog row: %v", domain.ErrDependency, err)
		}
		rec.Fields = map[string]string{
			"labels":             labels,
			"features":           features,
			"summary_coverage":   coverage,
			"summary_liability":  liability,
			"summary_exclusions": exclusions,
			"summary_provisions": provisions,
			"summary_services":   services,
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read catalog rows: %v", domain.ErrDependency, err)
	}
	return out, nil
}

// Ping checks backing store connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("catalog ping: %w", err)
	}
	return nil
}
