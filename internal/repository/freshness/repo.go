// Package freshness resolves the biz_dt marker: the timestamp of the last
// successful index build, read from the index's meta document.
package freshness

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kailas-cloud/competisearch/internal/domain"
	"github.com/kailas-cloud/competisearch/internal/index"
	"github.com/kailas-cloud/competisearch/internal/metrics"
)

const (
	defaultTTL = 60 * time.Second
	cacheKey   = "latest"

	// TimeLayout is the biz_dt wire format.
	TimeLayout = "2006-01-02 15:04:05"
)

// Marker is the resolved freshness state. Warnings record degradations:
// freshness is best-effort and never blocks search.
type Marker struct {
	BizDt    string
	Warnings []string
}

// Repo reads and caches the freshness marker.
type Repo struct {
	client index.Client
	cache  *expirable.LRU[string, Marker]
	now    func() time.Time
}

// Option configures the repository.
type Option func(*Repo)

// WithTTL overrides the marker cache TTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *Repo) {
		r.cache = expirable.NewLRU[string, Marker](4, nil, ttl)
	}
}

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Repo) { r.now = now }
}

// New creates a freshness repository.
func New(client index.Client, opts ...Option) *Repo {
	r := &Repo{
		client: client,
		cache:  expirable.NewLRU[string, Marker](4, nil, defaultTTL),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the current marker. Any read failure degrades to the
// current wall-clock time plus a warning; degraded markers are cached too so
// a flapping index is not hammered.
func (r *Repo) Resolve(ctx context.Context) Marker {
	if m, ok := r.cache.Get(cacheKey); ok {
		metrics.CacheTotal.WithLabelValues("freshness", "hit").Inc()
		return m
	}
	metrics.CacheTotal.WithLabelValues("freshness", "miss").Inc()

	m := r.read(ctx)
	r.cache.Add(cacheKey, m)
	return m
}

func (r *Repo) read(ctx context.Context) Marker {
	m := Marker{BizDt: r.now().Format(TimeLayout)}

	docs, err := r.client.Fetch(ctx, []string{index.MetaDocIDLatest})
	if err != nil {
		m.Warnings = append(m.Warnings, fmt.Sprintf("meta_read_failed:%v", err))
		return m
	}

	doc, ok := docs[index.MetaDocIDLatest]
	if !ok {
		m.Warnings = append(m.Warnings, "meta_doc_not_found")
		return m
	}

	hit := index.Hit{ID: doc.ID, Fields: doc.Fields}
	if ingestDt := hit.StringField(index.FieldIngestDt); ingestDt != "" {
		m.BizDt = ingestDt
	} else {
		m.Warnings = append(m.Warnings, "meta_missing_ingest_dt")
	}
	return m
}

// Meta returns the raw fields of the latest meta document for the status
// endpoint. Unlike Resolve this does not degrade: a missing marker is an
// error the caller reports.
func (r *Repo) Meta(ctx context.Context) (map[string]any, error) {
	docs, err := r.client.Fetch(ctx, []string{index.MetaDocIDLatest})
	if err != nil {
		return nil, err
	}
	doc, ok := docs[index.MetaDocIDLatest]
	if !ok {
		return nil, fmt.Errorf("%w: latest meta doc %s", domain.ErrNotFound, index.MetaDocIDLatest)
	}
	return doc.Fields, nil
}

// Invalidate drops the cached marker. Called after a successful build so the
// new biz_dt is visible immediately.
func (r *Repo) Invalidate() {
	r.cache.Remove(cacheKey)
}
