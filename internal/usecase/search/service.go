package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/competisearch/internal/domain/envelope"
	"github.com/kailas-cloud/competisearch/internal/domain/product"
	"github.com/kailas-cloud/competisearch/internal/domain/query"
	"github.com/kailas-cloud/competisearch/internal/domain/route"
	"github.com/kailas-cloud/competisearch/internal/domain/textnorm"
	"github.com/kailas-cloud/competisearch/internal/metrics"
	"github.com/kailas-cloud/competisearch/internal/repository/freshness"
	"github.com/kailas-cloud/competisearch/internal/repository/routes"
)

// recallWorkerCap bounds the route fan-out. With seven text fields the
// effective parallelism is min(recallWorkerCap, non-empty field count).
const recallWorkerCap = 8

// Service is the competitor search orchestrator.
type Service struct {
	routes    RouteSearcher
	catalog   Catalog
	fresh     Freshness
	extractor FieldExtractor
	reranker  Reranker
	cache     ResponseCache
	pool      *ants.Pool
	logger    *zap.Logger
}

// NewService wires the search pipeline. All collaborators are required
// except logger, which defaults to a nop logger.
func NewService(
	routeSearcher RouteSearcher,
	catalog Catalog,
	fresh Freshness,
	extractor FieldExtractor,
	reranker Reranker,
	respCache ResponseCache,
	logger *zap.Logger,
) (*Service, error) {
	pool, err := ants.NewPool(recallWorkerCap)
	if err != nil {
		return nil, fmt.Errorf("create recall pool: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		routes:    routeSearcher,
		catalog:   catalog,
		fresh:     fresh,
		extractor: extractor,
		reranker:  reranker,
		cache:     respCache,
		pool:      pool,
		logger:    logger,
	}, nil
}

// Close releases the recall worker pool.
func (s *Service) Close() {
	s.pool.Release()
}

// Search runs one competitor search request end to end and always returns an
// envelope: validation and pipeline failures become FAIL envelopes, never
// errors or panics visible to the transport.
func (s *Service) Search(ctx context.Context, p query.Params) envelope.Envelope {
	start := time.Now()
	marker := s.fresh.Resolve(ctx)

	env := s.run(ctx, p, marker)

	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	status := "success"
	if env.Status == envelope.StatusFail {
		status = "fail"
	}
	metrics.SearchRequestsTotal.WithLabelValues(status).Inc()
	return env
}

func (s *Service) run(ctx context.Context, p query.Params, marker freshness.Marker) (env envelope.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("search pipeline panic", zap.Any("panic", r))
			env = envelope.Fail(failDetail(p, fmt.Sprintf("%v", r)), marker.BizDt, fmt.Sprintf("internal error: %v", r))
		}
	}()

	q, err := query.New(p)
	if err != nil {
		return envelope.Fail(failDetail(p, err.Error()), marker.BizDt, err.Error())
	}

	key := q.CacheKey(marker.BizDt)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var cached envelope.Envelope
		if unmarshalErr := json.Unmarshal(raw, &cached); unmarshalErr == nil {
			return cached
		}
	}

	env = s.pipeline(ctx, q, marker)
	if env.Status == envelope.StatusSuccess {
		if raw, marshalErr := json.Marshal(env); marshalErr == nil {
			s.cache.Set(ctx, key, raw)
		}
	}
	return env
}

func (s *Service) pipeline(ctx context.Context, q query.Query, marker freshness.Marker) envelope.Envelope {
	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		s.logger.Error("catalog snapshot failed", zap.Error(err))
		return envelope.Fail(failDetailQuery(q, err.Error()), marker.BizDt, err.Error())
	}

	parsedFields, effectiveID, err := s.resolveFields(ctx, q, snap)
	if err != nil {
		s.logger.Error("source field resolution failed", zap.Error(err))
		return envelope.Fail(failDetailQuery(q, err.Error()), marker.BizDt, err.Error())
	}

	normalized := textnorm.NormalizeFields(parsedFields)
	rerankQuery := textnorm.CombinedText(parsedFields)
	echo := queryEcho(q, effectiveID, parsedFields, rerankQuery)

	outcomes := s.recall(ctx, q, normalized)

	fused, routeDetails := fuseRRF(outcomes)
	cands := assemble(fused, routeDetails, snap, effectiveID, q.SelectedCompany, q.SelectedChannel)
	if len(cands) == 0 {
		// Empty result is not a failure.
		return envelope.Success(marshalDetail(echo, nil), marker.BizDt, nil, marker.Warnings)
	}

	final, err := s.rerank(ctx, rerankQuery, cands, q.RerankThreshold, q.MaxResults)
	if err != nil {
		s.logger.Error("rerank failed", zap.Error(err))
		return envelope.Fail(failDetailQuery(q, err.Error()), marker.BizDt, err.Error())
	}

	productList := make([]string, 0, len(final))
	for _, item := range final {
		productList = append(productList, item.ProductID)
	}
	return envelope.Success(marshalDetail(echo, final), marker.BizDt, productList, marker.Warnings)
}

// resolveFields picks the text-field source: a catalog row referenced by
// product_id is used verbatim, otherwise the free product text goes through
// the field extractor. The returned id is the effective self-exclusion id,
// empty when the product is not in the catalog.
func (s *Service) resolveFields(ctx context.Context, q query.Query, snap *product.Snapshot) (map[string]string, string, error) {
	if q.ProductID != "" {
		if rec, ok := snap.Row(q.ProductID); ok {
			return rec.Fields, rec.ProductID, nil
		}
		s.logger.Warn("product_id not in catalog, extracting fields from free text",
			zap.String("product_id", q.ProductID))
	}
	fields, err := s.extractor.Extract(ctx, q.ProductInfo)
	if err != nil {
		return nil, "", err
	}
	return fields, "", nil
}

// recall fans one route per non-empty normalized field out over the worker
// pool and waits for all of them. A failed route is recorded with its reason
// and contributes nothing to fusion; it never cancels sibling routes.
func (s *Service) recall(ctx context.Context, q query.Query, normalized map[string]string) []route.Outcome {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		outcomes []route.Outcome
	)
	for _, field := range product.TextFields {
		text := normalized[field]
		if strings.TrimSpace(text) == "" {
			continue
		}
		field := field
		wg.Add(1)
		task := func() {
			defer wg.Done()
			cands, err := s.routes.Search(ctx, routes.Query{
				Field:     field,
				Track:     q.ProductTrack,
				QueryText: text,
				Companies: q.SelectedCompany,
				Channels:  q.SelectedChannel,
			})
			if err != nil {
				metrics.RouteErrorsTotal.WithLabelValues(field).Inc()
				s.logger.Warn("route search failed",
					zap.String("route", field), zap.Error(err))
			}
			mu.Lock()
			outcomes = append(outcomes, route.Outcome{Route: field, Candidates: cands, Err: err})
			mu.Unlock()
		}
		if err := s.pool.Submit(task); err != nil {
			// Pool saturation or shutdown; run inline rather than drop the route.
			task()
		}
	}
	wg.Wait()
	return outcomes
}

// rerank scores the assembled candidates, applies the strict relevance
// cutoff, sorts by score descending (stable on candidate order for ties) and
// truncates to maxResults.
func (s *Service) rerank(ctx context.Context, queryText string, cands []candidateItem, threshold float64, maxResults int) ([]ResultItem, error) {
	docs := make([]string, len(cands))
	for i, c := range cands {
		docs[i] = c.CombinedText
	}
	scores, err := s.reranker.Rerank(ctx, queryText, docs)
	if err != nil {
		return nil, err
	}

	kept := make([]ResultItem, 0, len(cands))
	for i, c := range cands {
		score, ok := scores[i]
		if !ok || score < threshold {
			metrics.RerankCandidatesTotal.WithLabelValues("dropped").Inc()
			continue
		}
		metrics.RerankCandidatesTotal.WithLabelValues("kept").Inc()
		kept = append(kept, ResultItem{
			ProductID:    c.Record.ProductID,
			Company:      c.Record.Company,
			Channel:      c.Record.Channel,
			ProductName:  c.Record.ProductName,
			ProductTrack: c.Record.Track,
			RerankScore:  score,
			RRFScore:     c.RRFScore,
			Routes:       c.Routes,
			Evidence: Evidence{
				CombinedText: c.CombinedText,
				Fields:       c.NormFields,
			},
		})
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].RerankScore > kept[j].RerankScore })
	if len(kept) > maxResults {
		kept = kept[:maxResults]
	}
	return kept, nil
}
