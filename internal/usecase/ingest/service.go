package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/competisearch/internal/domain/product"
	"github.com/kailas-cloud/competisearch/internal/domain/textnorm"
	"github.com/kailas-cloud/competisearch/internal/index"
	"github.com/kailas-cloud/competisearch/internal/repository/freshness"
)

const (
	// defaultBatchSize is the upsert batch.
	defaultBatchSize = 64
	// embedWorkerCap bounds concurrent embedding calls per row.
	embedWorkerCap = 8
)

// TaskState is the lifecycle state of a build task.
type TaskState string

const (
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// Task is the observable state of one index build.
type Task struct {
	BuildID     string    `json:"build_id"`
	DataVersion string    `json:"data_version"`
	State       TaskState `json:"state"`
	StartedAt   string    `json:"started_at"`
	FinishedAt  string    `json:"finished_at,omitempty"`
	RowCount    int       `json:"row_count"`
	DocCount    int       `json:"doc_count"`
	SkippedDocs int       `json:"skipped_docs"`
	Error       string    `json:"error,omitempty"`
}

// Service runs index builds in the background and tracks their state.
type Service struct {
	catalog      Catalog
	idx          Upserter
	embed        Embedder
	encoder      DocEncoder
	fresh        Invalidator
	trainEncoder bool
	batchSize    int
	pool         *ants.Pool
	logger       *zap.Logger
	now          func() time.Time

	mu    sync.Mutex
	tasks map[string]*Task
}

// Option configures the service.
type Option func(*Service)

// WithTrainEncoder retrains the sparse encoder on the catalog corpus before
// encoding documents.
func WithTrainEncoder(train bool) Option {
	return func(s *Service) { s.trainEncoder = train }
}

// WithBatchSize overrides the upsert batch size.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a build service.
func NewService(catalog Catalog, idx Upserter, embed Embedder, encoder DocEncoder, fresh Invalidator, logger *zap.Logger, opts ...Option) (*Service, error) {
	pool, err := ants.NewPool(embedWorkerCap)
	if err != nil {
		return nil, fmt.Errorf("create embed pool: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		catalog:   catalog,
		idx:       idx,
		embed:     embed,
		encoder:   encoder,
		fresh:     fresh,
		batchSize: defaultBatchSize,
		pool:      pool,
		logger:    logger,
		now:       time.Now,
		tasks:     map[string]*Task{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the embed worker pool.
func (s *Service) Close() {
	s.pool.Release()
}

// StartBuild registers a new build task and runs it in the background,
// detached from the caller's request context. Returns the build id.
func (s *Service) StartBuild(dataVersion string) string {
	buildID := strings.ReplaceAll(uuid.NewString(), "-", "")
	if dataVersion == "" {
		dataVersion = s.now().Format("v20060102_150405")
	}

	task := &Task{
		BuildID:     buildID,
		DataVersion: dataVersion,
		State:       TaskRunning,
		StartedAt:   s.now().Format(freshness.TimeLayout),
	}
	s.mu.Lock()
	s.tasks[buildID] = task
	s.mu.Unlock()

	go s.runBuild(context.Background(), buildID, dataVersion)
	return buildID
}

// TaskStatus returns a copy of the task state for the given build id.
func (s *Service) TaskStatus(buildID string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[buildID]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

func (s *Service) runBuild(ctx context.Context, buildID, dataVersion string) {
	stats, err := s.build(ctx, buildID, dataVersion)

	s.mu.Lock()
	defer s.mu.Unlock()
	task := s.tasks[buildID]
	task.FinishedAt = s.now().Format(freshness.TimeLayout)
	task.RowCount = stats.rowCount
	task.DocCount = stats.docCount
	task.SkippedDocs = stats.skippedDocs
	if err != nil {
		task.State = TaskFailed
		task.Error = err.Error()
		s.logger.Error("index build failed",
			zap.String("build_id", buildID), zap.Error(err))
		return
	}
	task.State = TaskSucceeded
	s.logger.Info("index build finished",
		zap.String("build_id", buildID),
		zap.String("data_version", dataVersion),
		zap.Int("rows", stats.rowCount),
		zap.Int("docs", stats.docCount),
		zap.Int("skipped", stats.skippedDocs))
}

type buildStats struct {
	rowCount    int
	docCount    int
	skippedDocs int
}

func (s *Service) build(ctx context.Context, buildID, dataVersion string) (buildStats, error) {
	var stats buildStats
	ingestDt := s.now().Format(freshness.TimeLayout)

	s.catalog.Invalidate()
	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return stats, fmt.Errorf("load catalog: %w", err)
	}
	rows := snap.All()
	sort.Slice(rows, func(i, j int) bool { return rows[i].ProductID < rows[j].ProductID })
	stats.rowCount = len(rows)

	if s.trainEncoder {
		s.encoder.Train(buildCorpus(rows))
	}

	dim := 0
	var buffer []index.Doc
	for _, row := range rows {
		docs, skipped, err := s.rowDocs(ctx, row, ingestDt, buildID, dataVersion)
		if err != nil {
			return stats, err
		}
		stats.skippedDocs += skipped
		for _, d := range docs {
			if dim == 0 {
				dim = len(d.Vector)
			}
			buffer = append(buffer, d)
			stats.docCount++
			if len(buffer) >= s.batchSize {
				if err := s.idx.Upsert(ctx, buffer); err != nil {
					return stats, fmt.Errorf("upsert batch: %w", err)
				}
				buffer = buffer[:0]
			}
		}
	}
	if len(buffer) > 0 {
		if err := s.idx.Upsert(ctx, buffer); err != nil {
			return stats, fmt.Errorf("upsert batch: %w", err)
		}
	}

	if dim == 0 {
		// No document carried text; probe the embedder for the dimension so
		// the meta docs still carry a well-formed zero vector.
		vec, err := s.embed.Embed(ctx, " ")
		if err != nil {
			return stats, fmt.Errorf("probe vector dimension: %w", err)
		}
		dim = len(vec)
	}

	meta := metaDocs(dim, buildID, dataVersion, ingestDt, stats)
	if err := s.idx.Upsert(ctx, meta); err != nil {
		return stats, fmt.Errorf("upsert meta docs: %w", err)
	}

	s.catalog.Invalidate()
	if s.fresh != nil {
		s.fresh.Invalidate()
	}
	return stats, nil
}

// rowDocs builds the per-field documents of one product row, embedding the
// fields concurrently. Empty normalized fields are counted as skipped.
func (s *Service) rowDocs(ctx context.Context, row product.Record, ingestDt, buildID, dataVersion string) ([]index.Doc, int, error) {
	type fieldText struct {
		field string
		text  string
	}
	var inputs []fieldText
	skipped := 0
	for _, field := range product.TextFields {
		text := textnorm.Normalize(field, row.Fields[field])
		if strings.TrimSpace(text) == "" {
			skipped++
			continue
		}
		inputs = append(inputs, fieldText{field: field, text: text})
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	docs := make([]index.Doc, len(inputs))
	for i, in := range inputs {
		i, in := i, in
		wg.Add(1)
		task := func() {
			defer wg.Done()
			dense, err := s.embed.Embed(ctx, in.text)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("embed %s#%s: %w", row.ProductID, in.field, err)
				}
				mu.Unlock()
				return
			}
			docs[i] = index.Doc{
				ID:           row.ProductID + "#" + in.field,
				Vector:       dense,
				SparseVector: s.encoder.EncodeDocument(in.text),
				Fields: map[string]any{
					index.FieldProductID:   row.ProductID,
					index.FieldCompany:     row.Company,
					index.FieldChannel:     row.Channel,
					index.FieldProductName: row.ProductName,
					index.FieldTrack:       row.Track,
					index.FieldField:       in.field,
					index.FieldText:        in.text,
					index.FieldIngestDt:    ingestDt,
					index.FieldBuildID:     buildID,
					index.FieldDataVersion: dataVersion,
					index.FieldIsMeta:      0,
				},
			}
		}
		if err := s.pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()
	if firstErr != nil {
		return nil, skipped, firstErr
	}
	return docs, skipped, nil
}

// buildCorpus joins each row's normalized non-empty fields for encoder
// training.
func buildCorpus(rows []product.Record) []string {
	corpus := make([]string, 0, len(rows))
	for _, row := range rows {
		var parts []string
		for _, field := range product.TextFields {
			if text := textnorm.Normalize(field, row.Fields[field]); strings.TrimSpace(text) != "" {
				parts = append(parts, text)
			}
		}
		if len(parts) > 0 {
			corpus = append(corpus, strings.Join(parts, "\n"))
		}
	}
	return corpus
}

// metaDocs are the latest and history build markers: zero-vector documents
// excluded from retrieval by the is_meta filter.
func metaDocs(dim int, buildID, dataVersion, ingestDt string, stats buildStats) []index.Doc {
	base := func(metaType string) map[string]any {
		return map[string]any{
			index.FieldIsMeta:      1,
			index.FieldIngestDt:    ingestDt,
			index.FieldBuildID:     buildID,
			index.FieldDataVersion: dataVersion,
			"row_count":            stats.rowCount,
			"doc_count":            stats.docCount,
			"skipped_docs":         stats.skippedDocs,
			index.FieldMetaType:    metaType,
		}
	}
	zero := make([]float32, dim)
	return []index.Doc{
		{ID: index.MetaDocIDLatest, Vector: zero, Fields: base("latest")},
		{ID: index.MetaDocIDBuildPrefix + buildID, Vector: zero, Fields: base("history")},
	}
}
