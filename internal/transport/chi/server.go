// Package chi exposes the service's HTTP surface: the competitor search
// operation, the index build endpoints, health and metrics.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/competisearch/internal/domain"
	"github.com/kailas-cloud/competisearch/internal/domain/envelope"
	"github.com/kailas-cloud/competisearch/internal/domain/query"
	healthuc "github.com/kailas-cloud/competisearch/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/competisearch/internal/usecase/ingest"
)

// SearchService runs one competitor search request.
type SearchService interface {
	Search(ctx context.Context, p query.Params) envelope.Envelope
}

// BuildService starts index builds and reports task state.
type BuildService interface {
	StartBuild(dataVersion string) string
	TaskStatus(buildID string) (ingestuc.Task, bool)
}

// MetaReader reads the latest build metadata from the index.
type MetaReader interface {
	Meta(ctx context.Context) (map[string]any, error)
}

// HealthService aggregates component health checks.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// Server wires the use case services into HTTP handlers.
type Server struct {
	search SearchService
	builds BuildService
	meta   MetaReader
	health HealthService
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(search SearchService, builds BuildService, meta MetaReader, health HealthService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		search: search,
		builds: builds,
		meta:   meta,
		health: health,
		logger: logger,
	}
}

// Routes mounts all handlers on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/search_competitors", s.SearchCompetitors)
	r.Post("/index/build", s.StartIndexBuild)
	r.Get("/index/status", s.IndexStatus)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// searchRequest is the POST /search_competitors body. The tunable knobs are
// pointers so "absent" and "zero" stay distinguishable.
type searchRequest struct {
	ProductID       string   `json:"product_id"`
	ProductName     string   `json:"product_name"`
	ProductTrack    string   `json:"product_track"`
	ProductInfo     string   `json:"product_info"`
	SelectedCompany []string `json:"selected_company"`
	SelectedChannel []string `json:"selected_channel"`
	RerankThreshold *float64 `json:"rerank_threshold"`
	MaxResults      *int     `json:"max_results"`
}

// SearchCompetitors handles POST /search_competitors. Business failures are
// FAIL envelopes with HTTP 200; only a malformed body is a transport error.
func (s *Server) SearchCompetitors(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest,
			envelope.Fail(nil, "", "invalid request body: "+err.Error()))
		return
	}

	env := s.search.Search(r.Context(), query.Params{
		ProductID:       req.ProductID,
		ProductName:     req.ProductName,
		ProductTrack:    req.ProductTrack,
		ProductInfo:     req.ProductInfo,
		SelectedCompany: req.SelectedCompany,
		SelectedChannel: req.SelectedChannel,
		RerankThreshold: req.RerankThreshold,
		MaxResults:      req.MaxResults,
	})
	writeJSON(w, http.StatusOK, env)
}

type buildRequest struct {
	DataVersion string `json:"data_version"`
}

// StartIndexBuild handles POST /index/build. The body is optional.
func (s *Server) StartIndexBuild(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	buildID := s.builds.StartBuild(req.DataVersion)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"build_id": buildID,
		"state":    ingestuc.TaskRunning,
	})
}

// IndexStatus handles GET /index/status. With a build_id query parameter it
// reports that task; otherwise it reads the latest build marker from the
// index.
func (s *Server) IndexStatus(w http.ResponseWriter, r *http.Request) {
	if buildID := r.URL.Query().Get("build_id"); buildID != "" {
		task, ok := s.builds.TaskStatus(buildID)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown build id: "+buildID)
			return
		}
		writeJSON(w, http.StatusOK, task)
		return
	}

	meta, err := s.meta.Meta(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no index build found")
			return
		}
		s.logger.Error("read index meta failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "index unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"latest": meta})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
