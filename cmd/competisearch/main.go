package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kailas-cloud/competisearch/internal/cache"
	"github.com/kailas-cloud/competisearch/internal/config"
	"github.com/kailas-cloud/competisearch/internal/index"
	logpkg "github.com/kailas-cloud/competisearch/internal/logger"
	"github.com/kailas-cloud/competisearch/internal/metrics"
	catalogrepo "github.com/kailas-cloud/competisearch/internal/repository/catalog"
	freshnessrepo "github.com/kailas-cloud/competisearch/internal/repository/freshness"
	routesrepo "github.com/kailas-cloud/competisearch/internal/repository/routes"
	"github.com/kailas-cloud/competisearch/internal/sparse"
	chiTransport "github.com/kailas-cloud/competisearch/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/competisearch/internal/transport/openai"
	"github.com/kailas-cloud/competisearch/internal/transport/rerank"
	healthuc "github.com/kailas-cloud/competisearch/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/competisearch/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/competisearch/internal/usecase/search"
	"github.com/kailas-cloud/competisearch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting competisearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_collection", cfg.Index.Collection),
	)

	metrics.RegisterSearchMetrics()
	metrics.RegisterEmbeddingMetrics()

	ctx := context.Background()

	// Product catalog over Postgres
	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("Failed to create catalog pool", zap.Error(err))
	}
	defer pool.Close()
	catalogRepo := catalogrepo.New(pool, cfg.Database.Table)

	// Vector index
	idxClient, err := index.NewHTTPClient(
		cfg.Index.BaseURL, cfg.Index.APIKey, cfg.Index.Collection,
		index.WithTimeout(time.Duration(cfg.Index.TimeoutSec)*time.Second),
	)
	if err != nil {
		logger.Fatal("Failed to create index client", zap.Error(err))
	}
	if err := idxClient.Ping(ctx); err != nil {
		logger.Fatal("Vector index not reachable", zap.Error(err))
	}
	logger.Info("Connected to vector index")

	freshRepo := freshnessrepo.New(idxClient)

	// Sparse encoder from the pre-trained artifact
	encoder, err := sparse.Load(cfg.Sparse.ArtifactPath)
	if err != nil {
		logger.Fatal("Failed to load sparse encoder artifact",
			zap.String("path", cfg.Sparse.ArtifactPath), zap.Error(err))
	}
	logger.Info("Sparse encoder loaded",
		zap.String("path", cfg.Sparse.ArtifactPath),
		zap.Int("vocab", encoder.VocabSize()))

	// Embedding, field extraction and rerank providers
	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:   cfg.Embedding.APIKey,
		BaseURL:  cfg.Embedding.BaseURL,
		Model:    cfg.Embedding.Model,
		Provider: "openai",
		Logger:   logger,
	})
	extractor := openaiTransport.NewFieldExtractor(&openaiTransport.ExtractorConfig{
		APIKey:  cfg.Extractor.APIKey,
		BaseURL: cfg.Extractor.BaseURL,
		Model:   cfg.Extractor.Model,
		Logger:  logger,
	})
	reranker, err := rerank.NewHTTPClient(rerank.Config{
		BaseURL: cfg.Rerank.BaseURL,
		APIKey:  cfg.Rerank.APIKey,
		Model:   cfg.Rerank.Model,
		Timeout: time.Duration(cfg.Rerank.TimeoutSec) * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to create rerank client", zap.Error(err))
	}

	// Response cache: shared Redis when configured, in-process otherwise
	respTTL := time.Duration(cfg.Cache.ResponseTTLSec) * time.Second
	var respCache searchuc.ResponseCache
	if len(cfg.Redis.Addrs) > 0 {
		redisCache, err := cache.NewRedis(cfg.Redis.Addrs, cfg.Redis.Password, respTTL, logger)
		if err != nil {
			logger.Fatal("Failed to create redis response cache", zap.Error(err))
		}
		defer redisCache.Close()
		respCache = redisCache
		logger.Info("Response cache: redis", zap.Strings("addrs", cfg.Redis.Addrs))
	} else {
		respCache = cache.NewMemory(cfg.Cache.ResponseEntries, respTTL)
		logger.Info("Response cache: in-memory")
	}

	routeExec := routesrepo.NewExecutor(idxClient, embedder, encoder, logger,
		routesrepo.WithMemoSize(cfg.Cache.RouteMemoSize))

	// Use case services
	searchSvc, err := searchuc.NewService(routeExec, catalogRepo, freshRepo, extractor, reranker, respCache, logger)
	if err != nil {
		logger.Fatal("Failed to create search service", zap.Error(err))
	}
	defer searchSvc.Close()

	buildSvc, err := ingestuc.NewService(catalogRepo, idxClient, embedder, encoder, freshRepo, logger,
		ingestuc.WithTrainEncoder(cfg.Sparse.TrainOnBuild))
	if err != nil {
		logger.Fatal("Failed to create build service", zap.Error(err))
	}
	defer buildSvc.Close()

	healthSvc := healthuc.New(catalogRepo, idxClient, embedder)

	// HTTP server
	server := chiTransport.NewServer(searchSvc, buildSvc, freshRepo, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
