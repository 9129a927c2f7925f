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
	"go.uber.org/zap"

	"github.com/atriumhq/atrium/internal/config"
	"github.com/atriumhq/atrium/internal/domain"
	"github.com/atriumhq/atrium/internal/domain/search/query"
	"github.com/atriumhq/atrium/internal/kv"
	logpkg "github.com/atriumhq/atrium/internal/logger"
	"github.com/atriumhq/atrium/internal/metrics"
	corpusrepo "github.com/atriumhq/atrium/internal/repository/corpus"
	"github.com/atriumhq/atrium/internal/repository/embcache"
	"github.com/atriumhq/atrium/internal/repository/querycache"
	httpTransport "github.com/atriumhq/atrium/internal/transport/http"
	openaiEmb "github.com/atriumhq/atrium/internal/transport/openai"
	corpusuc "github.com/atriumhq/atrium/internal/usecase/corpus"
	embeddinguc "github.com/atriumhq/atrium/internal/usecase/embedding"
	healthuc "github.com/atriumhq/atrium/internal/usecase/health"
	searchuc "github.com/atriumhq/atrium/internal/usecase/search"
	"github.com/atriumhq/atrium/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting atrium search server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("corpus_path", cfg.Corpus.Path),
	)

	// Register engine metrics explicitly (no init())
	metrics.RegisterEngineMetrics()
	metrics.RegisterEmbeddingMetrics()

	// Embedding cache store: redis when configured, in-process otherwise.
	var store kv.Store
	if len(cfg.Cache.Redis.Addrs) > 0 {
		redisStore, err := kv.NewRedis(kv.RedisConfig{
			Addrs:    cfg.Cache.Redis.Addrs,
			Password: cfg.Cache.Redis.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create redis store", zap.Error(err))
		}
		store = redisStore
		logger.Info("Embedding cache backed by redis", zap.Strings("addrs", cfg.Cache.Redis.Addrs))
	} else {
		store = kv.NewMemory()
		logger.Info("Embedding cache in process memory")
	}
	defer store.Close()

	embedder := buildEmbedder(cfg, store, logger)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Result cache, invalidated on every corpus change.
	resultCache := querycache.New(
		cfg.Cache.ResultMaxEntries,
		time.Duration(cfg.Cache.ResultTTLSec)*time.Second,
		metrics.QueryCacheTotal,
	)

	// Corpus: load at startup, fail fast on a broken store.
	corpusStore := corpusrepo.NewStore(cfg.Corpus.Path)
	corpusSvc := corpusuc.New(
		corpusStore,
		cfg.Corpus.Dimensions,
		time.Duration(cfg.Corpus.StaleCheckSec)*time.Second,
		logger,
		resultCache,
	)
	if err := corpusSvc.Load(); err != nil {
		logger.Fatal("Failed to load corpus", zap.Error(err))
	}

	searchSvc := searchuc.New(
		corpusSvc, embedder, resultCache,
		time.Duration(cfg.Search.RequestTimeoutSec)*time.Second,
		logger,
	)

	healthSvc := healthuc.New(corpusSvc, searchSvc, newEmbeddingHealthChecker(embedder), store)

	warmup(searchSvc, cfg.Search.WarmupQueries, cfg.Search.DefaultK, cfg.Search.DefaultMinConfidence, logger)

	server := httpTransport.NewServer(searchSvc, corpusSvc, healthSvc, httpTransport.Defaults{
		K:             cfg.Search.DefaultK,
		MaxK:          cfg.Search.MaxK,
		MinConfidence: cfg.Search.DefaultMinConfidence,
		Dimensions:    cfg.Corpus.Dimensions,
	}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(httpTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	r.Mount("/", server.Routes())

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

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(cfg config.Config, store kv.Store, logger *zap.Logger) domain.Embedder {
	// Base provider (with transport metrics built-in)
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})

	// Cached
	var embedder domain.Embedder = embcache.New(
		base, store,
		time.Duration(cfg.Cache.Redis.TTLSec)*time.Second,
		metrics.EmbeddingCacheTotal, logger,
	)

	// Instrumented (logging)
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, "openai", cfg.Embedding.Model, logger)

	// Instruction prefix (outermost — cache key includes instruction)
	if cfg.Embedding.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, cfg.Embedding.QueryInstruction)
	}

	return embedder
}

// warmup primes the embedding and result caches with configured queries so
// the first real request does not pay the provider round trip.
func warmup(svc *searchuc.Service, queries []string, k int, minConfidence float64, logger *zap.Logger) {
	for _, text := range queries {
		q, err := query.New(text, k, minConfidence)
		if err != nil {
			logger.Warn("Skipping invalid warmup query", zap.String("query", text), zap.Error(err))
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, _, err := svc.Search(ctx, q); err != nil {
			logger.Warn("Warmup query failed", zap.String("query", text), zap.Error(err))
		}
		cancel()
	}
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
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

			// Canonical log line — one line per request
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
