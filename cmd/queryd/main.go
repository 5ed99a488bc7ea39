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

	"github.com/kbase-cloud/queryd/internal/cache"
	"github.com/kbase-cloud/queryd/internal/config"
	dbRedis "github.com/kbase-cloud/queryd/internal/db/redis"
	"github.com/kbase-cloud/queryd/internal/domain"
	logpkg "github.com/kbase-cloud/queryd/internal/logger"
	"github.com/kbase-cloud/queryd/internal/metrics"
	categoryrepo "github.com/kbase-cloud/queryd/internal/repository/category"
	documentrepo "github.com/kbase-cloud/queryd/internal/repository/document"
	"github.com/kbase-cloud/queryd/internal/repository/embcache"
	chiTransport "github.com/kbase-cloud/queryd/internal/transport/chi"
	openaiProv "github.com/kbase-cloud/queryd/internal/transport/openai"
	categoriesuc "github.com/kbase-cloud/queryd/internal/usecase/categories"
	classifyuc "github.com/kbase-cloud/queryd/internal/usecase/classify"
	discoveryuc "github.com/kbase-cloud/queryd/internal/usecase/discovery"
	healthuc "github.com/kbase-cloud/queryd/internal/usecase/health"
	invalidationuc "github.com/kbase-cloud/queryd/internal/usecase/invalidation"
	"github.com/kbase-cloud/queryd/internal/version"
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

	logger.Info("Starting queryd API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Valkey speaks the same protocol; both drivers use the rueidis client.
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterClassifierMetrics()

	// Providers
	embedProvider := openaiProv.NewEmbedder(&openaiProv.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	completer := openaiProv.NewCompleter(&openaiProv.Config{
		APIKey:      cfg.Completion.APIKey,
		BaseURL:     cfg.Completion.BaseURL,
		Model:       cfg.Completion.Model,
		Provider:    cfg.Completion.Provider,
		MaxTokens:   cfg.Completion.MaxTokens,
		Temperature: cfg.Completion.Temperature,
		Logger:      logger,
	})

	// Cache instances. The embedding, search, and stats roles carry a
	// shared tier; document metadata stays in-process.
	embCache := mustCache[[]float32](cache.Options{
		Name:      "embedding",
		Capacity:  cfg.Caches.Embedding.Capacity,
		TTL:       time.Duration(cfg.Caches.Embedding.TTLSec) * time.Second,
		KeyPrefix: domain.KeyPrefix + "cache:embedding:",
	}, store, cache.VectorCodec{}, logger)
	searchCache := mustCache[json.RawMessage](cache.Options{
		Name:      "search",
		Capacity:  cfg.Caches.Search.Capacity,
		TTL:       time.Duration(cfg.Caches.Search.TTLSec) * time.Second,
		KeyPrefix: domain.KeyPrefix + "cache:search:",
	}, store, cache.JSONCodec[json.RawMessage]{}, logger)
	statsCache := mustCache[json.RawMessage](cache.Options{
		Name:      "stats",
		Capacity:  cfg.Caches.Stats.Capacity,
		TTL:       time.Duration(cfg.Caches.Stats.TTLSec) * time.Second,
		KeyPrefix: domain.KeyPrefix + "cache:stats:",
	}, store, cache.JSONCodec[json.RawMessage]{}, logger)
	docCache := mustCache[json.RawMessage](cache.Options{
		Name:     "documents",
		Capacity: cfg.Caches.Documents.Capacity,
		TTL:      time.Duration(cfg.Caches.Documents.TTLSec) * time.Second,
	}, nil, cache.JSONCodec[json.RawMessage]{}, logger)

	embedder := embcache.New(embedProvider, embCache, logger)

	// Repositories
	catRepo := categoryrepo.New(store, logger)
	docRepo := documentrepo.New(store)

	// Use case services
	categorySvc := categoriesuc.New(catRepo, docRepo, embedder, logger)
	classifier := classifyuc.NewService(
		categorySvc, embedder, completer,
		time.Duration(cfg.Classifier.SnapshotTTLSec)*time.Second, logger,
	)
	discoverySvc := discoveryuc.New(categorySvc, embedder, completer, logger)

	// Every category mutation fans out through the coordinator: derived
	// caches plus the classifier snapshot.
	coordinator := invalidationuc.New(logger, searchCache, statsCache, docCache)
	coordinator.Watch(classifier)
	categorySvc.Subscribe(coordinator)

	healthSvc := healthuc.New(store, embedder)

	server := chiTransport.NewServer(
		classifier, discoverySvc, categorySvc, coordinator, healthSvc, logger,
		embCache, searchCache, statsCache, docCache,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

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

func mustCache[V any](
	opts cache.Options,
	shared cache.SharedStore,
	codec cache.Codec[V],
	logger *zap.Logger,
) *cache.Tiered[V] {
	c, err := cache.New(opts, shared, codec, metrics.CacheRequestsTotal, logger)
	if err != nil {
		panic("failed to create cache " + opts.Name + ": " + err.Error())
	}
	return c
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
