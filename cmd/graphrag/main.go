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

	"github.com/acharyye/graphRAG/internal/config"
	"github.com/acharyye/graphRAG/internal/db"
	dbRedis "github.com/acharyye/graphRAG/internal/db/redis"
	"github.com/acharyye/graphRAG/internal/domain"
	"github.com/acharyye/graphRAG/internal/graph"
	logpkg "github.com/acharyye/graphRAG/internal/logger"
	"github.com/acharyye/graphRAG/internal/metrics"
	auditrepo "github.com/acharyye/graphRAG/internal/repository/audit"
	"github.com/acharyye/graphRAG/internal/repository/embcache"
	graphrepo "github.com/acharyye/graphRAG/internal/repository/graphdata"
	sessionrepo "github.com/acharyye/graphRAG/internal/repository/session"
	vectorrepo "github.com/acharyye/graphRAG/internal/repository/vectorindex"
	chiTransport "github.com/acharyye/graphRAG/internal/transport/chi"
	openaiProv "github.com/acharyye/graphRAG/internal/transport/openai"
	confidenceuc "github.com/acharyye/graphRAG/internal/usecase/confidence"
	fuseuc "github.com/acharyye/graphRAG/internal/usecase/fuse"
	healthuc "github.com/acharyye/graphRAG/internal/usecase/health"
	ingestuc "github.com/acharyye/graphRAG/internal/usecase/ingest"
	intentuc "github.com/acharyye/graphRAG/internal/usecase/intent"
	memoryuc "github.com/acharyye/graphRAG/internal/usecase/memory"
	queryuc "github.com/acharyye/graphRAG/internal/usecase/query"
	retrievaluc "github.com/acharyye/graphRAG/internal/usecase/retrieval"
	synthesisuc "github.com/acharyye/graphRAG/internal/usecase/synthesis"
	tenantuc "github.com/acharyye/graphRAG/internal/usecase/tenant"
	"github.com/acharyye/graphRAG/internal/version"
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

	logger.Info("Starting graphRAG query engine",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

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

	graphEngine, err := openGraph(cfg.Graph.Path)
	if err != nil {
		logger.Fatal("Failed to open graph store", zap.Error(err))
	}
	defer func() { _ = graphEngine.Close() }()
	logger.Info("Opened graph store", zap.String("path", cfg.Graph.Path))

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterQueryMetrics()
	metrics.RegisterHTTPMetrics()

	embedder := buildEmbedder(cfg, store, logger)
	chatModel := openaiProv.NewChatModel(&openaiProv.ChatConfig{
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Logger:    logger,
	})
	logger.Info("Providers created",
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("llm_model", cfg.LLM.Model),
	)

	// Repositories
	vectorRepo := vectorrepo.New(store, cfg.Embedding.Dimensions, logger)
	if err := vectorRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure vector index", zap.Error(err))
	}
	graphRepo := graphrepo.New(graphEngine, logger)
	sessionRepo := sessionrepo.New(store, time.Duration(cfg.Session.IdleTTLMin)*time.Minute, logger)
	auditRepo := auditrepo.New(store, time.Duration(cfg.Audit.RetentionDays)*24*time.Hour, logger)

	// Use case services
	guard := tenantuc.NewGuard(graphRepo, logger)
	parser := intentuc.NewParser()
	graphRetriever := retrievaluc.NewGraph(graphRepo, retrievaluc.GraphParams{
		HopLimit: cfg.Query.HopLimit,
		Limit:    cfg.Query.GraphLimit,
	}, logger)
	vectorRetriever := retrievaluc.NewVector(embedder, vectorRepo, retrievaluc.VectorParams{
		TopK:             cfg.Query.VectorTopK,
		BackfillAttempts: cfg.Query.BackfillAttempts,
	}, logger)
	fuser := fuseuc.New(fuseuc.Params{
		AgreementBonus: cfg.Query.AgreementBonus,
		Cap:            cfg.Query.EvidenceCap,
	})
	synthesizer := synthesisuc.New(chatModel, synthesisuc.Params{
		Timeout: time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	}, logger)
	scorer := confidenceuc.New(confidenceuc.Params{
		MinEvidence:   cfg.Query.MinEvidence,
		HighRelevance: cfg.Query.HighRelevance,
	})
	memorySvc := memoryuc.New(sessionRepo, memoryuc.Params{
		MaxTurns:     cfg.Session.MaxTurns,
		ContextTurns: cfg.Session.ContextTurns,
	}, logger)

	querySvc := queryuc.New(
		guard, parser, graphRetriever, vectorRetriever, fuser,
		synthesizer, scorer, memorySvc, auditRepo, graphRepo,
		queryuc.Params{
			RetrieverTimeout: time.Duration(cfg.Query.RetrieverTimeoutSec) * time.Second,
		},
		logger,
	)

	ingestSvc := ingestuc.New(graphRepo, vectorRepo, embedder, logger)

	healthSvc := healthuc.New(store, map[string]domain.HealthChecker{
		"embedder": asHealthChecker(embedder),
		"llm":      chatModel,
	}, logger)

	server := chiTransport.NewServer(querySvc, ingestSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.APIKeyMiddleware(cfg.Auth.APIKeys, logger))
	r.Use(metrics.Middleware())
	server.RegisterRoutes(r)

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

// openGraph opens the embedded graph store. An empty path means in-memory,
// for local runs seeded over the API.
func openGraph(path string) (*graph.Engine, error) {
	if path == "" {
		return graph.OpenInMemory()
	}
	return graph.Open(path)
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached.
func buildEmbedder(cfg config.Config, store db.Store, logger *zap.Logger) domain.Embedder {
	base := openaiProv.NewEmbedder(&openaiProv.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if store != nil {
		embedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)
	}
	return embedder
}

// asHealthChecker unwraps an embedder into its health probe, if it has one.
func asHealthChecker(embedder domain.Embedder) domain.HealthChecker {
	if hc, ok := embedder.(domain.HealthChecker); ok {
		return hc
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
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

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
