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
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kbroute/internal/bootstrap"
	"github.com/kailas-cloud/kbroute/internal/config"
	logpkg "github.com/kailas-cloud/kbroute/internal/logger"
	"github.com/kailas-cloud/kbroute/internal/metrics"
	auditrepo "github.com/kailas-cloud/kbroute/internal/repository/audit"
	knowledgerepo "github.com/kailas-cloud/kbroute/internal/repository/knowledge"
	templaterepo "github.com/kailas-cloud/kbroute/internal/repository/template"
	chiTransport "github.com/kailas-cloud/kbroute/internal/transport/chi"
	natsTransport "github.com/kailas-cloud/kbroute/internal/transport/nats"
	openaiTransport "github.com/kailas-cloud/kbroute/internal/transport/openai"
	qdrantTransport "github.com/kailas-cloud/kbroute/internal/transport/qdrant"
	"github.com/kailas-cloud/kbroute/internal/usecase/alert"
	answeruc "github.com/kailas-cloud/kbroute/internal/usecase/answer"
	"github.com/kailas-cloud/kbroute/internal/usecase/classify"
	healthuc "github.com/kailas-cloud/kbroute/internal/usecase/health"
	"github.com/kailas-cloud/kbroute/internal/usecase/lexical"
	"github.com/kailas-cloud/kbroute/internal/usecase/retrieval"
	"github.com/kailas-cloud/kbroute/internal/usecase/route"
	"github.com/kailas-cloud/kbroute/internal/usecase/vector"
	"github.com/kailas-cloud/kbroute/internal/version"
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

	logger.Info("Starting kbroute API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("vector_backend", cfg.Vector.Backend),
		zap.Bool("llm_enabled", cfg.LLM.Enabled),
	)

	ctx := context.Background()
	store, err := bootstrap.OpenStore(ctx, &cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer store.Close()

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()
	metrics.RegisterClassificationMetrics()
	metrics.RegisterRoutingMetrics()
	metrics.RegisterHTTPMetrics()

	emb, err := bootstrap.BuildEmbedder(&cfg, store, logger)
	if err != nil {
		logger.Fatal("Failed to build embedder", zap.Error(err))
	}
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Retrieval: lexical over the knowledge hashes, vector over Redis or Qdrant.
	knowledge := knowledgerepo.New(store, cfg.Storage.KeyPrefix, cfg.Embedding.Dimensions, knowledgerepo.HNSWConfig{
		M:           cfg.Vector.HNSWM,
		EFConstruct: cfg.Vector.HNSWEFConstruct,
	})
	if err := knowledge.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure knowledge index", zap.Error(err))
	}

	var searcher vector.Searcher = knowledge
	if cfg.Vector.Backend == "qdrant" {
		qs, err := qdrantTransport.New(cfg.Qdrant.Addr, cfg.Qdrant.Collection)
		if err != nil {
			logger.Fatal("Failed to connect to Qdrant", zap.Error(err))
		}
		defer func() { _ = qs.Close() }()
		if err := qs.EnsureCollection(ctx, cfg.Embedding.Dimensions, cfg.Vector.HNSWM, cfg.Vector.HNSWEFConstruct); err != nil {
			logger.Fatal("Failed to ensure Qdrant collection", zap.Error(err))
		}
		searcher = qs
	}

	pool, err := ants.NewPool(cfg.Retrieval.PoolSize, ants.WithPreAlloc(false))
	if err != nil {
		logger.Fatal("Failed to create worker pool", zap.Error(err))
	}
	defer pool.Release()

	retriever := retrieval.New(
		lexical.New(knowledge, cfg.Retrieval.SubstringScanLimit, logger),
		vector.New(emb.Client, searcher, vector.Config{
			Breadth:    cfg.Vector.EFRuntime,
			Dimensions: cfg.Embedding.Dimensions,
		}, logger),
		pool,
		retrieval.Config{
			DefaultTopK:   cfg.Retrieval.DefaultTopK,
			CacheTTL:      time.Duration(cfg.Retrieval.CacheTTLSec) * time.Second,
			CacheSize:     cfg.Retrieval.CacheSize,
			EarlyStopHits: cfg.Retrieval.EarlyStopHits,
			Timeout:       time.Duration(cfg.Retrieval.TimeoutMs) * time.Millisecond,
		},
		logger,
	)

	// Classification with optional LLM enrichment.
	// Pass nil interfaces (not typed nil pointers) when the LLM is disabled.
	var (
		completer  classify.Completer
		llmChecker healthuc.ProviderChecker
	)
	if cfg.LLM.Enabled {
		chat := openaiTransport.NewChatClient(&openaiTransport.ChatConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Logger:  logger,
		})
		completer, llmChecker = chat, chat
	}
	classifier := classify.New(completer, classify.Config{
		WeakConfidence: cfg.LLM.WeakConfidence,
		Timeout:        time.Duration(cfg.LLM.TimeoutMs) * time.Millisecond,
		Retries:        cfg.LLM.Retries,
		RatePerSec:     cfg.LLM.RatePerSec,
		Burst:          cfg.LLM.Burst,
	}, logger)

	// Routing with audit sinks.
	templates := templaterepo.New(store, cfg.Storage.KeyPrefix, time.Duration(cfg.Routing.TemplateRefreshSec)*time.Second)
	var sinks []route.AuditSink
	if cfg.Audit.Stream != "" {
		sinks = append(sinks, auditrepo.NewStreamSink(store, cfg.Audit.Stream, cfg.Audit.StreamMaxLen))
	}
	if cfg.Audit.NATSURL != "" {
		nc, publisher, err := natsTransport.Connect(cfg.Audit.NATSURL, cfg.Audit.NATSSubject)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer nc.Close()
		sinks = append(sinks, publisher)
	}
	router := route.New(templates, sinks, route.Config{
		ReviewConfidence: cfg.Routing.ReviewConfidence,
		MinAlternatives:  cfg.Routing.MinAlternatives,
		UrgentTags:       cfg.Routing.UrgentTags,
	}, logger)

	overlay, err := alert.NewOverlay(cfg.Alerts.Mandatory)
	if err != nil {
		logger.Fatal("Invalid alerts config", zap.Error(err))
	}

	answers := answeruc.New(classifier, router, retriever, overlay, cfg.Retrieval.DefaultTopK, logger)
	healthSvc := healthuc.New(store, emb.Provider, llmChecker)

	// Create chi server
	server := chiTransport.NewServer(retriever, classifier, router, answers, overlay, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
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
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorCodeInternalError,
						Message: "internal error",
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
