// Package bootstrap builds the infrastructure shared by the API server and
// the seed tool: the database store and the embedder chain.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kbroute/internal/config"
	"github.com/kailas-cloud/kbroute/internal/db"
	dbRedis "github.com/kailas-cloud/kbroute/internal/db/redis"
	"github.com/kailas-cloud/kbroute/internal/domain"
	"github.com/kailas-cloud/kbroute/internal/metrics"
	"github.com/kailas-cloud/kbroute/internal/repository/embcache"
	openaiTransport "github.com/kailas-cloud/kbroute/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/kbroute/internal/usecase/embedding"
)

const embeddingProvider = "openai"

// OpenStore connects to the configured server and waits until it answers.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dbRedis.Store, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Driver:   cfg.Database.Driver,
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}

	timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database",
		zap.String("driver", store.Driver()),
		zap.Strings("addrs", cfg.Database.Addrs),
	)
	return store, nil
}

// Embedder is the assembled chain together with its provider, which is
// exposed separately for health checks.
type Embedder struct {
	Client   *embeddinguc.Client
	Provider *openaiTransport.Embedder
}

// BuildEmbedder assembles the decorator chain:
// OpenAI -> shared cache -> instrumented -> in-process client.
// A nil store skips the shared cache.
func BuildEmbedder(cfg *config.Config, store db.KVStore, logger *zap.Logger) (*Embedder, error) {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   embeddingProvider,
		Logger:     logger,
	})

	var chain domain.Embedder = base
	if store != nil {
		ttl := time.Duration(cfg.Embedding.SharedCacheTTLSec) * time.Second
		chain = embcache.New(base, store, cfg.Storage.KeyPrefix, ttl, metrics.EmbeddingCacheTotal, logger)
	}
	chain = embeddinguc.NewInstrumentedEmbedder(chain, embeddingProvider, cfg.Embedding.Model, logger)

	client, err := embeddinguc.NewClient(
		chain, cfg.Embedding.CacheSize, cfg.Embedding.Dimensions, metrics.EmbeddingCacheTotal, logger,
	)
	if err != nil {
		return nil, err
	}
	return &Embedder{Client: client, Provider: base}, nil
}
