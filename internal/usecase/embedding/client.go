// Package embedding turns text into vectors behind a bounded in-process cache.
package embedding

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kbroute/internal/domain"
)

const layerMemory = "memory"

// Client is the embedding entry point used by retrieval and seeding.
// Identical texts (case and surrounding whitespace aside) at the same
// dimensionality are embedded once per process lifetime, LRU eviction aside.
type Client struct {
	provider    domain.Embedder
	cache       *lru.Cache[string, []float32]
	defaultDims int
	cacheTotal  *prometheus.CounterVec
	logger      *zap.Logger
}

// NewClient creates an embedding client. cacheSize bounds the in-process cache.
func NewClient(
	provider domain.Embedder,
	cacheSize, defaultDims int,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) (*Client, error) {
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Client{
		provider:    provider,
		cache:       cache,
		defaultDims: defaultDims,
		cacheTotal:  cacheTotal,
		logger:      logger,
	}, nil
}

// CacheKey is the normalized cache identity of a text at a dimensionality.
func CacheKey(text string, dims int) string {
	return strings.ToLower(strings.TrimSpace(text)) + "_dim:" + strconv.Itoa(dims)
}

// Embed returns the vector for text. dims <= 0 uses the default dimensionality.
// Empty input fails with domain.ErrInvalidQuery; provider failures are wrapped
// with domain.ErrEmbeddingProviderError. Failures are never cached.
func (c *Client) Embed(ctx context.Context, text string, dims int) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("empty text: %w", domain.ErrInvalidQuery)
	}
	if dims <= 0 {
		dims = c.defaultDims
	}

	key := CacheKey(trimmed, dims)
	if vec, ok := c.cache.Get(key); ok {
		c.incCache("hit")
		return vec, nil
	}
	c.incCache("miss")

	res, err := c.provider.Embed(ctx, trimmed, dims)
	if err != nil {
		c.logger.Warn("Embedding failed", zap.Int("dimensions", dims), zap.Error(err))
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(res.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding: %w", domain.ErrEmbeddingProviderError)
	}

	c.cache.Add(key, res.Embedding)
	return res.Embedding, nil
}

// Dimensions returns the default dimensionality.
func (c *Client) Dimensions() int { return c.defaultDims }

func (c *Client) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(layerMemory, result).Inc()
	}
}
