package domain

import "context"

// DefaultEmbeddingDimensions matches text-embedding-3-small.
const DefaultEmbeddingDimensions = 1536

// Embedder is the shared text vectorization contract between layers.
// dims is the requested output dimensionality; providers that cannot
// shorten vectors ignore it.
type Embedder interface {
	Embed(ctx context.Context, text string, dims int) (EmbeddingResult, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}
