package domain

import (
	"context"
	"sync/atomic"
)

type embeddingUsageKey struct{}

// EmbeddingUsage collects provider token usage for a single HTTP request.
// The handler puts it into the context, the embedder chain records into it
// and the handler reads it for response headers. Adapters may still be
// running when the handler reads, so counters are atomic.
type EmbeddingUsage struct {
	tokens atomic.Int64
	used   atomic.Bool
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records consumed tokens. Safe on a nil receiver.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u != nil {
		u.tokens.Add(int64(n))
		u.used.Store(true)
	}
}

// TotalTokens returns the tokens recorded so far.
func (u *EmbeddingUsage) TotalTokens() int {
	if u == nil {
		return 0
	}
	return int(u.tokens.Load())
}

// Used reports whether the embedder chain ran, even on a shared cache hit with 0 tokens.
func (u *EmbeddingUsage) Used() bool {
	return u != nil && u.used.Load()
}
