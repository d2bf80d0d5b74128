package retrieval

import (
	"context"

	"github.com/kailas-cloud/kbroute/internal/domain/search/hit"
)

// Adapter is a ranked search over the knowledge corpus. Implementations
// swallow their own failures and return an empty list instead.
type Adapter interface {
	Search(ctx context.Context, query string, limit int) []hit.Hit
}

// Result is a fused, immutable ranking. Callers must not modify Hits.
type Result struct {
	Hits []hit.Hit
	// Cached is set when the hits came from the result cache.
	Cached bool
	// EarlyExit is set when the vector adapter was skipped.
	EarlyExit bool
}
