// Package vector implements the approximate nearest neighbour search adapter.
package vector

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kbroute/internal/domain/query"
	"github.com/kailas-cloud/kbroute/internal/domain/search/hit"
	"github.com/kailas-cloud/kbroute/internal/domain/search/origin"
	"github.com/kailas-cloud/kbroute/internal/logger"
	"github.com/kailas-cloud/kbroute/internal/metrics"
)

// Embedder turns the query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string, dims int) ([]float32, error)
}

// Searcher runs k-NN over stored knowledge vectors. ef is the HNSW search breadth.
type Searcher interface {
	SearchVector(ctx context.Context, vector []float32, limit, ef int) ([]hit.Hit, error)
}

// Config is fixed for the lifetime of an adapter. Two adapters with different
// breadths can serve concurrently without affecting each other.
type Config struct {
	// Breadth is the HNSW ef used for every query of this adapter; 0 keeps the backend default.
	Breadth    int
	Dimensions int
}

// Adapter runs vector search. It never returns an error.
type Adapter struct {
	embedder Embedder
	searcher Searcher
	cfg      Config
	logger   *zap.Logger
}

// New creates a vector adapter.
func New(embedder Embedder, searcher Searcher, cfg Config, logger *zap.Logger) *Adapter {
	return &Adapter{embedder: embedder, searcher: searcher, cfg: cfg, logger: logger}
}

// Breadth returns the search breadth the adapter was built with.
func (a *Adapter) Breadth() int { return a.cfg.Breadth }

// Name identifies the adapter in metrics and logs.
func (a *Adapter) Name() origin.Origin { return origin.Vector }

// Search embeds q and returns up to limit nearest entries, similarity in [0,1].
// Embedding or backend failures yield an empty list.
func (a *Adapter) Search(ctx context.Context, q string, limit int) []hit.Hit {
	normalized := query.Normalize(q)
	if normalized == "" || limit <= 0 {
		return nil
	}

	ctx, span := otel.Tracer("kbroute/vector").Start(ctx, "vector.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("vector.ef", a.cfg.Breadth))
	start := time.Now()
	log := logger.FromContextOr(ctx, a.logger)

	state := "ok"
	defer func() {
		metrics.AdapterOutcomesTotal.WithLabelValues(string(origin.Vector), state).Inc()
		metrics.AdapterDuration.WithLabelValues(string(origin.Vector)).Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.String("vector.state", state))
	}()

	vec, err := a.embedder.Embed(ctx, normalized, a.cfg.Dimensions)
	if err != nil {
		state = "embedding_failed"
		log.Warn("Vector search skipped: embedding failed", zap.Error(err))
		return nil
	}

	hits, err := a.searcher.SearchVector(ctx, vec, limit, a.cfg.Breadth)
	if err != nil {
		state = "search_failed"
		log.Warn("Vector search failed", zap.Int("ef", a.cfg.Breadth), zap.Error(err))
		return nil
	}

	for i := range hits {
		if hits[i].Score() > 1 {
			hits[i] = hits[i].WithScore(1)
		}
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
