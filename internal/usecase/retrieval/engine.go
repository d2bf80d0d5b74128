// Package retrieval runs the lexical and vector adapters and fuses their rankings.
package retrieval

import (
	"context"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/kbroute/internal/domain/query"
	"github.com/kailas-cloud/kbroute/internal/domain/search/hit"
	"github.com/kailas-cloud/kbroute/internal/logger"
	"github.com/kailas-cloud/kbroute/internal/metrics"
)

// maxCandidates caps how many hits each adapter is asked for.
const maxCandidates = 8

// Config holds the engine tunables.
type Config struct {
	DefaultTopK int
	CacheTTL    time.Duration
	CacheSize   int
	// EarlyStopHits is the lexical hit count at which the vector adapter is skipped.
	// When set, the vector adapter only starts after lexical comes back below it, so a
	// lexical-rich query costs no embedding at the price of serial latency otherwise.
	// 0 runs both adapters concurrently and never skips.
	EarlyStopHits int
	// Timeout bounds one retrieval as a whole. An adapter still running at the deadline counts as empty.
	Timeout time.Duration
}

// Engine is the fusion engine. Safe for concurrent use.
type Engine struct {
	lexical Adapter
	vector  Adapter
	pool    *ants.Pool
	cache   *expirable.LRU[string, Result]
	flight  singleflight.Group
	cfg     Config
	logger  *zap.Logger
}

// New creates a fusion engine. The pool runs adapter searches and is owned by the caller.
func New(lexical, vector Adapter, pool *ants.Pool, cfg Config, logger *zap.Logger) *Engine {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 4
	}
	return &Engine{
		lexical: lexical,
		vector:  vector,
		pool:    pool,
		cache:   expirable.NewLRU[string, Result](cfg.CacheSize, nil, cfg.CacheTTL),
		cfg:     cfg,
		logger:  logger,
	}
}

// CandidateLimit is the per-adapter fan-out for a requested topK.
func CandidateLimit(topK int) int {
	return min(2*topK, maxCandidates)
}

func cacheKey(normalized string, topK int) string {
	return normalized + "|" + strconv.Itoa(topK)
}

// Retrieve returns up to topK knowledge hits for q. topK <= 0 uses the default.
// An empty query or two empty adapters yield an empty result, not an error.
func (e *Engine) Retrieve(ctx context.Context, q string, topK int) Result {
	normalized := query.Normalize(q)
	if normalized == "" {
		return Result{}
	}
	if topK <= 0 {
		topK = e.cfg.DefaultTopK
	}

	ctx, span := otel.Tracer("kbroute/retrieval").Start(ctx, "retrieval.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("retrieval.top_k", topK))

	key := cacheKey(normalized, topK)
	if cached, ok := e.cache.Get(key); ok {
		metrics.RetrievalCacheTotal.WithLabelValues("hit").Inc()
		span.SetAttributes(attribute.Bool("retrieval.cached", true))
		cached.Cached = true
		return cached
	}
	metrics.RetrievalCacheTotal.WithLabelValues("miss").Inc()

	// Concurrent misses for the same key share one fan-out. The shared run is
	// detached from any single caller and bounded by Timeout; each caller still
	// returns as soon as its own context is done.
	ch := e.flight.DoChan(key, func() (any, error) {
		res, complete := e.retrieve(context.WithoutCancel(ctx), normalized, topK)
		if complete {
			e.cache.Add(key, res)
		}
		return res, nil
	})

	var res Result
	select {
	case r := <-ch:
		res = r.Val.(Result)
	case <-ctx.Done():
		span.SetAttributes(attribute.Bool("retrieval.cancelled", true))
		return Result{}
	}
	span.SetAttributes(
		attribute.Int("retrieval.hits", len(res.Hits)),
		attribute.Bool("retrieval.early_exit", res.EarlyExit),
	)
	return res
}

// Invalidate drops every cached result, e.g. after reseeding the corpus.
func (e *Engine) Invalidate() {
	e.cache.Purge()
}

// retrieve runs the adapters. complete is false when an adapter hit the
// deadline; such a result is served but not cached.
func (e *Engine) retrieve(ctx context.Context, normalized string, topK int) (Result, bool) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	limit := CandidateLimit(topK)
	log := logger.FromContextOr(ctx, e.logger)
	gated := e.cfg.EarlyStopHits > 0

	lexCh := e.launch(ctx, e.lexical, normalized, limit, log)
	var vecCh <-chan []hit.Hit
	if !gated {
		vecCh = e.launch(ctx, e.vector, normalized, limit, log)
	}

	lexical, lexOK := await(ctx, lexCh)
	if !lexOK {
		log.Warn("Lexical adapter timed out", zap.Duration("timeout", e.cfg.Timeout))
	}

	if gated {
		if len(lexical) >= e.cfg.EarlyStopHits {
			metrics.RetrievalEarlyExitsTotal.Inc()
			return Result{Hits: truncate(lexical, topK), EarlyExit: true}, lexOK
		}
		if !lexOK {
			return Result{Hits: fuseRRF(lexical, nil, topK)}, false
		}
		vecCh = e.launch(ctx, e.vector, normalized, limit, log)
	}

	vector, vecOK := await(ctx, vecCh)
	if !vecOK {
		log.Warn("Vector adapter timed out", zap.Duration("timeout", e.cfg.Timeout))
	}

	return Result{Hits: fuseRRF(lexical, vector, topK)}, lexOK && vecOK
}

// launch runs one adapter on the pool. The channel is buffered so an abandoned
// task never blocks its worker.
func (e *Engine) launch(ctx context.Context, a Adapter, q string, limit int, log *zap.Logger) <-chan []hit.Hit {
	ch := make(chan []hit.Hit, 1)
	task := func() { ch <- a.Search(ctx, q, limit) }
	if e.pool == nil {
		go task()
		return ch
	}
	if err := e.pool.Submit(task); err != nil {
		log.Warn("Retrieval pool rejected adapter task", zap.Error(err))
		ch <- nil
	}
	return ch
}

func await(ctx context.Context, ch <-chan []hit.Hit) ([]hit.Hit, bool) {
	select {
	case hits := <-ch:
		return hits, true
	case <-ctx.Done():
		return nil, false
	}
}
