// Package classify turns a raw query into a structured analysis with rule
// tables and an optional LLM enrichment step.
package classify

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/kbroute/internal/domain/query"
	"github.com/kailas-cloud/kbroute/internal/logger"
	"github.com/kailas-cloud/kbroute/internal/metrics"
)

// Completer is the LLM used for enrichment.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config holds enrichment settings.
type Config struct {
	WeakConfidence float64
	Timeout        time.Duration
	Retries        uint
	RetryDelay     time.Duration
	RatePerSec     float64
	Burst          int
}

// Engine classifies queries. It never returns an error.
type Engine struct {
	llm     Completer
	limiter *rate.Limiter
	cfg     Config
	logger  *zap.Logger
}

// New creates a classification engine. A nil llm disables enrichment.
func New(llm Completer, cfg Config, logger *zap.Logger) *Engine {
	e := &Engine{llm: llm, cfg: cfg, logger: logger}
	if llm != nil && cfg.RatePerSec > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), max(cfg.Burst, 1))
	}
	return e
}

// Classify returns the analysis of q. Enrichment failures degrade to the
// rule result with lowered confidence.
func (e *Engine) Classify(ctx context.Context, q string) query.Analysis {
	ctx, span := otel.Tracer("kbroute/classify").Start(ctx, "classify.Classify")
	defer span.End()

	a := Analyze(q)

	state := EnrichRuleOnly
	if e.llm != nil && a.Metadata.OriginalQuery != "" && weak(&a, e.cfg.WeakConfidence) {
		state = e.enrich(ctx, &a)
		a.Metadata.Enrichment = state.String()
		metrics.EnrichmentOutcomesTotal.WithLabelValues(state.String()).Inc()
	}

	metrics.ClassificationsTotal.WithLabelValues(string(a.Category), string(a.Metadata.Source)).Inc()
	span.SetAttributes(
		attribute.String("classify.category", string(a.Category)),
		attribute.String("classify.intent", string(a.Intent)),
		attribute.String("classify.source", string(a.Metadata.Source)),
		attribute.String("classify.enrichment", state.String()),
	)
	return a
}

func (e *Engine) enrich(ctx context.Context, a *query.Analysis) EnrichState {
	log := logger.FromContextOr(ctx, e.logger)
	state := NextEnrich(EnrichRuleOnly, EventWeak)

	if e.limiter != nil && !e.limiter.Allow() {
		log.Debug("Enrichment throttled", zap.String("category", string(a.Category)))
		return NextEnrich(state, EventThrottled)
	}

	text, err := e.complete(ctx, a)
	if err != nil {
		log.Warn("Enrichment call failed, using rule result", zap.Error(err))
		a.Confidence = min(a.Confidence, degradedConfidence)
		return NextEnrich(state, EventCallFailed)
	}

	obj, err := ExtractJSON(text)
	if err != nil {
		log.Warn("Enrichment answer malformed, using rule result",
			zap.Int("answer_len", len(text)),
			zap.Error(err),
		)
		a.Confidence = min(a.Confidence, degradedConfidence)
		return NextEnrich(state, EventMalformed)
	}

	merge(a, obj)
	return NextEnrich(state, EventParsed)
}

func (e *Engine) complete(ctx context.Context, a *query.Analysis) (string, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	var text string
	err := retry.Do(
		func() error {
			var err error
			text, err = e.llm.Complete(ctx, enrichSystemPrompt, enrichUserPrompt(a))
			return err
		},
		retry.Context(ctx),
		retry.Attempts(e.cfg.Retries+1),
		retry.Delay(e.cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
	)
	return text, err
}
