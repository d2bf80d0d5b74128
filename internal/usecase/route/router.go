// Package route selects the response template for a classified query.
package route

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kbroute/internal/domain/query"
	"github.com/kailas-cloud/kbroute/internal/domain/routing"
	"github.com/kailas-cloud/kbroute/internal/domain/template"
	"github.com/kailas-cloud/kbroute/internal/logger"
	"github.com/kailas-cloud/kbroute/internal/metrics"
)

// MaxAlternatives caps the alternative candidates of a result.
const MaxAlternatives = 3

const defaultAuditTimeout = 2 * time.Second

// TemplateSource provides approved templates.
type TemplateSource interface {
	Approved(ctx context.Context) ([]template.Template, error)
}

// AuditSink records routing decisions.
type AuditSink interface {
	Name() string
	Write(ctx context.Context, rec *routing.AuditRecord) error
}

// Config holds review policy settings.
type Config struct {
	ReviewConfidence float64
	MinAlternatives  int
	UrgentTags       []string
	AuditTimeout     time.Duration
}

// Router walks the exact, partial and generic tiers over approved templates.
type Router struct {
	templates TemplateSource
	sinks     []AuditSink
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a router. Every sink receives every decision.
func New(templates TemplateSource, sinks []AuditSink, cfg Config, logger *zap.Logger) *Router {
	if cfg.AuditTimeout <= 0 {
		cfg.AuditTimeout = defaultAuditTimeout
	}
	return &Router{templates: templates, sinks: sinks, cfg: cfg, logger: logger, now: time.Now}
}

// Route selects a template for the analysis. The only error is an analysis
// outside the enumerations; a missing template is a regular result.
func (r *Router) Route(ctx context.Context, q string, a query.Analysis) (routing.Result, error) {
	if err := a.Validate(); err != nil {
		return routing.Result{}, fmt.Errorf("route: %w", err)
	}
	a.Confidence = query.ClampConfidence(a.Confidence)

	ctx, span := otel.Tracer("kbroute/route").Start(ctx, "route.Route")
	defer span.End()
	start := r.now()
	log := logger.FromContextOr(ctx, r.logger)

	var res routing.Result
	approved, err := r.templates.Approved(ctx)
	if err != nil {
		log.Warn("Template store unavailable, routing without templates", zap.Error(err))
		res = routing.Result{
			Tier:             routing.TierNone,
			FallbackUsed:     true,
			Alternatives:     []template.Template{},
			NeedsHumanReview: true,
			ReviewReason:     routing.ReasonStoreUnavailable,
			SuggestedActions: suggestedActions(a.Category),
		}
		metrics.RoutingReviewsTotal.WithLabelValues(routing.ReasonStoreUnavailable).Inc()
	} else {
		res = r.decide(approved, &a)
	}
	res.ProcessingTime = r.now().Sub(start)

	metrics.RoutingDecisionsTotal.WithLabelValues(string(res.Tier)).Inc()
	span.SetAttributes(
		attribute.String("route.tier", string(res.Tier)),
		attribute.Bool("route.needs_review", res.NeedsHumanReview),
		attribute.Float64("route.confidence", res.Confidence),
	)

	r.audit(ctx, q, &a, &res)
	return res, nil
}

func (r *Router) decide(approved []template.Template, a *query.Analysis) routing.Result {
	selected, tier := selectTemplate(approved, a)
	alts := alternatives(approved, a, selected, MaxAlternatives)

	res := routing.Result{
		Confidence:   confidence(selected, a),
		FallbackUsed: tier.IsFallback(),
		Alternatives: alts,
		Tier:         tier,
	}
	if selected != nil {
		tpl := *selected
		res.Template = &tpl
	}

	needs, reasons := review(&reviewInput{
		analysis:     a,
		template:     selected,
		tier:         tier,
		alternatives: len(alts),
		cfg:          &r.cfg,
	})
	for _, reason := range reasons {
		metrics.RoutingReviewsTotal.WithLabelValues(reason).Inc()
	}
	res.NeedsHumanReview = needs
	res.ReviewReason = strings.Join(reasons, ",")
	if needs {
		res.SuggestedActions = suggestedActions(a.Category)
	}
	return res
}

// audit writes the decision to every sink. Failures are logged and counted.
func (r *Router) audit(ctx context.Context, q string, a *query.Analysis, res *routing.Result) {
	if len(r.sinks) == 0 {
		return
	}
	rec := &routing.AuditRecord{
		Query:          q,
		Category:       string(a.Category),
		Intent:         string(a.Intent),
		Tone:           string(a.Tone),
		Confidence:     res.Confidence,
		IsFallback:     res.FallbackUsed,
		Tier:           res.Tier,
		NeedsReview:    res.NeedsHumanReview,
		ProcessingTime: res.ProcessingTime,
		At:             r.now().UTC(),
	}
	if res.Template != nil {
		id := res.Template.ID
		rec.TemplateID = &id
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.AuditTimeout)
	defer cancel()
	for _, s := range r.sinks {
		if err := s.Write(actx, rec); err != nil {
			metrics.AuditFailuresTotal.WithLabelValues(s.Name()).Inc()
			logger.FromContextOr(ctx, r.logger).Warn("Audit write failed",
				zap.String("sink", s.Name()),
				zap.Error(err),
			)
		}
	}
}

func sortTemplates(ts []*template.Template) {
	sort.SliceStable(ts, func(i, j int) bool { return template.Less(ts[i], ts[j]) })
}
