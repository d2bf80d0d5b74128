// Package answer assembles a customer-facing reply from classification,
// template routing, knowledge retrieval and the disclosure overlay.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/kbroute/internal/domain"
	"github.com/kailas-cloud/kbroute/internal/domain/query"
	"github.com/kailas-cloud/kbroute/internal/domain/routing"
	"github.com/kailas-cloud/kbroute/internal/logger"
	"github.com/kailas-cloud/kbroute/internal/usecase/alert"
	"github.com/kailas-cloud/kbroute/internal/usecase/retrieval"
)

// Apology is the reply when neither a template nor knowledge applies.
const Apology = "申し訳ございませんが、お問い合わせの内容に該当するご案内が見つかりませんでした。お電話でのお問い合わせをお勧めいたします。"

// Source tells where the reply body came from.
type Source string

// Source constants.
const (
	SourceTemplate  Source = "template"
	SourceKnowledge Source = "knowledge"
	SourceGeneric   Source = "generic_template"
	SourceApology   Source = "apology"
)

// Classifier classifies a query.
type Classifier interface {
	Classify(ctx context.Context, q string) query.Analysis
}

// Router selects a template.
type Router interface {
	Route(ctx context.Context, q string, a query.Analysis) (routing.Result, error)
}

// Retriever returns fused knowledge hits.
type Retriever interface {
	Retrieve(ctx context.Context, q string, topK int) retrieval.Result
}

// Overlay appends mandatory disclosures.
type Overlay interface {
	Apply(q, response string) (string, []alert.Topic)
}

// Answer is the assembled reply with the evidence behind it.
type Answer struct {
	Query     string
	Response  string
	Source    Source
	Analysis  query.Analysis
	Routing   routing.Result
	Retrieval retrieval.Result
	Topics    []alert.Topic
}

// Service runs the answer pipeline.
type Service struct {
	classifier Classifier
	router     Router
	retriever  Retriever
	overlay    Overlay
	topK       int
	logger     *zap.Logger
}

// New creates an answer service.
func New(c Classifier, r Router, ret Retriever, o Overlay, topK int, logger *zap.Logger) *Service {
	return &Service{classifier: c, router: r, retriever: ret, overlay: o, topK: topK, logger: logger}
}

// Answer classifies and routes q while knowledge is retrieved concurrently,
// then picks the reply body and applies the disclosure overlay.
func (s *Service) Answer(ctx context.Context, q string) (Answer, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return Answer{}, domain.ErrInvalidQuery
	}

	out := Answer{Query: q}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out.Retrieval = s.retriever.Retrieve(gctx, q, s.topK)
		return nil
	})
	g.Go(func() error {
		out.Analysis = s.classifier.Classify(gctx, q)
		res, err := s.router.Route(gctx, q, out.Analysis)
		if err != nil {
			return fmt.Errorf("route: %w", err)
		}
		out.Routing = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return Answer{}, err
	}

	body, src := compose(&out.Routing, &out.Retrieval)
	out.Source = src
	out.Response, out.Topics = s.overlay.Apply(q, body)

	logger.FromContextOr(ctx, s.logger).Debug("Answer composed",
		zap.String("source", string(src)),
		zap.String("tier", string(out.Routing.Tier)),
		zap.Int("hits", len(out.Retrieval.Hits)),
		zap.Int("topics", len(out.Topics)),
	)
	return out, nil
}

// compose prefers a template of the query's category, then the best knowledge
// hit, then a generic template, then the apology.
func compose(r *routing.Result, k *retrieval.Result) (string, Source) {
	if r.Template != nil && !r.FallbackUsed {
		return r.Template.Content, SourceTemplate
	}
	if len(k.Hits) > 0 {
		if body := k.Hits[0].Content(); body != "" {
			return body, SourceKnowledge
		}
	}
	if r.Template != nil {
		return r.Template.Content, SourceGeneric
	}
	return Apology, SourceApology
}
