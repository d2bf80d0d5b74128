// Package lexical implements the full-text search adapter with a substring fallback.
package lexical

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kbroute/internal/domain/knowledge"
	"github.com/kailas-cloud/kbroute/internal/domain/query"
	"github.com/kailas-cloud/kbroute/internal/domain/search/hit"
	"github.com/kailas-cloud/kbroute/internal/domain/search/origin"
	"github.com/kailas-cloud/kbroute/internal/logger"
	"github.com/kailas-cloud/kbroute/internal/metrics"
)

var errTextSearchUnsupported = errors.New("full-text search not supported by the store")

// Corpus is the knowledge store seen by the lexical adapter.
type Corpus interface {
	SupportsTextSearch(ctx context.Context) bool
	SearchText(ctx context.Context, terms []string, limit int) ([]hit.Hit, error)
	ScanAll(ctx context.Context, limit int) ([]knowledge.Entry, error)
}

// Adapter runs lexical search. It never returns an error.
type Adapter struct {
	corpus    Corpus
	scanLimit int
	logger    *zap.Logger
}

// New creates a lexical adapter. scanLimit bounds the substring fallback corpus.
func New(corpus Corpus, scanLimit int, logger *zap.Logger) *Adapter {
	return &Adapter{corpus: corpus, scanLimit: scanLimit, logger: logger}
}

// Name identifies the adapter in metrics and logs.
func (a *Adapter) Name() origin.Origin { return origin.Lexical }

// Search returns up to limit hits ranked by the index, or by the substring
// fallback when the index fails.
func (a *Adapter) Search(ctx context.Context, q string, limit int) []hit.Hit {
	keywords := Keywords(q)
	if len(keywords) == 0 || limit <= 0 {
		return nil
	}

	ctx, span := otel.Tracer("kbroute/lexical").Start(ctx, "lexical.Search")
	defer span.End()
	start := time.Now()

	var (
		errs  *multierror.Error
		hits  []hit.Hit
		state = StateIndex
	)
	for !state.Terminal() {
		var err error
		switch state {
		case StateIndex:
			hits, err = a.searchIndex(ctx, keywords, limit)
		case StateSubstring:
			hits, err = a.searchSubstring(ctx, keywords, limit)
		}
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", state, err))
			hits = nil
			state = Next(state, OutcomeFailed)
			continue
		}
		if state == StateSubstring {
			span.SetAttributes(attribute.Bool("lexical.fallback", true))
		}
		state = Next(state, OutcomeOK)
	}

	final := "index"
	switch {
	case state == StateEmpty:
		final = StateEmpty.String()
	case errs != nil:
		final = StateSubstring.String()
	}
	metrics.AdapterOutcomesTotal.WithLabelValues(string(origin.Lexical), final).Inc()
	metrics.AdapterDuration.WithLabelValues(string(origin.Lexical)).Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("lexical.state", final), attribute.Int("lexical.hits", len(hits)))

	if err := errs.ErrorOrNil(); err != nil && !onlyUnsupported(errs) {
		logger.FromContextOr(ctx, a.logger).Warn("Lexical search degraded",
			zap.String("state", final),
			zap.Strings("keywords", keywords),
			zap.Error(err),
		)
	}
	return hits
}

func (a *Adapter) searchIndex(ctx context.Context, keywords []string, limit int) ([]hit.Hit, error) {
	if !a.corpus.SupportsTextSearch(ctx) {
		return nil, errTextSearchUnsupported
	}
	hits, err := a.corpus.SearchText(ctx, keywords, limit)
	if err != nil {
		return nil, fmt.Errorf("search text: %w", err)
	}
	return hits, nil
}

// searchSubstring scans the corpus for entries containing any keyword in
// their title or content. Entries are visited newest id first and scored
// max(0, 1 - rank*0.1) so the list stays orderable.
func (a *Adapter) searchSubstring(ctx context.Context, keywords []string, limit int) ([]hit.Hit, error) {
	entries, err := a.corpus.ScanAll(ctx, a.scanLimit)
	if err != nil {
		return nil, fmt.Errorf("scan corpus: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool { return idAfter(entries[i].ID, entries[j].ID) })

	hits := make([]hit.Hit, 0, limit)
	for i := range entries {
		e := &entries[i]
		if !containsAny(query.Normalize(e.Title), keywords) && !containsAny(query.Normalize(e.Content), keywords) {
			continue
		}
		rank := len(hits)
		score := 1.0 - float64(rank)*0.1
		hits = append(hits, hit.New(e.ID, score, e.Title, e.Content, e.Category, origin.Lexical, rank+1))
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// idAfter orders ids descending, numerically when both are integers.
func idAfter(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return na > nb
	}
	return a > b
}

func onlyUnsupported(errs *multierror.Error) bool {
	return errs.Len() == 1 && errors.Is(errs.Errors[0], errTextSearchUnsupported)
}
