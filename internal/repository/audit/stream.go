// Package audit appends routing audit records to a capped Redis stream.
package audit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/kbroute/internal/domain/routing"
)

type store interface {
	XAdd(ctx context.Context, stream string, maxLen int64, fields []string) (string, error)
}

// StreamSink writes one stream entry per routing decision.
type StreamSink struct {
	store  store
	stream string
	maxLen int64
}

// NewStreamSink creates a sink on stream, trimmed to about maxLen entries.
func NewStreamSink(s store, stream string, maxLen int64) *StreamSink {
	return &StreamSink{store: s, stream: stream, maxLen: maxLen}
}

// Name identifies the sink in metrics.
func (s *StreamSink) Name() string { return "stream" }

// Write appends rec. A null template id is stored as an empty string.
func (s *StreamSink) Write(ctx context.Context, rec *routing.AuditRecord) error {
	templateID := ""
	if rec.TemplateID != nil {
		templateID = strconv.FormatInt(*rec.TemplateID, 10)
	}
	fields := []string{
		"query", rec.Query,
		"category", rec.Category,
		"intent", rec.Intent,
		"tone", rec.Tone,
		"template_id", templateID,
		"confidence", strconv.FormatFloat(rec.Confidence, 'f', 4, 64),
		"is_fallback", strconv.FormatBool(rec.IsFallback),
		"tier", string(rec.Tier),
		"needs_review", strconv.FormatBool(rec.NeedsReview),
		"processing_ms", strconv.FormatInt(rec.ProcessingTime.Milliseconds(), 10),
		"at", rec.At.UTC().Format(time.RFC3339Nano),
	}
	if _, err := s.store.XAdd(ctx, s.stream, s.maxLen, fields); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}
