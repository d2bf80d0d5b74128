// Package routing holds the outcome of template routing.
package routing

import (
	"time"

	"github.com/kailas-cloud/kbroute/internal/domain/template"
)

// Tier names the lookup stage that produced a selection.
type Tier string

// Tier constants, in lookup order.
const (
	TierExact           Tier = "exact"
	TierPartialIntent   Tier = "partial_intent"
	TierPartialCategory Tier = "partial_category"
	TierGeneric         Tier = "generic"
	TierNone            Tier = "none"
)

// IsFallback reports whether the tier no longer reflects the query's category.
func (t Tier) IsFallback() bool {
	return t == TierGeneric || t == TierNone
}

// Review reasons.
const (
	ReasonLowConfidence       = "low_confidence"
	ReasonInexactMatch        = "inexact_match"
	ReasonFewAlternatives     = "few_alternatives"
	ReasonUrgentTemplate      = "urgent_template"
	ReasonStoreUnavailable    = "template_store_unavailable"
	ReasonLowRiskAutoApproved = "low_risk_auto_approve"
)

// Result is the outcome of routing one query.
type Result struct {
	Template         *template.Template  `json:"template"`
	Confidence       float64             `json:"confidence"`
	FallbackUsed     bool                `json:"fallback_used"`
	Alternatives     []template.Template `json:"alternatives"`
	NeedsHumanReview bool                `json:"needs_human_review"`
	ReviewReason     string              `json:"review_reason,omitempty"`
	SuggestedActions []string            `json:"suggested_actions,omitempty"`
	Tier             Tier                `json:"tier"`
	ProcessingTime   time.Duration       `json:"processing_time_ns"`
}

// AuditRecord is the append-only trace of one routing decision.
type AuditRecord struct {
	Query          string        `json:"query"`
	Category       string        `json:"category"`
	Intent         string        `json:"intent"`
	Tone           string        `json:"tone"`
	TemplateID     *int64        `json:"template_id"`
	Confidence     float64       `json:"confidence"`
	IsFallback     bool          `json:"is_fallback"`
	Tier           Tier          `json:"tier"`
	NeedsReview    bool          `json:"needs_review"`
	ProcessingTime time.Duration `json:"processing_time_ns"`
	At             time.Time     `json:"at"`
}
