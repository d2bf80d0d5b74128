// Package query holds the structured classification of a customer query.
package query

import "github.com/kailas-cloud/kbroute/internal/domain"

// Category is the business topic of a query.
type Category string

// Category constants.
const (
	CategoryReservation Category = "reservation"
	CategoryPayment     Category = "payment"
	CategoryShuttle     Category = "shuttle"
	CategoryFacility    Category = "facility"
	CategoryTrouble     Category = "trouble"
	CategoryAccess      Category = "access"
	CategoryVehicle     Category = "vehicle"
	CategoryInformation Category = "information"
	CategoryDisclaimer  Category = "disclaimer"
	CategoryGeneral     Category = "general"
	CategoryOther       Category = "other"
)

// Categories lists every category in declaration order.
var Categories = []Category{
	CategoryReservation, CategoryPayment, CategoryShuttle, CategoryFacility,
	CategoryTrouble, CategoryAccess, CategoryVehicle, CategoryInformation,
	CategoryDisclaimer, CategoryGeneral, CategoryOther,
}

// IsValid checks if the category is one of the supported values.
func (c Category) IsValid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Intent is what the customer wants to do.
type Intent string

// Intent constants.
const (
	IntentCreate  Intent = "create"
	IntentCheck   Intent = "check"
	IntentModify  Intent = "modify"
	IntentCancel  Intent = "cancel"
	IntentReport  Intent = "report"
	IntentInquiry Intent = "inquiry"
)

// IsValid checks if the intent is one of the supported values.
func (i Intent) IsValid() bool {
	switch i {
	case IntentCreate, IntentCheck, IntentModify, IntentCancel, IntentReport, IntentInquiry:
		return true
	}
	return false
}

// Tone is the expected response register.
type Tone string

// Tone constants.
const (
	ToneUrgent Tone = "urgent"
	ToneNormal Tone = "normal"
	ToneFuture Tone = "future"
)

// IsValid checks if the tone is one of the supported values.
func (t Tone) IsValid() bool {
	return t == ToneUrgent || t == ToneNormal || t == ToneFuture
}

// Urgency is how fast the query needs a human.
type Urgency string

// Urgency constants.
const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// IsValid checks if the urgency is one of the supported values.
func (u Urgency) IsValid() bool {
	return u == UrgencyLow || u == UrgencyMedium || u == UrgencyHigh
}

// Source tells which stage produced the final analysis.
type Source string

// Source constants.
const (
	SourceOverride Source = "override"
	SourceRules    Source = "rules"
	SourceConflict Source = "conflict_rule"
	SourceLLM      Source = "llm"
	SourceDefault  Source = "default"
)

// Contribution is one line of an auditable category score.
type Contribution struct {
	Rule   string  `json:"rule"`
	Detail string  `json:"detail"`
	Delta  float64 `json:"delta"`
}

// Breakdown is the score of one category with every contribution that built it.
type Breakdown struct {
	Category      Category       `json:"category"`
	Contributions []Contribution `json:"contributions"`
	Total         float64        `json:"total"`
}

// Metadata carries the evidence behind an analysis.
type Metadata struct {
	OriginalQuery string      `json:"original_query"`
	Keywords      []string    `json:"keywords,omitempty"`
	Source        Source      `json:"source"`
	MatchedRule   string      `json:"matched_rule,omitempty"`
	IntentRule    string      `json:"intent_rule,omitempty"`
	SeverityRule  string      `json:"severity_rule,omitempty"`
	Scores        []Breakdown `json:"scores,omitempty"`
	Enrichment    string      `json:"enrichment,omitempty"`
	Reasoning     string      `json:"reasoning,omitempty"`
}

// Analysis is the structured classification of a query. Consumed read-only downstream.
type Analysis struct {
	Category   Category `json:"category"`
	Intent     Intent   `json:"intent"`
	Tone       Tone     `json:"tone"`
	Urgency    Urgency  `json:"urgency"`
	Confidence float64  `json:"confidence"`
	Metadata   Metadata `json:"metadata"`
}

// Validate checks that every dimension is drawn from its enumeration.
func (a *Analysis) Validate() error {
	if !a.Category.IsValid() {
		return domain.NewFieldError("category", string(a.Category))
	}
	if !a.Intent.IsValid() {
		return domain.NewFieldError("intent", string(a.Intent))
	}
	if !a.Tone.IsValid() {
		return domain.NewFieldError("tone", string(a.Tone))
	}
	if !a.Urgency.IsValid() {
		return domain.NewFieldError("urgency", string(a.Urgency))
	}
	return nil
}

// ClampConfidence limits a confidence value to [0,1].
func ClampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
