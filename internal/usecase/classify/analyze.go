package classify

import (
	"github.com/kailas-cloud/kbroute/internal/domain/query"
)

// Confidence levels of the rule stages.
const (
	OverrideConfidence = 0.9
	ConflictConfidence = 0.8
	DefaultConfidence  = 0.3
	scoredBase         = 0.5
	scoredStep         = 0.05
	scoredCap          = 0.95
)

// Analyze classifies a query with the rule tables only. It is pure and never fails.
func Analyze(raw string) query.Analysis {
	normalized := query.Normalize(raw)
	a := query.Analysis{
		Category:   query.CategoryGeneral,
		Intent:     query.IntentInquiry,
		Tone:       query.ToneNormal,
		Urgency:    query.UrgencyLow,
		Confidence: DefaultConfidence,
		Metadata: query.Metadata{
			OriginalQuery: raw,
			Source:        query.SourceDefault,
		},
	}
	if normalized == "" {
		a.Confidence = 0
		return a
	}

	resolveCategory(&a, normalized)
	resolveIntent(&a, normalized)
	resolveSeverity(&a, normalized)
	return a
}

func resolveCategory(a *query.Analysis, normalized string) {
	for i := range OverrideRules {
		r := &OverrideRules[i]
		if r.Pattern.MatchString(normalized) {
			a.Category = r.Category
			a.Confidence = OverrideConfidence
			a.Metadata.Source = query.SourceOverride
			a.Metadata.MatchedRule = r.Name
			return
		}
	}

	breakdown, best := scoreAll(CategoryRules, newScoreInput(normalized))
	a.Metadata.Scores = breakdown
	if best < 0 {
		return
	}
	winner := breakdown[best]
	a.Category = winner.Category
	a.Confidence = min(scoredCap, scoredBase+scoredStep*winner.Total)
	a.Metadata.Source = query.SourceRules
	a.Metadata.Keywords = matchedTerms(winner)

	for i := range ConflictRules {
		r := &ConflictRules[i]
		if r.Winner == winner.Category && r.Pattern.MatchString(normalized) {
			a.Category = r.Category
			a.Confidence = ConflictConfidence
			a.Metadata.Source = query.SourceConflict
			a.Metadata.MatchedRule = r.Name
			return
		}
	}
}

func resolveIntent(a *query.Analysis, normalized string) {
	for i := range IntentRules {
		r := &IntentRules[i]
		if r.applies(a.Category) && r.Pattern.MatchString(normalized) {
			a.Intent = r.Intent
			a.Metadata.IntentRule = r.Name
			return
		}
	}
}

func resolveSeverity(a *query.Analysis, normalized string) {
	for i := range SeverityRules {
		r := &SeverityRules[i]
		if !r.applies(a.Category, a.Intent) {
			continue
		}
		if r.Pattern != nil && !r.Pattern.MatchString(normalized) {
			continue
		}
		a.Tone = r.Tone
		a.Urgency = r.Urgency
		a.Metadata.SeverityRule = r.Name
		return
	}
}

// enforceSeverity demotes urgent tone and high urgency outside incident reports.
func enforceSeverity(a *query.Analysis) {
	if canEscalate(a.Category, a.Intent) {
		return
	}
	if a.Tone == query.ToneUrgent {
		a.Tone = query.ToneNormal
	}
	if a.Urgency == query.UrgencyHigh {
		a.Urgency = query.UrgencyMedium
	}
}

// weak reports whether a rule result should be offered to enrichment.
func weak(a *query.Analysis, threshold float64) bool {
	return a.Confidence < threshold || a.Metadata.IntentRule == ""
}
