package route

import (
	"github.com/kailas-cloud/kbroute/internal/domain/query"
	"github.com/kailas-cloud/kbroute/internal/domain/routing"
	"github.com/kailas-cloud/kbroute/internal/domain/template"
)

// reviewInput is everything the review policy looks at.
type reviewInput struct {
	analysis     *query.Analysis
	template     *template.Template
	tier         routing.Tier
	alternatives int
	cfg          *Config
}

// ReviewRule escalates a routing decision to a human.
type ReviewRule struct {
	Name     string
	Escalate func(in *reviewInput) bool
}

// ReviewRules are all evaluated; every rule that fires is reported.
var ReviewRules = []ReviewRule{
	{
		Name: routing.ReasonLowConfidence,
		Escalate: func(in *reviewInput) bool {
			return in.analysis.Confidence < in.cfg.ReviewConfidence
		},
	},
	{
		Name: routing.ReasonInexactMatch,
		Escalate: func(in *reviewInput) bool {
			return in.tier != routing.TierExact
		},
	},
	{
		Name: routing.ReasonFewAlternatives,
		Escalate: func(in *reviewInput) bool {
			return in.alternatives < in.cfg.MinAlternatives
		},
	},
	{
		Name: routing.ReasonUrgentTemplate,
		Escalate: func(in *reviewInput) bool {
			return in.analysis.Urgency == query.UrgencyHigh &&
				in.template != nil && in.template.HasAnyTag(in.cfg.UrgentTags)
		},
	},
}

// lowRiskAutoApprove clears an escalation for routine confirmation questions.
// It is applied after every ReviewRule.
func lowRiskAutoApprove(in *reviewInput) bool {
	a := in.analysis
	return in.template != nil &&
		a.Tone == query.ToneNormal &&
		a.Urgency == query.UrgencyLow &&
		a.Intent == query.IntentCheck &&
		a.Category != query.CategoryTrouble
}

// review returns the escalation decision and the reasons behind it.
func review(in *reviewInput) (needsReview bool, reasons []string) {
	for i := range ReviewRules {
		if ReviewRules[i].Escalate(in) {
			reasons = append(reasons, ReviewRules[i].Name)
		}
	}
	if len(reasons) == 0 {
		return false, nil
	}
	if lowRiskAutoApprove(in) {
		return false, append(reasons, routing.ReasonLowRiskAutoApproved)
	}
	return true, reasons
}

// SuggestedActions are shown to the operator when a decision needs review.
var SuggestedActions = map[query.Category][]string{
	query.CategoryTrouble: {
		"緊急時の場合は安全を最優先に行動してください",
		"お電話でのお問い合わせをお勧めします",
	},
	query.CategoryReservation: {
		"予約システムでの直接操作をお勧めします",
		"お電話での予約変更も可能です",
	},
	query.CategoryPayment: {
		"精算機での直接操作をお勧めします",
		"お電話でのお問い合わせも可能です",
	},
}

var defaultSuggestedActions = []string{
	"お電話でのお問い合わせをお勧めします",
	"別の表現で質問していただくことも可能です",
}

func suggestedActions(c query.Category) []string {
	src := defaultSuggestedActions
	if acts, ok := SuggestedActions[c]; ok {
		src = acts
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}
