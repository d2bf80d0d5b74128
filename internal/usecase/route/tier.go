package route

import (
	"github.com/kailas-cloud/kbroute/internal/domain/query"
	"github.com/kailas-cloud/kbroute/internal/domain/routing"
	"github.com/kailas-cloud/kbroute/internal/domain/template"
)

// NextTier is the transition taken when a tier finds no template.
func NextTier(t routing.Tier) routing.Tier {
	switch t {
	case routing.TierExact:
		return routing.TierPartialIntent
	case routing.TierPartialIntent:
		return routing.TierPartialCategory
	case routing.TierPartialCategory:
		return routing.TierGeneric
	default:
		return routing.TierNone
	}
}

// Matches reports whether an approved template is eligible at tier t.
func Matches(t routing.Tier, tpl *template.Template, a *query.Analysis) bool {
	switch t {
	case routing.TierExact:
		return sameCategory(tpl, a) && tpl.Intent == string(a.Intent) && tpl.Tone == string(a.Tone)
	case routing.TierPartialIntent:
		return sameCategory(tpl, a) && tpl.Intent == string(a.Intent)
	case routing.TierPartialCategory:
		return sameCategory(tpl, a)
	case routing.TierGeneric:
		return true
	default:
		return false
	}
}

func sameCategory(tpl *template.Template, a *query.Analysis) bool {
	return tpl.Category == string(a.Category)
}

// selectTemplate walks the tiers and returns the best approved template of
// the first tier that has one, or nil with TierNone.
func selectTemplate(approved []template.Template, a *query.Analysis) (*template.Template, routing.Tier) {
	for tier := routing.TierExact; tier != routing.TierNone; tier = NextTier(tier) {
		var best *template.Template
		for i := range approved {
			tpl := &approved[i]
			if !tpl.IsApproved() || !Matches(tier, tpl, a) {
				continue
			}
			if best == nil || template.Less(tpl, best) {
				best = tpl
			}
		}
		if best != nil {
			return best, tier
		}
	}
	return nil, routing.TierNone
}

// alternatives lists up to limit approved templates of the query's category,
// excluding the selected one, in selection order.
func alternatives(approved []template.Template, a *query.Analysis, selected *template.Template, limit int) []template.Template {
	var cands []*template.Template
	for i := range approved {
		tpl := &approved[i]
		if !tpl.IsApproved() || !sameCategory(tpl, a) {
			continue
		}
		if selected != nil && tpl.ID == selected.ID {
			continue
		}
		cands = append(cands, tpl)
	}
	sortTemplates(cands)

	out := make([]template.Template, 0, min(limit, len(cands)))
	for _, tpl := range cands {
		if len(out) == limit {
			break
		}
		out = append(out, *tpl)
	}
	return out
}

// confidence starts from the classification confidence and adds a bonus per
// matching dimension and for an approved template.
func confidence(tpl *template.Template, a *query.Analysis) float64 {
	if tpl == nil {
		return 0
	}
	c := a.Confidence
	if sameCategory(tpl, a) {
		c += 0.3
	}
	if tpl.Intent == string(a.Intent) {
		c += 0.3
	}
	if tpl.Tone == string(a.Tone) {
		c += 0.2
	}
	if tpl.IsApproved() {
		c += 0.1
	}
	return query.ClampConfidence(c)
}
