package classify

import (
	"sort"
	"strings"

	"github.com/kailas-cloud/kbroute/internal/domain/query"
)

// Scoring weights.
const (
	NegativePenalty   = -3.0
	PhraseBonus       = 3.0
	EarlyConfirmBonus = 5.0
	// EarlyConfirmMinHits is the number of positive keywords that triggers the early bonus.
	EarlyConfirmMinHits = 2
)

// Contribution rule names.
const (
	rulePositive     = "positive_keyword"
	ruleNegative     = "negative_keyword"
	rulePhrase       = "phrase"
	ruleEarlyConfirm = "early_confirmation"
)

// scoreInput is the query as the scorers see it.
type scoreInput struct {
	normalized string // NFKC, lowercased
	stripped   string // normalized without stopwords
}

// scorer appends its contributions for one category to the accumulator.
type scorer func(rule *CategoryRule, in scoreInput, acc []query.Contribution) []query.Contribution

// scorers is the fold applied to every category rule, in order.
var scorers = []scorer{
	positiveKeywords,
	negativePenalty,
	phraseBonus,
	earlyConfirmation,
}

// positiveKeywords matches longest terms first and consumes their spans, so a
// keyword nested inside a longer matched keyword does not count again.
// Contributions keep declaration order.
func positiveKeywords(rule *CategoryRule, in scoreInput, acc []query.Contribution) []query.Contribution {
	order := make([]int, len(rule.Keywords))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return len(rule.Keywords[order[a]].Term) > len(rule.Keywords[order[b]].Term)
	})

	var consumed []span
	matched := make([]bool, len(rule.Keywords))
	for _, i := range order {
		term := rule.Keywords[i].Term
		for from := 0; ; {
			idx := strings.Index(in.stripped[from:], term)
			if idx < 0 {
				break
			}
			sp := span{from + idx, from + idx + len(term)}
			if !sp.overlapsAny(consumed) {
				consumed = append(consumed, sp)
				matched[i] = true
			}
			from = sp.end
		}
	}

	for i, k := range rule.Keywords {
		if matched[i] {
			acc = append(acc, query.Contribution{Rule: rulePositive, Detail: k.Term, Delta: k.Weight})
		}
	}
	return acc
}

// span is a half-open byte range of the scored text.
type span struct{ start, end int }

func (s span) overlapsAny(spans []span) bool {
	for _, o := range spans {
		if s.start < o.end && o.start < s.end {
			return true
		}
	}
	return false
}

func negativePenalty(rule *CategoryRule, in scoreInput, acc []query.Contribution) []query.Contribution {
	for _, n := range rule.Negatives {
		if strings.Contains(in.stripped, n) {
			acc = append(acc, query.Contribution{Rule: ruleNegative, Detail: n, Delta: NegativePenalty})
		}
	}
	return acc
}

func phraseBonus(rule *CategoryRule, in scoreInput, acc []query.Contribution) []query.Contribution {
	for _, p := range rule.Phrases {
		if strings.Contains(in.normalized, p) {
			acc = append(acc, query.Contribution{Rule: rulePhrase, Detail: p, Delta: PhraseBonus})
		}
	}
	return acc
}

// earlyConfirmation rewards a category confirmed by several distinct positives and contradicted by none.
func earlyConfirmation(_ *CategoryRule, _ scoreInput, acc []query.Contribution) []query.Contribution {
	var positives, negatives int
	for _, c := range acc {
		switch c.Rule {
		case rulePositive:
			positives++
		case ruleNegative:
			negatives++
		}
	}
	if positives >= EarlyConfirmMinHits && negatives == 0 {
		acc = append(acc, query.Contribution{Rule: ruleEarlyConfirm, Detail: "", Delta: EarlyConfirmBonus})
	}
	return acc
}

// score folds every scorer over one category rule.
func score(rule *CategoryRule, in scoreInput) query.Breakdown {
	var acc []query.Contribution
	for _, s := range scorers {
		acc = s(rule, in, acc)
	}
	b := query.Breakdown{Category: rule.Category, Contributions: acc}
	for _, c := range acc {
		b.Total += c.Delta
	}
	return b
}

// scoreAll scores every category and returns the winner's index in the breakdown
// list, or -1 when no category has a positive total. Categories without any
// contribution are left out of the breakdown.
func scoreAll(rules []CategoryRule, in scoreInput) ([]query.Breakdown, int) {
	var (
		out  []query.Breakdown
		best = -1
	)
	for i := range rules {
		b := score(&rules[i], in)
		if len(b.Contributions) == 0 {
			continue
		}
		out = append(out, b)
		if b.Total > 0 && (best < 0 || b.Total > out[best].Total) {
			best = len(out) - 1
		}
	}
	return out, best
}

func newScoreInput(normalized string) scoreInput {
	stripped := normalized
	for _, w := range Stopwords {
		stripped = strings.ReplaceAll(stripped, w, " ")
	}
	return scoreInput{normalized: normalized, stripped: stripped}
}

// matchedTerms lists the positive keywords of a breakdown.
func matchedTerms(b query.Breakdown) []string {
	var out []string
	for _, c := range b.Contributions {
		if c.Rule == rulePositive {
			out = append(out, c.Detail)
		}
	}
	return out
}
