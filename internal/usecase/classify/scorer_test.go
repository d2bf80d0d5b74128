package classify

import (
	"testing"

	"github.com/kailas-cloud/kbroute/internal/domain/query"
)

func testRule() *CategoryRule {
	return &CategoryRule{
		Category:  query.CategoryFacility,
		Keywords:  []Keyword{{"設備", 4}, {"ゲート", 3}},
		Negatives: []string{"事故"},
		Phrases:   []string{"設備の故障"},
	}
}

func TestScore_Breakdown(t *testing.T) {
	tests := []struct {
		name  string
		q     string
		total float64
		rules []string
	}{
		{"single keyword", "設備について", 4, []string{rulePositive}},
		{"early confirmation", "設備とゲート", 12, []string{rulePositive, rulePositive, ruleEarlyConfirm}},
		{"negative blocks early bonus", "設備とゲートで事故", 4, []string{rulePositive, rulePositive, ruleNegative}},
		{"phrase bonus", "設備の故障", 7, []string{rulePositive, rulePhrase}},
		{"nothing", "こんにちは", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := score(testRule(), newScoreInput(query.Normalize(tt.q)))
			if b.Total != tt.total {
				t.Errorf("total = %v, want %v", b.Total, tt.total)
			}
			if len(b.Contributions) != len(tt.rules) {
				t.Fatalf("contributions = %+v, want rules %v", b.Contributions, tt.rules)
			}
			var sum float64
			for i, c := range b.Contributions {
				if c.Rule != tt.rules[i] {
					t.Errorf("contribution[%d].Rule = %q, want %q", i, c.Rule, tt.rules[i])
				}
				sum += c.Delta
			}
			if sum != b.Total {
				t.Errorf("contributions sum %v != total %v", sum, b.Total)
			}
		})
	}
}

func TestScore_NestedKeywordCountsOnce(t *testing.T) {
	rules := map[query.Category]*CategoryRule{}
	for i := range CategoryRules {
		rules[CategoryRules[i].Category] = &CategoryRules[i]
	}

	tests := []struct {
		q        string
		category query.Category
		keywords []string
		total    float64
	}{
		{"支払い方法", query.CategoryPayment, []string{"支払い"}, 3},
		{"予約変更", query.CategoryReservation, []string{"予約変更"}, 3},
		{"高さ制限", query.CategoryVehicle, []string{"高さ制限"}, 3},
		// Separate occurrences still count.
		{"支払い済みの支払", query.CategoryPayment, []string{"支払い", "支払"}, 10},
		{"予約変更と予約", query.CategoryReservation, []string{"予約", "予約変更"}, 11},
	}

	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			b := score(rules[tt.category], newScoreInput(query.Normalize(tt.q)))
			got := matchedTerms(b)
			if len(got) != len(tt.keywords) {
				t.Fatalf("keywords = %v, want %v", got, tt.keywords)
			}
			for i := range got {
				if got[i] != tt.keywords[i] {
					t.Errorf("keywords = %v, want %v", got, tt.keywords)
				}
			}
			if b.Total != tt.total {
				t.Errorf("total = %v, want %v (%+v)", b.Total, tt.total, b.Contributions)
			}
			if len(tt.keywords) < EarlyConfirmMinHits {
				for _, c := range b.Contributions {
					if c.Rule == ruleEarlyConfirm {
						t.Errorf("unexpected early confirmation for %q", tt.q)
					}
				}
			}
		})
	}
}

func TestScoreAll_TieKeepsDeclarationOrder(t *testing.T) {
	rules := []CategoryRule{
		{Category: query.CategoryAccess, Keywords: []Keyword{{"場所", 2}}},
		{Category: query.CategoryFacility, Keywords: []Keyword{{"場所", 2}}},
	}
	out, best := scoreAll(rules, newScoreInput("場所"))
	if best != 0 || out[best].Category != query.CategoryAccess {
		t.Errorf("winner = %d, want first declared rule", best)
	}
}

func TestScoreAll_NoPositiveWinner(t *testing.T) {
	rules := []CategoryRule{
		{Category: query.CategoryReservation, Keywords: []Keyword{{"予約", 3}}, Negatives: []string{"送迎"}},
	}
	out, best := scoreAll(rules, newScoreInput("送迎"))
	if best != -1 {
		t.Errorf("best = %d, want -1", best)
	}
	if len(out) != 1 || out[0].Total != NegativePenalty {
		t.Errorf("breakdown = %+v, want a single negative entry", out)
	}
}

func TestNewScoreInput_StripsStopwords(t *testing.T) {
	in := newScoreInput("料金を教えてください")
	if in.stripped == in.normalized {
		t.Error("stopwords were not removed")
	}
	if in.normalized != "料金を教えてください" {
		t.Errorf("normalized text changed: %q", in.normalized)
	}
}
