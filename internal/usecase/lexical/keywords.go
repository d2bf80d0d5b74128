package lexical

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/kbroute/internal/domain/query"
)

// MaxKeywords bounds the number of terms sent to the index.
const MaxKeywords = 3

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "to": {}, "of": {}, "in": {},
	"on": {}, "for": {}, "and": {}, "or": {}, "what": {}, "how": {}, "can": {}, "i": {},
	"please": {}, "about": {},
	"教えて": {}, "ください": {}, "下さい": {}, "について": {}, "知りたい": {},
	"場合": {}, "方法": {}, "こと": {}, "もの": {},
}

// Keywords extracts up to MaxKeywords salient terms from a query.
// Hiragana runs act as separators (particles and inflections), as do spaces,
// punctuation and symbols. Stopwords are dropped, duplicates removed, and the
// longest terms kept in their original order. If nothing survives, the whole
// normalized query is the only keyword.
func Keywords(q string) []string {
	normalized := query.Normalize(q)
	if normalized == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var tokens []string
	for _, tok := range tokenize(normalized) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if utf8.RuneCountInString(tok) < 2 {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	if len(tokens) == 0 {
		return []string{normalized}
	}
	if len(tokens) <= MaxKeywords {
		return tokens
	}

	// Pick the longest terms, then restore query order.
	idx := make([]int, len(tokens))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return utf8.RuneCountInString(tokens[idx[a]]) > utf8.RuneCountInString(tokens[idx[b]])
	})
	idx = idx[:MaxKeywords]
	sort.Ints(idx)

	out := make([]string, 0, MaxKeywords)
	for _, i := range idx {
		out = append(out, tokens[i])
	}
	return out
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) ||
			unicode.Is(unicode.Hiragana, r)
	})
}
