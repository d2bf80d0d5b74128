package classify

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/kailas-cloud/kbroute/internal/domain"
	"github.com/kailas-cloud/kbroute/internal/domain/query"
)

// EnrichState is a step of the rule to LLM chain.
type EnrichState int

// States of the enrichment chain.
const (
	// EnrichRuleOnly keeps the rule result. Terminal unless the result is weak.
	EnrichRuleOnly EnrichState = iota
	// EnrichRequested waits for the LLM answer.
	EnrichRequested
	// EnrichMerged applied the LLM answer on top of the rule result.
	EnrichMerged
	// EnrichMalformed got an answer without a usable JSON object.
	EnrichMalformed
	// EnrichFailed got no answer.
	EnrichFailed
	// EnrichThrottled was refused by the local rate limiter.
	EnrichThrottled
)

func (s EnrichState) String() string {
	switch s {
	case EnrichRuleOnly:
		return "rule_only"
	case EnrichRequested:
		return "requested"
	case EnrichMerged:
		return "merged"
	case EnrichMalformed:
		return "malformed"
	case EnrichFailed:
		return "failed"
	case EnrichThrottled:
		return "throttled"
	default:
		return "unknown"
	}
}

// EnrichEvent drives the enrichment chain.
type EnrichEvent int

// Events of the enrichment chain.
const (
	EventWeak EnrichEvent = iota
	EventThrottled
	EventCallFailed
	EventMalformed
	EventParsed
)

// NextEnrich is the transition function of the enrichment chain.
func NextEnrich(s EnrichState, e EnrichEvent) EnrichState {
	switch s {
	case EnrichRuleOnly:
		if e == EventWeak {
			return EnrichRequested
		}
		return EnrichRuleOnly
	case EnrichRequested:
		switch e {
		case EventThrottled:
			return EnrichThrottled
		case EventCallFailed:
			return EnrichFailed
		case EventMalformed:
			return EnrichMalformed
		case EventParsed:
			return EnrichMerged
		}
		return EnrichRequested
	default:
		return s
	}
}

// degradedConfidence caps the rule confidence after a failed enrichment.
const degradedConfidence = 0.3

const enrichSystemPrompt = `あなたは駐車場サービスへの問い合わせを分類するアシスタントです。
カテゴリは既に決まっています。意図・トーン・緊急度・確信度だけを判断してください。

intent: create, check, modify, cancel, report, inquiry のいずれか
tone: urgent, normal, future のいずれか
urgency: low, medium, high のいずれか
confidence: 0から1の数値

JSONオブジェクトのみを出力してください。
{"intent":"check","tone":"normal","urgency":"low","confidence":0.8,"reasoning":"..."}`

func enrichUserPrompt(a *query.Analysis) string {
	return fmt.Sprintf("カテゴリ: %s\n質問: %s", a.Category, a.Metadata.OriginalQuery)
}

// ExtractJSON returns the first balanced {...} span of text. Braces inside
// JSON strings do not count. The span must be valid JSON.
func ExtractJSON(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", fmt.Errorf("no object: %w", domain.ErrMalformedLLMResponse)
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				span := text[start : i+1]
				if !gjson.Valid(span) {
					return "", fmt.Errorf("invalid object: %w", domain.ErrMalformedLLMResponse)
				}
				return span, nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced object: %w", domain.ErrMalformedLLMResponse)
}

// merge applies the LLM fields on top of the rule result. The category is
// never touched and values outside the enumerations are ignored.
func merge(a *query.Analysis, obj string) {
	res := gjson.Parse(obj)
	if v := query.Intent(res.Get("intent").String()); v.IsValid() {
		a.Intent = v
	}
	if v := query.Tone(res.Get("tone").String()); v.IsValid() {
		a.Tone = v
	}
	if v := query.Urgency(res.Get("urgency").String()); v.IsValid() {
		a.Urgency = v
	}
	if c := res.Get("confidence"); c.Type == gjson.Number {
		a.Confidence = query.ClampConfidence(c.Float())
	}
	if r := res.Get("reasoning"); r.Exists() {
		a.Metadata.Reasoning = r.String()
	}
	a.Metadata.Source = query.SourceLLM
	enforceSeverity(a)
}
