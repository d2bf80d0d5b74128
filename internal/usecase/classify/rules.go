package classify

import (
	"regexp"

	"github.com/kailas-cloud/kbroute/internal/domain/query"
)

// Keyword is a positive category signal with its weight.
type Keyword struct {
	Term   string
	Weight float64
}

// CategoryRule holds every signal scored for one category.
type CategoryRule struct {
	Category  query.Category
	Keywords  []Keyword
	Negatives []string
	Phrases   []string
}

// OverrideRule forces a category before any scoring happens.
type OverrideRule struct {
	Name     string
	Pattern  *regexp.Regexp
	Category query.Category
}

// IntentRule resolves the intent. Categories restricts the rule; empty means any.
type IntentRule struct {
	Name       string
	Pattern    *regexp.Regexp
	Intent     query.Intent
	Categories []query.Category
}

// ConflictRule replaces a scored winner when a known ambiguous pattern is present.
type ConflictRule struct {
	Name     string
	Winner   query.Category
	Pattern  *regexp.Regexp
	Category query.Category
}

// SeverityRule sets tone and urgency. A nil Pattern matches every query in scope.
type SeverityRule struct {
	Name       string
	Categories []query.Category
	Intents    []query.Intent
	Pattern    *regexp.Regexp
	Tone       query.Tone
	Urgency    query.Urgency
}

// CategoryRules are scored in declaration order; on equal totals the earlier rule wins.
var CategoryRules = []CategoryRule{
	{
		Category: query.CategoryReservation,
		Keywords: []Keyword{
			{"予約", 3}, {"キャンセル", 3}, {"予約変更", 3}, {"空き", 2}, {"申し込み", 2},
		},
		Negatives: []string{"送迎"},
	},
	{
		Category: query.CategoryPayment,
		Keywords: []Keyword{
			{"料金", 3}, {"支払い", 3}, {"支払", 2}, {"現金", 2}, {"クレジット", 2},
			{"カード", 1}, {"領収書", 2}, {"決済", 2}, {"値段", 2}, {"費用", 2},
		},
		Negatives: []string{"車両", "車種", "軽自動車", "大型車", "外車"},
	},
	{
		Category: query.CategoryShuttle,
		Keywords: []Keyword{
			{"送迎", 4}, {"シャトル", 3}, {"バス", 2}, {"空港まで", 2}, {"定員", 2},
		},
	},
	{
		Category: query.CategoryFacility,
		Keywords: []Keyword{
			{"設備", 4}, {"充電器", 3}, {"バリアフリー", 3}, {"精算機", 4},
			{"ゲート", 3}, {"トイレ", 2}, {"施設", 3},
		},
		Negatives: []string{"事故", "紛失"},
		Phrases:   []string{"設備の故障"},
	},
	{
		Category: query.CategoryTrouble,
		Keywords: []Keyword{
			{"事故", 4}, {"故障", 3}, {"紛失", 4}, {"トラブル", 4}, {"クレーム", 4},
			{"返金", 4}, {"出られません", 3}, {"傷", 3}, {"盗難", 4}, {"破損", 3},
			{"苦情", 3}, {"なくし", 3},
		},
	},
	{
		Category: query.CategoryAccess,
		Keywords: []Keyword{
			{"アクセス", 4}, {"経路", 3}, {"住所", 4}, {"行き方", 4}, {"最寄り駅", 3},
			{"道順", 3}, {"ナビ", 3}, {"googleマップ", 3}, {"地図", 2}, {"場所", 2},
		},
	},
	{
		Category: query.CategoryVehicle,
		Keywords: []Keyword{
			{"車両", 3}, {"大型車", 4}, {"外車", 4}, {"軽自動車", 4}, {"高さ制限", 3},
			{"車種", 3}, {"レクサス", 3}, {"輸入車", 3}, {"高さ", 2}, {"サイズ", 2},
		},
	},
	{
		Category: query.CategoryInformation,
		Keywords: []Keyword{{"営業時間", 3}, {"お知らせ", 2}},
	},
	{
		Category: query.CategoryDisclaimer,
		Keywords: []Keyword{{"免責", 4}, {"保険", 3}, {"補償", 3}, {"責任", 2}},
	},
}

// Stopwords are removed before keyword scoring. None of them occurs inside a keyword.
var Stopwords = []string{
	"お願いします", "ください", "教えて", "について", "でしょうか", "すみません",
}

// OverrideRules are evaluated in order; the first match wins.
var OverrideRules = []OverrideRule{
	{
		Name:     "vehicle_pricing",
		Pattern:  regexp.MustCompile(`(車両|車種|軽自動車|大型車|外車).*(料金|値段)`),
		Category: query.CategoryVehicle,
	},
	{
		Name:     "ticket_loss",
		Pattern:  regexp.MustCompile(`(駐車券|チケット).*(紛失|なくし)`),
		Category: query.CategoryTrouble,
	},
	{
		Name:     "trapped_vehicle",
		Pattern:  regexp.MustCompile(`(出られ|閉じ込め)`),
		Category: query.CategoryTrouble,
	},
}

// IntentRules are evaluated in order; the first applicable match wins.
var IntentRules = []IntentRule{
	{Name: "cancel", Pattern: regexp.MustCompile(`キャンセル|取り消し|取消`), Intent: query.IntentCancel},
	{Name: "modify", Pattern: regexp.MustCompile(`変更|修正|延長|変えたい`), Intent: query.IntentModify},
	{
		Name:    "report",
		Pattern: regexp.MustCompile(`報告|起き|発生|紛失|出られ|壊れ|壊し|ぶつけ|なくし|盗まれ`),
		Intent:  query.IntentReport,
	},
	{
		Name:       "payment_only_option",
		Pattern:    regexp.MustCompile(`のみ可能ですか|だけ可能ですか|しか使えませんか`),
		Intent:     query.IntentInquiry,
		Categories: []query.Category{query.CategoryPayment},
	},
	{Name: "check", Pattern: regexp.MustCompile(`確認|可能ですか|できますか|可否|チェック|大丈夫ですか`), Intent: query.IntentCheck},
	{Name: "create", Pattern: regexp.MustCompile(`予約したい|申し込みたい|予約する`), Intent: query.IntentCreate},
}

// ConflictRules are evaluated in order against the scored winner.
var ConflictRules = []ConflictRule{
	{
		Name:     "pricing_x_vehicle",
		Winner:   query.CategoryPayment,
		Pattern:  regexp.MustCompile(`車両|車種|軽自動車|大型車|外車|輸入車|レクサス`),
		Category: query.CategoryVehicle,
	},
}

var incidentScope = []query.Category{query.CategoryTrouble, query.CategoryFacility}

// SeverityRules are evaluated in order; the first applicable match wins.
var SeverityRules = []SeverityRule{
	{
		Name:       "high_severity",
		Categories: incidentScope,
		Intents:    []query.Intent{query.IntentReport},
		Pattern:    regexp.MustCompile(`事故|怪我|けが|負傷|故障|出られ|閉じ込め|動かない|火災|煙`),
		Tone:       query.ToneUrgent,
		Urgency:    query.UrgencyHigh,
	},
	{
		Name:       "loss_damage",
		Categories: incidentScope,
		Intents:    []query.Intent{query.IntentReport},
		Pattern:    regexp.MustCompile(`紛失|なくし|傷|破損|汚れ`),
		Tone:       query.ToneNormal,
		Urgency:    query.UrgencyMedium,
	},
	{
		Name:       "incident_report",
		Categories: incidentScope,
		Intents:    []query.Intent{query.IntentReport},
		Tone:       query.ToneUrgent,
		Urgency:    query.UrgencyMedium,
	},
	{
		Name: "future_plan",
		Intents: []query.Intent{
			query.IntentCreate, query.IntentCheck, query.IntentModify, query.IntentCancel, query.IntentInquiry,
		},
		Pattern: regexp.MustCompile(`来週|来月|今度|予定|将来`),
		Tone:    query.ToneFuture,
		Urgency: query.UrgencyLow,
	},
}

func (r *IntentRule) applies(c query.Category) bool {
	return len(r.Categories) == 0 || containsCategory(r.Categories, c)
}

func (r *SeverityRule) applies(c query.Category, i query.Intent) bool {
	if len(r.Categories) > 0 && !containsCategory(r.Categories, c) {
		return false
	}
	if len(r.Intents) > 0 && !containsIntent(r.Intents, i) {
		return false
	}
	return true
}

// canEscalate reports whether a category/intent pair may carry urgent tone or high urgency.
func canEscalate(c query.Category, i query.Intent) bool {
	return i == query.IntentReport && containsCategory(incidentScope, c)
}

func containsCategory(list []query.Category, c query.Category) bool {
	for _, v := range list {
		if v == c {
			return true
		}
	}
	return false
}

func containsIntent(list []query.Intent, i query.Intent) bool {
	for _, v := range list {
		if v == i {
			return true
		}
	}
	return false
}
