// Package alert detects mandatory disclosure topics in a query and appends
// their notices to a response exactly once.
package alert

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/kbroute/internal/domain/query"
)

// Topic is a disclosure that must reach the customer when it applies.
type Topic struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Message  string `json:"message"`
	// SignificantParts mark the notice as already present in a response.
	SignificantParts []string `json:"-"`
}

// Topic names.
const (
	TopicInternationalFlight = "international_flight"
	TopicLuxuryCar           = "luxury_car"
	TopicBusyPeriod          = "busy_period"
	TopicReservationChange   = "reservation_change"
	TopicMaxPassengers       = "max_passengers"
)

// Topics lists every known topic by descending priority.
var Topics = []Topic{
	{
		Name:             TopicInternationalFlight,
		Priority:         5,
		Message:          "※重要: 当駐車場は国内線ご利用のお客様専用となっております。国際線ターミナルへの送迎も含め、ご利用いただけません。",
		SignificantParts: []string{"国内線ご利用のお客様専用", "国際線ターミナルへの送迎"},
	},
	{
		Name:             TopicLuxuryCar,
		Priority:         4,
		Message:          "※重要: 当駐車場では場内保険の対象外となるため、全外車（BMW、ベンツ、アウディなどを含む）とレクサス全車種はお預かりできかねます。",
		SignificantParts: []string{"全外車", "レクサス全車種", "場内保険の対象外"},
	},
	{
		Name:             TopicBusyPeriod,
		Priority:         3,
		Message:          "※お知らせ: 繁忙期（GW、お盆、年末年始）は満車になりやすいため、早めのご予約をお勧めいたします。",
		SignificantParts: []string{"繁忙期", "GW、お盆、年末年始", "満車になりやすい"},
	},
	{
		Name:             TopicReservationChange,
		Priority:         2,
		Message:          "※ご注意: 予約変更は利用日の3日前までとなります。それ以降の変更はキャンセル扱いとなりキャンセル料が発生いたします。",
		SignificantParts: []string{"予約変更は利用日の3日前まで", "キャンセル料が発生"},
	},
	{
		Name:             TopicMaxPassengers,
		Priority:         1,
		Message:          "※ご注意: 送迎車の乗車人数は、運転手を除き最大4名様までとなります。5名様以上の場合は複数回に分けての送迎となります。",
		SignificantParts: []string{"送迎車の乗車人数", "最大4名様まで", "複数回に分けての送迎"},
	},
}

// Lookup returns the topic with the given name.
func Lookup(name string) (Topic, bool) {
	for _, t := range Topics {
		if t.Name == name {
			return t, true
		}
	}
	return Topic{}, false
}

// Detector fires a topic when any keyword, or every term of any co-occurrence
// group, appears in the normalized query.
type Detector struct {
	Topic      string
	Keywords   []string
	CoOccurs   [][]string
	AnyOfPairs []AnyOf
}

// AnyOf fires when Term and at least one of Others are present.
type AnyOf struct {
	Term   string
	Others []string
}

// Detectors are the keyword rules of every topic.
var Detectors = []Detector{
	{
		Topic:    TopicInternationalFlight,
		Keywords: []string{"国際線", "国際便", "インターナショナル", "国際ターミナル", "国際空港", "海外便"},
	},
	{
		Topic:    TopicLuxuryCar,
		Keywords: []string{"外車", "輸入車", "レクサス", "bmw", "ベンツ", "アウディ", "外国車", "高級車"},
	},
	{
		Topic:    TopicBusyPeriod,
		Keywords: []string{"繁忙期", "お盆", "年末年始", "ゴールデンウィーク", "gw", "連休", "混雑期"},
	},
	{
		Topic:    TopicReservationChange,
		Keywords: []string{"予約変更", "予約の変更", "予約を変更", "変更期限"},
		CoOccurs: [][]string{{"予約", "変更"}},
	},
	{
		Topic:      TopicMaxPassengers,
		Keywords:   []string{"乗車人数", "人数制限", "何人まで", "5人", "6人", "大人数", "団体"},
		AnyOfPairs: []AnyOf{{Term: "送迎", Others: []string{"人数", "人まで"}}},
	},
}

func (d *Detector) fires(normalized string) bool {
	for _, k := range d.Keywords {
		if strings.Contains(normalized, k) {
			return true
		}
	}
	for _, group := range d.CoOccurs {
		if containsAll(normalized, group) {
			return true
		}
	}
	for _, p := range d.AnyOfPairs {
		if strings.Contains(normalized, p.Term) && containsAnyOf(normalized, p.Others) {
			return true
		}
	}
	return false
}

// Detect returns the topics a query touches, by descending priority.
func Detect(q string) []Topic {
	normalized := query.Normalize(q)
	if normalized == "" {
		return nil
	}
	var names []string
	for i := range Detectors {
		if Detectors[i].fires(normalized) {
			names = append(names, Detectors[i].Topic)
		}
	}
	return resolve(names)
}

// Inject appends the notice of every topic not already present in response,
// by descending priority and separated by blank lines. Inject(Inject(r, t), t)
// equals Inject(r, t).
func Inject(response string, topics []Topic) string {
	compact := query.Compact(response)
	var notices []string
	seen := make(map[string]bool, len(topics))
	for _, t := range sortTopics(topics) {
		if seen[t.Name] || present(compact, &t) {
			continue
		}
		seen[t.Name] = true
		notices = append(notices, t.Message)
	}
	if len(notices) == 0 {
		return response
	}
	if strings.TrimSpace(response) == "" {
		return strings.Join(notices, "\n\n")
	}
	return response + "\n\n" + strings.Join(notices, "\n\n")
}

// Overlay adds configured mandatory topics to every detection.
type Overlay struct {
	mandatory []string
}

// NewOverlay validates the mandatory topic names.
func NewOverlay(mandatory []string) (*Overlay, error) {
	for _, name := range mandatory {
		if _, ok := Lookup(name); !ok {
			return nil, fmt.Errorf("unknown alert topic %q", name)
		}
	}
	return &Overlay{mandatory: mandatory}, nil
}

// Detect returns the detected and mandatory topics of q, by descending priority.
func (o *Overlay) Detect(q string) []Topic {
	detected := Detect(q)
	if len(o.mandatory) == 0 {
		return detected
	}
	names := make([]string, 0, len(detected)+len(o.mandatory))
	for _, t := range detected {
		names = append(names, t.Name)
	}
	return resolve(append(names, o.mandatory...))
}

// Apply detects the topics of q and injects them into response.
func (o *Overlay) Apply(q, response string) (string, []Topic) {
	topics := o.Detect(q)
	return Inject(response, topics), topics
}

// resolve maps names to topics, dropping duplicates and unknown names.
func resolve(names []string) []Topic {
	seen := make(map[string]bool, len(names))
	var out []Topic
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		if t, ok := Lookup(n); ok {
			out = append(out, t)
		}
	}
	return sortTopics(out)
}

func sortTopics(ts []Topic) []Topic {
	out := make([]Topic, len(ts))
	copy(out, ts)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

func present(compactResponse string, t *Topic) bool {
	for _, part := range t.SignificantParts {
		if strings.Contains(compactResponse, query.Compact(part)) {
			return true
		}
	}
	return false
}

func containsAll(s string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(s, t) {
			return false
		}
	}
	return true
}

func containsAnyOf(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
