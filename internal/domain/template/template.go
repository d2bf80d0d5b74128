// Package template holds the curated response templates the router selects from.
package template

import (
	"strconv"
	"time"

	"github.com/kailas-cloud/kbroute/internal/domain"
	"github.com/kailas-cloud/kbroute/internal/domain/query"
)

// Status is the lifecycle state of a template.
type Status string

// Status constants.
const (
	StatusDraft    Status = "draft"
	StatusApproved Status = "approved"
	StatusArchived Status = "archived"
)

// IsValid checks if the status is one of the supported values.
func (s Status) IsValid() bool {
	return s == StatusDraft || s == StatusApproved || s == StatusArchived
}

// UsageLabel is the operator's quality mark on a template.
type UsageLabel string

// UsageLabel constants.
const (
	UsageRecommended UsageLabel = "◯"
	UsageConditional UsageLabel = "△"
	UsageAvoid       UsageLabel = "✖️"
	UsageUnlabeled   UsageLabel = ""
)

// Rank orders labels for selection: lower is preferred.
func (l UsageLabel) Rank() int {
	switch l {
	case UsageRecommended:
		return 0
	case UsageConditional:
		return 1
	case UsageAvoid, "✖":
		return 2
	default:
		return 3
	}
}

// Template is a curated response body keyed by category, intent and tone.
type Template struct {
	ID         int64      `yaml:"id" json:"id"`
	Title      string     `yaml:"title" json:"title"`
	Content    string     `yaml:"content" json:"content"`
	Category   string     `yaml:"category" json:"category"`
	Intent     string     `yaml:"intent" json:"intent"`
	Tone       string     `yaml:"tone" json:"tone"`
	Status     Status     `yaml:"status" json:"status"`
	UsageLabel UsageLabel `yaml:"usage_label" json:"usage_label,omitempty"`
	Tags       []string   `yaml:"tags" json:"tags,omitempty"`
	UpdatedAt  time.Time  `yaml:"updated_at" json:"updated_at"`
}

// Validate checks the fields a template needs to be stored and routed to.
func (t *Template) Validate() error {
	if t.ID <= 0 {
		return domain.NewRecordError("id", strconv.FormatInt(t.ID, 10))
	}
	if !query.Category(t.Category).IsValid() {
		return domain.NewRecordError("category", t.Category)
	}
	if !query.Intent(t.Intent).IsValid() {
		return domain.NewRecordError("intent", t.Intent)
	}
	if !query.Tone(t.Tone).IsValid() {
		return domain.NewRecordError("tone", t.Tone)
	}
	if !t.Status.IsValid() {
		return domain.NewRecordError("status", string(t.Status))
	}
	if t.Content == "" {
		return domain.NewRecordError("content", "")
	}
	return nil
}

// Slot is the (category, intent, tone) triple that holds at most one approved template.
func (t *Template) Slot() string {
	return t.Category + "/" + t.Intent + "/" + t.Tone
}

// IsApproved reports whether the template may be served.
func (t *Template) IsApproved() bool { return t.Status == StatusApproved }

// HasAnyTag reports whether the template carries one of the given tags (case-sensitive).
func (t *Template) HasAnyTag(tags []string) bool {
	for _, have := range t.Tags {
		for _, want := range tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Less orders templates for selection: usage label, then newer update, then lower id.
func Less(a, b *Template) bool {
	if ra, rb := a.UsageLabel.Rank(), b.UsageLabel.Rank(); ra != rb {
		return ra < rb
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID < b.ID
}
