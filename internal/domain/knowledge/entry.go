// Package knowledge holds the FAQ/knowledge entries the retrieval engine searches.
package knowledge

import (
	"strings"

	"github.com/kailas-cloud/kbroute/internal/domain"
)

// Entry is one knowledge-base record: a question-like title and its answer.
type Entry struct {
	ID       string    `yaml:"id" json:"id"`
	Title    string    `yaml:"title" json:"title"`
	Content  string    `yaml:"content" json:"content"`
	Category string    `yaml:"category" json:"category,omitempty"`
	Vector   []float32 `yaml:"-" json:"-"`
}

// Validate checks the fields required to store an entry.
func (e *Entry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return domain.NewRecordError("id", e.ID)
	}
	if strings.ContainsAny(e.ID, " *?[]") {
		return domain.NewRecordError("id", e.ID)
	}
	if strings.TrimSpace(e.Title) == "" && strings.TrimSpace(e.Content) == "" {
		return domain.NewRecordError("content", "")
	}
	return nil
}

// EmbeddingText is the text embedded for vector search.
func (e *Entry) EmbeddingText() string {
	switch {
	case e.Title == "":
		return e.Content
	case e.Content == "":
		return e.Title
	default:
		return e.Title + "\n" + e.Content
	}
}
