package hit

import "github.com/kailas-cloud/kbroute/internal/domain/search/origin"

// Hit is a single retrieval hit. Immutable once created.
type Hit struct {
	id       string
	score    float64
	title    string
	content  string
	category string
	origin   origin.Origin
	rank     int
}

// New creates a hit. Negative scores are clamped to zero.
func New(id string, score float64, title, content, category string, o origin.Origin, rank int) Hit {
	if score < 0 {
		score = 0
	}
	return Hit{
		id: id, score: score, title: title, content: content,
		category: category, origin: o, rank: rank,
	}
}

// WithScore returns a copy carrying a different score.
func (h Hit) WithScore(score float64) Hit {
	if score < 0 {
		score = 0
	}
	h.score = score
	return h
}

// ID returns the knowledge entry identifier.
func (h *Hit) ID() string { return h.id }

// Score returns the relevance score. Its scale depends on who produced the hit.
func (h *Hit) Score() float64 { return h.score }

// Title returns the entry title (question or heading).
func (h *Hit) Title() string { return h.title }

// Content returns the entry body.
func (h *Hit) Content() string { return h.content }

// Category returns the knowledge category tag, if any.
func (h *Hit) Category() string { return h.category }

// Origin returns the adapter that produced the hit.
func (h *Hit) Origin() origin.Origin { return h.origin }

// Rank returns the 1-indexed position in the producing adapter's list.
func (h *Hit) Rank() int { return h.rank }
