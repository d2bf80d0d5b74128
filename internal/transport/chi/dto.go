package chi

import (
	"github.com/kailas-cloud/kbroute/internal/domain/query"
	"github.com/kailas-cloud/kbroute/internal/domain/routing"
	"github.com/kailas-cloud/kbroute/internal/domain/search/hit"
	"github.com/kailas-cloud/kbroute/internal/usecase/alert"
)

// ErrorCode is a machine-readable error code.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeInvalidAnalysis  ErrorCode = "invalid_analysis"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeRateLimited      ErrorCode = "rate_limited"
	ErrorCodeProviderError    ErrorCode = "provider_error"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
}

// HitItem is one retrieved knowledge entry.
type HitItem struct {
	ID       string  `json:"id"`
	Score    float64 `json:"score"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Category string  `json:"category,omitempty"`
	Origin   string  `json:"origin"`
	Rank     int     `json:"rank"`
}

// SearchResponse is the body of GET /v1/search.
type SearchResponse struct {
	Items     []HitItem `json:"items"`
	Total     int       `json:"total"`
	TopK      int       `json:"top_k"`
	Cached    bool      `json:"cached"`
	EarlyExit bool      `json:"early_exit"`
}

// QueryRequest carries a customer query.
type QueryRequest struct {
	Query string `json:"query"`
}

// RouteRequest carries a query and, optionally, an analysis produced elsewhere.
// Without an analysis the query is classified first.
type RouteRequest struct {
	Query    string          `json:"query"`
	Analysis *query.Analysis `json:"analysis,omitempty"`
}

// RouteResponse is the body of POST /v1/route.
type RouteResponse struct {
	Analysis query.Analysis `json:"analysis"`
	Routing  routing.Result `json:"routing"`
}

// AlertsRequest carries a query and the response it will receive.
type AlertsRequest struct {
	Query    string `json:"query"`
	Response string `json:"response"`
}

// AlertsResponse is the body of POST /v1/alerts.
type AlertsResponse struct {
	Response string        `json:"response"`
	Topics   []alert.Topic `json:"topics"`
}

// AnswerResponse is the body of POST /v1/answer.
type AnswerResponse struct {
	Query    string         `json:"query"`
	Response string         `json:"response"`
	Source   string         `json:"source"`
	Analysis query.Analysis `json:"analysis"`
	Routing  routing.Result `json:"routing"`
	Hits     []HitItem      `json:"hits"`
	Topics   []alert.Topic  `json:"topics"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func hitsToItems(hits []hit.Hit) []HitItem {
	items := make([]HitItem, len(hits))
	for i := range hits {
		h := &hits[i]
		items[i] = HitItem{
			ID:       h.ID(),
			Score:    h.Score(),
			Title:    h.Title(),
			Content:  h.Content(),
			Category: h.Category(),
			Origin:   string(h.Origin()),
			Rank:     h.Rank(),
		}
	}
	return items
}

func topicsOrEmpty(ts []alert.Topic) []alert.Topic {
	if ts == nil {
		return []alert.Topic{}
	}
	return ts
}
