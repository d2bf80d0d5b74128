package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kbroute/internal/domain"
	"github.com/kailas-cloud/kbroute/internal/domain/query"
	"github.com/kailas-cloud/kbroute/internal/domain/routing"
	"github.com/kailas-cloud/kbroute/internal/logger"
	"github.com/kailas-cloud/kbroute/internal/usecase/alert"
	answeruc "github.com/kailas-cloud/kbroute/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/kbroute/internal/usecase/health"
	"github.com/kailas-cloud/kbroute/internal/usecase/retrieval"
)

// MaxTopK bounds the top_k query parameter.
const MaxTopK = 50

const maxBodyBytes = 64 << 10

// Retriever serves knowledge search.
type Retriever interface {
	Retrieve(ctx context.Context, q string, topK int) retrieval.Result
}

// Classifier classifies a query.
type Classifier interface {
	Classify(ctx context.Context, q string) query.Analysis
}

// Router selects a template for an analysis.
type Router interface {
	Route(ctx context.Context, q string, a query.Analysis) (routing.Result, error)
}

// Answerer runs the full answer pipeline.
type Answerer interface {
	Answer(ctx context.Context, q string) (answeruc.Answer, error)
}

// Overlay appends disclosure notices.
type Overlay interface {
	Apply(q, response string) (string, []alert.Topic)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the retrieval, classification and routing API.
type Server struct {
	retriever     Retriever
	classifier    Classifier
	router        Router
	answers       Answerer
	overlay       Overlay
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	retriever Retriever,
	classifier Classifier,
	router Router,
	answers Answerer,
	overlay Overlay,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		retriever:  retriever,
		classifier: classifier,
		router:     router,
		answers:    answers,
		overlay:    overlay,
		health:     health,
		logger:     logger,
	}
	s.errorHandlers = []errorHandler{
		fieldErrorHandler,
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidAnalysis, http.StatusBadRequest, ErrorCodeInvalidAnalysis),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorCodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeProviderError),
		sentinelHandler(domain.ErrLLMProviderError, http.StatusBadGateway, ErrorCodeProviderError),
	}
	return s
}

// Routes mounts every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/search", s.Search)
		r.Post("/classify", s.Classify)
		r.Post("/route", s.Route)
		r.Post("/answer", s.Answer)
		r.Post("/alerts", s.Alerts)
	})
}

// Search handles GET /v1/search?q=&top_k=.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var q string
	if err := runtime.BindQueryParameter("form", true, true, "q", r.URL.Query(), &q); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter q")
		return
	}
	var topK *int
	if err := runtime.BindQueryParameter("form", true, false, "top_k", r.URL.Query(), &topK); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter top_k")
		return
	}

	q = strings.TrimSpace(q)
	if q == "" {
		s.handleDomainError(w, r, domain.ErrInvalidQuery)
		return
	}
	k := 0
	if topK != nil {
		if *topK < 1 || *topK > MaxTopK {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "top_k must be between 1 and 50")
			return
		}
		k = *topK
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res := s.retriever.Retrieve(ctx, q, k)
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, SearchResponse{
		Items:     hitsToItems(res.Hits),
		Total:     len(res.Hits),
		TopK:      k,
		Cached:    res.Cached,
		EarlyExit: res.EarlyExit,
	})
}

// Classify handles POST /v1/classify.
func (s *Server) Classify(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.handleDomainError(w, r, domain.ErrInvalidQuery)
		return
	}
	writeJSON(w, http.StatusOK, s.classifier.Classify(r.Context(), req.Query))
}

// Route handles POST /v1/route.
func (s *Server) Route(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	q := strings.TrimSpace(req.Query)

	var a query.Analysis
	switch {
	case req.Analysis != nil:
		a = *req.Analysis
	case q == "":
		s.handleDomainError(w, r, domain.ErrInvalidQuery)
		return
	default:
		a = s.classifier.Classify(r.Context(), q)
	}

	res, err := s.router.Route(r.Context(), q, a)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RouteResponse{Analysis: a, Routing: res})
}

// Answer handles POST /v1/answer.
func (s *Server) Answer(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, usage := domain.NewContextWithUsage(r.Context())
	ans, err := s.answers.Answer(ctx, req.Query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, AnswerResponse{
		Query:    ans.Query,
		Response: ans.Response,
		Source:   string(ans.Source),
		Analysis: ans.Analysis,
		Routing:  ans.Routing,
		Hits:     hitsToItems(ans.Retrieval.Hits),
		Topics:   topicsOrEmpty(ans.Topics),
	})
}

// Alerts handles POST /v1/alerts.
func (s *Server) Alerts(w http.ResponseWriter, r *http.Request) {
	var req AlertsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.handleDomainError(w, r, domain.ErrInvalidQuery)
		return
	}
	resp, topics := s.overlay.Apply(req.Query, req.Response)
	writeJSON(w, http.StatusOK, AlertsResponse{Response: resp, Topics: topicsOrEmpty(topics)})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens()))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrInvalidAnalysis,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
		domain.ErrLLMProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// fieldErrorHandler reports which analysis field fell outside its enumeration.
func fieldErrorHandler(w http.ResponseWriter, err error, msg string) bool {
	var fe *domain.FieldError
	if !errors.As(err, &fe) || !errors.Is(err, domain.ErrInvalidAnalysis) {
		return false
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Code:    ErrorCodeInvalidAnalysis,
		Message: msg,
		Field:   fe.Field,
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
