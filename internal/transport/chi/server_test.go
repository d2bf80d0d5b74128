package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kbroute/internal/domain"
	"github.com/kailas-cloud/kbroute/internal/domain/query"
	"github.com/kailas-cloud/kbroute/internal/domain/routing"
	"github.com/kailas-cloud/kbroute/internal/domain/search/hit"
	"github.com/kailas-cloud/kbroute/internal/domain/search/origin"
	"github.com/kailas-cloud/kbroute/internal/domain/template"
	"github.com/kailas-cloud/kbroute/internal/usecase/alert"
	answeruc "github.com/kailas-cloud/kbroute/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/kbroute/internal/usecase/health"
	"github.com/kailas-cloud/kbroute/internal/usecase/retrieval"
)

// --- Mocks ---

type mockRetriever struct {
	fn      func(q string, topK int) retrieval.Result
	gotQ    string
	gotTopK int
}

func (m *mockRetriever) Retrieve(ctx context.Context, q string, topK int) retrieval.Result {
	m.gotQ, m.gotTopK = q, topK
	domain.UsageFromContext(ctx).AddTokens(len(q))
	if m.fn != nil {
		return m.fn(q, topK)
	}
	return retrieval.Result{}
}

type mockClassifier struct {
	calls int
}

func (m *mockClassifier) Classify(_ context.Context, q string) query.Analysis {
	m.calls++
	return query.Analysis{
		Category: query.CategoryPayment, Intent: query.IntentCheck,
		Tone: query.ToneNormal, Urgency: query.UrgencyLow, Confidence: 0.85,
		Metadata: query.Metadata{OriginalQuery: q, Source: query.SourceRules},
	}
}

type mockRouter struct {
	fn  func(a query.Analysis) (routing.Result, error)
	got query.Analysis
}

func (m *mockRouter) Route(_ context.Context, _ string, a query.Analysis) (routing.Result, error) {
	m.got = a
	if m.fn != nil {
		return m.fn(a)
	}
	return routing.Result{Tier: routing.TierNone, FallbackUsed: true}, nil
}

type mockAnswerer struct {
	fn func(q string) (answeruc.Answer, error)
}

func (m *mockAnswerer) Answer(_ context.Context, q string) (answeruc.Answer, error) {
	return m.fn(q)
}

type mockOverlay struct{}

func (mockOverlay) Apply(q, response string) (string, []alert.Topic) {
	if strings.Contains(q, "国際線") {
		return response + "\n\n※国内線専用", []alert.Topic{{Name: alert.TopicInternationalFlight, Priority: 5}}
	}
	return response, nil
}

type mockHealth struct{ report healthuc.Report }

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- Helpers ---

type fixture struct {
	retriever  *mockRetriever
	classifier *mockClassifier
	router     *mockRouter
	answers    *mockAnswerer
	health     *mockHealth
	handler    http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		retriever:  &mockRetriever{},
		classifier: &mockClassifier{},
		router:     &mockRouter{},
		answers: &mockAnswerer{fn: func(q string) (answeruc.Answer, error) {
			return answeruc.Answer{Query: q, Response: answeruc.Apology, Source: answeruc.SourceApology}, nil
		}},
		health: &mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
		}},
	}
	srv := NewServer(f.retriever, f.classifier, f.router, f.answers, mockOverlay{}, f.health, zap.NewNop())
	r := chi.NewRouter()
	srv.Routes(r)
	f.handler = r
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return v
}

// --- Tests ---

func TestSearch_OK(t *testing.T) {
	f := newFixture()
	f.retriever.fn = func(string, int) retrieval.Result {
		return retrieval.Result{
			Hits:   []hit.Hit{hit.New("42", 0.0325, "営業時間", "24時間営業です", "access", origin.Lexical, 1)},
			Cached: true,
		}
	}

	rr := f.do(t, http.MethodGet, "/v1/search?q=%E5%96%B6%E6%A5%AD%E6%99%82%E9%96%93&top_k=3", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decode[SearchResponse](t, rr)
	if resp.Total != 1 || resp.Items[0].ID != "42" || resp.Items[0].Origin != "lexical" || !resp.Cached {
		t.Errorf("unexpected response: %+v", resp)
	}
	if f.retriever.gotQ != "営業時間" || f.retriever.gotTopK != 3 {
		t.Errorf("retriever got %q/%d", f.retriever.gotQ, f.retriever.gotTopK)
	}
	if got := rr.Header().Get("X-Embedding-Tokens"); got != "12" {
		t.Errorf("X-Embedding-Tokens = %q, want 12", got)
	}
}

func TestSearch_DefaultTopK(t *testing.T) {
	f := newFixture()
	rr := f.do(t, http.MethodGet, "/v1/search?q=abc", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if f.retriever.gotTopK != 0 {
		t.Errorf("topK = %d, want 0 so the engine default applies", f.retriever.gotTopK)
	}
	if resp := decode[SearchResponse](t, rr); resp.Items == nil {
		t.Error("items should encode as an empty array")
	}
}

func TestSearch_BadParams(t *testing.T) {
	tests := []struct {
		name   string
		target string
		code   ErrorCode
	}{
		{"missing q", "/v1/search", ErrorCodeBadRequest},
		{"blank q", "/v1/search?q=%20%20", ErrorCodeValidationFailed},
		{"non-numeric top_k", "/v1/search?q=a&top_k=x", ErrorCodeBadRequest},
		{"zero top_k", "/v1/search?q=a&top_k=0", ErrorCodeValidationFailed},
		{"top_k over max", "/v1/search?q=a&top_k=51", ErrorCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := newFixture().do(t, http.MethodGet, tt.target, "")
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			if e := decode[ErrorResponse](t, rr); e.Code != tt.code {
				t.Errorf("code = %q, want %q", e.Code, tt.code)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	f := newFixture()
	rr := f.do(t, http.MethodPost, "/v1/classify", `{"query":"料金を確認したい"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	a := decode[query.Analysis](t, rr)
	if a.Category != query.CategoryPayment || a.Metadata.OriginalQuery != "料金を確認したい" {
		t.Errorf("unexpected analysis: %+v", a)
	}

	rr = f.do(t, http.MethodPost, "/v1/classify", `{"query":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty query status = %d, want 400", rr.Code)
	}
	rr = f.do(t, http.MethodPost, "/v1/classify", `{`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rr.Code)
	}
}

func TestRoute_ClassifiesWhenAnalysisMissing(t *testing.T) {
	f := newFixture()
	tpl := &template.Template{ID: 7, Content: "料金表です"}
	f.router.fn = func(query.Analysis) (routing.Result, error) {
		return routing.Result{Template: tpl, Tier: routing.TierExact, Confidence: 0.95, Alternatives: []template.Template{}}, nil
	}

	rr := f.do(t, http.MethodPost, "/v1/route", `{"query":"料金は？"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if f.classifier.calls != 1 {
		t.Errorf("classifier calls = %d, want 1", f.classifier.calls)
	}
	resp := decode[RouteResponse](t, rr)
	if resp.Routing.Template == nil || resp.Routing.Template.ID != 7 || resp.Routing.Tier != routing.TierExact {
		t.Errorf("unexpected routing: %+v", resp.Routing)
	}
}

func TestRoute_UsesGivenAnalysis(t *testing.T) {
	f := newFixture()
	body := `{"query":"q","analysis":{"category":"trouble","intent":"report","tone":"urgent","urgency":"high","confidence":0.9}}`
	rr := f.do(t, http.MethodPost, "/v1/route", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if f.classifier.calls != 0 {
		t.Error("classifier should not run when an analysis is supplied")
	}
	if f.router.got.Category != query.CategoryTrouble || f.router.got.Tone != query.ToneUrgent {
		t.Errorf("router got %+v", f.router.got)
	}
}

func TestRoute_InvalidAnalysis(t *testing.T) {
	f := newFixture()
	f.router.fn = func(a query.Analysis) (routing.Result, error) {
		return routing.Result{}, a.Validate()
	}
	body := `{"query":"q","analysis":{"category":"parking","intent":"check","tone":"normal","urgency":"low"}}`
	rr := f.do(t, http.MethodPost, "/v1/route", body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	e := decode[ErrorResponse](t, rr)
	if e.Code != ErrorCodeInvalidAnalysis || e.Field != "category" {
		t.Errorf("error = %+v", e)
	}
}

func TestAnswer(t *testing.T) {
	f := newFixture()
	rr := f.do(t, http.MethodPost, "/v1/answer", `{"query":"何か"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decode[AnswerResponse](t, rr)
	if resp.Source != string(answeruc.SourceApology) || resp.Response != answeruc.Apology {
		t.Errorf("unexpected answer: %+v", resp)
	}
	if resp.Hits == nil || resp.Topics == nil {
		t.Error("hits and topics should encode as empty arrays")
	}
	if rr.Header().Get("X-Embedding-Tokens") != "" {
		t.Error("no embedding ran, header should be absent")
	}
}

func TestAnswer_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
	}{
		{"invalid query", domain.ErrInvalidQuery, http.StatusBadRequest, ErrorCodeValidationFailed},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests, ErrorCodeRateLimited},
		{"provider", domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeProviderError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ErrorCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.answers.fn = func(string) (answeruc.Answer, error) { return answeruc.Answer{}, tt.err }
			rr := f.do(t, http.MethodPost, "/v1/answer", `{"query":"x"}`)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			e := decode[ErrorResponse](t, rr)
			if e.Code != tt.code {
				t.Errorf("code = %q, want %q", e.Code, tt.code)
			}
			if tt.code == ErrorCodeInternalError && e.Message != "internal error" {
				t.Errorf("internal error leaked: %q", e.Message)
			}
		})
	}
}

func TestAlerts(t *testing.T) {
	f := newFixture()
	rr := f.do(t, http.MethodPost, "/v1/alerts", `{"query":"国際線を利用します","response":"ご案内します"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decode[AlertsResponse](t, rr)
	if !strings.HasSuffix(resp.Response, "※国内線専用") || len(resp.Topics) != 1 {
		t.Errorf("unexpected alerts response: %+v", resp)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture()
	rr := f.do(t, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if resp := decode[HealthResponse](t, rr); resp.Status != "ok" || resp.Checks["database"] != "ok" {
		t.Errorf("unexpected health: %+v", resp)
	}

	f.health.report = healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckError},
	}
	rr = f.do(t, http.MethodGet, "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded status = %d, want 503", rr.Code)
	}
}
