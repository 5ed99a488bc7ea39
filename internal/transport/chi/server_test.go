package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kbase-cloud/queryd/internal/cache"
	"github.com/kbase-cloud/queryd/internal/domain"
	"github.com/kbase-cloud/queryd/internal/usecase/discovery"
	healthuc "github.com/kbase-cloud/queryd/internal/usecase/health"
)

type mockClassifier struct {
	result    domain.QueryClassification
	fastCalls int
	fullCalls int
}

func (m *mockClassifier) Classify(_ context.Context, _ string) domain.QueryClassification {
	m.fullCalls++
	return m.result
}

func (m *mockClassifier) ClassifyFast(_ context.Context, _ string) domain.QueryClassification {
	m.fastCalls++
	return m.result
}

type mockDiscoverer struct {
	discovered []discovery.DiscoveredCategory
	suggestion discovery.CategorySuggestion
	saved      []discovery.DiscoveredCategory
	saveErr    error
}

func (m *mockDiscoverer) Discover(_ context.Context, _ []discovery.CorpusDocument) []discovery.DiscoveredCategory {
	return m.discovered
}

func (m *mockDiscoverer) SaveDiscovered(_ context.Context, cats []discovery.DiscoveredCategory) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = cats
	return nil
}

func (m *mockDiscoverer) Suggest(_ context.Context, _, _ string) discovery.CategorySuggestion {
	return m.suggestion
}

type mockCategoryAdmin struct {
	cats      []domain.Category
	createErr error
	deleteErr error
	deleted   string
}

func (m *mockCategoryAdmin) List(_ context.Context) ([]domain.Category, error) {
	return m.cats, nil
}

func (m *mockCategoryAdmin) Create(_ context.Context, name, description string, keywords []string) (domain.Category, error) {
	if m.createErr != nil {
		return domain.Category{}, m.createErr
	}
	return domain.Category{Name: domain.NormalizeCategoryName(name), Description: description, Keywords: keywords, IsActive: true}, nil
}

func (m *mockCategoryAdmin) Delete(_ context.Context, name string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = name
	return nil
}

type mockInvalidator struct {
	calls int
}

func (m *mockInvalidator) InvalidateAll(_ context.Context) { m.calls++ }

type mockStatsSource struct {
	stats cache.Stats
}

func (m *mockStatsSource) Stats() cache.Stats { return m.stats }

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

type serverFixture struct {
	classifier  *mockClassifier
	discoverer  *mockDiscoverer
	categories  *mockCategoryAdmin
	invalidator *mockInvalidator
	router      *chirouter.Mux
}

func newFixture() *serverFixture {
	f := &serverFixture{
		classifier:  &mockClassifier{},
		discoverer:  &mockDiscoverer{},
		categories:  &mockCategoryAdmin{},
		invalidator: &mockInvalidator{},
	}
	srv := NewServer(
		f.classifier, f.discoverer, f.categories, f.invalidator,
		&mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK}}},
		zap.NewNop(),
		&mockStatsSource{stats: cache.Stats{Name: "embedding", Entries: 3, Hits: 10, Misses: 4}},
	)
	f.router = chirouter.NewRouter()
	srv.Register(f.router)
	return f
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestClassifyEndpoint(t *testing.T) {
	f := newFixture()
	f.classifier.result = domain.QueryClassification{
		Categories: []string{"billing"},
		Confidence: 0.9,
		Reasoning:  "Keyword matching",
	}

	rr := do(t, f.router, "POST", "/classify", `{"query": "invoice question"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var resp classificationResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Categories) != 1 || resp.Categories[0] != "billing" {
		t.Errorf("expected [billing], got %v", resp.Categories)
	}
	if f.classifier.fullCalls != 1 || f.classifier.fastCalls != 0 {
		t.Errorf("expected full path, got full=%d fast=%d", f.classifier.fullCalls, f.classifier.fastCalls)
	}
}

func TestClassifyEndpoint_FastFlag(t *testing.T) {
	f := newFixture()

	rr := do(t, f.router, "POST", "/classify", `{"query": "invoice question", "fast": true}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
	if f.classifier.fastCalls != 1 || f.classifier.fullCalls != 0 {
		t.Errorf("expected fast path, got full=%d fast=%d", f.classifier.fullCalls, f.classifier.fastCalls)
	}
}

func TestClassifyEndpoint_EmptyQuery(t *testing.T) {
	f := newFixture()

	rr := do(t, f.router, "POST", "/classify", `{"query": ""}`)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestClassifyEndpoint_EmptyCategoriesSerializedAsArray(t *testing.T) {
	f := newFixture()
	f.classifier.result = domain.SearchAll(0, "")

	rr := do(t, f.router, "POST", "/classify", `{"query": "anything"}`)

	if !strings.Contains(rr.Body.String(), `"categories":[]`) {
		t.Errorf("expected empty array, got %s", rr.Body.String())
	}
}

func TestListCategoriesEndpoint(t *testing.T) {
	f := newFixture()
	f.categories.cats = []domain.Category{
		{Name: "billing", Embedding: []float32{1, 2}, DocumentCount: 4, IsActive: true},
	}

	rr := do(t, f.router, "GET", "/categories", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
	var resp categoriesResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Categories) != 1 || !resp.Categories[0].HasEmbedding {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestCreateCategoryEndpoint(t *testing.T) {
	f := newFixture()

	rr := do(t, f.router, "POST", "/categories", `{"name": "Billing", "description": "money", "keywords": ["invoice"]}`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	var resp categoryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Name != "billing" {
		t.Errorf("expected normalized name, got %q", resp.Name)
	}
}

func TestCreateCategoryEndpoint_Duplicate(t *testing.T) {
	f := newFixture()
	f.categories.createErr = fmt.Errorf("%w: billing", domain.ErrCategoryExists)

	rr := do(t, f.router, "POST", "/categories", `{"name": "billing"}`)

	if rr.Code != http.StatusConflict {
		t.Errorf("got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestDeleteCategoryEndpoint(t *testing.T) {
	f := newFixture()

	rr := do(t, f.router, "DELETE", "/categories/billing", "")

	if rr.Code != http.StatusNoContent {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusNoContent)
	}
	if f.categories.deleted != "billing" {
		t.Errorf("expected billing deleted, got %q", f.categories.deleted)
	}
}

func TestDeleteCategoryEndpoint_NotFound(t *testing.T) {
	f := newFixture()
	f.categories.deleteErr = fmt.Errorf("%w: ghost", domain.ErrCategoryNotFound)

	rr := do(t, f.router, "DELETE", "/categories/ghost", "")

	if rr.Code != http.StatusNotFound {
		t.Errorf("got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestDiscoverEndpoint(t *testing.T) {
	f := newFixture()
	f.discoverer.discovered = []discovery.DiscoveredCategory{
		{Name: "billing", Keywords: []string{"invoice"}, DocumentIDs: []string{"doc-1"}},
	}

	rr := do(t, f.router, "POST", "/categories/discover",
		`{"documents": [{"id": "doc-1", "name": "Guide", "summary": "invoices"}]}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
	var resp discoverResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Categories) != 1 || resp.Categories[0].Name != "billing" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSaveDiscoveredEndpoint(t *testing.T) {
	f := newFixture()

	rr := do(t, f.router, "POST", "/categories/discover/save",
		`{"categories": [{"name": "billing", "documentIds": ["doc-1"]}]}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if len(f.discoverer.saved) != 1 || f.discoverer.saved[0].Name != "billing" {
		t.Errorf("unexpected saved categories %+v", f.discoverer.saved)
	}
}

func TestSaveDiscoveredEndpoint_Empty(t *testing.T) {
	f := newFixture()

	rr := do(t, f.router, "POST", "/categories/discover/save", `{"categories": []}`)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSuggestEndpoint(t *testing.T) {
	f := newFixture()
	f.discoverer.suggestion = discovery.CategorySuggestion{Category: "billing", Confidence: 0.8}

	rr := do(t, f.router, "POST", "/categories/suggest", `{"content": "invoice text", "name": "doc"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
	var resp suggestResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Category != "billing" || resp.Confidence != 0.8 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestCacheStatsEndpoint(t *testing.T) {
	f := newFixture()

	rr := do(t, f.router, "GET", "/caches", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
	var resp cacheStatsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Caches) != 1 || resp.Caches[0].Name != "embedding" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestInvalidateEndpoint(t *testing.T) {
	f := newFixture()

	rr := do(t, f.router, "POST", "/invalidate", "")

	if rr.Code != http.StatusNoContent {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusNoContent)
	}
	if f.invalidator.calls != 1 {
		t.Errorf("expected one invalidation, got %d", f.invalidator.calls)
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture()

	rr := do(t, f.router, "GET", "/health", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}

func TestHealthEndpoint_Unhealthy(t *testing.T) {
	srv := NewServer(
		&mockClassifier{}, &mockDiscoverer{}, &mockCategoryAdmin{}, &mockInvalidator{},
		&mockHealth{report: healthuc.Report{Status: healthuc.Unhealthy, Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckError}}},
		zap.NewNop(),
	)
	router := chirouter.NewRouter()
	srv.Register(router)

	rr := do(t, router, "GET", "/health", "")

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}
