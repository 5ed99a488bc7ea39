package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kbase-cloud/queryd/internal/domain"
)

type mockStore struct {
	byName     map[string]domain.Category
	reassigned map[string]string
	listErr    error
	upsertErr  error
	upserts    int
}

func newMockStore() *mockStore {
	return &mockStore{byName: map[string]domain.Category{}, reassigned: map[string]string{}}
}

func (m *mockStore) List(_ context.Context) ([]domain.Category, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	cats := make([]domain.Category, 0, len(m.byName))
	for _, c := range m.byName {
		cats = append(cats, c)
	}
	return cats, nil
}

func (m *mockStore) GetByName(_ context.Context, name string) (domain.Category, error) {
	c, ok := m.byName[name]
	if !ok {
		return domain.Category{}, fmt.Errorf("%w: %s", domain.ErrCategoryNotFound, name)
	}
	return c, nil
}

func (m *mockStore) Upsert(_ context.Context, cat domain.Category) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts++
	m.byName[cat.Name] = cat
	return nil
}

func (m *mockStore) ReassignDocument(_ context.Context, documentID, categoryName string) error {
	m.reassigned[documentID] = categoryName
	return nil
}

type mockEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vector, TotalTokens: 5}, nil
}

type mockCompleter struct {
	response string
	err      error
	calls    int
	prompt   string
}

func (m *mockCompleter) Complete(_ context.Context, prompt string, _ domain.CompletionOptions) (string, error) {
	m.calls++
	m.prompt = prompt
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func newTestService(store *mockStore, embed *mockEmbedder, complete *mockCompleter) *Service {
	return New(store, embed, complete, zap.NewNop())
}

func sampleCorpus() []CorpusDocument {
	return []CorpusDocument{
		{ID: "doc-1", Name: "Invoicing guide", Summary: "How invoices are issued", Topics: []string{"billing"}},
		{ID: "doc-2", Name: "Refund policy", Summary: "When refunds apply"},
		{ID: "doc-3", Name: "Hiring handbook", Summary: "Interview process"},
	}
}

func TestDiscoverEmptyCorpus(t *testing.T) {
	complete := &mockCompleter{}
	svc := newTestService(newMockStore(), &mockEmbedder{}, complete)

	result := svc.Discover(context.Background(), nil)

	if len(result) != 0 {
		t.Errorf("expected empty result, got %v", result)
	}
	if complete.calls != 0 {
		t.Errorf("empty corpus must not call the model, got %d calls", complete.calls)
	}
}

func TestDiscoverMapsIndicesToIDs(t *testing.T) {
	complete := &mockCompleter{
		response: `Here you go: {"categories": [
			{"name": "Billing", "description": "money matters", "keywords": ["invoice", "refund"], "documentIndices": [1, 2]},
			{"name": "hr", "description": "people", "keywords": ["hiring"], "documentIndices": [3, 7, 0]}
		]}`,
	}
	svc := newTestService(newMockStore(), &mockEmbedder{}, complete)

	result := svc.Discover(context.Background(), sampleCorpus())

	if len(result) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(result))
	}
	if result[0].Name != "billing" {
		t.Errorf("expected normalized name billing, got %q", result[0].Name)
	}
	if len(result[0].DocumentIDs) != 2 || result[0].DocumentIDs[0] != "doc-1" || result[0].DocumentIDs[1] != "doc-2" {
		t.Errorf("expected [doc-1 doc-2], got %v", result[0].DocumentIDs)
	}
	// Indices 7 and 0 are out of range for a 3-document corpus.
	if len(result[1].DocumentIDs) != 1 || result[1].DocumentIDs[0] != "doc-3" {
		t.Errorf("expected out-of-range indices dropped, got %v", result[1].DocumentIDs)
	}
}

func TestDiscoverCompletionFailure(t *testing.T) {
	complete := &mockCompleter{err: errors.New("model down")}
	svc := newTestService(newMockStore(), &mockEmbedder{}, complete)

	if result := svc.Discover(context.Background(), sampleCorpus()); len(result) != 0 {
		t.Errorf("expected empty result on completion failure, got %v", result)
	}
}

func TestDiscoverUnparseableOutput(t *testing.T) {
	complete := &mockCompleter{response: "I had trouble with that."}
	svc := newTestService(newMockStore(), &mockEmbedder{}, complete)

	if result := svc.Discover(context.Background(), sampleCorpus()); len(result) != 0 {
		t.Errorf("expected empty result on parse failure, got %v", result)
	}
}

func TestDiscoverPromptEnumeratesCorpus(t *testing.T) {
	complete := &mockCompleter{response: `{"categories": []}`}
	svc := newTestService(newMockStore(), &mockEmbedder{}, complete)

	svc.Discover(context.Background(), sampleCorpus())

	for _, want := range []string{"1. Invoicing guide", "2. Refund policy", "3. Hiring handbook", "billing"} {
		if !strings.Contains(complete.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestSaveDiscoveredInsertsWithEmbedding(t *testing.T) {
	store := newMockStore()
	embed := &mockEmbedder{vector: []float32{0.1, 0.2}}
	svc := newTestService(store, embed, &mockCompleter{})

	err := svc.SaveDiscovered(context.Background(), []DiscoveredCategory{
		{Name: "billing", Description: "money", Keywords: []string{"invoice"}, DocumentIDs: []string{"doc-1", "doc-2"}},
	})
	if err != nil {
		t.Fatalf("SaveDiscovered() error = %v", err)
	}

	cat := store.byName["billing"]
	if len(cat.Embedding) != 2 {
		t.Error("new category should carry an embedding")
	}
	if cat.DocumentCount != 2 {
		t.Errorf("expected DocumentCount 2, got %d", cat.DocumentCount)
	}
	if store.reassigned["doc-1"] != "billing" || store.reassigned["doc-2"] != "billing" {
		t.Errorf("expected member documents reassigned, got %v", store.reassigned)
	}
}

func TestSaveDiscoveredUpdateKeepsEmbedding(t *testing.T) {
	store := newMockStore()
	store.byName["billing"] = domain.Category{
		Name:      "billing",
		Embedding: []float32{0.9, 0.9},
		IsActive:  true,
	}
	embed := &mockEmbedder{vector: []float32{0.1, 0.2}}
	svc := newTestService(store, embed, &mockCompleter{})

	err := svc.SaveDiscovered(context.Background(), []DiscoveredCategory{
		{Name: "Billing", Description: "updated", Keywords: []string{"refund"}, DocumentIDs: []string{"doc-1"}},
	})
	if err != nil {
		t.Fatalf("SaveDiscovered() error = %v", err)
	}

	cat := store.byName["billing"]
	if cat.Embedding[0] != 0.9 {
		t.Error("update must not recompute the embedding")
	}
	if embed.calls != 0 {
		t.Errorf("expected no embedding calls on update, got %d", embed.calls)
	}
	if cat.Description != "updated" || len(cat.Keywords) != 1 || cat.Keywords[0] != "refund" {
		t.Errorf("expected description and keywords overwritten, got %+v", cat)
	}
}

func TestSaveDiscoveredOverlapLastWriterWins(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, &mockEmbedder{vector: []float32{1}}, &mockCompleter{})

	err := svc.SaveDiscovered(context.Background(), []DiscoveredCategory{
		{Name: "billing", DocumentIDs: []string{"doc-1"}},
		{Name: "hr", DocumentIDs: []string{"doc-1"}},
	})
	if err != nil {
		t.Fatalf("SaveDiscovered() error = %v", err)
	}

	if store.reassigned["doc-1"] != "hr" {
		t.Errorf("expected last category to win, got %q", store.reassigned["doc-1"])
	}
}

func TestSaveDiscoveredIdempotent(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, &mockEmbedder{vector: []float32{1}}, &mockCompleter{})
	input := []DiscoveredCategory{
		{Name: "billing", Description: "money", DocumentIDs: []string{"doc-1"}},
	}

	if err := svc.SaveDiscovered(context.Background(), input); err != nil {
		t.Fatalf("first save error = %v", err)
	}
	if err := svc.SaveDiscovered(context.Background(), input); err != nil {
		t.Fatalf("second save error = %v", err)
	}

	if len(store.byName) != 1 {
		t.Errorf("expected one stored category, got %d", len(store.byName))
	}
}

func TestSuggestNoCategoriesSynthesizes(t *testing.T) {
	complete := &mockCompleter{response: `{"category": "Payroll", "description": "salary topics"}`}
	svc := newTestService(newMockStore(), &mockEmbedder{}, complete)

	sg := svc.Suggest(context.Background(), "how salaries are computed", "salary-doc")

	if sg.Category != "payroll" {
		t.Errorf("expected payroll, got %q", sg.Category)
	}
	if !sg.IsNew {
		t.Error("synthesized category must be new")
	}
	if sg.Confidence != synthConfidence {
		t.Errorf("expected confidence %f, got %f", synthConfidence, sg.Confidence)
	}
}

func TestSuggestSynthesisUnparseableFallsBackToName(t *testing.T) {
	complete := &mockCompleter{response: "no json here"}
	svc := newTestService(newMockStore(), &mockEmbedder{}, complete)

	sg := svc.Suggest(context.Background(), "content", "Salary Doc")

	if sg.Category != "salary doc" {
		t.Errorf("expected document name fallback, got %q", sg.Category)
	}
	if sg.Confidence != synthConfidence || !sg.IsNew {
		t.Errorf("unexpected suggestion %+v", sg)
	}
}

func TestSuggestSemanticMatch(t *testing.T) {
	store := newMockStore()
	store.byName["billing"] = domain.Category{Name: "billing", Embedding: []float32{1, 0}, IsActive: true}
	embed := &mockEmbedder{vector: []float32{1, 0}}
	complete := &mockCompleter{}
	svc := newTestService(store, embed, complete)

	sg := svc.Suggest(context.Background(), "invoice content", "doc")

	if sg.Category != "billing" || sg.IsNew {
		t.Errorf("expected existing billing match, got %+v", sg)
	}
	if sg.Confidence <= suggestSimilarityFloor {
		t.Errorf("expected similarity above floor, got %f", sg.Confidence)
	}
	if complete.calls != 0 {
		t.Errorf("strong semantic match must skip completion, got %d calls", complete.calls)
	}
}

func TestSuggestFallsThroughToCompletion(t *testing.T) {
	store := newMockStore()
	store.byName["billing"] = domain.Category{Name: "billing", Embedding: []float32{1, 0}, IsActive: true}
	embed := &mockEmbedder{vector: []float32{0, 1}} // orthogonal, below floor
	complete := &mockCompleter{response: `{"category": "billing", "confidence": 0.6}`}
	svc := newTestService(store, embed, complete)

	sg := svc.Suggest(context.Background(), "vague content", "doc")

	if sg.Category != "billing" || sg.IsNew {
		t.Errorf("expected existing billing via completion, got %+v", sg)
	}
	if sg.Confidence != 0.6 {
		t.Errorf("expected confidence 0.6, got %f", sg.Confidence)
	}
}

func TestSuggestCompletionProposesNew(t *testing.T) {
	store := newMockStore()
	store.byName["billing"] = domain.Category{Name: "billing", Embedding: []float32{1, 0}, IsActive: true}
	embed := &mockEmbedder{vector: []float32{0, 1}}
	complete := &mockCompleter{response: `{"category": "logistics", "confidence": 0.8, "description": "shipping"}`}
	svc := newTestService(store, embed, complete)

	sg := svc.Suggest(context.Background(), "shipping content", "doc")

	if sg.Category != "logistics" || !sg.IsNew {
		t.Errorf("expected new logistics suggestion, got %+v", sg)
	}
}

func TestSuggestTotalFailure(t *testing.T) {
	store := newMockStore()
	store.byName["billing"] = domain.Category{Name: "billing", Embedding: []float32{1, 0}, IsActive: true}
	embed := &mockEmbedder{err: errors.New("embed down")}
	complete := &mockCompleter{err: errors.New("model down")}
	svc := newTestService(store, embed, complete)

	sg := svc.Suggest(context.Background(), "anything", "doc")

	if sg.Category != fallbackCategory || sg.Confidence != fallbackConfidence || !sg.IsNew {
		t.Errorf("expected generic fallback, got %+v", sg)
	}
}
