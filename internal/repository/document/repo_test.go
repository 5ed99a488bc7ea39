package document

import (
	"context"
	"strings"
	"testing"

	"github.com/kbase-cloud/queryd/internal/db"
)

type mockKVStore struct {
	data map[string][]byte
}

func newMockKVStore() *mockKVStore {
	return &mockKVStore{data: make(map[string][]byte)}
}

func (m *mockKVStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKVStore) Set(_ context.Context, key string, value []byte) error {
	m.data[key] = value
	return nil
}

func (m *mockKVStore) Del(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *mockKVStore) Scan(_ context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func TestReassignCategory_RoundTrip(t *testing.T) {
	repo := New(newMockKVStore())
	ctx := context.Background()

	if err := repo.ReassignCategory(ctx, "doc-1", "Finance"); err != nil {
		t.Fatalf("ReassignCategory: %v", err)
	}

	got, err := repo.CategoryOf(ctx, "doc-1")
	if err != nil {
		t.Fatalf("CategoryOf: %v", err)
	}
	if got != "finance" {
		t.Errorf("category = %q, want normalized %q", got, "finance")
	}
}

func TestReassignCategory_EmptyClears(t *testing.T) {
	repo := New(newMockKVStore())
	ctx := context.Background()

	if err := repo.ReassignCategory(ctx, "doc-1", "finance"); err != nil {
		t.Fatalf("ReassignCategory: %v", err)
	}
	if err := repo.ReassignCategory(ctx, "doc-1", ""); err != nil {
		t.Fatalf("clear: %v", err)
	}

	got, err := repo.CategoryOf(ctx, "doc-1")
	if err != nil {
		t.Fatalf("CategoryOf: %v", err)
	}
	if got != "" {
		t.Errorf("category = %q, want empty", got)
	}
}

func TestReassignCategory_RequiresID(t *testing.T) {
	repo := New(newMockKVStore())
	if err := repo.ReassignCategory(context.Background(), "", "finance"); err == nil {
		t.Fatal("expected error for empty document id")
	}
}

func TestClearCategory_Cascade(t *testing.T) {
	repo := New(newMockKVStore())
	ctx := context.Background()

	for _, pair := range [][2]string{
		{"doc-1", "finance"},
		{"doc-2", "finance"},
		{"doc-3", "legal"},
	} {
		if err := repo.ReassignCategory(ctx, pair[0], pair[1]); err != nil {
			t.Fatalf("ReassignCategory(%s): %v", pair[0], err)
		}
	}

	cleared, err := repo.ClearCategory(ctx, "Finance")
	if err != nil {
		t.Fatalf("ClearCategory: %v", err)
	}
	if cleared != 2 {
		t.Errorf("cleared = %d, want 2", cleared)
	}

	if got, _ := repo.CategoryOf(ctx, "doc-3"); got != "legal" {
		t.Errorf("unrelated assignment touched: %q", got)
	}
	if got, _ := repo.CategoryOf(ctx, "doc-1"); got != "" {
		t.Errorf("doc-1 still assigned: %q", got)
	}
}
