package category

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kbase-cloud/queryd/internal/db"
)

// mockKVStore implements the consumer interface over a map.
type mockKVStore struct {
	data map[string][]byte

	getErr  error
	setErr  error
	scanErr error
}

func newMockKVStore() *mockKVStore {
	return &mockKVStore{data: make(map[string][]byte)}
}

func (m *mockKVStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKVStore) Set(_ context.Context, key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *mockKVStore) Del(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *mockKVStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

func (m *mockKVStore) Scan(_ context.Context, pattern string) ([]string, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockKVStore) {
	t.Helper()
	ms := newMockKVStore()
	return New(ms, zap.NewNop()), ms
}
