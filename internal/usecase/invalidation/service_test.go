package invalidation

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

type mockCache struct {
	name   string
	clears int
}

func (m *mockCache) Name() string            { return m.name }
func (m *mockCache) Clear(_ context.Context) { m.clears++ }

type mockSnapshot struct {
	calls int
}

func (m *mockSnapshot) InvalidateCache() { m.calls++ }

func TestInvalidateAllClearsEverything(t *testing.T) {
	search := &mockCache{name: "search"}
	stats := &mockCache{name: "stats"}
	docs := &mockCache{name: "documents"}
	coord := New(zap.NewNop(), search, stats, docs)

	snap := &mockSnapshot{}
	coord.Watch(snap)

	coord.InvalidateAll(context.Background())

	for _, c := range []*mockCache{search, stats, docs} {
		if c.clears != 1 {
			t.Errorf("cache %s cleared %d times, want 1", c.name, c.clears)
		}
	}
	if snap.calls != 1 {
		t.Errorf("snapshot invalidated %d times, want 1", snap.calls)
	}
}

func TestInvalidateCacheSubscription(t *testing.T) {
	search := &mockCache{name: "search"}
	coord := New(zap.NewNop(), search)

	// The coordinator itself satisfies the mutation subscriber contract.
	var sub interface{ InvalidateCache() } = coord
	sub.InvalidateCache()

	if search.clears != 1 {
		t.Errorf("cache cleared %d times, want 1", search.clears)
	}
}

func TestWatchMultipleSnapshots(t *testing.T) {
	coord := New(zap.NewNop())
	first := &mockSnapshot{}
	second := &mockSnapshot{}
	coord.Watch(first)
	coord.Watch(second)

	coord.InvalidateAll(context.Background())

	if first.calls != 1 || second.calls != 1 {
		t.Errorf("expected both snapshots invalidated once, got %d and %d", first.calls, second.calls)
	}
}
