package categories

import (
	"context"

	"github.com/kbase-cloud/queryd/internal/domain"
)

// Repository defines the storage contract for category records.
type Repository interface {
	List(ctx context.Context) ([]domain.Category, error)
	ListActive(ctx context.Context) ([]domain.Category, error)
	GetByName(ctx context.Context, name string) (domain.Category, error)
	Upsert(ctx context.Context, c domain.Category) error
	Delete(ctx context.Context, name string) error
}

// DocumentStore mutates document category assignments.
type DocumentStore interface {
	ReassignCategory(ctx context.Context, documentID, categoryName string) error
	ClearCategory(ctx context.Context, categoryName string) (int, error)
}

// Embedder vectorizes category text for semantic matching.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Invalidator is notified after every category mutation. The classifier's
// snapshot cache registers here.
type Invalidator interface {
	InvalidateCache()
}
