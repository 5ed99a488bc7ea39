package discovery

import (
	"context"

	"github.com/kbase-cloud/queryd/internal/domain"
)

// CategoryStore is the mutation surface discovery writes through. It is
// satisfied by the category service, so every save participates in cache
// invalidation.
type CategoryStore interface {
	List(ctx context.Context) ([]domain.Category, error)
	GetByName(ctx context.Context, name string) (domain.Category, error)
	Upsert(ctx context.Context, cat domain.Category) error
	ReassignDocument(ctx context.Context, documentID, categoryName string) error
}

// Embedder vectorizes category and content text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Completer runs the clustering and suggestion prompts.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (string, error)
}
