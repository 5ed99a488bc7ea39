package classify

import (
	"context"

	"github.com/kbase-cloud/queryd/internal/domain"
)

// CategorySource supplies the categories a query is classified against.
type CategorySource interface {
	ListActive(ctx context.Context) ([]domain.Category, error)
}

// Embedder vectorizes the query for the semantic stage.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Completer runs the fallback classification prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (string, error)
}
