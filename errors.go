package queryd

import "github.com/kbase-cloud/queryd/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrCategoryNotFound        = domain.ErrCategoryNotFound
	ErrCategoryExists          = domain.ErrCategoryExists
	ErrInvalidCategory         = domain.ErrInvalidCategory
	ErrEmbeddingProviderError  = domain.ErrEmbeddingProviderError
	ErrCompletionProviderError = domain.ErrCompletionProviderError
)
