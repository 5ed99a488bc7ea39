package domain

import "errors"

var (
	// ErrCategoryNotFound signals a missing category.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrCategoryExists signals a duplicate category name.
	ErrCategoryExists = errors.New("category already exists")
	// ErrInvalidCategory signals an invalid category definition.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCompletionProviderError signals a completion provider failure.
	ErrCompletionProviderError = errors.New("completion provider error")
)
