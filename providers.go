package queryd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kbase-cloud/queryd/internal/domain"
)

// Embedder converts text to vector embeddings. Without one the semantic
// classification stage and category embeddings are unavailable.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Completer runs a prompt against a completion model. Without one the
// completion classification stage and category discovery are unavailable.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

// CompletionOptions bound a single completion call.
type CompletionOptions struct {
	MaxTokens   int
	Temperature float32
}

// embedderAdapter wraps the public Embedder to satisfy domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

type completerAdapter struct {
	inner Completer
}

func (a *completerAdapter) Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (string, error) {
	out, err := a.inner.Complete(ctx, prompt, CompletionOptions{
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	return out, nil
}

// noopEmbedder returns an error on Embed (used when no embedder configured).
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New(
		"queryd: embedder not configured (use WithEmbedder)",
	)
}

// noopCompleter returns an error on Complete (used when no completer configured).
type noopCompleter struct{}

func (noopCompleter) Complete(_ context.Context, _ string, _ domain.CompletionOptions) (string, error) {
	return "", errors.New(
		"queryd: completer not configured (use WithCompleter)",
	)
}
