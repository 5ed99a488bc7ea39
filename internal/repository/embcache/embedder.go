// Package embcache decorates an embedder with the content-addressed tiered
// cache. Embedding vectors are pure functions of their input text, so
// cached entries stay valid across document lifecycle changes and are never
// cleared by the invalidation coordinator.
package embcache

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kbase-cloud/queryd/internal/cache"
	"github.com/kbase-cloud/queryd/internal/domain"
)

// CachedEmbedder serves embeddings from the tiered cache before calling the
// inner provider.
type CachedEmbedder struct {
	inner  domain.Embedder
	cache  *cache.Tiered[[]float32]
	logger *zap.Logger
}

// New creates a caching decorator.
func New(inner domain.Embedder, c *cache.Tiered[[]float32], logger *zap.Logger) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: c, logger: logger}
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
// Cache miss: full EmbeddingResult from inner.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := cache.EmbeddingKey(text)

	if vec, ok := c.cache.Get(ctx, key); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.cache.Set(ctx, key, result.Embedding)
	return result, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("inner embedder health: %w", err)
		}
	}
	return nil
}

// Stats exposes the underlying cache counters.
func (c *CachedEmbedder) Stats() cache.Stats {
	return c.cache.Stats()
}
