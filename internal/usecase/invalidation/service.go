// Package invalidation coordinates cache clearing after document and
// category mutations. It clears the derived caches (search results, stats,
// document metadata) and the classifier's category snapshot. The embedding
// cache is deliberately left alone: its keys are content-addressed, so a
// mutation can never make an entry wrong.
package invalidation

import (
	"context"

	"go.uber.org/zap"
)

// Cache is one clearable cache instance.
type Cache interface {
	Name() string
	Clear(ctx context.Context)
}

// SnapshotHolder drops an in-process snapshot wholesale.
type SnapshotHolder interface {
	InvalidateCache()
}

// Coordinator fans a mutation notification out to every dependent cache.
type Coordinator struct {
	caches    []Cache
	snapshots []SnapshotHolder
	logger    *zap.Logger
}

// New creates a coordinator over the given derived caches.
func New(logger *zap.Logger, caches ...Cache) *Coordinator {
	return &Coordinator{caches: caches, logger: logger}
}

// Watch registers a snapshot holder cleared alongside the caches.
func (c *Coordinator) Watch(s SnapshotHolder) {
	c.snapshots = append(c.snapshots, s)
}

// InvalidateAll clears every registered cache and snapshot. It never fails:
// shared-tier clear failures are logged inside each cache.
func (c *Coordinator) InvalidateAll(ctx context.Context) {
	for _, cache := range c.caches {
		cache.Clear(ctx)
		c.logger.Info("cache cleared", zap.String("cache", cache.Name()))
	}
	for _, s := range c.snapshots {
		s.InvalidateCache()
	}
}

// InvalidateCache lets the coordinator subscribe to the category mutation
// choke point directly.
func (c *Coordinator) InvalidateCache() {
	c.InvalidateAll(context.Background())
}
