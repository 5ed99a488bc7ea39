// Package cache implements the layered read-through cache shared by the
// embedding, search-result, stats, and document-metadata roles. Tier 1 is a
// bounded in-process LRU with TTL checked on read; tier 2 is an optional
// shared key-value store consulted on tier-1 miss and written best-effort.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kbase-cloud/queryd/internal/db"
)

// sharedWriteTimeout bounds a single best-effort write to the shared tier.
const sharedWriteTimeout = 5 * time.Second

// SharedStore is the consumer interface for the shared persistent tier (ISP).
// Any failure behind it degrades to a miss or a no-op, never to a caller error.
type SharedStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Options configure a tiered cache instance.
type Options struct {
	Name      string        // role name, used in logs and metric labels
	Capacity  int           // tier-1 entry bound
	TTL       time.Duration // logical lifetime of an entry in both tiers
	KeyPrefix string        // shared-tier namespace, e.g. "queryd:cache:search:"
}

// Stats is a point-in-time snapshot of one cache instance.
type Stats struct {
	Name       string `json:"name"`
	Entries    int    `json:"entries"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	SharedHits uint64 `json:"shared_hits"`
}

// entry carries the value and its insertion time. An entry is logically
// absent once older than the cache TTL even while still held by the LRU;
// reads promote recency but never extend the absolute expiry.
type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// Tiered is a generic two-tier read-through cache.
type Tiered[V any] struct {
	name     string
	ttl      time.Duration
	local    *lru.Cache[string, entry[V]]
	shared   SharedStore // nil for tier-1-only roles
	prefix   string
	codec    Codec[V]
	requests *prometheus.CounterVec // labels: cache, result
	logger   *zap.Logger

	hits       atomic.Uint64
	misses     atomic.Uint64
	sharedHits atomic.Uint64

	now     func() time.Time
	pending sync.WaitGroup
}

// New creates a tiered cache. shared may be nil for in-process-only roles.
// requests is a counter vec with labels "cache" and "result", passed explicitly.
func New[V any](
	opts Options,
	shared SharedStore,
	codec Codec[V],
	requests *prometheus.CounterVec,
	logger *zap.Logger,
) (*Tiered[V], error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("cache name is required")
	}
	if opts.Capacity <= 0 {
		return nil, fmt.Errorf("cache %s: capacity must be positive, got %d", opts.Name, opts.Capacity)
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("cache %s: ttl must be positive, got %s", opts.Name, opts.TTL)
	}
	if shared != nil && opts.KeyPrefix == "" {
		return nil, fmt.Errorf("cache %s: key prefix is required with a shared tier", opts.Name)
	}

	local, err := lru.New[string, entry[V]](opts.Capacity)
	if err != nil {
		return nil, fmt.Errorf("cache %s: create lru: %w", opts.Name, err)
	}

	return &Tiered[V]{
		name:     opts.Name,
		ttl:      opts.TTL,
		local:    local,
		shared:   shared,
		prefix:   opts.KeyPrefix,
		codec:    codec,
		requests: requests,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Name returns the cache's role name.
func (c *Tiered[V]) Name() string { return c.name }

// Get returns the cached value for key, consulting tier 1 then the shared
// tier. It never fails: any error on the way degrades to a miss.
func (c *Tiered[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V

	if e, ok := c.local.Get(key); ok {
		if c.now().Sub(e.insertedAt) <= c.ttl {
			c.hits.Add(1)
			c.count("hit")
			return e.value, true
		}
		c.local.Remove(key)
	}

	if c.shared == nil {
		c.recordMiss()
		return zero, false
	}

	data, err := c.shared.Get(ctx, c.prefix+key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("shared cache read failed",
				zap.String("cache", c.name), zap.String("key", key), zap.Error(err))
		}
		c.recordMiss()
		return zero, false
	}

	value, err := c.codec.Unmarshal(data)
	if err != nil {
		c.logger.Warn("corrupt shared cache entry",
			zap.String("cache", c.name), zap.String("key", key), zap.Error(err))
		c.recordMiss()
		return zero, false
	}

	c.local.Add(key, entry[V]{value: value, insertedAt: c.now()})
	c.sharedHits.Add(1)
	c.count("shared_hit")
	return value, true
}

// Set writes the value to tier 1 synchronously and to the shared tier as a
// fire-and-forget best-effort task. It never fails.
func (c *Tiered[V]) Set(_ context.Context, key string, value V) {
	c.local.Add(key, entry[V]{value: value, insertedAt: c.now()})

	if c.shared == nil {
		return
	}

	data, err := c.codec.Marshal(value)
	if err != nil {
		c.logger.Warn("marshal cache value failed",
			zap.String("cache", c.name), zap.String("key", key), zap.Error(err))
		return
	}

	c.bestEffort("set", func(ctx context.Context) error {
		return c.shared.SetWithTTL(ctx, c.prefix+key, data, c.ttl)
	})
}

// Invalidate drops a single key from both tiers.
func (c *Tiered[V]) Invalidate(_ context.Context, key string) {
	c.local.Remove(key)
	if c.shared == nil {
		return
	}
	c.bestEffort("del", func(ctx context.Context) error {
		return c.shared.Del(ctx, c.prefix+key)
	})
}

// Clear drops every entry in tier 1 and best-effort deletes this cache's
// keys in the shared tier. Shared-tier failures are logged, never returned.
func (c *Tiered[V]) Clear(ctx context.Context) {
	c.local.Purge()

	if c.shared == nil {
		return
	}

	keys, err := c.shared.Scan(ctx, c.prefix+"*")
	if err != nil {
		c.logger.Warn("shared cache scan failed during clear",
			zap.String("cache", c.name), zap.Error(err))
		return
	}
	for _, k := range keys {
		if err := c.shared.Del(ctx, k); err != nil {
			c.logger.Warn("shared cache delete failed during clear",
				zap.String("cache", c.name), zap.String("key", k), zap.Error(err))
		}
	}
}

// Stats returns a snapshot of the cache counters.
func (c *Tiered[V]) Stats() Stats {
	return Stats{
		Name:       c.name,
		Entries:    c.local.Len(),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		SharedHits: c.sharedHits.Load(),
	}
}

// bestEffort runs fn in a supervised goroutine; failures are logged and
// dropped. Callers already hold the tier-1 result, so a lost shared write
// only costs a future shared-tier miss.
func (c *Tiered[V]) bestEffort(op string, fn func(context.Context) error) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sharedWriteTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			c.logger.Warn("best-effort shared cache write failed",
				zap.String("cache", c.name), zap.String("op", op), zap.Error(err))
		}
	}()
}

// waitPending blocks until in-flight best-effort writes finish. Test hook.
func (c *Tiered[V]) waitPending() { c.pending.Wait() }

func (c *Tiered[V]) recordMiss() {
	c.misses.Add(1)
	c.count("miss")
}

func (c *Tiered[V]) count(result string) {
	if c.requests != nil {
		c.requests.WithLabelValues(c.name, result).Inc()
	}
}
