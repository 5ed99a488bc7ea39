package queryd

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

// cacheSettings hold one cache role's bounds.
type cacheSettings struct {
	capacity int
	ttl      time.Duration
}

type clientConfig struct {
	driver   string // "redis" or "valkey"
	addrs    []string
	password string

	embedder  Embedder
	completer Completer

	snapshotTTL time.Duration

	embeddingCache cacheSettings
	searchCache    cacheSettings
	statsCache     cacheSettings
	documentCache  cacheSettings

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

func defaultClientConfig() *clientConfig {
	return &clientConfig{
		snapshotTTL:    5 * time.Minute,
		embeddingCache: cacheSettings{capacity: 2000, ttl: 24 * time.Hour},
		searchCache:    cacheSettings{capacity: 1000, ttl: 10 * time.Minute},
		statsCache:     cacheSettings{capacity: 100, ttl: 5 * time.Minute},
		documentCache:  cacheSettings{capacity: 500, ttl: 30 * time.Minute},
	}
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithValkey configures the client to connect to a Valkey instance.
// Valkey speaks the Redis protocol; the same client is used underneath.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithEmbedder sets the text embedding provider.
// Required for the semantic classification stage and category embeddings.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithCompleter sets the completion provider.
// Required for the completion classification stage and category discovery.
func WithCompleter(p Completer) Option {
	return optionFunc(func(c *clientConfig) {
		c.completer = p
	})
}

// WithSnapshotTTL sets the classifier's category snapshot lifetime.
// Default: 5 minutes.
func WithSnapshotTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.snapshotTTL = ttl
	})
}

// WithEmbeddingCache overrides the embedding cache bounds.
// Defaults: 2000 entries, 24h TTL.
func WithEmbeddingCache(capacity int, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingCache = cacheSettings{capacity: capacity, ttl: ttl}
	})
}

// WithSearchCache overrides the search-result cache bounds.
// Defaults: 1000 entries, 10m TTL.
func WithSearchCache(capacity int, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.searchCache = cacheSettings{capacity: capacity, ttl: ttl}
	})
}

// WithStatsCache overrides the stats cache bounds.
// Defaults: 100 entries, 5m TTL.
func WithStatsCache(capacity int, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.statsCache = cacheSettings{capacity: capacity, ttl: ttl}
	})
}

// WithDocumentCache overrides the document-metadata cache bounds. This role
// is in-process only.
// Defaults: 500 entries, 30m TTL.
func WithDocumentCache(capacity int, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.documentCache = cacheSettings{capacity: capacity, ttl: ttl}
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
