package queryd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kbase-cloud/queryd/internal/cache"
	"github.com/kbase-cloud/queryd/internal/db"
	dbRedis "github.com/kbase-cloud/queryd/internal/db/redis"
	"github.com/kbase-cloud/queryd/internal/domain"
	"github.com/kbase-cloud/queryd/internal/metrics"
	categoryrepo "github.com/kbase-cloud/queryd/internal/repository/category"
	documentrepo "github.com/kbase-cloud/queryd/internal/repository/document"
	"github.com/kbase-cloud/queryd/internal/repository/embcache"
	categoriesuc "github.com/kbase-cloud/queryd/internal/usecase/categories"
	classifyuc "github.com/kbase-cloud/queryd/internal/usecase/classify"
	discoveryuc "github.com/kbase-cloud/queryd/internal/usecase/discovery"
	healthuc "github.com/kbase-cloud/queryd/internal/usecase/health"
	invalidationuc "github.com/kbase-cloud/queryd/internal/usecase/invalidation"
)

const defaultReadinessTimeout = 10 * time.Second

// Interfaces over the wired services, swappable in tests.
type classifier interface {
	Classify(ctx context.Context, query string) domain.QueryClassification
	ClassifyFast(ctx context.Context, query string) domain.QueryClassification
}

type categoryService interface {
	List(ctx context.Context) ([]domain.Category, error)
	GetByName(ctx context.Context, name string) (domain.Category, error)
	Create(ctx context.Context, name, description string, keywords []string) (domain.Category, error)
	Delete(ctx context.Context, name string) error
}

type discoveryService interface {
	Discover(ctx context.Context, corpus []discoveryuc.CorpusDocument) []discoveryuc.DiscoveredCategory
	SaveDiscovered(ctx context.Context, cats []discoveryuc.DiscoveredCategory) error
	Suggest(ctx context.Context, content, name string) discoveryuc.CategorySuggestion
}

type healthService interface {
	Check(ctx context.Context) healthuc.Report
}

type invalidationService interface {
	InvalidateAll(ctx context.Context)
}

type statsSource interface {
	Stats() cache.Stats
}

// Client is the queryd embedded client entry point.
type Client struct {
	store        db.Store
	classifier   classifier
	categories   categoryService
	discovery    discoveryService
	health       healthService
	invalidation invalidationService
	caches       []statsSource
	obs          *observer
}

// New creates a queryd Client and connects to the database.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := defaultClientConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("queryd: database address required (use WithRedis or WithValkey)")
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("queryd: database not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return wireClient(store, cfg, obs)
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "redis", "valkey":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("queryd: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("queryd: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	logger := zap.NewNop()

	var embedder domain.Embedder = noopEmbedder{}
	if cfg.embedder != nil {
		embedder = &embedderAdapter{inner: cfg.embedder}
	}
	var completer classifyuc.Completer = noopCompleter{}
	if cfg.completer != nil {
		completer = &completerAdapter{inner: cfg.completer}
	}

	embCache, err := newCache[[]float32]("embedding", cfg.embeddingCache, store,
		domain.KeyPrefix+"cache:embedding:", cache.VectorCodec{}, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	searchCache, err := newCache[[]byte]("search", cfg.searchCache, store,
		domain.KeyPrefix+"cache:search:", cache.JSONCodec[[]byte]{}, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	statsCache, err := newCache[[]byte]("stats", cfg.statsCache, store,
		domain.KeyPrefix+"cache:stats:", cache.JSONCodec[[]byte]{}, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	docCache, err := newCache[[]byte]("documents", cfg.documentCache, nil,
		"", cache.JSONCodec[[]byte]{}, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	cachedEmbedder := embcache.New(embedder, embCache, logger)

	catRepo := categoryrepo.New(store, logger)
	docRepo := documentrepo.New(store)

	categorySvc := categoriesuc.New(catRepo, docRepo, cachedEmbedder, logger)
	classifierSvc := classifyuc.NewService(categorySvc, cachedEmbedder, completer, cfg.snapshotTTL, logger)
	discoverySvc := discoveryuc.New(categorySvc, cachedEmbedder, completer, logger)

	coordinator := invalidationuc.New(logger, searchCache, statsCache, docCache)
	coordinator.Watch(classifierSvc)
	categorySvc.Subscribe(coordinator)

	healthSvc := healthuc.New(store, cachedEmbedder)

	return &Client{
		store:        store,
		classifier:   classifierSvc,
		categories:   categorySvc,
		discovery:    discoverySvc,
		health:       healthSvc,
		invalidation: coordinator,
		caches:       []statsSource{embCache, searchCache, statsCache, docCache},
		obs:          obs,
	}, nil
}

func newCache[V any](
	name string,
	settings cacheSettings,
	shared cache.SharedStore,
	prefix string,
	codec cache.Codec[V],
	logger *zap.Logger,
) (*cache.Tiered[V], error) {
	c, err := cache.New(cache.Options{
		Name:      name,
		Capacity:  settings.capacity,
		TTL:       settings.ttl,
		KeyPrefix: prefix,
	}, shared, codec, metrics.CacheRequestsTotal, logger)
	if err != nil {
		return nil, fmt.Errorf("queryd: create %s cache: %w", name, err)
	}
	return c, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Classify runs the full classification cascade. It never fails: provider
// and store errors degrade to a search-all classification.
func (c *Client) Classify(ctx context.Context, query string) Classification {
	start := time.Now()
	result := c.classifier.Classify(ctx, query)
	c.obs.observe("classify", start, nil)
	return classificationFromDomain(result)
}

// ClassifyFast runs the low-latency classification path: keyword scoring
// and, when inconclusive, an ungated semantic pass.
func (c *Client) ClassifyFast(ctx context.Context, query string) Classification {
	start := time.Now()
	result := c.classifier.ClassifyFast(ctx, query)
	c.obs.observe("classify_fast", start, nil)
	return classificationFromDomain(result)
}

// Categories returns every stored category.
func (c *Client) Categories(ctx context.Context) (_ []Category, err error) {
	start := time.Now()
	defer func() { c.obs.observe("list_categories", start, err) }()

	cats, err := c.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Category, 0, len(cats))
	for _, cat := range cats {
		out = append(out, categoryFromDomain(cat))
	}
	return out, nil
}

// Category returns one category by name.
func (c *Client) Category(ctx context.Context, name string) (_ Category, err error) {
	start := time.Now()
	defer func() { c.obs.observe("get_category", start, err) }()

	cat, err := c.categories.GetByName(ctx, name)
	if err != nil {
		return Category{}, err
	}
	return categoryFromDomain(cat), nil
}

// CreateCategory adds a single category. The name is normalized; a
// duplicate name fails with ErrCategoryExists.
func (c *Client) CreateCategory(ctx context.Context, name, description string, keywords []string) (_ Category, err error) {
	start := time.Now()
	defer func() { c.obs.observe("create_category", start, err) }()

	cat, err := c.categories.Create(ctx, name, description, keywords)
	if err != nil {
		return Category{}, err
	}
	return categoryFromDomain(cat), nil
}

// DeleteCategory removes a category and clears it from member documents.
func (c *Client) DeleteCategory(ctx context.Context, name string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete_category", start, err) }()

	return c.categories.Delete(ctx, name)
}

// DiscoverCategories clusters a corpus into named categories. It never
// fails; an empty result means the corpus was empty or the model was
// unavailable.
func (c *Client) DiscoverCategories(ctx context.Context, corpus []CorpusDocument) []DiscoveredCategory {
	start := time.Now()
	discovered := c.discovery.Discover(ctx, corpusToDiscovery(corpus))
	c.obs.observe("discover_categories", start, nil)
	return discoveredFromDiscovery(discovered)
}

// SaveDiscovered persists discovered categories and reassigns their member
// documents.
func (c *Client) SaveDiscovered(ctx context.Context, cats []DiscoveredCategory) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("save_discovered", start, err) }()

	return c.discovery.SaveDiscovered(ctx, discoveredToDiscovery(cats))
}

// SuggestCategory assigns a single piece of content to an existing or new
// category. It never fails; total provider failure yields a generic
// low-confidence suggestion.
func (c *Client) SuggestCategory(ctx context.Context, content, name string) Suggestion {
	start := time.Now()
	sg := c.discovery.Suggest(ctx, content, name)
	c.obs.observe("suggest_category", start, nil)
	return Suggestion{
		Category:    sg.Category,
		Confidence:  sg.Confidence,
		IsNew:       sg.IsNew,
		Description: sg.Description,
	}
}

// InvalidateCaches clears the derived caches (search, stats, documents)
// and the classifier snapshot. The embedding cache is content-addressed
// and left alone.
func (c *Client) InvalidateCaches(ctx context.Context) {
	start := time.Now()
	c.invalidation.InvalidateAll(ctx)
	c.obs.observe("invalidate_caches", start, nil)
}

// CacheStats returns a snapshot of every cache instance's counters.
func (c *Client) CacheStats() []CacheStats {
	out := make([]CacheStats, 0, len(c.caches))
	for _, src := range c.caches {
		out = append(out, statsFromCache(src.Stats()))
	}
	return out
}

// Health aggregates component health.
func (c *Client) Health(ctx context.Context) HealthReport {
	return reportFromHealth(c.health.Check(ctx))
}
