package classify

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kbase-cloud/queryd/internal/domain"
	"github.com/kbase-cloud/queryd/internal/llmjson"
	"github.com/kbase-cloud/queryd/internal/metrics"
)

const (
	// Keyword stage gates.
	keywordReturnThreshold = 0.8
	keywordSearchAllBelow  = 0.3
	fastKeywordFloor       = 0.5
	minKeywordTokenLen     = 3

	// Semantic stage gates.
	semanticMinSimilarity   = 0.4
	semanticReturnThreshold = 0.7
	semanticSearchAllBelow  = 0.5

	completionMaxTokens   = 300
	completionTemperature = 0.1

	defaultSnapshotTTL = 5 * time.Minute
)

// Service routes queries to knowledge-base categories through a cascade of
// progressively more expensive stages: keyword scoring, embedding similarity,
// and finally a completion-model prompt. Each stage either produces a
// classification or passes the query down.
type Service struct {
	source   CategorySource
	embed    Embedder
	complete Completer
	logger   *zap.Logger

	snapshot    atomic.Pointer[categorySnapshot]
	snapshotTTL time.Duration
	now         func() time.Time

	stages []stage
}

type stage struct {
	name string
	run  func(ctx context.Context, query string, cats []domain.Category) *domain.QueryClassification
}

type categorySnapshot struct {
	categories []domain.Category
	expiresAt  time.Time
}

// NewService builds a classifier. A non-positive snapshotTTL falls back to
// five minutes.
func NewService(source CategorySource, embed Embedder, complete Completer, snapshotTTL time.Duration, logger *zap.Logger) *Service {
	if snapshotTTL <= 0 {
		snapshotTTL = defaultSnapshotTTL
	}
	s := &Service{
		source:      source,
		embed:       embed,
		complete:    complete,
		logger:      logger,
		snapshotTTL: snapshotTTL,
		now:         time.Now,
	}
	s.stages = []stage{
		{name: "keyword", run: s.keywordStage},
		{name: "semantic", run: s.semanticStage},
		{name: "completion", run: s.completionStage},
	}
	return s
}

// Classify runs the full cascade. It never returns an error: every failure
// degrades to a search-all classification.
func (s *Service) Classify(ctx context.Context, query string) domain.QueryClassification {
	start := s.now()
	defer func() {
		metrics.ClassificationDuration.WithLabelValues("full").Observe(time.Since(start).Seconds())
	}()

	cats, err := s.categories(ctx)
	if err != nil {
		s.logger.Warn("category snapshot unavailable, searching all", zap.Error(err))
		return domain.SearchAll(0, "category list unavailable")
	}
	if len(cats) == 0 {
		return domain.QueryClassification{
			Confidence:      1,
			ShouldSearchAll: true,
			Reasoning:       "no categories defined",
		}
	}

	for _, st := range s.stages {
		if result := st.run(ctx, query, cats); result != nil {
			metrics.ClassificationTotal.WithLabelValues(st.name, "matched").Inc()
			return *result
		}
		metrics.ClassificationTotal.WithLabelValues(st.name, "passed").Inc()
	}

	// Unreachable: the completion stage always produces a result.
	return domain.SearchAll(0, "classification inconclusive")
}

// ClassifyFast is the low-latency variant: keyword scoring, then an ungated
// semantic pass. It never reaches the completion model.
func (s *Service) ClassifyFast(ctx context.Context, query string) domain.QueryClassification {
	start := s.now()
	defer func() {
		metrics.ClassificationDuration.WithLabelValues("fast").Observe(time.Since(start).Seconds())
	}()

	cats, err := s.categories(ctx)
	if err != nil {
		s.logger.Warn("category snapshot unavailable, searching all", zap.Error(err))
		return domain.SearchAll(0, "category list unavailable")
	}
	if len(cats) == 0 {
		return domain.QueryClassification{
			Confidence:      1,
			ShouldSearchAll: true,
			Reasoning:       "no categories defined",
		}
	}

	names, mean := topMean(scoreKeywords(query, cats), domain.MaxClassificationCategories)
	if len(names) > 0 && mean >= fastKeywordFloor {
		metrics.ClassificationTotal.WithLabelValues("keyword", "matched").Inc()
		return domain.QueryClassification{
			Categories:      names,
			Confidence:      mean,
			ShouldSearchAll: mean < keywordSearchAllBelow,
			Reasoning:       "Keyword matching",
		}
	}
	metrics.ClassificationTotal.WithLabelValues("keyword", "passed").Inc()

	embedded, err := s.embed.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("fast classification embedding failed, searching all", zap.Error(err))
		return domain.SearchAll(0, "embedding unavailable")
	}
	names, mean = semanticMatches(embedded.Embedding, cats)
	if len(names) == 0 {
		metrics.ClassificationTotal.WithLabelValues("semantic", "passed").Inc()
		return domain.SearchAll(0, "no semantic match")
	}
	metrics.ClassificationTotal.WithLabelValues("semantic", "matched").Inc()
	return domain.QueryClassification{
		Categories:      names,
		Confidence:      mean,
		ShouldSearchAll: mean < semanticSearchAllBelow,
		Reasoning:       "Semantic similarity",
	}
}

// InvalidateCache drops the category snapshot so the next classification
// reloads categories from the repository.
func (s *Service) InvalidateCache() {
	s.snapshot.Store(nil)
}

// categories returns the active category set, served from a short-lived
// in-process snapshot. A refresh failure reuses the stale snapshot when one
// exists.
func (s *Service) categories(ctx context.Context) ([]domain.Category, error) {
	if snap := s.snapshot.Load(); snap != nil && s.now().Before(snap.expiresAt) {
		return snap.categories, nil
	}

	cats, err := s.source.ListActive(ctx)
	if err != nil {
		metrics.CategorySnapshotRefreshTotal.WithLabelValues("error").Inc()
		if snap := s.snapshot.Load(); snap != nil {
			s.logger.Warn("category refresh failed, serving stale snapshot", zap.Error(err))
			return snap.categories, nil
		}
		return nil, err
	}
	metrics.CategorySnapshotRefreshTotal.WithLabelValues("ok").Inc()
	s.snapshot.Store(&categorySnapshot{categories: cats, expiresAt: s.now().Add(s.snapshotTTL)})
	return cats, nil
}

func (s *Service) keywordStage(_ context.Context, query string, cats []domain.Category) *domain.QueryClassification {
	names, mean := topMean(scoreKeywords(query, cats), domain.MaxClassificationCategories)
	if len(names) == 0 || mean <= keywordReturnThreshold {
		return nil
	}
	return &domain.QueryClassification{
		Categories:      names,
		Confidence:      mean,
		ShouldSearchAll: mean < keywordSearchAllBelow,
		Reasoning:       "Keyword matching",
	}
}

func (s *Service) semanticStage(ctx context.Context, query string, cats []domain.Category) *domain.QueryClassification {
	embedded, err := s.embed.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("semantic stage embedding failed, escalating", zap.Error(err))
		return nil
	}
	names, mean := semanticMatches(embedded.Embedding, cats)
	if len(names) == 0 || mean <= semanticReturnThreshold {
		return nil
	}
	return &domain.QueryClassification{
		Categories:      names,
		Confidence:      mean,
		ShouldSearchAll: mean < semanticSearchAllBelow,
		Reasoning:       "Semantic similarity",
	}
}

func (s *Service) completionStage(ctx context.Context, query string, cats []domain.Category) *domain.QueryClassification {
	raw, err := s.complete.Complete(ctx, buildClassifyPrompt(query, cats), domain.CompletionOptions{
		MaxTokens:   completionMaxTokens,
		Temperature: completionTemperature,
	})
	if err != nil {
		s.logger.Warn("completion stage failed, searching all", zap.Error(err))
		result := domain.SearchAll(0, "classification unavailable")
		return &result
	}

	var parsed struct {
		Categories      []string `json:"categories"`
		Confidence      float64  `json:"confidence"`
		ShouldSearchAll bool     `json:"shouldSearchAll"`
		Reasoning       string   `json:"reasoning"`
	}
	if err := llmjson.Unmarshal(raw, &parsed); err != nil {
		s.logger.Warn("completion stage returned unparseable output, searching all",
			zap.Error(err), zap.String("raw", truncate(raw, 200)))
		result := domain.SearchAll(0, "classification unavailable")
		return &result
	}

	names := validNames(parsed.Categories, cats)
	confidence := clamp01(parsed.Confidence)
	searchAll := parsed.ShouldSearchAll
	if len(names) == 0 {
		searchAll = true
	}
	reasoning := parsed.Reasoning
	if reasoning == "" {
		reasoning = "Model classification"
	}
	return &domain.QueryClassification{
		Categories:      names,
		Confidence:      confidence,
		ShouldSearchAll: searchAll,
		Reasoning:       reasoning,
	}
}

type scoredCategory struct {
	name  string
	score float64
}

// scoreKeywords scores every category against the query text. Matching is
// plain lowercase substring containment over the raw query plus a token pass
// over its whitespace-split words.
func scoreKeywords(query string, cats []domain.Category) []scoredCategory {
	q := strings.ToLower(query)
	var tokens []string
	for _, tok := range strings.Fields(q) {
		if len(tok) >= minKeywordTokenLen {
			tokens = append(tokens, tok)
		}
	}

	scored := make([]scoredCategory, 0, len(cats))
	for _, cat := range cats {
		score := 0.0
		if strings.Contains(q, cat.Name) {
			score += 0.5
		}
		for _, kw := range cat.Keywords {
			if strings.Contains(q, strings.ToLower(kw)) {
				score += 0.2
			}
		}
		// The category name competes alongside its keywords in the token pass.
		terms := make([]string, 0, len(cat.Keywords)+1)
		terms = append(terms, cat.Name)
		for _, kw := range cat.Keywords {
			terms = append(terms, strings.ToLower(kw))
		}
		for _, term := range terms {
			for _, tok := range tokens {
				if strings.Contains(term, tok) || strings.Contains(tok, term) {
					score += 0.1
				}
			}
		}
		if score > 1 {
			score = 1
		}
		if score > 0 {
			scored = append(scored, scoredCategory{name: cat.Name, score: score})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].name < scored[j].name
	})
	return scored
}

// topMean selects up to n top-scored categories and their mean score.
func topMean(scored []scoredCategory, n int) ([]string, float64) {
	if len(scored) == 0 {
		return nil, 0
	}
	if len(scored) > n {
		scored = scored[:n]
	}
	names := make([]string, 0, len(scored))
	sum := 0.0
	for _, sc := range scored {
		names = append(names, sc.name)
		sum += sc.score
	}
	return names, sum / float64(len(names))
}

// semanticMatches ranks categories by cosine similarity to the query vector,
// keeping the top matches above the similarity floor.
func semanticMatches(queryVec []float32, cats []domain.Category) ([]string, float64) {
	scored := make([]scoredCategory, 0, len(cats))
	for _, cat := range cats {
		if len(cat.Embedding) == 0 {
			continue
		}
		sim := domain.CosineSimilarity(queryVec, cat.Embedding)
		if sim > semanticMinSimilarity {
			scored = append(scored, scoredCategory{name: cat.Name, score: sim})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].name < scored[j].name
	})
	return topMean(scored, domain.MaxClassificationCategories)
}

// validNames keeps only model-proposed names that exist in the category set,
// matched case-insensitively, capped at the classification limit.
func validNames(proposed []string, cats []domain.Category) []string {
	known := make(map[string]string, len(cats))
	for _, cat := range cats {
		known[strings.ToLower(cat.Name)] = cat.Name
	}
	var names []string
	seen := make(map[string]bool, len(proposed))
	for _, p := range proposed {
		canonical, ok := known[strings.ToLower(strings.TrimSpace(p))]
		if !ok || seen[canonical] {
			continue
		}
		seen[canonical] = true
		names = append(names, canonical)
		if len(names) == domain.MaxClassificationCategories {
			break
		}
	}
	return names
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
