// Package discovery clusters a document corpus into named categories and
// suggests category assignments for individual documents. All model failures
// degrade to empty or generic results rather than errors: discovery is an
// enrichment step, never a gate.
package discovery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kbase-cloud/queryd/internal/domain"
	"github.com/kbase-cloud/queryd/internal/llmjson"
)

const (
	discoveryMaxTokens   = 2000
	discoveryTemperature = 0.3

	suggestMaxTokens   = 200
	suggestTemperature = 0.2

	// Semantic suggestion acceptance threshold.
	suggestSimilarityFloor = 0.7

	fallbackCategory   = "general"
	fallbackConfidence = 0.3
	synthConfidence    = 0.7
)

// Service is the category discovery engine.
type Service struct {
	store    CategoryStore
	embed    Embedder
	complete Completer
	logger   *zap.Logger
}

// New creates a discovery service.
func New(store CategoryStore, embed Embedder, complete Completer, logger *zap.Logger) *Service {
	return &Service{store: store, embed: embed, complete: complete, logger: logger}
}

// Discover clusters the corpus into 3-10 named categories through a single
// completion call. It never fails: an empty corpus, a provider error, or
// unparseable model output all yield an empty result with a log line.
func (s *Service) Discover(ctx context.Context, corpus []CorpusDocument) []DiscoveredCategory {
	if len(corpus) == 0 {
		s.logger.Info("category discovery skipped, empty corpus")
		return nil
	}

	raw, err := s.complete.Complete(ctx, buildDiscoveryPrompt(corpus), domain.CompletionOptions{
		MaxTokens:   discoveryMaxTokens,
		Temperature: discoveryTemperature,
	})
	if err != nil {
		s.logger.Error("category discovery completion failed", zap.Error(err))
		return nil
	}

	var parsed struct {
		Categories []struct {
			Name            string   `json:"name"`
			Description     string   `json:"description"`
			Keywords        []string `json:"keywords"`
			DocumentIndices []int    `json:"documentIndices"`
		} `json:"categories"`
	}
	if err := llmjson.Unmarshal(raw, &parsed); err != nil {
		s.logger.Error("category discovery returned unparseable output", zap.Error(err))
		return nil
	}

	discovered := make([]DiscoveredCategory, 0, len(parsed.Categories))
	for _, pc := range parsed.Categories {
		name := domain.NormalizeCategoryName(pc.Name)
		if name == "" {
			continue
		}
		var ids []string
		for _, idx := range pc.DocumentIndices {
			// Indices in the prompt are 1-based.
			if idx < 1 || idx > len(corpus) {
				s.logger.Warn("discovery produced out-of-range document index",
					zap.String("category", name), zap.Int("index", idx))
				continue
			}
			ids = append(ids, corpus[idx-1].ID)
		}
		discovered = append(discovered, DiscoveredCategory{
			Name:        name,
			Description: pc.Description,
			Keywords:    pc.Keywords,
			DocumentIDs: ids,
		})
	}

	s.logger.Info("category discovery complete",
		zap.Int("documents", len(corpus)), zap.Int("categories", len(discovered)))
	return discovered
}

// SaveDiscovered persists discovered categories and reassigns their member
// documents. New categories get an embedding; existing ones keep theirs and
// have description, keywords, and membership stats overwritten. Documents
// claimed by several categories land in the last one, in input order.
func (s *Service) SaveDiscovered(ctx context.Context, discovered []DiscoveredCategory) error {
	assigned := make(map[string]string)

	for _, dc := range discovered {
		name := domain.NormalizeCategoryName(dc.Name)
		if name == "" {
			continue
		}

		cat, err := s.store.GetByName(ctx, name)
		switch {
		case err == nil:
			cat.Description = dc.Description
			cat.Keywords = dc.Keywords
		case errors.Is(err, domain.ErrCategoryNotFound):
			cat, err = domain.NewCategory(name, dc.Description, dc.Keywords)
			if err != nil {
				return fmt.Errorf("build category %s: %w", name, err)
			}
			if res, embedErr := s.embed.Embed(ctx, cat.EmbeddingText()); embedErr != nil {
				s.logger.Warn("failed to embed discovered category",
					zap.String("category", name), zap.Error(embedErr))
			} else {
				cat.Embedding = res.Embedding
			}
		default:
			return fmt.Errorf("load category %s: %w", name, err)
		}

		cat.DocumentCount = len(dc.DocumentIDs)
		cat.SampleDocuments = domain.CapSampleDocuments(dc.DocumentIDs)

		if err := s.store.Upsert(ctx, cat); err != nil {
			return fmt.Errorf("save category %s: %w", name, err)
		}

		for _, docID := range dc.DocumentIDs {
			if prev, ok := assigned[docID]; ok {
				s.logger.Warn("document claimed by multiple discovered categories",
					zap.String("document", docID),
					zap.String("previous", prev), zap.String("assigned", name))
			}
			assigned[docID] = name
			if err := s.store.ReassignDocument(ctx, docID, name); err != nil {
				s.logger.Error("failed to reassign document",
					zap.String("document", docID), zap.String("category", name), zap.Error(err))
			}
		}
	}
	return nil
}

// Suggest assigns a single piece of content to a category: semantic match
// against existing categories first, then a completion choice, synthesizing
// a new category when none exist. Total failure falls back to a generic
// low-confidence suggestion.
func (s *Service) Suggest(ctx context.Context, content, name string) CategorySuggestion {
	cats, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("suggestion could not load categories", zap.Error(err))
		return fallbackSuggestion()
	}

	if len(cats) == 0 {
		return s.synthesize(ctx, content, name)
	}

	if sg, ok := s.semanticSuggestion(ctx, content, cats); ok {
		return sg
	}
	return s.completionSuggestion(ctx, content, cats)
}

// semanticSuggestion embeds a content prefix and accepts the closest
// category when similarity clears the floor.
func (s *Service) semanticSuggestion(ctx context.Context, content string, cats []domain.Category) (CategorySuggestion, bool) {
	res, err := s.embed.Embed(ctx, truncateRunes(content, 1000))
	if err != nil {
		s.logger.Warn("suggestion embedding failed", zap.Error(err))
		return CategorySuggestion{}, false
	}

	best := CategorySuggestion{}
	for _, cat := range cats {
		if len(cat.Embedding) == 0 {
			continue
		}
		sim := domain.CosineSimilarity(res.Embedding, cat.Embedding)
		if sim > best.Confidence {
			best = CategorySuggestion{Category: cat.Name, Confidence: sim, Description: cat.Description}
		}
	}
	if best.Confidence > suggestSimilarityFloor {
		return best, true
	}
	return CategorySuggestion{}, false
}

func (s *Service) completionSuggestion(ctx context.Context, content string, cats []domain.Category) CategorySuggestion {
	raw, err := s.complete.Complete(ctx, buildSuggestPrompt(content, cats), domain.CompletionOptions{
		MaxTokens:   suggestMaxTokens,
		Temperature: suggestTemperature,
	})
	if err != nil {
		s.logger.Error("suggestion completion failed", zap.Error(err))
		return fallbackSuggestion()
	}

	var parsed struct {
		Category    string  `json:"category"`
		Confidence  float64 `json:"confidence"`
		Description string  `json:"description"`
	}
	if err := llmjson.Unmarshal(raw, &parsed); err != nil {
		s.logger.Error("suggestion returned unparseable output", zap.Error(err))
		return fallbackSuggestion()
	}

	suggested := domain.NormalizeCategoryName(parsed.Category)
	if suggested == "" {
		return fallbackSuggestion()
	}

	isNew := true
	for _, cat := range cats {
		if cat.Name == suggested {
			isNew = false
			break
		}
	}
	return CategorySuggestion{
		Category:    suggested,
		Confidence:  parsed.Confidence,
		IsNew:       isNew,
		Description: parsed.Description,
	}
}

// synthesize proposes a brand-new category when none exist yet.
func (s *Service) synthesize(ctx context.Context, content, name string) CategorySuggestion {
	raw, err := s.complete.Complete(ctx, buildSynthesizePrompt(content, name), domain.CompletionOptions{
		MaxTokens:   suggestMaxTokens,
		Temperature: suggestTemperature,
	})
	if err != nil {
		s.logger.Error("category synthesis failed", zap.Error(err))
		return fallbackSuggestion()
	}

	var parsed struct {
		Category    string `json:"category"`
		Description string `json:"description"`
	}
	if err := llmjson.Unmarshal(raw, &parsed); err != nil || domain.NormalizeCategoryName(parsed.Category) == "" {
		// Output unusable; fall back to the document's own name.
		fallback := domain.NormalizeCategoryName(name)
		if fallback == "" {
			return fallbackSuggestion()
		}
		return CategorySuggestion{Category: fallback, Confidence: synthConfidence, IsNew: true}
	}
	return CategorySuggestion{
		Category:    domain.NormalizeCategoryName(parsed.Category),
		Confidence:  synthConfidence,
		IsNew:       true,
		Description: parsed.Description,
	}
}

func fallbackSuggestion() CategorySuggestion {
	return CategorySuggestion{Category: fallbackCategory, Confidence: fallbackConfidence, IsNew: true}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
