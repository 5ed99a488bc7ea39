// Package categories owns the category lifecycle. Every persisted category
// mutation in the whole service flows through Service.apply, which is the
// single choke point coupling mutation to cache invalidation — skipping the
// invalidation after a write is structurally impossible for callers.
package categories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kbase-cloud/queryd/internal/domain"
)

// Service handles category reads and mutation-with-invalidation.
type Service struct {
	repo         Repository
	docs         DocumentStore
	embed        Embedder
	invalidators []Invalidator
	logger       *zap.Logger
	now          func() time.Time
}

// New creates a category service.
func New(repo Repository, docs DocumentStore, embed Embedder, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		docs:   docs,
		embed:  embed,
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe registers an invalidator notified after every mutation.
func (s *Service) Subscribe(inv Invalidator) {
	s.invalidators = append(s.invalidators, inv)
}

// List returns all stored categories.
func (s *Service) List(ctx context.Context) ([]domain.Category, error) {
	cats, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// ListActive returns active categories for classification.
func (s *Service) ListActive(ctx context.Context) ([]domain.Category, error) {
	cats, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active categories: %w", err)
	}
	return cats, nil
}

// GetByName returns one category by normalized name.
func (s *Service) GetByName(ctx context.Context, name string) (domain.Category, error) {
	return s.repo.GetByName(ctx, domain.NormalizeCategoryName(name))
}

// Create adds a single category administratively, computing its embedding.
// Fails when a category with the same normalized name already exists.
func (s *Service) Create(ctx context.Context, name, description string, keywords []string) (domain.Category, error) {
	cat, err := domain.NewCategory(name, description, keywords)
	if err != nil {
		return domain.Category{}, err
	}

	if _, err := s.repo.GetByName(ctx, cat.Name); err == nil {
		return domain.Category{}, fmt.Errorf("%w: %s", domain.ErrCategoryExists, cat.Name)
	} else if !errors.Is(err, domain.ErrCategoryNotFound) {
		return domain.Category{}, fmt.Errorf("check existing %s: %w", cat.Name, err)
	}

	// Embedding failure is tolerated: the category stays usable for the
	// keyword and completion stages and can be re-embedded later.
	if res, err := s.embed.Embed(ctx, cat.EmbeddingText()); err != nil {
		s.logger.Warn("failed to embed new category",
			zap.String("category", cat.Name), zap.Error(err))
	} else {
		cat.Embedding = res.Embedding
	}

	if err := s.apply(ctx, cat); err != nil {
		return domain.Category{}, err
	}
	return cat, nil
}

// Upsert writes a category through the mutation choke point. The caller is
// responsible for the record's content; the name must be normalized.
func (s *Service) Upsert(ctx context.Context, cat domain.Category) error {
	return s.apply(ctx, cat)
}

// Delete removes a category and cascades: every member document's category
// assignment is cleared.
func (s *Service) Delete(ctx context.Context, name string) error {
	normalized := domain.NormalizeCategoryName(name)

	if err := s.repo.Delete(ctx, normalized); err != nil {
		return fmt.Errorf("delete category %s: %w", normalized, err)
	}

	cleared, err := s.docs.ClearCategory(ctx, normalized)
	if err != nil {
		// The category record is already gone; report the partial cascade.
		s.logger.Error("category delete cascade incomplete",
			zap.String("category", normalized), zap.Int("cleared", cleared), zap.Error(err))
	} else if cleared > 0 {
		s.logger.Info("cleared category from member documents",
			zap.String("category", normalized), zap.Int("documents", cleared))
	}

	s.notifyMutation()
	return nil
}

// ReassignDocument moves a document to a category and invalidates dependents.
func (s *Service) ReassignDocument(ctx context.Context, documentID, categoryName string) error {
	if err := s.docs.ReassignCategory(ctx, documentID, categoryName); err != nil {
		return fmt.Errorf("reassign document %s: %w", documentID, err)
	}
	s.notifyMutation()
	return nil
}

// apply is the single write path for category records.
func (s *Service) apply(ctx context.Context, cat domain.Category) error {
	cat.UpdatedAt = s.now().UTC()
	if err := s.repo.Upsert(ctx, cat); err != nil {
		return fmt.Errorf("upsert category %s: %w", cat.Name, err)
	}
	s.notifyMutation()
	return nil
}

func (s *Service) notifyMutation() {
	for _, inv := range s.invalidators {
		inv.InvalidateCache()
	}
}
