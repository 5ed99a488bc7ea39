// Package category persists category records in the shared key-value store.
package category

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kbase-cloud/queryd/internal/db"
	"github.com/kbase-cloud/queryd/internal/domain"
)

var keyPrefix = domain.KeyPrefix + "category:"

// store is the consumer interface for category persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements the CategoryStore contract over the shared KV store.
type Repo struct {
	store  store
	logger *zap.Logger
}

// New creates a category repository.
func New(s store, logger *zap.Logger) *Repo {
	return &Repo{store: s, logger: logger}
}

// List returns every stored category. Corrupt records are skipped with a warning.
func (r *Repo) List(ctx context.Context) ([]domain.Category, error) {
	keys, err := r.store.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan categories: %w", err)
	}

	categories := make([]domain.Category, 0, len(keys))
	for _, key := range keys {
		data, err := r.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, db.ErrKeyNotFound) {
				continue // deleted between scan and get
			}
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		var dto categoryDTO
		if err := json.Unmarshal(data, &dto); err != nil {
			r.logger.Warn("skipping corrupt category record",
				zap.String("key", key), zap.Error(err))
			continue
		}
		categories = append(categories, fromDTO(dto))
	}
	return categories, nil
}

// ListActive returns only active categories.
func (r *Repo) ListActive(ctx context.Context) ([]domain.Category, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, c := range all {
		if c.IsActive {
			active = append(active, c)
		}
	}
	return active, nil
}

// GetByName returns a category by its normalized name.
func (r *Repo) GetByName(ctx context.Context, name string) (domain.Category, error) {
	key := categoryKey(name)
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.Category{}, domain.ErrCategoryNotFound
		}
		return domain.Category{}, fmt.Errorf("get %s: %w", key, err)
	}

	var dto categoryDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return domain.Category{}, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return fromDTO(dto), nil
}

// Exists reports whether a category with the given name is stored.
func (r *Repo) Exists(ctx context.Context, name string) (bool, error) {
	ok, err := r.store.Exists(ctx, categoryKey(name))
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", name, err)
	}
	return ok, nil
}

// Upsert stores a category under its normalized name.
func (r *Repo) Upsert(ctx context.Context, c domain.Category) error {
	if domain.NormalizeCategoryName(c.Name) != c.Name {
		return fmt.Errorf("%w: name %q is not normalized", domain.ErrInvalidCategory, c.Name)
	}

	data, err := json.Marshal(toDTO(c))
	if err != nil {
		return fmt.Errorf("marshal category %s: %w", c.Name, err)
	}
	if err := r.store.Set(ctx, categoryKey(c.Name), data); err != nil {
		return fmt.Errorf("set category %s: %w", c.Name, err)
	}
	return nil
}

// Delete removes a category by name. Deleting an absent category is an error.
func (r *Repo) Delete(ctx context.Context, name string) error {
	key := categoryKey(name)
	ok, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("exists %s: %w", key, err)
	}
	if !ok {
		return domain.ErrCategoryNotFound
	}
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

func categoryKey(name string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(name))
}
