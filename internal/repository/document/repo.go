// Package document maintains document-to-category assignments. Raw document
// storage belongs to the ingestion side of the system; this repository only
// owns the category field mutations the discovery engine performs.
package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/kbase-cloud/queryd/internal/db"
	"github.com/kbase-cloud/queryd/internal/domain"
)

var keyPrefix = domain.KeyPrefix + "doccat:"

// store is the consumer interface for assignment persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements the DocumentStore contract for category reassignment.
type Repo struct {
	store store
}

// New creates a document assignment repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// ReassignCategory sets a document's category. An empty category name clears
// the assignment.
func (r *Repo) ReassignCategory(ctx context.Context, documentID, categoryName string) error {
	if documentID == "" {
		return fmt.Errorf("document id is required")
	}
	key := keyPrefix + documentID

	normalized := domain.NormalizeCategoryName(categoryName)
	if normalized == "" {
		if err := r.store.Del(ctx, key); err != nil {
			return fmt.Errorf("clear category for %s: %w", documentID, err)
		}
		return nil
	}

	if err := r.store.Set(ctx, key, []byte(normalized)); err != nil {
		return fmt.Errorf("reassign %s to %s: %w", documentID, normalized, err)
	}
	return nil
}

// CategoryOf returns the category assigned to a document, or "" when unassigned.
func (r *Repo) CategoryOf(ctx context.Context, documentID string) (string, error) {
	data, err := r.store.Get(ctx, keyPrefix+documentID)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("get category of %s: %w", documentID, err)
	}
	return string(data), nil
}

// ClearCategory removes the given category from every document assigned to
// it. Used by the administrative delete cascade.
func (r *Repo) ClearCategory(ctx context.Context, categoryName string) (int, error) {
	normalized := domain.NormalizeCategoryName(categoryName)
	keys, err := r.store.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan assignments: %w", err)
	}

	cleared := 0
	for _, key := range keys {
		data, err := r.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, db.ErrKeyNotFound) {
				continue
			}
			return cleared, fmt.Errorf("get %s: %w", key, err)
		}
		if string(data) != normalized {
			continue
		}
		if err := r.store.Del(ctx, key); err != nil {
			return cleared, fmt.Errorf("del %s: %w", key, err)
		}
		cleared++
	}
	return cleared, nil
}
