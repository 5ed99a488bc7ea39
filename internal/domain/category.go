package domain

import (
	"strings"
	"time"
)

// MaxSampleDocuments caps how many member document IDs a category retains.
const MaxSampleDocuments = 5

// KeyPrefix namespaces every key this service writes to the shared store.
const KeyPrefix = "queryd:"

// Category is a named, described cluster of documents used for query routing.
// Name is always stored lower-cased; comparisons happen on the normalized form.
type Category struct {
	ID              string
	Name            string
	Description     string
	Keywords        []string
	Embedding       []float32 // nil when no embedding has been computed
	DocumentCount   int
	SampleDocuments []string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NormalizeCategoryName lower-cases and trims a category name.
// Every storage and comparison path goes through this.
func NormalizeCategoryName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NewCategory creates an active category with a normalized name.
func NewCategory(name, description string, keywords []string) (Category, error) {
	normalized := NormalizeCategoryName(name)
	if normalized == "" {
		return Category{}, ErrInvalidCategory
	}

	now := time.Now().UTC()
	return Category{
		ID:          normalized,
		Name:        normalized,
		Description: description,
		Keywords:    keywords,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// EmbeddingText returns the text a category embedding is computed from.
func (c Category) EmbeddingText() string {
	parts := make([]string, 0, 2+len(c.Keywords))
	parts = append(parts, c.Name)
	if c.Description != "" {
		parts = append(parts, c.Description)
	}
	parts = append(parts, c.Keywords...)
	return strings.Join(parts, " ")
}

// CapSampleDocuments returns at most MaxSampleDocuments document IDs.
func CapSampleDocuments(ids []string) []string {
	if len(ids) <= MaxSampleDocuments {
		return ids
	}
	return ids[:MaxSampleDocuments]
}
