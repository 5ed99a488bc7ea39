package queryd

import (
	"time"

	"github.com/kbase-cloud/queryd/internal/cache"
	"github.com/kbase-cloud/queryd/internal/domain"
	"github.com/kbase-cloud/queryd/internal/usecase/discovery"
	healthuc "github.com/kbase-cloud/queryd/internal/usecase/health"
)

// Classification is the result of routing a query against the category set.
// An empty Categories slice always comes with SearchAll set.
type Classification struct {
	Categories []string
	Confidence float64
	SearchAll  bool
	Reasoning  string
}

// Category is a named, described cluster of documents used for query routing.
type Category struct {
	ID              string
	Name            string
	Description     string
	Keywords        []string
	HasEmbedding    bool
	DocumentCount   int
	SampleDocuments []string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CorpusDocument is one document handed to category discovery.
type CorpusDocument struct {
	ID      string
	Name    string
	Summary string
	Topics  []string
}

// DiscoveredCategory is one cluster proposed by category discovery.
type DiscoveredCategory struct {
	Name        string
	Description string
	Keywords    []string
	DocumentIDs []string
}

// Suggestion assigns a single piece of content to an existing or newly
// proposed category.
type Suggestion struct {
	Category    string
	Confidence  float64
	IsNew       bool
	Description string
}

// CacheStats is a point-in-time snapshot of one cache instance.
type CacheStats struct {
	Name       string
	Entries    int
	Hits       uint64
	Misses     uint64
	SharedHits uint64
}

// HealthReport aggregates component health check results.
type HealthReport struct {
	Status string
	Checks map[string]string
}

func classificationFromDomain(c domain.QueryClassification) Classification {
	return Classification{
		Categories: c.Categories,
		Confidence: c.Confidence,
		SearchAll:  c.ShouldSearchAll,
		Reasoning:  c.Reasoning,
	}
}

func categoryFromDomain(c domain.Category) Category {
	return Category{
		ID:              c.ID,
		Name:            c.Name,
		Description:     c.Description,
		Keywords:        c.Keywords,
		HasEmbedding:    len(c.Embedding) > 0,
		DocumentCount:   c.DocumentCount,
		SampleDocuments: c.SampleDocuments,
		IsActive:        c.IsActive,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func corpusToDiscovery(corpus []CorpusDocument) []discovery.CorpusDocument {
	out := make([]discovery.CorpusDocument, 0, len(corpus))
	for _, d := range corpus {
		out = append(out, discovery.CorpusDocument{
			ID:      d.ID,
			Name:    d.Name,
			Summary: d.Summary,
			Topics:  d.Topics,
		})
	}
	return out
}

func discoveredFromDiscovery(cats []discovery.DiscoveredCategory) []DiscoveredCategory {
	out := make([]DiscoveredCategory, 0, len(cats))
	for _, dc := range cats {
		out = append(out, DiscoveredCategory{
			Name:        dc.Name,
			Description: dc.Description,
			Keywords:    dc.Keywords,
			DocumentIDs: dc.DocumentIDs,
		})
	}
	return out
}

func discoveredToDiscovery(cats []DiscoveredCategory) []discovery.DiscoveredCategory {
	out := make([]discovery.DiscoveredCategory, 0, len(cats))
	for _, dc := range cats {
		out = append(out, discovery.DiscoveredCategory{
			Name:        dc.Name,
			Description: dc.Description,
			Keywords:    dc.Keywords,
			DocumentIDs: dc.DocumentIDs,
		})
	}
	return out
}

func statsFromCache(s cache.Stats) CacheStats {
	return CacheStats{
		Name:       s.Name,
		Entries:    s.Entries,
		Hits:       s.Hits,
		Misses:     s.Misses,
		SharedHits: s.SharedHits,
	}
}

func reportFromHealth(r healthuc.Report) HealthReport {
	checks := make(map[string]string, len(r.Checks))
	for name, result := range r.Checks {
		checks[name] = string(result)
	}
	return HealthReport{Status: string(r.Status), Checks: checks}
}
