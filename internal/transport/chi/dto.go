package chi

import (
	"time"

	"github.com/kbase-cloud/queryd/internal/cache"
	"github.com/kbase-cloud/queryd/internal/domain"
	healthuc "github.com/kbase-cloud/queryd/internal/usecase/health"
)

type classifyRequest struct {
	Query string `json:"query"`
	Fast  bool   `json:"fast,omitempty"`
}

type classificationResponse struct {
	Categories      []string `json:"categories"`
	Confidence      float64  `json:"confidence"`
	ShouldSearchAll bool     `json:"shouldSearchAll"`
	Reasoning       string   `json:"reasoning,omitempty"`
}

type createCategoryRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

type categoryResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Keywords        []string  `json:"keywords,omitempty"`
	HasEmbedding    bool      `json:"hasEmbedding"`
	DocumentCount   int       `json:"documentCount"`
	SampleDocuments []string  `json:"sampleDocuments,omitempty"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type categoriesResponse struct {
	Categories []categoryResponse `json:"categories"`
}

type corpusDocumentDTO struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Summary string   `json:"summary,omitempty"`
	Topics  []string `json:"topics,omitempty"`
}

type discoverRequest struct {
	Documents []corpusDocumentDTO `json:"documents"`
}

type discoveredCategoryDTO struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	DocumentIDs []string `json:"documentIds,omitempty"`
}

type discoverResponse struct {
	Categories []discoveredCategoryDTO `json:"categories"`
}

type saveDiscoveredResponse struct {
	Saved int `json:"saved"`
}

type suggestRequest struct {
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

type suggestResponse struct {
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
	IsNew       bool    `json:"isNew"`
	Description string  `json:"description,omitempty"`
}

type cacheStatsResponse struct {
	Caches []cache.Stats `json:"caches"`
}

type healthResponse struct {
	Status string                          `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

func classificationToResponse(c domain.QueryClassification) classificationResponse {
	cats := c.Categories
	if cats == nil {
		cats = []string{}
	}
	return classificationResponse{
		Categories:      cats,
		Confidence:      c.Confidence,
		ShouldSearchAll: c.ShouldSearchAll,
		Reasoning:       c.Reasoning,
	}
}

func categoryToResponse(c domain.Category) categoryResponse {
	return categoryResponse{
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
