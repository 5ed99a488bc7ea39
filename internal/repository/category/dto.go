package category

import (
	"time"

	"github.com/kbase-cloud/queryd/internal/domain"
)

// categoryDTO is the stored JSON shape of a category record.
type categoryDTO struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Keywords        []string  `json:"keywords,omitempty"`
	Embedding       []float32 `json:"embedding,omitempty"`
	DocumentCount   int       `json:"document_count"`
	SampleDocuments []string  `json:"sample_documents,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toDTO(c domain.Category) categoryDTO {
	return categoryDTO{
		ID:              c.ID,
		Name:            c.Name,
		Description:     c.Description,
		Keywords:        c.Keywords,
		Embedding:       c.Embedding,
		DocumentCount:   c.DocumentCount,
		SampleDocuments: c.SampleDocuments,
		IsActive:        c.IsActive,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func fromDTO(d categoryDTO) domain.Category {
	return domain.Category{
		ID:              d.ID,
		Name:            d.Name,
		Description:     d.Description,
		Keywords:        d.Keywords,
		Embedding:       d.Embedding,
		DocumentCount:   d.DocumentCount,
		SampleDocuments: d.SampleDocuments,
		IsActive:        d.IsActive,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}
