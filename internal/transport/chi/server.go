// Package chi implements the HTTP API: query classification, category
// discovery and administration, cache inspection, and invalidation.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kbase-cloud/queryd/internal/cache"
	"github.com/kbase-cloud/queryd/internal/domain"
	"github.com/kbase-cloud/queryd/internal/usecase/discovery"
	healthuc "github.com/kbase-cloud/queryd/internal/usecase/health"
)

// Classifier routes queries to categories.
type Classifier interface {
	Classify(ctx context.Context, query string) domain.QueryClassification
	ClassifyFast(ctx context.Context, query string) domain.QueryClassification
}

// Discoverer clusters a corpus and suggests categories for single documents.
type Discoverer interface {
	Discover(ctx context.Context, corpus []discovery.CorpusDocument) []discovery.DiscoveredCategory
	SaveDiscovered(ctx context.Context, cats []discovery.DiscoveredCategory) error
	Suggest(ctx context.Context, content, name string) discovery.CategorySuggestion
}

// CategoryAdmin is the administrative category surface.
type CategoryAdmin interface {
	List(ctx context.Context) ([]domain.Category, error)
	Create(ctx context.Context, name, description string, keywords []string) (domain.Category, error)
	Delete(ctx context.Context, name string) error
}

// Invalidator clears the derived caches.
type Invalidator interface {
	InvalidateAll(ctx context.Context)
}

// StatsSource reports one cache instance's counters.
type StatsSource interface {
	Stats() cache.Stats
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	classifier    Classifier
	discoverer    Discoverer
	categories    CategoryAdmin
	invalidator   Invalidator
	caches        []StatsSource
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server.
func NewServer(
	classifier Classifier,
	discoverer Discoverer,
	categories CategoryAdmin,
	invalidator Invalidator,
	health HealthChecker,
	logger *zap.Logger,
	caches ...StatsSource,
) *Server {
	s := &Server{
		classifier:  classifier,
		discoverer:  discoverer,
		categories:  categories,
		invalidator: invalidator,
		caches:      caches,
		health:      health,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrCategoryNotFound, http.StatusNotFound, codeCategoryNotFound),
		sentinelHandler(domain.ErrCategoryExists, http.StatusConflict, codeCategoryExists),
		sentinelHandler(domain.ErrInvalidCategory, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrCompletionProviderError, http.StatusBadGateway, codeProviderError),
	}
	return s
}

// Register mounts every route on the router. Middleware is the caller's
// concern.
func (s *Server) Register(r chi.Router) {
	r.Post("/classify", s.handleClassify)
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", s.handleListCategories)
		r.Post("/", s.handleCreateCategory)
		r.Delete("/{name}", s.handleDeleteCategory)
		r.Post("/discover", s.handleDiscover)
		r.Post("/discover/save", s.handleSaveDiscovered)
		r.Post("/suggest", s.handleSuggest)
	})
	r.Get("/caches", s.handleCacheStats)
	r.Post("/invalidate", s.handleInvalidate)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Query is required")
		return
	}

	var result domain.QueryClassification
	if req.Fast {
		result = s.classifier.ClassifyFast(r.Context(), req.Query)
	} else {
		result = s.classifier.Classify(r.Context(), req.Query)
	}
	writeJSON(w, http.StatusOK, classificationToResponse(result))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.categories.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryToResponse(c))
	}
	writeJSON(w, http.StatusOK, categoriesResponse{Categories: out})
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Category name is required")
		return
	}

	cat, err := s.categories.Create(r.Context(), req.Name, req.Description, req.Keywords)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, categoryToResponse(cat))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.categories.Delete(r.Context(), name); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	corpus := make([]discovery.CorpusDocument, 0, len(req.Documents))
	for _, d := range req.Documents {
		corpus = append(corpus, discovery.CorpusDocument{
			ID:      d.ID,
			Name:    d.Name,
			Summary: d.Summary,
			Topics:  d.Topics,
		})
	}

	discovered := s.discoverer.Discover(r.Context(), corpus)
	out := make([]discoveredCategoryDTO, 0, len(discovered))
	for _, dc := range discovered {
		out = append(out, discoveredCategoryDTO{
			Name:        dc.Name,
			Description: dc.Description,
			Keywords:    dc.Keywords,
			DocumentIDs: dc.DocumentIDs,
		})
	}
	writeJSON(w, http.StatusOK, discoverResponse{Categories: out})
}

func (s *Server) handleSaveDiscovered(w http.ResponseWriter, r *http.Request) {
	var req discoverResponse // same shape as the discover output
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Categories) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "At least one category is required")
		return
	}

	cats := make([]discovery.DiscoveredCategory, 0, len(req.Categories))
	for _, dc := range req.Categories {
		cats = append(cats, discovery.DiscoveredCategory{
			Name:        dc.Name,
			Description: dc.Description,
			Keywords:    dc.Keywords,
			DocumentIDs: dc.DocumentIDs,
		})
	}

	if err := s.discoverer.SaveDiscovered(r.Context(), cats); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saveDiscoveredResponse{Saved: len(cats)})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Content is required")
		return
	}

	sg := s.discoverer.Suggest(r.Context(), req.Content, req.Name)
	writeJSON(w, http.StatusOK, suggestResponse{
		Category:    sg.Category,
		Confidence:  sg.Confidence,
		IsNew:       sg.IsNew,
		Description: sg.Description,
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	out := make([]cache.Stats, 0, len(s.caches))
	for _, c := range s.caches {
		out = append(out, c.Stats())
	}
	writeJSON(w, http.StatusOK, cacheStatsResponse{Caches: out})
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	s.invalidator.InvalidateAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{
		Status: string(report.Status),
		Checks: report.Checks,
	})
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
