package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Damonbodine/sauce-rival-insight/internal/domain"
	"github.com/Damonbodine/sauce-rival-insight/pkg/httputil"
)

// BusinessStore is the persistence surface for business intake
type BusinessStore interface {
	Create(ctx context.Context, business *domain.BusinessInput) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BusinessInput, error)
}

// SiteReader lists a business's competitor sites
type SiteReader interface {
	ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]*domain.CompetitorSite, error)
}

// AnalysisReader fetches persisted analyses
type AnalysisReader interface {
	LatestByBusiness(ctx context.Context, businessID uuid.UUID) (*domain.CompetitorAnalysis, error)
}

// ReportCache caches assembled reports. May be nil when Redis is not
// configured.
type ReportCache interface {
	GetReport(ctx context.Context, businessID uuid.UUID) (*domain.BusinessReport, error)
	SetReport(ctx context.Context, report *domain.BusinessReport) error
}

// BusinessHandler handles business intake and report retrieval
type BusinessHandler struct {
	businesses BusinessStore
	sites      SiteReader
	analyses   AnalysisReader
	cache      ReportCache
	logger     *zap.Logger
}

// NewBusinessHandler creates a new business handler
func NewBusinessHandler(businesses BusinessStore, sites SiteReader, analyses AnalysisReader, cache ReportCache, logger *zap.Logger) *BusinessHandler {
	return &BusinessHandler{
		businesses: businesses,
		sites:      sites,
		analyses:   analyses,
		cache:      cache,
		logger:     logger,
	}
}

// CreateBusinessRequest is the intake form payload
type CreateBusinessRequest struct {
	Description      string   `json:"description"`
	Keywords         []string `json:"keywords"`
	BusinessCategory *string  `json:"business_category,omitempty"`
	WebsiteURL       *string  `json:"website_url,omitempty"`
}

// Create handles POST /api/v1/businesses
func (h *BusinessHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBusinessRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	// A bare URL is enough; website analysis fills the description in
	if req.Description == "" && (req.WebsiteURL == nil || *req.WebsiteURL == "") {
		httputil.JSONError(w, http.StatusBadRequest, "description is required")
		return
	}

	business := domain.NewBusinessInput(req.Description, req.Keywords, req.WebsiteURL)
	business.BusinessCategory = req.BusinessCategory

	if err := h.businesses.Create(r.Context(), business); err != nil {
		h.logger.Error("creating business", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, business)
}

// GetReport handles GET /api/v1/businesses/{id}/report
func (h *BusinessHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	businessID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "invalid business id")
		return
	}

	if h.cache != nil {
		cached, err := h.cache.GetReport(r.Context(), businessID)
		if err != nil {
			h.logger.Warn("reading report cache", zap.Error(err))
		} else if cached != nil {
			httputil.JSON(w, http.StatusOK, cached)
			return
		}
	}

	business, err := h.businesses.GetByID(r.Context(), businessID)
	if err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	sites, err := h.sites.ListByBusiness(r.Context(), businessID)
	if err != nil {
		h.logger.Error("listing competitor sites", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}

	// A business with no analysis yet still gets a report
	analysis, err := h.analyses.LatestByBusiness(r.Context(), businessID)
	if err != nil && !domain.IsNotFoundError(err) {
		httputil.ErrorFromDomain(w, err)
		return
	}

	report := &domain.BusinessReport{
		Business:    business,
		Competitors: sites,
		Analysis:    analysis,
	}

	if h.cache != nil {
		if err := h.cache.SetReport(r.Context(), report); err != nil {
			h.logger.Warn("writing report cache", zap.Error(err))
		}
	}

	httputil.JSON(w, http.StatusOK, report)
}
