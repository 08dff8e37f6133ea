package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Damonbodine/sauce-rival-insight/internal/observability"
	"github.com/Damonbodine/sauce-rival-insight/internal/services/website"
	"github.com/Damonbodine/sauce-rival-insight/pkg/httputil"
)

// WebsiteAnalyzer runs the website analysis pipeline stage
type WebsiteAnalyzer interface {
	Analyze(ctx context.Context, businessID uuid.UUID, url string) (*website.Result, error)
}

// WebsiteHandler handles business website analysis requests
type WebsiteHandler struct {
	analyzer WebsiteAnalyzer
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewWebsiteHandler creates a new website handler. metrics may be nil.
func NewWebsiteHandler(analyzer WebsiteAnalyzer, metrics *observability.Metrics, logger *zap.Logger) *WebsiteHandler {
	return &WebsiteHandler{analyzer: analyzer, metrics: metrics, logger: logger}
}

// AnalyzeWebsiteRequest is the website analysis payload
type AnalyzeWebsiteRequest struct {
	BusinessID string `json:"businessId"`
	URL        string `json:"url"`
}

// AnalyzeWebsiteResponse is the success wire shape
type AnalyzeWebsiteResponse struct {
	Status      string   `json:"status"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// Analyze handles POST /api/v1/website/analyze
func (h *WebsiteHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeWebsiteRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	if req.BusinessID == "" || req.URL == "" {
		httputil.JSONError(w, http.StatusBadRequest, "businessId and url are required")
		return
	}

	businessID, err := uuid.Parse(req.BusinessID)
	if err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "businessId must be a valid UUID")
		return
	}

	result, err := h.analyzer.Analyze(r.Context(), businessID, req.URL)
	if err != nil {
		h.metrics.RecordWebsiteAnalysis("error")
		h.logger.Error("website analysis failed",
			zap.String("business_id", businessID.String()),
			zap.Error(err),
		)
		httputil.ErrorFromDomain(w, err)
		return
	}
	h.metrics.RecordWebsiteAnalysis("success")

	keywords := result.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	httputil.JSON(w, http.StatusOK, AnalyzeWebsiteResponse{
		Status:      "success",
		Description: result.Description,
		Keywords:    keywords,
	})
}
