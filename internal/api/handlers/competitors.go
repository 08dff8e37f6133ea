package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Damonbodine/sauce-rival-insight/internal/domain"
	"github.com/Damonbodine/sauce-rival-insight/internal/observability"
	"github.com/Damonbodine/sauce-rival-insight/internal/services/competitors"
	"github.com/Damonbodine/sauce-rival-insight/pkg/httputil"
)

// CompetitorFinder discovers and stores competitor sites
type CompetitorFinder interface {
	Find(ctx context.Context, businessID uuid.UUID) (int, error)
}

// CompetitorCrawler runs a crawl batch for a business
type CompetitorCrawler interface {
	Run(ctx context.Context, businessID uuid.UUID) (*competitors.CrawlSummary, error)
}

// CompetitorAnalyzer runs attribute extraction and summary insights
type CompetitorAnalyzer interface {
	Analyze(ctx context.Context, businessID uuid.UUID) (*domain.CompetitorAnalysis, error)
}

// CompetitorsHandler handles the competitor pipeline stages
type CompetitorsHandler struct {
	finder   CompetitorFinder
	crawler  CompetitorCrawler
	analyzer CompetitorAnalyzer
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewCompetitorsHandler creates a new competitors handler. metrics may
// be nil.
func NewCompetitorsHandler(finder CompetitorFinder, crawler CompetitorCrawler, analyzer CompetitorAnalyzer, metrics *observability.Metrics, logger *zap.Logger) *CompetitorsHandler {
	return &CompetitorsHandler{
		finder:   finder,
		crawler:  crawler,
		analyzer: analyzer,
		metrics:  metrics,
		logger:   logger,
	}
}

// competitorStageRequest carries the business reference every stage
// takes.
type competitorStageRequest struct {
	BusinessInputID string `json:"business_input_id"`
}

func decodeBusinessID(r *http.Request) (uuid.UUID, error) {
	var req competitorStageRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		return uuid.Nil, err
	}
	if req.BusinessInputID == "" {
		return uuid.Nil, domain.ValidationError("business_input_id", "business_input_id is required")
	}

	businessID, err := uuid.Parse(req.BusinessInputID)
	if err != nil {
		return uuid.Nil, domain.ValidationError("business_input_id", "business_input_id must be a valid UUID")
	}
	return businessID, nil
}

// Find handles POST /api/v1/competitors/find
func (h *CompetitorsHandler) Find(w http.ResponseWriter, r *http.Request) {
	businessID, err := decodeBusinessID(r)
	if err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	count, err := h.finder.Find(r.Context(), businessID)
	if err != nil {
		h.logger.Error("competitor discovery failed",
			zap.String("business_id", businessID.String()),
			zap.Error(err),
		)

		// Surface what the search provider said
		var domainErr *domain.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == domain.ErrCodeExternalAPI {
			httputil.JSONErrorDetails(w, http.StatusInternalServerError, "Error calling search API", domainErr.Message)
			return
		}
		httputil.ErrorFromDomain(w, err)
		return
	}

	h.metrics.RecordDiscovery(count)
	httputil.JSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     fmt.Sprintf("Successfully saved %d competitor sites", count),
		"competitors": count,
	})
}

// Crawl handles POST /api/v1/competitors/crawl
func (h *CompetitorsHandler) Crawl(w http.ResponseWriter, r *http.Request) {
	businessID, err := decodeBusinessID(r)
	if err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	summary, err := h.crawler.Run(r.Context(), businessID)
	if err != nil {
		h.logger.Error("competitor crawl failed",
			zap.String("business_id", businessID.String()),
			zap.Error(err),
		)
		httputil.ErrorFromDomain(w, err)
		return
	}

	for _, site := range summary.Sites {
		h.metrics.RecordCrawlJob(site.Status)
	}

	if len(summary.Sites) == 0 {
		httputil.JSON(w, http.StatusOK, map[string]string{
			"message": "No competitor sites found for crawling",
		})
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"message": summary.Message(),
		"results": summary,
	})
}

// Analyze handles POST /api/v1/competitors/analyze
func (h *CompetitorsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	businessID, err := decodeBusinessID(r)
	if err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	analysis, err := h.analyzer.Analyze(r.Context(), businessID)
	if err != nil {
		// A business with no discovered competitors is reported as a
		// message, not an error
		if err == competitors.ErrNoCompetitors {
			httputil.JSON(w, http.StatusNotFound, map[string]string{
				"message": competitors.ErrNoCompetitors.Message,
			})
			return
		}

		h.metrics.RecordCompetitorAnalysis("error")
		h.logger.Error("competitor analysis failed",
			zap.String("business_id", businessID.String()),
			zap.Error(err),
		)
		httputil.ErrorFromDomain(w, err)
		return
	}

	h.metrics.RecordCompetitorAnalysis("success")
	for _, result := range analysis.Attributes {
		switch {
		case result.Attributes.Parsed != nil:
			h.metrics.RecordAttributeExtraction("parsed")
		case result.Attributes.Unparsed != nil:
			h.metrics.RecordAttributeExtraction("unparsed")
		case result.Attributes.Failed != nil:
			h.metrics.RecordAttributeExtraction("failed")
		}
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"message":             "Analysis completed successfully",
		"analysisId":          analysis.ID,
		"competitorsAnalyzed": len(analysis.Attributes),
	})
}
