package competitors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Damonbodine/sauce-rival-insight/internal/config"
	"github.com/Damonbodine/sauce-rival-insight/internal/domain"
	"github.com/Damonbodine/sauce-rival-insight/internal/llm"
)

// Completer sends a system+user prompt pair to the language model
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

// SiteLister fetches all competitor sites for a business
type SiteLister interface {
	ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]*domain.CompetitorSite, error)
}

// RawContentGetter fetches crawled page content by crawl identifier
type RawContentGetter interface {
	GetByCrawlID(ctx context.Context, crawlID string) (*domain.RawContent, error)
}

// AnalysisCreator persists a finished analysis
type AnalysisCreator interface {
	Create(ctx context.Context, analysis *domain.CompetitorAnalysis) error
}

// ReportInvalidator drops a cached report after a new analysis lands
type ReportInvalidator interface {
	InvalidateReport(ctx context.Context, businessID uuid.UUID) error
}

// ErrNoCompetitors is returned when a business has no discovered
// competitor sites to analyze.
var ErrNoCompetitors = &domain.DomainError{
	Code:    domain.ErrCodeNotFound,
	Message: "No competitors found for this business",
}

// Analyzer extracts structured attributes for each of a business's
// competitors and writes a cross-competitor narrative. Per-competitor
// model calls run concurrently up to the provider policy's limit; one
// competitor's failure is recorded in its outcome and never fails the
// run.
type Analyzer struct {
	businesses BusinessGetter
	sites      SiteLister
	rawContent RawContentGetter
	analyses   AnalysisCreator
	llm        Completer
	guard      RunGuard
	reports    ReportInvalidator
	pipeline   config.PipelineConfig
	policy     config.DependencyPolicy
	logger     *zap.Logger
}

// NewAnalyzer creates a competitor analyzer. reports may be nil when
// no report cache is configured.
func NewAnalyzer(
	businesses BusinessGetter,
	sites SiteLister,
	rawContent RawContentGetter,
	analyses AnalysisCreator,
	completer Completer,
	guard RunGuard,
	reports ReportInvalidator,
	pipeline config.PipelineConfig,
	policy config.DependencyPolicy,
	logger *zap.Logger,
) *Analyzer {
	return &Analyzer{
		businesses: businesses,
		sites:      sites,
		rawContent: rawContent,
		analyses:   analyses,
		llm:        completer,
		guard:      guard,
		reports:    reports,
		pipeline:   pipeline,
		policy:     policy,
		logger:     logger,
	}
}

// Analyze runs attribute extraction for every competitor of the
// business, then persists the extracted attributes and a narrative
// summary as a new analysis row.
func (a *Analyzer) Analyze(ctx context.Context, businessID uuid.UUID) (*domain.CompetitorAnalysis, error) {
	runToken := uuid.NewString()
	acquired, err := a.guard.AcquireRunGuard(ctx, StageAnalyze, businessID, runToken, a.pipeline.RunGuardTTL)
	if err != nil {
		return nil, fmt.Errorf("acquiring run guard: %w", err)
	}
	if !acquired {
		return nil, domain.ConflictError("an analysis is already running for this business")
	}
	defer func() {
		if err := a.guard.ReleaseRunGuard(context.WithoutCancel(ctx), StageAnalyze, businessID, runToken); err != nil {
			a.logger.Warn("releasing run guard", zap.Error(err))
		}
	}()

	business, err := a.businesses.GetByID(ctx, businessID)
	if err != nil {
		return nil, err
	}

	sites, err := a.sites.ListByBusiness(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("fetching competitors: %w", err)
	}
	if len(sites) == 0 {
		return nil, ErrNoCompetitors
	}

	industry := business.Industry()
	a.logger.Info("analyzing competitors",
		zap.String("business_id", businessID.String()),
		zap.String("industry", industry),
		zap.Int("competitors", len(sites)),
	)

	results := make([]domain.CompetitorResult, len(sites))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.policy.MaxInFlight)

	for i, site := range sites {
		g.Go(func() error {
			results[i] = a.analyzeCompetitor(gctx, industry, site)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := a.summarize(ctx, industry, business.Description, results)

	analysis := domain.NewCompetitorAnalysis(businessID, results, summary)
	if err := a.analyses.Create(ctx, analysis); err != nil {
		return nil, fmt.Errorf("saving analysis: %w", err)
	}

	if a.reports != nil {
		if err := a.reports.InvalidateReport(ctx, businessID); err != nil {
			a.logger.Warn("invalidating cached report", zap.Error(err))
		}
	}

	a.logger.Info("competitor analysis completed",
		zap.String("business_id", businessID.String()),
		zap.String("analysis_id", analysis.ID.String()),
	)

	return analysis, nil
}

const attributeSystemPromptFormat = `You are a business analyst specializing in competitive analysis for the %s industry.
Analyze the following competitor information and extract key details.
Extract the following information in JSON format:
1. Product Types: What products or services does this company offer?
2. Price Points: What pricing information can you find (specific prices, positioning like premium/budget)?
3. Unique Selling Propositions (USPs): What makes them special or different?
4. Tone/Branding: How would you describe their brand voice and positioning?
5. Target Customer: Who are they primarily selling to?

Format your response as valid JSON with these keys:
{
  "productTypes": ["product1", "product2"],
  "pricePoints": "description of pricing",
  "uniqueSellingPropositions": ["USP1", "USP2"],
  "toneBranding": "description of tone and branding",
  "targetCustomer": "description of target customers"
}
Only return the JSON object and nothing else.`

// analyzeCompetitor extracts attributes for one competitor. All
// failure modes fold into the outcome so callers always get a result
// per site.
func (a *Analyzer) analyzeCompetitor(ctx context.Context, industry string, site *domain.CompetitorSite) domain.CompetitorResult {
	result := domain.CompetitorResult{
		ID:   site.ID,
		Name: site.Name,
		URL:  site.URL,
	}

	systemPrompt := fmt.Sprintf(attributeSystemPromptFormat, industry)
	content := a.buildContentBlock(ctx, site)

	reply, err := a.llm.Complete(ctx, systemPrompt, content, 0.2)
	if err != nil {
		a.logger.Warn("competitor analysis call failed",
			zap.String("site_id", site.ID.String()),
			zap.Error(err),
		)
		result.Attributes = domain.FailedOutcome(errorMessage(err))
		return result
	}

	result.Attributes = parseAttributeReply(reply)
	return result
}

// buildContentBlock assembles the per-competitor prompt body from the
// site row and any crawled page content. Raw content is truncated so
// one large site cannot dominate the model context.
func (a *Analyzer) buildContentBlock(ctx context.Context, site *domain.CompetitorSite) string {
	summary := "Not available"
	if site.Summary != nil && *site.Summary != "" {
		summary = *site.Summary
	}

	contentLine := "No raw content available"
	if site.Crawled() {
		raw, err := a.rawContent.GetByCrawlID(ctx, *site.CrawlID)
		if err != nil {
			a.logger.Warn("fetching raw content",
				zap.String("site_id", site.ID.String()),
				zap.Error(err),
			)
		} else if raw != nil && raw.Content != nil {
			contentLine = "Website Content: " + truncate(*raw.Content, a.pipeline.RawContentLimit)
		}
	}

	return strings.Join([]string{
		"Company Name: " + site.Name,
		"Website: " + site.URL,
		"Summary: " + summary,
		contentLine,
	}, "\n\n")
}

// parseAttributeReply parses the model reply into structured
// attributes, falling back to extracting an embedded JSON object, then
// to keeping the raw reply.
func parseAttributeReply(reply string) domain.AttributeOutcome {
	trimmed := strings.TrimSpace(reply)

	var attrs domain.CompetitorAttributes
	if err := json.Unmarshal([]byte(trimmed), &attrs); err == nil {
		return domain.ParsedOutcome(attrs)
	}

	if extracted := llm.ExtractJSONObject(trimmed); extracted != "" {
		if err := json.Unmarshal([]byte(extracted), &attrs); err == nil {
			return domain.ParsedOutcome(attrs)
		}
	}

	return domain.UnparsedOutcome(reply)
}

const summarySystemPrompt = "You are a business strategy consultant. Provide detailed, actionable insights."

// summarize generates the cross-competitor narrative. A failure here
// degrades to an error note rather than failing the whole run.
func (a *Analyzer) summarize(ctx context.Context, industry, description string, results []domain.CompetitorResult) string {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "Error generating summary insights: " + err.Error()
	}

	prompt := fmt.Sprintf(`You are a business strategy consultant specializing in the %s industry.

Business Description: %s

Competitor Analysis Data:
%s

Based on the analysis of these %d competitors, provide strategic insights addressing the following:

1. Trends: What common trends do you see across these competitors in terms of products, pricing, positioning, and target customers?
2. Market Gaps: What opportunities or gaps exist in the market that aren't being addressed by these competitors?
3. Differentiation Strategy: How could a new business differentiate itself from these existing players?

Provide your insights in a detailed, actionable format that the business owner can use to inform their strategy.
Your response should be well-structured with clear sections for each area above.`,
		industry, description, data, len(results))

	insights, err := a.llm.Complete(ctx, summarySystemPrompt, prompt, 0.3)
	if err != nil {
		a.logger.Warn("summary insights call failed", zap.Error(err))
		return "Error generating summary insights: " + errorMessage(err)
	}

	return insights
}

func truncate(s string, limit int) string {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
