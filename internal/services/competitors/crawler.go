package competitors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Damonbodine/sauce-rival-insight/internal/config"
	"github.com/Damonbodine/sauce-rival-insight/internal/domain"
)

// CrawlSubmitter submits a site-wide crawl job
type CrawlSubmitter interface {
	Crawl(ctx context.Context, url string, depth int) (string, error)
}

// SiteCrawlStore is the persistence surface the crawler needs
type SiteCrawlStore interface {
	ListCrawlable(ctx context.Context, businessID uuid.UUID, limit int, policy config.CrawlRetryPolicy) ([]*domain.CompetitorSite, error)
	MarkCrawled(ctx context.Context, id uuid.UUID, crawlID string) error
	MarkCrawlFailed(ctx context.Context, id uuid.UUID, message string) error
}

// SiteStatus is one site's outcome within a crawl run
type SiteStatus struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Status string    `json:"status"`
}

// CrawlSummary aggregates a crawl run's per-site outcomes
type CrawlSummary struct {
	Success int          `json:"success"`
	Failed  int          `json:"failed"`
	Sites   []SiteStatus `json:"sites"`
}

// Message renders the run summary line
func (s *CrawlSummary) Message() string {
	return fmt.Sprintf("Crawl completed for %d sites. %d succeeded, %d failed.",
		s.Success+s.Failed, s.Success, s.Failed)
}

// Crawler submits crawl jobs for a business's uncrawled competitor
// sites, one at a time, recording each site's outcome on its row. A
// failed site never blocks the rest of the batch.
type Crawler struct {
	sites     SiteCrawlStore
	firecrawl CrawlSubmitter
	guard     RunGuard
	pipeline  config.PipelineConfig
	policy    config.DependencyPolicy
	logger    *zap.Logger
}

// NewCrawler creates a competitor crawler
func NewCrawler(sites SiteCrawlStore, firecrawl CrawlSubmitter, guard RunGuard, pipeline config.PipelineConfig, policy config.DependencyPolicy, logger *zap.Logger) *Crawler {
	return &Crawler{
		sites:     sites,
		firecrawl: firecrawl,
		guard:     guard,
		pipeline:  pipeline,
		policy:    policy,
		logger:    logger,
	}
}

// Run crawls the next batch of uncrawled sites for a business. Only
// one run may be active per business; concurrent callers get a
// conflict error.
func (c *Crawler) Run(ctx context.Context, businessID uuid.UUID) (*CrawlSummary, error) {
	runToken := uuid.NewString()
	acquired, err := c.guard.AcquireRunGuard(ctx, StageCrawl, businessID, runToken, c.pipeline.RunGuardTTL)
	if err != nil {
		return nil, fmt.Errorf("acquiring run guard: %w", err)
	}
	if !acquired {
		return nil, domain.ConflictError("a crawl is already running for this business")
	}
	defer func() {
		if err := c.guard.ReleaseRunGuard(context.WithoutCancel(ctx), StageCrawl, businessID, runToken); err != nil {
			c.logger.Warn("releasing run guard", zap.Error(err))
		}
	}()

	sites, err := c.sites.ListCrawlable(ctx, businessID, c.pipeline.CrawlBatchSize, c.pipeline.CrawlRetryPolicy)
	if err != nil {
		return nil, fmt.Errorf("fetching competitor sites: %w", err)
	}

	summary := &CrawlSummary{Sites: []SiteStatus{}}
	if len(sites) == 0 {
		return summary, nil
	}

	c.logger.Info("starting crawl run",
		zap.String("business_id", businessID.String()),
		zap.Int("sites", len(sites)),
	)

	for i, site := range sites {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c.crawlSite(ctx, site, summary)

		// Pace requests to the crawl provider
		if i < len(sites)-1 && c.policy.InterCallDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.policy.InterCallDelay):
			}
		}
	}

	c.logger.Info("crawl run finished",
		zap.String("business_id", businessID.String()),
		zap.Int("success", summary.Success),
		zap.Int("failed", summary.Failed),
	)

	return summary, nil
}

// crawlSite submits one site's crawl job and records the outcome on
// its row.
func (c *Crawler) crawlSite(ctx context.Context, site *domain.CompetitorSite, summary *CrawlSummary) {
	crawlID, err := c.firecrawl.Crawl(ctx, site.URL, c.pipeline.CrawlDepth)
	if err != nil {
		message := errorMessage(err)
		c.logger.Warn("crawl failed",
			zap.String("site_id", site.ID.String()),
			zap.String("url", site.URL),
			zap.String("error", message),
		)
		if markErr := c.sites.MarkCrawlFailed(ctx, site.ID, message); markErr != nil {
			c.logger.Error("recording crawl failure", zap.Error(markErr))
		}
		summary.Failed++
		summary.Sites = append(summary.Sites, SiteStatus{ID: site.ID, Name: site.Name, Status: string(domain.CrawlStatusError)})
		return
	}

	if err := c.sites.MarkCrawled(ctx, site.ID, crawlID); err != nil {
		c.logger.Error("recording crawl success", zap.Error(err))
		summary.Failed++
		summary.Sites = append(summary.Sites, SiteStatus{ID: site.ID, Name: site.Name, Status: string(domain.CrawlStatusError)})
		return
	}

	c.logger.Info("site crawled",
		zap.String("site_id", site.ID.String()),
		zap.String("crawl_id", crawlID),
	)
	summary.Success++
	summary.Sites = append(summary.Sites, SiteStatus{ID: site.ID, Name: site.Name, Status: string(domain.CrawlStatusSuccess)})
}

// errorMessage extracts the human-readable message from an error,
// preferring the domain error message so stored crawl errors carry
// exactly what the provider said.
func errorMessage(err error) string {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}
