package competitors

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Damonbodine/sauce-rival-insight/internal/domain"
	"github.com/Damonbodine/sauce-rival-insight/internal/search"
)

// Searcher runs a semantic query against the search provider
type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Result, error)
}

// BusinessGetter fetches a business row
type BusinessGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BusinessInput, error)
}

// SiteCreator inserts discovered competitor sites
type SiteCreator interface {
	CreateBatch(ctx context.Context, sites []*domain.CompetitorSite) error
}

// Finder discovers candidate competitors for a business via semantic
// search over its description and keywords.
type Finder struct {
	businesses BusinessGetter
	sites      SiteCreator
	searcher   Searcher
	logger     *zap.Logger
}

// NewFinder creates a competitor finder
func NewFinder(businesses BusinessGetter, sites SiteCreator, searcher Searcher, logger *zap.Logger) *Finder {
	return &Finder{
		businesses: businesses,
		sites:      sites,
		searcher:   searcher,
		logger:     logger,
	}
}

// Find queries the search provider and stores the hits as competitor
// sites. Returns how many sites were saved. Repeat calls append new
// rows; dedup is left to the caller's judgement.
func (f *Finder) Find(ctx context.Context, businessID uuid.UUID) (int, error) {
	business, err := f.businesses.GetByID(ctx, businessID)
	if err != nil {
		return 0, err
	}

	query := business.SearchQuery()
	f.logger.Info("searching for competitors",
		zap.String("business_id", businessID.String()),
		zap.String("query", query),
	)

	results, err := f.searcher.Search(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("calling search API: %w", err)
	}

	sites := make([]*domain.CompetitorSite, 0, len(results))
	for _, result := range results {
		sites = append(sites, domain.NewCompetitorSite(
			businessID,
			siteName(result),
			result.URL,
			optionalString(result.Text),
			result.Score,
		))
	}

	if err := f.sites.CreateBatch(ctx, sites); err != nil {
		return 0, fmt.Errorf("saving competitor sites: %w", err)
	}

	f.logger.Info("competitor sites saved",
		zap.String("business_id", businessID.String()),
		zap.Int("count", len(sites)),
	)

	return len(sites), nil
}

// siteName prefers the result title, falling back to the URL hostname
// for untitled hits.
func siteName(result search.Result) string {
	if result.Title != "" {
		return result.Title
	}
	if parsed, err := url.Parse(result.URL); err == nil && parsed.Hostname() != "" {
		return parsed.Hostname()
	}
	return result.URL
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
