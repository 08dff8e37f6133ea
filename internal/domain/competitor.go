package domain

import (
	"time"

	"github.com/google/uuid"
)

// CrawlStatus represents the crawl lifecycle of a competitor site:
// uncrawled (null) -> success | error. Transitions happen only via
// the crawler.
type CrawlStatus string

const (
	CrawlStatusSuccess CrawlStatus = "success"
	CrawlStatusError   CrawlStatus = "error"
)

func (s CrawlStatus) IsValid() bool {
	return s == CrawlStatusSuccess || s == CrawlStatusError
}

// CompetitorSite is one discovered candidate competitor. Created in
// bulk by the finder with crawl fields null; mutated one row at a
// time by the crawler; never deleted.
type CompetitorSite struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	BusinessID  uuid.UUID    `json:"business_id" db:"business_id"`
	Name        string       `json:"name" db:"name"`
	URL         string       `json:"url" db:"url"`
	Summary     *string      `json:"summary,omitempty" db:"summary"`
	SourceRank  *float64     `json:"source_rank,omitempty" db:"source_rank"`
	CrawlID     *string      `json:"crawl_id,omitempty" db:"crawl_id"`
	CrawlStatus *CrawlStatus `json:"crawl_status,omitempty" db:"crawl_status"`
	CrawlError  *string      `json:"crawl_error,omitempty" db:"crawl_error"`
	CrawledAt   *time.Time   `json:"crawled_at,omitempty" db:"crawled_at"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
}

// NewCompetitorSite creates a competitor site row with crawl fields
// unset.
func NewCompetitorSite(businessID uuid.UUID, name, url string, summary *string, sourceRank *float64) *CompetitorSite {
	return &CompetitorSite{
		ID:         uuid.New(),
		BusinessID: businessID,
		Name:       name,
		URL:        url,
		Summary:    summary,
		SourceRank: sourceRank,
		CreatedAt:  time.Now().UTC(),
	}
}

// Crawled reports whether the site holds a crawl identifier. Errored
// sites never receive one, which is what makes them eligible for
// re-selection under the retry-errors policy.
func (s *CompetitorSite) Crawled() bool {
	return s.CrawlID != nil && *s.CrawlID != ""
}

// RawContent is the page text fetched for a crawled site, correlated
// to the site by crawl identifier value. Populated by an external
// ingestion process; read-only here.
type RawContent struct {
	ID      uuid.UUID `json:"id" db:"id"`
	CrawlID string    `json:"crawl_id" db:"crawl_id"`
	Content *string   `json:"content,omitempty" db:"content"`
}
