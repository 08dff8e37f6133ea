package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Damonbodine/sauce-rival-insight/internal/config"
	"github.com/Damonbodine/sauce-rival-insight/internal/domain"
)

// CompetitorSiteRepository persists competitor site rows
type CompetitorSiteRepository struct {
	db *DB
}

// NewCompetitorSiteRepository creates a new competitor site repository
func NewCompetitorSiteRepository(db *DB) *CompetitorSiteRepository {
	return &CompetitorSiteRepository{db: db}
}

// competitorSiteRow represents the database row structure
type competitorSiteRow struct {
	ID          uuid.UUID  `db:"id"`
	BusinessID  uuid.UUID  `db:"business_id"`
	Name        string     `db:"name"`
	URL         string     `db:"url"`
	Summary     *string    `db:"summary"`
	SourceRank  *float64   `db:"source_rank"`
	CrawlID     *string    `db:"crawl_id"`
	CrawlStatus *string    `db:"crawl_status"`
	CrawlError  *string    `db:"crawl_error"`
	CrawledAt   *time.Time `db:"crawled_at"`
	CreatedAt   time.Time  `db:"created_at"`
}

func (r *competitorSiteRow) toDomain() *domain.CompetitorSite {
	site := &domain.CompetitorSite{
		ID:         r.ID,
		BusinessID: r.BusinessID,
		Name:       r.Name,
		URL:        r.URL,
		Summary:    r.Summary,
		SourceRank: r.SourceRank,
		CrawlID:    r.CrawlID,
		CrawlError: r.CrawlError,
		CrawledAt:  r.CrawledAt,
		CreatedAt:  r.CreatedAt,
	}
	if r.CrawlStatus != nil {
		status := domain.CrawlStatus(*r.CrawlStatus)
		site.CrawlStatus = &status
	}
	return site
}

const competitorSiteColumns = `id, business_id, name, url, summary, source_rank, crawl_id, crawl_status, crawl_error, crawled_at, created_at`

// CreateBatch inserts competitor sites in a single transaction so a
// failure inserts nothing.
func (r *CompetitorSiteRepository) CreateBatch(ctx context.Context, sites []*domain.CompetitorSite) error {
	if len(sites) == 0 {
		return nil
	}

	query := `
		INSERT INTO competitor_sites (id, business_id, name, url, summary, source_rank, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, site := range sites {
			if _, err := tx.ExecContext(ctx, query,
				site.ID,
				site.BusinessID,
				site.Name,
				site.URL,
				site.Summary,
				site.SourceRank,
				site.CreatedAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByID retrieves a competitor site by ID
func (r *CompetitorSiteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CompetitorSite, error) {
	query := `SELECT ` + competitorSiteColumns + ` FROM competitor_sites WHERE id = $1`

	var row competitorSiteRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError("competitor site", id)
		}
		return nil, err
	}

	return row.toDomain(), nil
}

// ListByBusiness retrieves all competitor sites for a business,
// best-ranked first.
func (r *CompetitorSiteRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]*domain.CompetitorSite, error) {
	query := `
		SELECT ` + competitorSiteColumns + `
		FROM competitor_sites
		WHERE business_id = $1
		ORDER BY source_rank DESC NULLS LAST, created_at
	`

	var rows []competitorSiteRow
	if err := r.db.SelectContext(ctx, &rows, query, businessID); err != nil {
		return nil, err
	}

	sites := make([]*domain.CompetitorSite, len(rows))
	for i := range rows {
		sites[i] = rows[i].toDomain()
	}
	return sites, nil
}

// ListCrawlable retrieves up to limit sites eligible for crawling.
// Sites holding a crawl identifier are always excluded, which makes
// repeat invocations resumable. Under the retry-errors policy,
// previously errored sites (no identifier) are picked up again; under
// policy none they are left alone.
func (r *CompetitorSiteRepository) ListCrawlable(ctx context.Context, businessID uuid.UUID, limit int, policy config.CrawlRetryPolicy) ([]*domain.CompetitorSite, error) {
	query := `
		SELECT ` + competitorSiteColumns + `
		FROM competitor_sites
		WHERE business_id = $1 AND crawl_id IS NULL
	`
	if policy == config.RetryPolicyNone {
		query += ` AND crawl_status IS DISTINCT FROM 'error'`
	}
	query += ` ORDER BY created_at LIMIT $2`

	var rows []competitorSiteRow
	if err := r.db.SelectContext(ctx, &rows, query, businessID, limit); err != nil {
		return nil, err
	}

	sites := make([]*domain.CompetitorSite, len(rows))
	for i := range rows {
		sites[i] = rows[i].toDomain()
	}
	return sites, nil
}

// MarkCrawled records a successful crawl: stores the crawl identifier
// and clears any error from a previous attempt.
func (r *CompetitorSiteRepository) MarkCrawled(ctx context.Context, id uuid.UUID, crawlID string) error {
	query := `
		UPDATE competitor_sites
		SET crawl_id = $2, crawl_status = 'success', crawl_error = NULL, crawled_at = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, crawlID, time.Now().UTC())
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.NotFoundError("competitor site", id)
	}

	return nil
}

// MarkCrawlFailed records a failed crawl attempt. The crawl
// identifier is left null so the row stays eligible under the
// retry-errors policy.
func (r *CompetitorSiteRepository) MarkCrawlFailed(ctx context.Context, id uuid.UUID, crawlError string) error {
	query := `
		UPDATE competitor_sites
		SET crawl_status = 'error', crawl_error = $2, crawled_at = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, crawlError, time.Now().UTC())
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.NotFoundError("competitor site", id)
	}

	return nil
}

// RawContentRepository reads raw page content fetched for crawled
// sites. Rows are written by an external ingestion process.
type RawContentRepository struct {
	db *DB
}

// NewRawContentRepository creates a new raw content repository
func NewRawContentRepository(db *DB) *RawContentRepository {
	return &RawContentRepository{db: db}
}

// GetByCrawlID looks up raw content by crawl identifier value.
// Returns (nil, nil) when no content has been ingested yet, which
// callers treat as "no raw content available".
func (r *RawContentRepository) GetByCrawlID(ctx context.Context, crawlID string) (*domain.RawContent, error) {
	query := `SELECT id, crawl_id, content FROM competitor_raw_content WHERE crawl_id = $1 LIMIT 1`

	var row struct {
		ID      uuid.UUID `db:"id"`
		CrawlID string    `db:"crawl_id"`
		Content *string   `db:"content"`
	}
	if err := r.db.GetContext(ctx, &row, query, crawlID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &domain.RawContent{ID: row.ID, CrawlID: row.CrawlID, Content: row.Content}, nil
}

// Insert stores raw content. Only used by tests and local seeding;
// production content arrives through the external ingestion process.
func (r *RawContentRepository) Insert(ctx context.Context, content *domain.RawContent) error {
	query := `INSERT INTO competitor_raw_content (id, crawl_id, content) VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, query, content.ID, content.CrawlID, content.Content)
	return err
}
