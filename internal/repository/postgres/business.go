package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Damonbodine/sauce-rival-insight/internal/domain"
)

// BusinessRepository persists business input rows
type BusinessRepository struct {
	db *DB
}

// NewBusinessRepository creates a new business repository
func NewBusinessRepository(db *DB) *BusinessRepository {
	return &BusinessRepository{db: db}
}

// businessRow represents the database row structure
type businessRow struct {
	ID               uuid.UUID      `db:"id"`
	Description      string         `db:"description"`
	Keywords         pq.StringArray `db:"keywords"`
	BusinessCategory *string        `db:"business_category"`
	DetectedIndustry *string        `db:"detected_industry"`
	WebsiteURL       *string        `db:"website_url"`
	URLAnalyzed      bool           `db:"url_analyzed"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (r *businessRow) toDomain() *domain.BusinessInput {
	return &domain.BusinessInput{
		ID:               r.ID,
		Description:      r.Description,
		Keywords:         []string(r.Keywords),
		BusinessCategory: r.BusinessCategory,
		DetectedIndustry: r.DetectedIndustry,
		WebsiteURL:       r.WebsiteURL,
		URLAnalyzed:      r.URLAnalyzed,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// Create inserts a new business input
func (r *BusinessRepository) Create(ctx context.Context, business *domain.BusinessInput) error {
	query := `
		INSERT INTO business_inputs (id, description, keywords, business_category, website_url, url_analyzed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		business.ID,
		business.Description,
		pq.StringArray(business.Keywords),
		business.BusinessCategory,
		business.WebsiteURL,
		business.URLAnalyzed,
		business.CreatedAt,
		business.UpdatedAt,
	)
	return err
}

// GetByID retrieves a business input by ID
func (r *BusinessRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.BusinessInput, error) {
	query := `
		SELECT id, description, keywords, business_category, detected_industry, website_url, url_analyzed, created_at, updated_at
		FROM business_inputs
		WHERE id = $1
	`

	var row businessRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError("business", id)
		}
		return nil, err
	}

	return row.toDomain(), nil
}

// SetAnalysis writes the website-derived description and keywords onto
// the business row and marks it analyzed. Used by the website
// analyzer after a successful crawl + extraction.
func (r *BusinessRepository) SetAnalysis(ctx context.Context, id uuid.UUID, description string, keywords []string) error {
	query := `
		UPDATE business_inputs
		SET description = $2, keywords = $3, url_analyzed = TRUE, updated_at = $4
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, description, pq.StringArray(keywords), time.Now().UTC())
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.NotFoundError("business", id)
	}

	return nil
}
