package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Damonbodine/sauce-rival-insight/internal/domain"
)

// AnalysisRepository persists competitor analysis rows (append-only)
type AnalysisRepository struct {
	db *DB
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// analysisRow represents the database row structure
type analysisRow struct {
	ID              uuid.UUID `db:"id"`
	BusinessID      uuid.UUID `db:"business_id"`
	AttributesJSON  []byte    `db:"attributes_json"`
	SummaryInsights string    `db:"summary_insights"`
	CreatedAt       time.Time `db:"created_at"`
}

func (r *analysisRow) toDomain() (*domain.CompetitorAnalysis, error) {
	var results []domain.CompetitorResult
	if err := json.Unmarshal(r.AttributesJSON, &results); err != nil {
		return nil, err
	}

	return &domain.CompetitorAnalysis{
		ID:              r.ID,
		BusinessID:      r.BusinessID,
		Attributes:      results,
		SummaryInsights: r.SummaryInsights,
		CreatedAt:       r.CreatedAt,
	}, nil
}

// Create inserts a new analysis row
func (r *AnalysisRepository) Create(ctx context.Context, analysis *domain.CompetitorAnalysis) error {
	attributes, err := json.Marshal(analysis.Attributes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO competitor_analysis (id, business_id, attributes_json, summary_insights, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = r.db.ExecContext(ctx, query,
		analysis.ID,
		analysis.BusinessID,
		attributes,
		analysis.SummaryInsights,
		analysis.CreatedAt,
	)
	return err
}

// LatestByBusiness retrieves the most recent analysis for a business
func (r *AnalysisRepository) LatestByBusiness(ctx context.Context, businessID uuid.UUID) (*domain.CompetitorAnalysis, error) {
	query := `
		SELECT id, business_id, attributes_json, summary_insights, created_at
		FROM competitor_analysis
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var row analysisRow
	if err := r.db.GetContext(ctx, &row, query, businessID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError("analysis", businessID)
		}
		return nil, err
	}

	return row.toDomain()
}

// CountByBusiness returns how many analyses exist for a business
func (r *AnalysisRepository) CountByBusiness(ctx context.Context, businessID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM competitor_analysis WHERE business_id = $1`
	if err := r.db.GetContext(ctx, &count, query, businessID); err != nil {
		return 0, err
	}
	return count, nil
}
