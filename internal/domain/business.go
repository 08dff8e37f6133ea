package domain

import (
	"time"

	"github.com/google/uuid"
)

// BusinessInput is the stored description of the business being
// analyzed. One row is created per intake form submission; the
// Website Analyzer may overwrite description/keywords afterwards.
type BusinessInput struct {
	ID               uuid.UUID `json:"id" db:"id"`
	Description      string    `json:"description" db:"description"`
	Keywords         []string  `json:"keywords" db:"keywords"`
	BusinessCategory *string   `json:"business_category,omitempty" db:"business_category"`
	DetectedIndustry *string   `json:"detected_industry,omitempty" db:"detected_industry"`
	WebsiteURL       *string   `json:"website_url,omitempty" db:"website_url"`
	URLAnalyzed      bool      `json:"url_analyzed" db:"url_analyzed"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// NewBusinessInput creates a business input row
func NewBusinessInput(description string, keywords []string, websiteURL *string) *BusinessInput {
	now := time.Now().UTC()
	return &BusinessInput{
		ID:          uuid.New(),
		Description: description,
		Keywords:    keywords,
		WebsiteURL:  websiteURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Industry returns the industry label used to anchor competitor
// analysis prompts, falling back from detected industry to the
// declared category to a generic label.
func (b *BusinessInput) Industry() string {
	if b.DetectedIndustry != nil && *b.DetectedIndustry != "" {
		return *b.DetectedIndustry
	}
	if b.BusinessCategory != nil && *b.BusinessCategory != "" {
		return *b.BusinessCategory
	}
	return "general business"
}

// SearchQuery builds the competitor search query from the description
// and keywords.
func (b *BusinessInput) SearchQuery() string {
	query := b.Description
	for _, kw := range b.Keywords {
		query += " " + kw
	}
	return query
}

// BusinessReport is the assembled view served to clients: the intake
// row, its competitor sites, and the latest analysis when one exists.
type BusinessReport struct {
	Business    *BusinessInput      `json:"business"`
	Competitors []*CompetitorSite   `json:"competitors"`
	Analysis    *CompetitorAnalysis `json:"analysis,omitempty"`
}
