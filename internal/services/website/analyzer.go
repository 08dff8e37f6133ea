package website

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Damonbodine/sauce-rival-insight/internal/crawl"
	"github.com/Damonbodine/sauce-rival-insight/internal/domain"
)

// Scraper renders a page and extracts its structural content
type Scraper interface {
	Scrape(ctx context.Context, url string) (*crawl.ScrapeResult, error)
}

// Completer sends a system+user prompt pair to the language model
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

// BusinessStore is the persistence surface the analyzer needs
type BusinessStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BusinessInput, error)
	SetAnalysis(ctx context.Context, id uuid.UUID, description string, keywords []string) error
}

// Analyzer turns a business website into a stored description and
// keyword list. The whole operation is all-or-nothing: a failure at
// any step leaves the business row untouched.
type Analyzer struct {
	scraper    Scraper
	llm        Completer
	businesses BusinessStore
	logger     *zap.Logger
}

// NewAnalyzer creates a website analyzer
func NewAnalyzer(scraper Scraper, llm Completer, businesses BusinessStore, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		scraper:    scraper,
		llm:        llm,
		businesses: businesses,
		logger:     logger,
	}
}

// Result is the outcome of a successful website analysis
type Result struct {
	Description string
	Keywords    []string
}

const analyzeSystemPrompt = "You are a business analyst tasked with extracting business information from website content. " +
	"Generate a concise, professional 2-3 sentence business description and a list of relevant keywords based on the website content provided."

// Analyze scrapes the site, derives a description and keywords from
// its content, and stores both on the business row.
func (a *Analyzer) Analyze(ctx context.Context, businessID uuid.UUID, url string) (*Result, error) {
	if _, err := a.businesses.GetByID(ctx, businessID); err != nil {
		return nil, err
	}

	a.logger.Info("analyzing business website",
		zap.String("business_id", businessID.String()),
		zap.String("url", url),
	)

	page, err := a.scraper.Scrape(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("crawling website: %w", err)
	}

	reply, err := a.llm.Complete(ctx, analyzeSystemPrompt, buildAnalysisPrompt(page), 0)
	if err != nil {
		return nil, fmt.Errorf("analyzing website content: %w", err)
	}

	result := parseAnalysisReply(reply)

	if err := a.businesses.SetAnalysis(ctx, businessID, result.Description, result.Keywords); err != nil {
		return nil, fmt.Errorf("updating business record: %w", err)
	}

	a.logger.Info("website analysis stored",
		zap.String("business_id", businessID.String()),
		zap.Int("keywords", len(result.Keywords)),
	)

	return result, nil
}

// buildAnalysisPrompt condenses the scraped page into the prompt sent
// to the model. Headings and paragraphs are capped so a large page
// stays within the model context.
func buildAnalysisPrompt(page *crawl.ScrapeResult) string {
	contentSummary := fmt.Sprintf(`Website Title: %s
Meta Description: %s
Meta Keywords: %s
Main Headings (H1): %s
Sub Headings (H2): %s
Content Samples: %s`,
		page.Title,
		page.Description,
		page.MetaKeywords,
		strings.Join(head(page.H1, 5), " | "),
		strings.Join(head(page.H2, 10), " | "),
		strings.Join(head(page.Paragraphs, 15), " "),
	)

	return fmt.Sprintf(`Based on the following website content, generate:
1. A concise 2-3 sentence business description that explains what the business does, who they serve, and their value proposition.
2. A list of 5-8 relevant keywords/phrases that describe the business, separated by commas.

Website Content:
%s

Format your response as:
Description: [your generated business description here]
Keywords: [keyword1, keyword2, keyword3, etc.]`, contentSummary)
}

var (
	descriptionPattern = regexp.MustCompile(`(?i)Description:\s*([\s\S]*?)(?:Keywords:|$)`)
	keywordsPattern    = regexp.MustCompile(`(?i)Keywords:\s*([\s\S]*)$`)
)

// parseAnalysisReply extracts the labelled sections from the model
// reply. Missing sections yield empty values rather than an error.
func parseAnalysisReply(reply string) *Result {
	result := &Result{}

	if m := descriptionPattern.FindStringSubmatch(reply); len(m) > 1 {
		result.Description = strings.TrimSpace(m[1])
	}

	if m := keywordsPattern.FindStringSubmatch(reply); len(m) > 1 {
		for _, kw := range strings.Split(m[1], ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				result.Keywords = append(result.Keywords, kw)
			}
		}
	}

	return result
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
