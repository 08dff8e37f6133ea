package website

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Damonbodine/sauce-rival-insight/internal/crawl"
	"github.com/Damonbodine/sauce-rival-insight/internal/domain"
)

type fakeScraper struct {
	result *crawl.ScrapeResult
	err    error
	gotURL string
}

func (f *fakeScraper) Scrape(ctx context.Context, url string) (*crawl.ScrapeResult, error) {
	f.gotURL = url
	return f.result, f.err
}

type fakeCompleter struct {
	reply     string
	err       error
	gotSystem string
	gotUser   string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	f.gotSystem = systemPrompt
	f.gotUser = userPrompt
	return f.reply, f.err
}

type fakeBusinessStore struct {
	business       *domain.BusinessInput
	getErr         error
	setErr         error
	setCalled      bool
	gotDescription string
	gotKeywords    []string
}

func (f *fakeBusinessStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.BusinessInput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.business, nil
}

func (f *fakeBusinessStore) SetAnalysis(ctx context.Context, id uuid.UUID, description string, keywords []string) error {
	f.setCalled = true
	f.gotDescription = description
	f.gotKeywords = keywords
	return f.setErr
}

func TestAnalyzer_Analyze(t *testing.T) {
	business := domain.NewBusinessInput("", nil, nil)

	scraper := &fakeScraper{result: &crawl.ScrapeResult{
		Title:        "Sauceworks",
		Description:  "Small-batch hot sauces",
		MetaKeywords: "hot sauce, fermented",
		H1:           []string{"Feel the burn"},
		H2:           []string{"Our sauces", "Wholesale"},
		Paragraphs:   []string{"We ferment everything in-house.", "Shipping nationwide."},
	}}
	llm := &fakeCompleter{
		reply: "Description: Sauceworks makes small-batch fermented hot sauces for heat enthusiasts.\n" +
			"Keywords: hot sauce, fermented, small batch, craft condiments",
	}
	store := &fakeBusinessStore{business: business}

	analyzer := NewAnalyzer(scraper, llm, store, zap.NewNop())
	result, err := analyzer.Analyze(context.Background(), business.ID, "https://sauceworks.example.com")
	require.NoError(t, err)

	assert.Equal(t, "https://sauceworks.example.com", scraper.gotURL)
	assert.Contains(t, llm.gotSystem, "business analyst")
	assert.Contains(t, llm.gotUser, "Website Title: Sauceworks")
	assert.Contains(t, llm.gotUser, "Main Headings (H1): Feel the burn")
	assert.Contains(t, llm.gotUser, "Sub Headings (H2): Our sauces | Wholesale")

	assert.Equal(t, "Sauceworks makes small-batch fermented hot sauces for heat enthusiasts.", result.Description)
	assert.Equal(t, []string{"hot sauce", "fermented", "small batch", "craft condiments"}, result.Keywords)

	assert.True(t, store.setCalled)
	assert.Equal(t, result.Description, store.gotDescription)
	assert.Equal(t, result.Keywords, store.gotKeywords)
}

func TestAnalyzer_Analyze_ScrapeFailureLeavesRowUntouched(t *testing.T) {
	business := domain.NewBusinessInput("", nil, nil)
	scraper := &fakeScraper{err: domain.ExternalAPIError("firecrawl", errors.New("HTTP 502: bad gateway"))}
	store := &fakeBusinessStore{business: business}

	analyzer := NewAnalyzer(scraper, &fakeCompleter{}, store, zap.NewNop())
	_, err := analyzer.Analyze(context.Background(), business.ID, "https://down.example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crawling website")
	assert.False(t, store.setCalled)
}

func TestAnalyzer_Analyze_ModelFailureLeavesRowUntouched(t *testing.T) {
	business := domain.NewBusinessInput("", nil, nil)
	scraper := &fakeScraper{result: &crawl.ScrapeResult{Title: "Sauceworks"}}
	llm := &fakeCompleter{err: domain.ExternalAPIError("openai", errors.New("rate limit"))}
	store := &fakeBusinessStore{business: business}

	analyzer := NewAnalyzer(scraper, llm, store, zap.NewNop())
	_, err := analyzer.Analyze(context.Background(), business.ID, "https://sauceworks.example.com")
	require.Error(t, err)
	assert.False(t, store.setCalled)
}

func TestAnalyzer_Analyze_UnknownBusiness(t *testing.T) {
	id := uuid.New()
	store := &fakeBusinessStore{getErr: domain.NotFoundError("business", id)}

	analyzer := NewAnalyzer(&fakeScraper{}, &fakeCompleter{}, store, zap.NewNop())
	_, err := analyzer.Analyze(context.Background(), id, "https://any.example.com")
	assert.True(t, domain.IsNotFoundError(err))
}

func TestParseAnalysisReply(t *testing.T) {
	t.Run("labelled sections", func(t *testing.T) {
		result := parseAnalysisReply("Description: Sells sauces.\nKeywords: sauce, heat, craft")
		assert.Equal(t, "Sells sauces.", result.Description)
		assert.Equal(t, []string{"sauce", "heat", "craft"}, result.Keywords)
	})

	t.Run("missing keywords", func(t *testing.T) {
		result := parseAnalysisReply("Description: Sells sauces.")
		assert.Equal(t, "Sells sauces.", result.Description)
		assert.Empty(t, result.Keywords)
	})

	t.Run("unlabelled reply", func(t *testing.T) {
		result := parseAnalysisReply("Sorry, I cannot analyze this website.")
		assert.Empty(t, result.Description)
		assert.Empty(t, result.Keywords)
	})

	t.Run("empty keyword entries dropped", func(t *testing.T) {
		result := parseAnalysisReply("Description: X\nKeywords: one, , two,")
		assert.Equal(t, []string{"one", "two"}, result.Keywords)
	})
}
