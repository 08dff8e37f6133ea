package competitors

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Damonbodine/sauce-rival-insight/internal/config"
	"github.com/Damonbodine/sauce-rival-insight/internal/domain"
)

type fakeCrawlStore struct {
	crawlable []*domain.CompetitorSite
	listErr   error

	mu      sync.Mutex
	crawled map[uuid.UUID]string
	failed  map[uuid.UUID]string
}

func newFakeCrawlStore(sites ...*domain.CompetitorSite) *fakeCrawlStore {
	return &fakeCrawlStore{
		crawlable: sites,
		crawled:   make(map[uuid.UUID]string),
		failed:    make(map[uuid.UUID]string),
	}
}

func (f *fakeCrawlStore) ListCrawlable(ctx context.Context, businessID uuid.UUID, limit int, policy config.CrawlRetryPolicy) ([]*domain.CompetitorSite, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.crawlable) > limit {
		return f.crawlable[:limit], nil
	}
	return f.crawlable, nil
}

func (f *fakeCrawlStore) MarkCrawled(ctx context.Context, id uuid.UUID, crawlID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.crawled[id] = crawlID
	return nil
}

func (f *fakeCrawlStore) MarkCrawlFailed(ctx context.Context, id uuid.UUID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = message
	return nil
}

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   []string
	results map[string]string
	errs    map[string]error
}

func (f *fakeSubmitter) Crawl(ctx context.Context, url string, depth int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	return f.results[url], nil
}

func testPipeline() config.PipelineConfig {
	return config.PipelineConfig{
		CrawlBatchSize:   10,
		CrawlDepth:       2,
		CrawlRetryPolicy: config.RetryPolicyErrors,
		RunGuardTTL:      time.Minute,
		RawContentLimit:  10000,
	}
}

func TestCrawler_Run(t *testing.T) {
	businessID := uuid.New()
	ok := domain.NewCompetitorSite(businessID, "Good", "https://good.example.com", nil, nil)
	bad := domain.NewCompetitorSite(businessID, "Bad", "https://bad.example.com", nil, nil)

	store := newFakeCrawlStore(ok, bad)
	submitter := &fakeSubmitter{
		results: map[string]string{"https://good.example.com": "fc-good"},
		errs: map[string]error{
			"https://bad.example.com": domain.ExternalAPIError("firecrawl", assertableErr("HTTP 502: upstream unavailable")),
		},
	}

	crawler := NewCrawler(store, submitter, NewMemoryRunGuard(), testPipeline(), config.DependencyPolicy{MaxInFlight: 1}, zap.NewNop())
	summary, err := crawler.Run(context.Background(), businessID)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Success)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, "Crawl completed for 2 sites. 1 succeeded, 1 failed.", summary.Message())

	require.Len(t, summary.Sites, 2)
	assert.Equal(t, "success", summary.Sites[0].Status)
	assert.Equal(t, "Good", summary.Sites[0].Name)
	assert.Equal(t, "error", summary.Sites[1].Status)

	assert.Equal(t, "fc-good", store.crawled[ok.ID])
	assert.Equal(t, "firecrawl: HTTP 502: upstream unavailable", store.failed[bad.ID])
}

func TestCrawler_Run_SequentialWithDelay(t *testing.T) {
	businessID := uuid.New()
	a := domain.NewCompetitorSite(businessID, "A", "https://a.example.com", nil, nil)
	b := domain.NewCompetitorSite(businessID, "B", "https://b.example.com", nil, nil)

	store := newFakeCrawlStore(a, b)
	submitter := &fakeSubmitter{results: map[string]string{
		"https://a.example.com": "fc-a",
		"https://b.example.com": "fc-b",
	}}

	policy := config.DependencyPolicy{MaxInFlight: 1, InterCallDelay: 30 * time.Millisecond}
	crawler := NewCrawler(store, submitter, NewMemoryRunGuard(), testPipeline(), policy, zap.NewNop())

	start := time.Now()
	summary, err := crawler.Run(context.Background(), businessID)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Success)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, submitter.calls)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestCrawler_Run_NoCrawlableSites(t *testing.T) {
	crawler := NewCrawler(newFakeCrawlStore(), &fakeSubmitter{}, NewMemoryRunGuard(), testPipeline(), config.DependencyPolicy{MaxInFlight: 1}, zap.NewNop())
	summary, err := crawler.Run(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, summary.Success)
	assert.Zero(t, summary.Failed)
	assert.Empty(t, summary.Sites)
}

func TestCrawler_Run_ConflictWhenGuardHeld(t *testing.T) {
	businessID := uuid.New()
	guard := NewMemoryRunGuard()

	acquired, err := guard.AcquireRunGuard(context.Background(), StageCrawl, businessID, "held-run", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	crawler := NewCrawler(newFakeCrawlStore(), &fakeSubmitter{}, guard, testPipeline(), config.DependencyPolicy{MaxInFlight: 1}, zap.NewNop())
	_, err = crawler.Run(context.Background(), businessID)
	assert.True(t, domain.IsConflictError(err))

	// A different business is not blocked
	_, err = crawler.Run(context.Background(), uuid.New())
	assert.NoError(t, err)
}

func TestCrawler_Run_GuardReleasedAfterRun(t *testing.T) {
	businessID := uuid.New()
	guard := NewMemoryRunGuard()

	crawler := NewCrawler(newFakeCrawlStore(), &fakeSubmitter{}, guard, testPipeline(), config.DependencyPolicy{MaxInFlight: 1}, zap.NewNop())
	_, err := crawler.Run(context.Background(), businessID)
	require.NoError(t, err)

	_, err = crawler.Run(context.Background(), businessID)
	assert.NoError(t, err)
}

// assertableErr keeps crawl failure messages deterministic in tests
type assertableErr string

func (e assertableErr) Error() string { return string(e) }
