package crawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Damonbodine/sauce-rival-insight/internal/config"
	"github.com/Damonbodine/sauce-rival-insight/internal/domain"
	"github.com/Damonbodine/sauce-rival-insight/internal/observability"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *FirecrawlClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewFirecrawlClient(config.FirecrawlConfig{
		APIKey:  "fc-key",
		BaseURL: server.URL,
	})
	require.NoError(t, err)
	return client
}

func TestFirecrawlClient_Scrape(t *testing.T) {
	var gotBody scrapeRequest
	var gotAuth string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scrape", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(ScrapeResult{
			Title:       "Sauceworks",
			Description: "Small-batch hot sauces",
			H1:          []string{"Feel the burn"},
			H2:          []string{"Our sauces", "Wholesale"},
			Paragraphs:  []string{"We ferment everything in-house."},
		})
	})

	result, err := client.Scrape(context.Background(), "https://sauceworks.example.com")
	require.NoError(t, err)

	assert.Equal(t, "Bearer fc-key", gotAuth)
	assert.Equal(t, "https://sauceworks.example.com", gotBody.URL)
	assert.True(t, gotBody.Render)
	assert.Equal(t, 2000, gotBody.WaitFor)
	assert.Equal(t, "meta[name='description']", gotBody.Extract["description"])
	assert.Equal(t, "p", gotBody.Extract["paragraphs"])

	assert.Equal(t, "Sauceworks", result.Title)
	assert.Equal(t, []string{"Feel the burn"}, result.H1)
	assert.Len(t, result.H2, 2)
}

func TestFirecrawlClient_Crawl(t *testing.T) {
	var gotBody crawlRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/crawl", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(crawlResponse{ID: "fc-job-123"})
	})

	id, err := client.Crawl(context.Background(), "https://rival.example.com", 2)
	require.NoError(t, err)
	assert.Equal(t, "fc-job-123", id)

	assert.Equal(t, "https://rival.example.com", gotBody.URL)
	assert.False(t, gotBody.Dynamic)
	assert.Equal(t, 2, gotBody.Depth)
	assert.True(t, gotBody.ExtractContent)
}

func TestFirecrawlClient_Crawl_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"render farm unavailable"}`))
	})

	_, err := client.Crawl(context.Background(), "https://down.example.com", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalAPI)

	// The provider's status and raw body are preserved for persistence
	assert.Contains(t, err.Error(), "HTTP 502")
	assert.Contains(t, err.Error(), "render farm unavailable")
}

func TestFirecrawlClient_Crawl_MissingJobID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	_, err := client.Crawl(context.Background(), "https://odd.example.com", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing job id")
}

func TestFirecrawlClient_SuspendsAfterRepeatedServerErrors(t *testing.T) {
	var hits int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 5; i++ {
		_, err := client.Crawl(context.Background(), "https://down.example.com", 2)
		require.Error(t, err)
	}
	require.Equal(t, 5, hits)

	// Further calls fail fast without reaching the provider
	_, err := client.Crawl(context.Background(), "https://down.example.com", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalAPI)
	assert.Contains(t, err.Error(), "suspended")
	assert.Equal(t, 5, hits)
}

func TestFirecrawlClient_RecordsRequestMetrics(t *testing.T) {
	metrics := observability.NewMetrics("test")
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(crawlResponse{ID: "fc-1"})
	})
	client.Instrument(metrics)

	_, err := client.Crawl(context.Background(), "https://rival.example.com", 2)
	require.NoError(t, err)

	got := testutil.ToFloat64(metrics.ExternalRequestsTotal.WithLabelValues("firecrawl", "200"))
	assert.Equal(t, float64(1), got)
}

func TestNewFirecrawlClient_RequiresKey(t *testing.T) {
	_, err := NewFirecrawlClient(config.FirecrawlConfig{})
	assert.Error(t, err)
}
