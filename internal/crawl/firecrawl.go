package crawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Damonbodine/sauce-rival-insight/internal/config"
	"github.com/Damonbodine/sauce-rival-insight/internal/domain"
	"github.com/Damonbodine/sauce-rival-insight/internal/observability"
	"github.com/Damonbodine/sauce-rival-insight/internal/resilience"
)

// FirecrawlClient provides access to the Firecrawl scrape and crawl APIs
type FirecrawlClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.Breaker
	metrics    *observability.Metrics
}

// Instrument attaches Prometheus metrics to the client's API calls
func (c *FirecrawlClient) Instrument(m *observability.Metrics) {
	c.metrics = m
}

// NewFirecrawlClient creates a new Firecrawl API client
func NewFirecrawlClient(cfg config.FirecrawlConfig) (*FirecrawlClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.firecrawl.dev"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}

	return &FirecrawlClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: resilience.New(resilience.DefaultConfig()),
	}, nil
}

// scrapeRequest is the wire request for a single-page render-and-extract
type scrapeRequest struct {
	URL     string            `json:"url"`
	Render  bool              `json:"render"`
	WaitFor int               `json:"wait_for"`
	Extract map[string]string `json:"extract"`
}

// scrapeSelectors maps extracted field names to CSS selectors
var scrapeSelectors = map[string]string{
	"title":        "title",
	"description":  "meta[name='description']",
	"h1":           "h1",
	"h2":           "h2",
	"h3":           "h3",
	"paragraphs":   "p",
	"links":        "a",
	"metaKeywords": "meta[name='keywords']",
}

// ScrapeResult holds the extracted page content
type ScrapeResult struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	H1           []string `json:"h1"`
	H2           []string `json:"h2"`
	H3           []string `json:"h3"`
	Paragraphs   []string `json:"paragraphs"`
	Links        []string `json:"links"`
	MetaKeywords string   `json:"metaKeywords"`
}

// Scrape renders a single page and extracts its structural content.
// The wait gives client-side rendering time to settle.
func (c *FirecrawlClient) Scrape(ctx context.Context, url string) (*ScrapeResult, error) {
	body, err := json.Marshal(scrapeRequest{
		URL:     url,
		Render:  true,
		WaitFor: 2000,
		Extract: scrapeSelectors,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	respBody, err := c.post(ctx, "/scrape", body)
	if err != nil {
		return nil, err
	}

	var result ScrapeResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	return &result, nil
}

// crawlRequest is the wire request for a multi-page crawl job
type crawlRequest struct {
	URL            string `json:"url"`
	Dynamic        bool   `json:"dynamic"`
	Depth          int    `json:"depth"`
	ExtractContent bool   `json:"extractContent"`
}

// crawlResponse carries the identifier of the submitted crawl job
type crawlResponse struct {
	ID string `json:"id"`
}

// Crawl submits a site-wide crawl job and returns its identifier
func (c *FirecrawlClient) Crawl(ctx context.Context, url string, depth int) (string, error) {
	body, err := json.Marshal(crawlRequest{
		URL:            url,
		Dynamic:        false,
		Depth:          depth,
		ExtractContent: true,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	respBody, err := c.post(ctx, "/v0/crawl", body)
	if err != nil {
		return "", err
	}

	var result crawlResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if result.ID == "" {
		return "", domain.ExternalAPIError("firecrawl", fmt.Errorf("crawl response missing job id"))
	}

	return result.ID, nil
}

// post performs the HTTP request. Non-2xx replies surface the provider's
// raw body so callers can persist exactly what the API said.
func (c *FirecrawlClient) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	if err := c.breaker.Allow(); err != nil {
		return nil, domain.ExternalAPIError("firecrawl", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.breaker.Record(false)
		c.metrics.RecordExternalRequest("firecrawl", "error", time.Since(start))
		return nil, domain.ExternalAPIError("firecrawl", err)
	}
	defer resp.Body.Close()

	// Client errors leave the breaker alone; only transport failures
	// and server-side errors count against the provider
	c.breaker.Record(resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests)
	c.metrics.RecordExternalRequest("firecrawl", strconv.Itoa(resp.StatusCode), time.Since(start))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.ExternalAPIError("firecrawl",
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	return respBody, nil
}
