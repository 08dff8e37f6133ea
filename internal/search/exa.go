package search

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

// ExaClient provides access to the Exa semantic search API
type ExaClient struct {
	apiKey     string
	baseURL    string
	numResults int
	httpClient *http.Client
	breaker    *resilience.Breaker
	metrics    *observability.Metrics
}

// Instrument attaches Prometheus metrics to the client's API calls
func (c *ExaClient) Instrument(m *observability.Metrics) {
	c.metrics = m
}

// NewExaClient creates a new Exa API client
func NewExaClient(cfg config.ExaConfig) (*ExaClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.exa.ai"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.NumResults == 0 {
		cfg.NumResults = 10
	}

	return &ExaClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		numResults: cfg.NumResults,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: resilience.New(resilience.DefaultConfig()),
	}, nil
}

// searchRequest is the wire request for semantic search
type searchRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"numResults"`
}

// searchResponse is the wire response
type searchResponse struct {
	Results []Result `json:"results"`
}

// Result is a single semantic search hit
type Result struct {
	Title string   `json:"title"`
	URL   string   `json:"url"`
	Text  string   `json:"text"`
	Score *float64 `json:"score"`
}

// Search runs a semantic query and returns the raw hits
func (c *ExaClient) Search(ctx context.Context, query string) ([]Result, error) {
	body, err := json.Marshal(searchRequest{
		Query:      query,
		NumResults: c.numResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	if err := c.breaker.Allow(); err != nil {
		return nil, domain.ExternalAPIError("exa", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.breaker.Record(false)
		c.metrics.RecordExternalRequest("exa", "error", time.Since(start))
		return nil, domain.ExternalAPIError("exa", err)
	}
	defer resp.Body.Close()

	c.breaker.Record(resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests)
	c.metrics.RecordExternalRequest("exa", strconv.Itoa(resp.StatusCode), time.Since(start))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, domain.ExternalAPIError("exa",
			fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody)))
	}

	var apiResp searchResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	return apiResp.Results, nil
}
