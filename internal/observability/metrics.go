package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is a valid
// no-op recorder, so callers can stay unconditional about recording.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsActive  prometheus.Gauge

	// Pipeline metrics
	WebsiteAnalysesTotal      *prometheus.CounterVec
	CompetitorsDiscovered     prometheus.Histogram
	CrawlJobsTotal            *prometheus.CounterVec
	CompetitorAnalysesTotal   *prometheus.CounterVec
	AttributeExtractionsTotal *prometheus.CounterVec

	// External API metrics
	ExternalRequestsTotal   *prometheus.CounterVec
	ExternalRequestDuration *prometheus.HistogramVec
	LLMTokensUsed           *prometheus.CounterVec

	// System metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates a new metrics instance with all Prometheus
// metrics registered on a dedicated registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "insight"
	}
	// Hyphenated service names are not valid metric name segments
	namespace = strings.ReplaceAll(namespace, "-", "_")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_active",
				Help:      "Number of active HTTP requests",
			},
		),

		WebsiteAnalysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "website_analyses_total",
				Help:      "Total number of business website analyses",
			},
			[]string{"status"},
		),
		CompetitorsDiscovered: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "competitors_discovered",
				Help:      "Number of competitor sites saved per discovery run",
				Buckets:   []float64{0, 1, 2, 5, 10, 20},
			},
		),
		CrawlJobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "crawl_jobs_total",
				Help:      "Total number of competitor crawl jobs submitted",
			},
			[]string{"status"},
		),
		CompetitorAnalysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "competitor_analyses_total",
				Help:      "Total number of competitor analysis runs",
			},
			[]string{"status"},
		),
		AttributeExtractionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attribute_extractions_total",
				Help:      "Per-competitor attribute extraction outcomes",
			},
			[]string{"outcome"}, // parsed, unparsed, failed
		),

		ExternalRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "external_requests_total",
				Help:      "Total number of external API requests",
			},
			[]string{"provider", "status"},
		),
		ExternalRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "external_request_duration_seconds",
				Help:      "External API request duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"provider"},
		),
		LLMTokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_tokens_used_total",
				Help:      "Total number of language model tokens used",
			},
			[]string{"model", "type"}, // type: input, output
		),

		DBConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_active",
				Help:      "Number of active database connections",
			},
		),
		DBConnectionsIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_idle",
				Help:      "Number of idle database connections",
			},
		),
	}
}

// Handler returns the Prometheus HTTP handler for this instance's
// registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordWebsiteAnalysis records a website analysis outcome
func (m *Metrics) RecordWebsiteAnalysis(status string) {
	if m == nil {
		return
	}
	m.WebsiteAnalysesTotal.WithLabelValues(status).Inc()
}

// RecordDiscovery records how many competitors a discovery run saved
func (m *Metrics) RecordDiscovery(count int) {
	if m == nil {
		return
	}
	m.CompetitorsDiscovered.Observe(float64(count))
}

// RecordCrawlJob records a crawl job outcome
func (m *Metrics) RecordCrawlJob(status string) {
	if m == nil {
		return
	}
	m.CrawlJobsTotal.WithLabelValues(status).Inc()
}

// RecordCompetitorAnalysis records an analysis run outcome
func (m *Metrics) RecordCompetitorAnalysis(status string) {
	if m == nil {
		return
	}
	m.CompetitorAnalysesTotal.WithLabelValues(status).Inc()
}

// RecordAttributeExtraction records one competitor's extraction outcome
func (m *Metrics) RecordAttributeExtraction(outcome string) {
	if m == nil {
		return
	}
	m.AttributeExtractionsTotal.WithLabelValues(outcome).Inc()
}

// RecordExternalRequest records an external API call
func (m *Metrics) RecordExternalRequest(provider, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ExternalRequestsTotal.WithLabelValues(provider, status).Inc()
	m.ExternalRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordLLMTokens records language model token usage
func (m *Metrics) RecordLLMTokens(model string, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.LLMTokensUsed.WithLabelValues(model, "input").Add(float64(inputTokens))
	m.LLMTokensUsed.WithLabelValues(model, "output").Add(float64(outputTokens))
}

// RecordDBStats records database connection pool gauges
func (m *Metrics) RecordDBStats(active, idle int) {
	if m == nil {
		return
	}
	m.DBConnectionsActive.Set(float64(active))
	m.DBConnectionsIdle.Set(float64(idle))
}

// HTTPMiddleware returns middleware for recording HTTP metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsActive.Inc()
		defer m.HTTPRequestsActive.Dec()

		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		m.RecordHTTPRequest(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
