package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Damonbodine/sauce-rival-insight/internal/api/handlers"
	"github.com/Damonbodine/sauce-rival-insight/internal/api/middleware"
	"github.com/Damonbodine/sauce-rival-insight/internal/observability"
	"github.com/Damonbodine/sauce-rival-insight/internal/repository/postgres"
	rediscache "github.com/Damonbodine/sauce-rival-insight/internal/repository/redis"
	"github.com/Damonbodine/sauce-rival-insight/pkg/httputil"
)

// Router holds the HTTP router and its dependencies
type Router struct {
	chi.Router
	logger *zap.Logger
}

// RouterConfig contains configuration for the router
type RouterConfig struct {
	Repos           *postgres.Repositories
	DB              *postgres.DB
	Cache           *rediscache.Cache
	WebsiteAnalyzer handlers.WebsiteAnalyzer
	Finder          handlers.CompetitorFinder
	Crawler         handlers.CompetitorCrawler
	Analyzer        handlers.CompetitorAnalyzer
	Metrics         *observability.Metrics
	Logger          *zap.Logger
	EnableCORS      bool
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.RequestLogger(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.HTTPMiddleware)
	}
	// Crawl and analysis runs hold the connection for minutes
	r.Use(chimw.Timeout(5 * time.Minute))

	if cfg.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.JSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(cfg.DB, cfg.Cache))
	if cfg.Metrics != nil {
		r.Handle("/metrics", metricsHandler(cfg.Metrics, cfg.DB))
	}

	r.Route("/api/v1", func(r chi.Router) {
		businessHandler := handlers.NewBusinessHandler(cfg.Repos.Businesses, cfg.Repos.Competitors, cfg.Repos.Analyses, reportCache(cfg.Cache), cfg.Logger)
		websiteHandler := handlers.NewWebsiteHandler(cfg.WebsiteAnalyzer, cfg.Metrics, cfg.Logger)
		competitorsHandler := handlers.NewCompetitorsHandler(cfg.Finder, cfg.Crawler, cfg.Analyzer, cfg.Metrics, cfg.Logger)

		r.Route("/businesses", func(r chi.Router) {
			r.Post("/", businessHandler.Create)
			r.Get("/{id}/report", businessHandler.GetReport)
		})

		r.Route("/website", func(r chi.Router) {
			r.Post("/analyze", websiteHandler.Analyze)
		})

		r.Route("/competitors", func(r chi.Router) {
			r.Post("/find", competitorsHandler.Find)
			r.Post("/crawl", competitorsHandler.Crawl)
			r.Post("/analyze", competitorsHandler.Analyze)
		})
	})

	return &Router{
		Router: r,
		logger: cfg.Logger,
	}
}

// reportCache avoids handing a typed nil to the handler when Redis is
// not configured.
func reportCache(cache *rediscache.Cache) handlers.ReportCache {
	if cache == nil {
		return nil
	}
	return cache
}

// metricsHandler serves the Prometheus registry, refreshing the
// connection pool gauges on each scrape.
func metricsHandler(metrics *observability.Metrics, db *postgres.DB) http.Handler {
	promHandler := metrics.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			stats := db.Stats()
			metrics.RecordDBStats(stats.InUse, stats.Idle)
		}
		promHandler.ServeHTTP(w, r)
	})
}

// healthHandler returns basic health status
func healthHandler(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "insight-api",
	})
}

// readyHandler checks if all dependencies are ready
func readyHandler(db *postgres.DB, cache *rediscache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string)
		allHealthy := true

		if db != nil {
			if err := db.Health(r.Context()); err != nil {
				checks["database"] = "unhealthy: " + err.Error()
				allHealthy = false
			} else {
				checks["database"] = "healthy"
			}
		}

		if cache != nil {
			if err := cache.Health(r.Context()); err != nil {
				checks["redis"] = "unhealthy: " + err.Error()
				allHealthy = false
			} else {
				checks["redis"] = "healthy"
			}
		} else {
			checks["redis"] = "not configured"
		}

		status := http.StatusOK
		statusText := "ready"
		if !allHealthy {
			status = http.StatusServiceUnavailable
			statusText = "not ready"
		}

		httputil.JSON(w, status, map[string]any{
			"status": statusText,
			"checks": checks,
		})
	}
}
