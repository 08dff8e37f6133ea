package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Damonbodine/sauce-rival-insight/internal/api"
	"github.com/Damonbodine/sauce-rival-insight/internal/config"
	"github.com/Damonbodine/sauce-rival-insight/internal/crawl"
	"github.com/Damonbodine/sauce-rival-insight/internal/llm"
	"github.com/Damonbodine/sauce-rival-insight/internal/observability"
	"github.com/Damonbodine/sauce-rival-insight/internal/repository/postgres"
	rediscache "github.com/Damonbodine/sauce-rival-insight/internal/repository/redis"
	"github.com/Damonbodine/sauce-rival-insight/internal/search"
	"github.com/Damonbodine/sauce-rival-insight/internal/services/competitors"
	"github.com/Damonbodine/sauce-rival-insight/internal/services/website"
)

func main() {
	// Local development convenience; missing .env is fine
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.App.Environment, cfg.App.LogLevel)
	defer logger.Sync()

	logger.Info("Starting Insight API",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	// PostgreSQL
	db, err := postgres.New(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
	)

	// Redis (optional)
	var cache *rediscache.Cache
	if cfg.Redis.Enabled {
		cache, err = rediscache.New(cfg.Redis)
		if err != nil {
			logger.Warn("Failed to connect to Redis, caching and distributed run guard disabled", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
			logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr()))
		}
	}

	// External API clients
	firecrawlClient, err := crawl.NewFirecrawlClient(cfg.Firecrawl)
	if err != nil {
		logger.Fatal("Failed to create crawl client", zap.Error(err))
	}
	exaClient, err := search.NewExaClient(cfg.Exa)
	if err != nil {
		logger.Fatal("Failed to create search client", zap.Error(err))
	}
	openaiClient, err := llm.NewOpenAIClient(cfg.OpenAI)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	repos := postgres.NewRepositories(db)
	metrics := observability.NewMetrics(cfg.App.Name)
	firecrawlClient.Instrument(metrics)
	exaClient.Instrument(metrics)
	openaiClient.Instrument(metrics)

	// The Redis guard coordinates across instances; the in-process
	// guard is the single-instance fallback
	var guard competitors.RunGuard = competitors.NewMemoryRunGuard()
	var reports competitors.ReportInvalidator
	if cache != nil {
		guard = cache
		reports = cache
	}

	websiteAnalyzer := website.NewAnalyzer(firecrawlClient, openaiClient, repos.Businesses, logger)
	finder := competitors.NewFinder(repos.Businesses, repos.Competitors, exaClient, logger)
	crawler := competitors.NewCrawler(repos.Competitors, firecrawlClient, guard, cfg.Pipeline, cfg.Firecrawl.Policy(), logger)
	analyzer := competitors.NewAnalyzer(
		repos.Businesses,
		repos.Competitors,
		repos.RawContent,
		repos.Analyses,
		openaiClient,
		guard,
		reports,
		cfg.Pipeline,
		cfg.OpenAI.Policy(),
		logger,
	)

	router := api.NewRouter(api.RouterConfig{
		Repos:           repos,
		DB:              db,
		Cache:           cache,
		WebsiteAnalyzer: websiteAnalyzer,
		Finder:          finder,
		Crawler:         crawler,
		Analyzer:        analyzer,
		Metrics:         metrics,
		Logger:          logger,
		EnableCORS:      true,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API server listening", zap.String("addr", addr))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatal("Server error", zap.Error(err))

	case sig := <-shutdown:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed, forcing close", zap.Error(err))
			server.Close()
		}

		logger.Info("Server stopped gracefully")
	}
}

// initLogger creates a configured zap logger
func initLogger(env, level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}

	return logger
}
