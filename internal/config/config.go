package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// CrawlRetryPolicy names how the crawler treats sites whose previous
// crawl attempt failed.
type CrawlRetryPolicy string

const (
	// RetryPolicyErrors reselects errored sites on every crawl run.
	RetryPolicyErrors CrawlRetryPolicy = "retry-errors"
	// RetryPolicyNone excludes errored sites from future runs.
	RetryPolicyNone CrawlRetryPolicy = "none"
)

func (p CrawlRetryPolicy) IsValid() bool {
	return p == RetryPolicyErrors || p == RetryPolicyNone
}

// Config holds all application configuration
type Config struct {
	// Environment
	Env      Environment `envconfig:"ENV" default:"development"`
	LogLevel string      `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool        `envconfig:"DEBUG" default:"false"`

	// Application
	App AppConfig

	// Server
	Server ServerConfig

	// Database
	Database DatabaseConfig

	// Redis (optional: report cache + run guard)
	Redis RedisConfig

	// External APIs
	Firecrawl FirecrawlConfig
	Exa       ExaConfig
	OpenAI    OpenAIConfig

	// Pipeline behavior
	Pipeline PipelineConfig
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"sauce-rival-insight"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"APP_LOG_LEVEL" default:"info"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"insight"`
	Password        string        `envconfig:"DB_PASSWORD" default:""`
	Database        string        `envconfig:"DB_NAME" default:"insight"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	ConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"1m"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	Enabled      bool          `envconfig:"REDIS_ENABLED" default:"false"`
	Host         string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port         int           `envconfig:"REDIS_PORT" default:"6379"`
	Password     string        `envconfig:"REDIS_PASSWORD" default:""`
	DB           int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Addr returns Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DependencyPolicy is the per-external-dependency concurrency policy:
// how many calls may be in flight at once and how long to pause
// between consecutive calls to the same provider.
type DependencyPolicy struct {
	MaxInFlight    int
	InterCallDelay time.Duration
}

// FirecrawlConfig holds crawl API settings
type FirecrawlConfig struct {
	APIKey         string        `envconfig:"FIRECRAWL_API_KEY" required:"true"`
	BaseURL        string        `envconfig:"FIRECRAWL_BASE_URL" default:"https://api.firecrawl.dev"`
	Timeout        time.Duration `envconfig:"FIRECRAWL_TIMEOUT" default:"90s"`
	MaxInFlight    int           `envconfig:"FIRECRAWL_MAX_IN_FLIGHT" default:"1"`
	InterCallDelay time.Duration `envconfig:"FIRECRAWL_INTER_CALL_DELAY" default:"500ms"`
}

// Policy returns the Firecrawl concurrency policy
func (c FirecrawlConfig) Policy() DependencyPolicy {
	return DependencyPolicy{MaxInFlight: c.MaxInFlight, InterCallDelay: c.InterCallDelay}
}

// ExaConfig holds semantic search API settings
type ExaConfig struct {
	APIKey     string        `envconfig:"EXA_API_KEY" required:"true"`
	BaseURL    string        `envconfig:"EXA_BASE_URL" default:"https://api.exa.ai"`
	Timeout    time.Duration `envconfig:"EXA_TIMEOUT" default:"30s"`
	NumResults int           `envconfig:"EXA_NUM_RESULTS" default:"10"`
}

// OpenAIConfig holds LLM API settings
type OpenAIConfig struct {
	APIKey         string        `envconfig:"OPENAI_API_KEY" required:"true"`
	BaseURL        string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com"`
	Model          string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	Timeout        time.Duration `envconfig:"OPENAI_TIMEOUT" default:"120s"`
	RateLimitRPM   int           `envconfig:"OPENAI_RATE_LIMIT_RPM" default:"60"`
	MaxInFlight    int           `envconfig:"OPENAI_MAX_IN_FLIGHT" default:"5"`
	InterCallDelay time.Duration `envconfig:"OPENAI_INTER_CALL_DELAY" default:"0s"`
}

// Policy returns the OpenAI concurrency policy
func (c OpenAIConfig) Policy() DependencyPolicy {
	return DependencyPolicy{MaxInFlight: c.MaxInFlight, InterCallDelay: c.InterCallDelay}
}

// PipelineConfig holds behavior knobs for the analysis pipeline
type PipelineConfig struct {
	CrawlBatchSize   int              `envconfig:"CRAWL_BATCH_SIZE" default:"10"`
	CrawlDepth       int              `envconfig:"CRAWL_DEPTH" default:"2"`
	CrawlRetryPolicy CrawlRetryPolicy `envconfig:"CRAWL_RETRY_POLICY" default:"retry-errors"`
	RunGuardTTL      time.Duration    `envconfig:"RUN_GUARD_TTL" default:"10m"`
	RawContentLimit  int              `envconfig:"RAW_CONTENT_LIMIT" default:"10000"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errors []string

	if c.Firecrawl.APIKey == "" {
		errors = append(errors, "FIRECRAWL_API_KEY is required")
	}
	if c.Exa.APIKey == "" {
		errors = append(errors, "EXA_API_KEY is required")
	}
	if c.OpenAI.APIKey == "" {
		errors = append(errors, "OPENAI_API_KEY is required")
	}
	if !c.Pipeline.CrawlRetryPolicy.IsValid() {
		errors = append(errors, fmt.Sprintf("CRAWL_RETRY_POLICY %q is not a known policy", c.Pipeline.CrawlRetryPolicy))
	}
	if c.Pipeline.CrawlBatchSize <= 0 {
		errors = append(errors, "CRAWL_BATCH_SIZE must be positive")
	}
	if c.Firecrawl.MaxInFlight < 1 {
		errors = append(errors, "FIRECRAWL_MAX_IN_FLIGHT must be at least 1")
	}
	if c.OpenAI.MaxInFlight < 1 {
		errors = append(errors, "OPENAI_MAX_IN_FLIGHT must be at least 1")
	}

	if c.Env != EnvDevelopment && c.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required in non-development mode")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// GetLogLevel returns the appropriate zap log level
func (c *Config) GetLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}
