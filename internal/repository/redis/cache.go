package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Damonbodine/sauce-rival-insight/internal/config"
	"github.com/Damonbodine/sauce-rival-insight/internal/domain"
)

// Cache provides Redis caching and coordination functionality
type Cache struct {
	client *redis.Client
}

// Key prefixes for different cache types
const (
	PrefixReport   = "report:"
	PrefixRunGuard = "runguard:"
)

// Default TTLs
const (
	ReportTTL = 15 * time.Minute
)

// New creates a new Redis cache client
func New(cfg config.RedisConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Health checks Redis connectivity
func (c *Cache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Client returns the underlying Redis client for advanced operations
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Report caching methods

// GetReport retrieves a cached assembled report for a business
func (c *Cache) GetReport(ctx context.Context, businessID uuid.UUID) (*domain.BusinessReport, error) {
	key := PrefixReport + businessID.String()
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var report domain.BusinessReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}

	return &report, nil
}

// SetReport caches the assembled report for a business
func (c *Cache) SetReport(ctx context.Context, report *domain.BusinessReport) error {
	key := PrefixReport + report.Business.ID.String()
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, ReportTTL).Err()
}

// InvalidateReport removes a cached report after a new analysis lands
func (c *Cache) InvalidateReport(ctx context.Context, businessID uuid.UUID) error {
	key := PrefixReport + businessID.String()
	return c.client.Del(ctx, key).Err()
}

// Run guard methods

// releaseGuardScript deletes the guard key only while the caller's
// token still owns it, so a run that outlived its TTL cannot release
// a guard a newer run has since acquired.
var releaseGuardScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// AcquireRunGuard marks a pipeline stage as running for a business.
// Returns false when another run already holds the guard. The TTL
// bounds how long a crashed run can block its business.
func (c *Cache) AcquireRunGuard(ctx context.Context, stage string, businessID uuid.UUID, token string, ttl time.Duration) (bool, error) {
	key := PrefixRunGuard + stage + ":" + businessID.String()
	return c.client.SetNX(ctx, key, token, ttl).Result()
}

// ReleaseRunGuard releases the guard once the stage completes. A stale
// token leaves the guard with its current holder.
func (c *Cache) ReleaseRunGuard(ctx context.Context, stage string, businessID uuid.UUID, token string) error {
	key := PrefixRunGuard + stage + ":" + businessID.String()
	return releaseGuardScript.Run(ctx, c.client, []string{key}, token).Err()
}
