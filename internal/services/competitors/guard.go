package competitors

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Guard stage names
const (
	StageCrawl   = "crawl"
	StageAnalyze = "analyze"
)

// RunGuard serializes a pipeline stage per business: only one crawl
// or analysis run may hold the guard for a given business at a time.
// The token identifies the holding run; release is a no-op unless the
// token still owns the guard, so a run that outlives its TTL cannot
// free a guard a newer run has since taken.
type RunGuard interface {
	AcquireRunGuard(ctx context.Context, stage string, businessID uuid.UUID, token string, ttl time.Duration) (bool, error)
	ReleaseRunGuard(ctx context.Context, stage string, businessID uuid.UUID, token string) error
}

// MemoryRunGuard is the in-process guard used when Redis is not
// configured. It only protects a single instance; multi-instance
// deployments need the Redis-backed guard.
type MemoryRunGuard struct {
	mu   sync.Mutex
	held map[string]guardHold
}

type guardHold struct {
	token  string
	expiry time.Time
}

// NewMemoryRunGuard creates an in-process run guard
func NewMemoryRunGuard() *MemoryRunGuard {
	return &MemoryRunGuard{held: make(map[string]guardHold)}
}

func guardKey(stage string, businessID uuid.UUID) string {
	return stage + ":" + businessID.String()
}

// AcquireRunGuard takes the guard unless another run holds it. Expired
// holds from crashed runs are reclaimed.
func (g *MemoryRunGuard) AcquireRunGuard(ctx context.Context, stage string, businessID uuid.UUID, token string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := guardKey(stage, businessID)
	if hold, ok := g.held[key]; ok && time.Now().Before(hold.expiry) {
		return false, nil
	}

	g.held[key] = guardHold{token: token, expiry: time.Now().Add(ttl)}
	return true, nil
}

// ReleaseRunGuard releases the guard once the stage completes. A stale
// token leaves the guard with its current holder.
func (g *MemoryRunGuard) ReleaseRunGuard(ctx context.Context, stage string, businessID uuid.UUID, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := guardKey(stage, businessID)
	if hold, ok := g.held[key]; ok && hold.token == token {
		delete(g.held, key)
	}
	return nil
}
