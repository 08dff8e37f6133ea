package competitors

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRunGuard(t *testing.T) {
	guard := NewMemoryRunGuard()
	ctx := context.Background()
	businessID := uuid.New()

	acquired, err := guard.AcquireRunGuard(ctx, StageCrawl, businessID, "run-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	// Same stage, same business: held
	acquired, err = guard.AcquireRunGuard(ctx, StageCrawl, businessID, "run-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	// Different stage or business: independent
	acquired, _ = guard.AcquireRunGuard(ctx, StageAnalyze, businessID, "run-3", time.Minute)
	assert.True(t, acquired)
	acquired, _ = guard.AcquireRunGuard(ctx, StageCrawl, uuid.New(), "run-4", time.Minute)
	assert.True(t, acquired)

	// Release frees the guard
	require.NoError(t, guard.ReleaseRunGuard(ctx, StageCrawl, businessID, "run-1"))
	acquired, _ = guard.AcquireRunGuard(ctx, StageCrawl, businessID, "run-5", time.Minute)
	assert.True(t, acquired)
}

func TestMemoryRunGuard_ExpiredHoldReclaimed(t *testing.T) {
	guard := NewMemoryRunGuard()
	ctx := context.Background()
	businessID := uuid.New()

	acquired, err := guard.AcquireRunGuard(ctx, StageCrawl, businessID, "run-1", time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)

	time.Sleep(5 * time.Millisecond)

	acquired, err = guard.AcquireRunGuard(ctx, StageCrawl, businessID, "run-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestMemoryRunGuard_StaleReleaseLeavesNewHolder(t *testing.T) {
	guard := NewMemoryRunGuard()
	ctx := context.Background()
	businessID := uuid.New()

	acquired, err := guard.AcquireRunGuard(ctx, StageCrawl, businessID, "stale-run", time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)

	// The first run's hold expires and a newer run takes the guard
	time.Sleep(5 * time.Millisecond)
	acquired, err = guard.AcquireRunGuard(ctx, StageCrawl, businessID, "live-run", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	// The expired run finishing late must not free the live run's hold
	require.NoError(t, guard.ReleaseRunGuard(ctx, StageCrawl, businessID, "stale-run"))
	acquired, err = guard.AcquireRunGuard(ctx, StageCrawl, businessID, "third-run", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	// The live run's own release still works
	require.NoError(t, guard.ReleaseRunGuard(ctx, StageCrawl, businessID, "live-run"))
	acquired, err = guard.AcquireRunGuard(ctx, StageCrawl, businessID, "third-run", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}
