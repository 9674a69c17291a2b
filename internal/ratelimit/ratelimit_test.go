package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLimiter_Allow(t *testing.T) {
	rl := NewInMemoryLimiter()
	ctx := context.Background()

	d, err := rl.Allow(ctx, "10.0.0.1", 3)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)

	rl.Allow(ctx, "10.0.0.1", 3)
	rl.Allow(ctx, "10.0.0.1", 3)

	d, err = rl.Allow(ctx, "10.0.0.1", 3)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "expected rejection after limit exceeded")
	assert.Equal(t, 0, d.Remaining)
}

func TestInMemoryLimiter_DifferentClients(t *testing.T) {
	rl := NewInMemoryLimiter()
	ctx := context.Background()

	rl.Allow(ctx, "a", 1)

	d, _ := rl.Allow(ctx, "a", 1)
	assert.False(t, d.Allowed)

	d, _ = rl.Allow(ctx, "b", 1)
	assert.True(t, d.Allowed, "clients must not share a window")
}

func TestInMemoryLimiter_WindowResets(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewInMemoryLimiter()
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	rl.Allow(ctx, "a", 1)
	d, _ := rl.Allow(ctx, "a", 1)
	require.False(t, d.Allowed)
	assert.Equal(t, 60*time.Second, d.RetryAfter(now))

	now = now.Add(61 * time.Second)

	d, _ = rl.Allow(ctx, "a", 1)
	assert.True(t, d.Allowed)
}

func TestInMemoryLimiter_PrunesStaleWindows(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewInMemoryLimiter()
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	rl.Allow(ctx, "a", 5)
	rl.Allow(ctx, "b", 5)
	now = now.Add(2 * time.Minute)
	rl.Allow(ctx, "c", 5)

	assert.Len(t, rl.windows, 1)
}

func TestDecision_RetryAfterFloor(t *testing.T) {
	now := time.Now()
	d := Decision{ResetAt: now.Add(100 * time.Millisecond)}
	assert.Equal(t, time.Second, d.RetryAfter(now))
}

func TestRedisLimiter_Allow(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set, skipping Redis tests")
	}

	rl, err := NewRedisLimiter(redisURL)
	require.NoError(t, err)
	t.Cleanup(func() { rl.Close() })

	ctx := context.Background()
	client := "test-" + uuid.NewString()

	for i := 0; i < 2; i++ {
		d, err := rl.Allow(ctx, client, 2)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := rl.Allow(ctx, client, 2)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}
