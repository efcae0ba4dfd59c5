package guard

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, points int, window time.Duration, failOpen bool) (*WindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWindowLimiter(rdb, "login", points, window, failOpen, logger), mr
}

func TestWindowLimiter_AllowsUnderBudget(t *testing.T) {
	rl, _ := newTestLimiter(t, 3, time.Minute, false)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := rl.Check(ctx, "10.0.0.1")
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
	}
}

func TestWindowLimiter_BlocksOverBudget(t *testing.T) {
	rl, _ := newTestLimiter(t, 2, time.Minute, false)
	ctx := context.Background()

	rl.Check(ctx, "10.0.0.1")
	rl.Check(ctx, "10.0.0.1")
	result := rl.Check(ctx, "10.0.0.1")

	assert.False(t, result.Allowed)
	assert.Equal(t, "login", result.Guard)
	assert.Contains(t, result.Reason, "rate limit exceeded")
}

func TestWindowLimiter_SeparateKeys(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, time.Minute, false)
	ctx := context.Background()

	assert.True(t, rl.Check(ctx, "10.0.0.1").Allowed)
	assert.True(t, rl.Check(ctx, "10.0.0.2").Allowed)
	assert.False(t, rl.Check(ctx, "10.0.0.1").Allowed)
}

func TestWindowLimiter_WindowExpiryUnblocks(t *testing.T) {
	rl, mr := newTestLimiter(t, 1, time.Minute, false)
	ctx := context.Background()

	require.True(t, rl.Check(ctx, "10.0.0.1").Allowed)
	require.False(t, rl.Check(ctx, "10.0.0.1").Allowed)

	mr.FastForward(61 * time.Second)

	assert.True(t, rl.Check(ctx, "10.0.0.1").Allowed)
}

func TestWindowLimiter_ExactBoundary(t *testing.T) {
	rl, _ := newTestLimiter(t, 5, time.Minute, false)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.True(t, rl.Check(ctx, "10.0.0.9").Allowed, "request %d", i+1)
	}
	assert.False(t, rl.Check(ctx, "10.0.0.9").Allowed, "request 6 must be blocked")
}

func TestWindowLimiter_FailClosedOnBackendOutage(t *testing.T) {
	rl, mr := newTestLimiter(t, 5, time.Minute, false)
	mr.Close()

	result := rl.Check(context.Background(), "10.0.0.1")
	assert.False(t, result.Allowed)
	assert.Equal(t, "rate limiter unavailable", result.Reason)
}

func TestWindowLimiter_FailOpenOnBackendOutage(t *testing.T) {
	rl, mr := newTestLimiter(t, 5, time.Minute, true)
	mr.Close()

	result := rl.Check(context.Background(), "10.0.0.1")
	assert.True(t, result.Allowed)
}
