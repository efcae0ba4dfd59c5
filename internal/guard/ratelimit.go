package guard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result reports a limiter decision.
type Result struct {
	Allowed bool
	Reason  string
	Guard   string
}

// WindowLimiter is a fixed-window rate limiter over shared Redis counters,
// keyed by client IP. Exceeding the budget blocks the key until the window
// key expires. Counter increments are atomic per key (single INCR), so
// concurrent requests from one IP cannot under-count.
type WindowLimiter struct {
	rdb      redis.UniversalClient
	name     string
	points   int
	window   time.Duration
	failOpen bool
	logger   *slog.Logger
}

// NewWindowLimiter creates a limiter allowing points requests per window.
// failOpen controls backend-outage policy: true allows all traffic with a
// warning log, false rejects it. Failing open silently is a security
// regression, so the choice is explicit here and in config.
func NewWindowLimiter(rdb redis.UniversalClient, name string, points int, window time.Duration, failOpen bool, logger *slog.Logger) *WindowLimiter {
	return &WindowLimiter{
		rdb:      rdb,
		name:     name,
		points:   points,
		window:   window,
		failOpen: failOpen,
		logger:   logger,
	}
}

// Check consumes one point for the key and reports whether the request is
// within budget. Backend errors resolve per the fail-open policy.
func (l *WindowLimiter) Check(ctx context.Context, key string) Result {
	count, err := l.rdb.Incr(ctx, l.key(key)).Result()
	if err != nil {
		return l.backendDown(key, err)
	}

	// First hit in the window sets the TTL; later hits reuse it.
	if count == 1 {
		if err := l.rdb.Expire(ctx, l.key(key), l.window).Err(); err != nil {
			return l.backendDown(key, err)
		}
	}

	if count > int64(l.points) {
		return Result{
			Allowed: false,
			Reason:  fmt.Sprintf("rate limit exceeded: %d/%s", l.points, l.window),
			Guard:   l.name,
		}
	}
	return Result{Allowed: true}
}

func (l *WindowLimiter) key(key string) string {
	return "rl:" + l.name + ":" + key
}

func (l *WindowLimiter) backendDown(key string, err error) Result {
	if l.failOpen {
		l.logger.Warn("rate limiter backend unavailable, failing open",
			"guard", l.name, "key", key, "error", err)
		return Result{Allowed: true}
	}
	l.logger.Error("rate limiter backend unavailable, failing closed",
		"guard", l.name, "key", key, "error", err)
	return Result{
		Allowed: false,
		Reason:  "rate limiter unavailable",
		Guard:   l.name,
	}
}
