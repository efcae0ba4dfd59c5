//go:build integration

package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/Vishesh-Tomer/school-erp/internal/infra"
	"github.com/Vishesh-Tomer/school-erp/test/integration/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attemptLogin(env *testutil.TestEnv) *http.Response {
	return env.POST("/v1/admin/login", map[string]string{
		"email": "limited@school.test", "password": "wrong-password",
	}, "")
}

// ─── Budgets ────────────────────────────────────────────────────────────────

func TestLoginRateLimit_BlocksAfterBudget(t *testing.T) {
	env := testutil.NewTestEnvWithConfig(t, func(cfg *infra.Config) {
		cfg.RateLimitEnabled = true
		cfg.AuthRatePoints = 100
		cfg.LoginRatePoints = 3
		cfg.LoginRateWindow = 5 * time.Minute
	})

	// Wrong-password attempts burn the budget like any other login request.
	for i := 0; i < 3; i++ {
		resp := attemptLogin(env)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "attempt %d", i+1)
	}

	resp := attemptLogin(env)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	e := env.DecodeEnvelope(resp)
	assert.False(t, e.Success)
	assert.Contains(t, e.Message, "rate limit exceeded")
}

func TestLoginRateLimit_WindowExpiryRestoresBudget(t *testing.T) {
	env := testutil.NewTestEnvWithConfig(t, func(cfg *infra.Config) {
		cfg.RateLimitEnabled = true
		cfg.AuthRatePoints = 100
		cfg.LoginRatePoints = 1
		cfg.LoginRateWindow = time.Minute
	})

	resp := attemptLogin(env)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	blocked := attemptLogin(env)
	blocked.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, blocked.StatusCode)

	env.Redis.FastForward(time.Minute + time.Second)

	after := attemptLogin(env)
	defer after.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, after.StatusCode)
}

func TestAuthRateLimit_CoversUnauthenticatedSurface(t *testing.T) {
	env := testutil.NewTestEnvWithConfig(t, func(cfg *infra.Config) {
		cfg.RateLimitEnabled = true
		cfg.AuthRatePoints = 2
		cfg.AuthRateWindow = 15 * time.Minute
	})

	for i := 0; i < 2; i++ {
		resp := env.POST("/v1/admin/forgot-password", map[string]string{
			"email": "nobody@school.test",
		}, "")
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := env.POST("/v1/admin/forgot-password", map[string]string{
		"email": "nobody@school.test",
	}, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

// ─── Outage policy ──────────────────────────────────────────────────────────

func TestRateLimit_FailsClosedByDefault(t *testing.T) {
	env := testutil.NewTestEnvWithConfig(t, func(cfg *infra.Config) {
		cfg.RateLimitEnabled = true
	})
	env.RegisterAdmin("limited@school.test", "securepass123", "admin")

	env.Redis.Close()

	resp := env.POST("/v1/admin/login", map[string]string{
		"email": "limited@school.test", "password": "securepass123",
	}, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	e := env.DecodeEnvelope(resp)
	assert.Contains(t, e.Message, "rate limiter unavailable")
}

func TestRateLimit_FailOpenAllowsTraffic(t *testing.T) {
	env := testutil.NewTestEnvWithConfig(t, func(cfg *infra.Config) {
		cfg.RateLimitEnabled = true
		cfg.RateLimitFailOpen = true
	})
	env.RegisterAdmin("limited@school.test", "securepass123", "admin")

	env.Redis.Close()

	resp := env.POST("/v1/admin/login", map[string]string{
		"email": "limited@school.test", "password": "securepass123",
	}, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
