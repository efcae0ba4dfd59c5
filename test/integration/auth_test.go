//go:build integration

package integration

import (
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Vishesh-Tomer/school-erp/test/integration/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Registration ───────────────────────────────────────────────────────────

func TestRegister_Success(t *testing.T) {
	env := testutil.NewTestEnv(t)

	resp := env.POST("/v1/admin/register", map[string]interface{}{
		"name":      "Alice",
		"email":     "alice@school.test",
		"password":  "securepass123",
		"role":      "admin",
		"school_id": env.SchoolID,
	}, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	payload := env.DecodeAuthPayload(resp)

	assert.Equal(t, "alice@school.test", payload.Admin.Email)
	assert.Equal(t, "admin", payload.Admin.Role)
	assert.Equal(t, env.SchoolID, payload.Admin.SchoolID)
	assert.NotEmpty(t, payload.Tokens.Access.Token)
	assert.NotEmpty(t, payload.Tokens.Refresh.Token)
}

func TestRegister_NormalizesEmail(t *testing.T) {
	env := testutil.NewTestEnv(t)
	payload := env.RegisterAdmin("  MiXeD@School.Test  ", "securepass123", "admin")
	assert.Equal(t, "mixed@school.test", payload.Admin.Email)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterAdmin("dup@school.test", "securepass123", "admin")

	resp := env.POST("/v1/admin/register", map[string]interface{}{
		"name":      "Dup",
		"email":     "dup@school.test",
		"password":  "securepass123",
		"role":      "admin",
		"school_id": env.SchoolID,
	}, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e := env.DecodeEnvelope(resp)
	assert.False(t, e.Success)
	assert.Equal(t, "email already exists", e.Message)
}

func TestRegister_CaseInsensitiveDuplicate(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterAdmin("casetest@school.test", "securepass123", "admin")

	resp := env.POST("/v1/admin/register", map[string]interface{}{
		"name":      "Case",
		"email":     "CASETEST@SCHOOL.TEST",
		"password":  "securepass123",
		"role":      "admin",
		"school_id": env.SchoolID,
	}, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegister_InvalidInput(t *testing.T) {
	env := testutil.NewTestEnv(t)

	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"invalid email", map[string]interface{}{
			"name": "X", "email": "not-an-email", "password": "securepass123",
			"role": "admin", "school_id": env.SchoolID,
		}},
		{"short password", map[string]interface{}{
			"name": "X", "email": "short@school.test", "password": "short",
			"role": "admin", "school_id": env.SchoolID,
		}},
		{"unknown role", map[string]interface{}{
			"name": "X", "email": "roleless@school.test", "password": "securepass123",
			"role": "teacher", "school_id": env.SchoolID,
		}},
		{"missing school", map[string]interface{}{
			"name": "X", "email": "noschool@school.test", "password": "securepass123",
			"role": "admin",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.POST("/v1/admin/register", tc.body, "")
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

// ─── Login ──────────────────────────────────────────────────────────────────

func TestLogin_Success(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterAdmin("login@school.test", "securepass123", "admin")

	payload := env.Login("login@school.test", "securepass123")
	assert.NotEmpty(t, payload.Tokens.Access.Token)
	assert.NotEmpty(t, payload.Tokens.Refresh.Token)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterAdmin("opaque@school.test", "securepass123", "admin")

	wrongPw := env.POST("/v1/admin/login", map[string]string{
		"email": "opaque@school.test", "password": "wrongpassword",
	}, "")
	defer wrongPw.Body.Close()
	noUser := env.POST("/v1/admin/login", map[string]string{
		"email": "ghost@school.test", "password": "securepass123",
	}, "")
	defer noUser.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, wrongPw.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, noUser.StatusCode)

	e1 := env.DecodeEnvelope(wrongPw)
	e2 := env.DecodeEnvelope(noUser)
	assert.Equal(t, e1.Message, e2.Message)
}

// ─── Refresh rotation ───────────────────────────────────────────────────────

func TestRefresh_RotatesSingleUse(t *testing.T) {
	env := testutil.NewTestEnv(t)
	payload := env.RegisterAdmin("rotate@school.test", "securepass123", "admin")
	oldRefresh := payload.Tokens.Refresh.Token

	// First use succeeds and yields a new pair.
	resp := env.POST("/v1/admin/refresh-tokens", map[string]string{
		"refresh_token": oldRefresh,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	e := env.DecodeEnvelope(resp)
	resp.Body.Close()
	assert.True(t, e.Success)

	// Replaying the consumed token fails.
	replay := env.POST("/v1/admin/refresh-tokens", map[string]string{
		"refresh_token": oldRefresh,
	}, "")
	defer replay.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, replay.StatusCode)
}

func TestRefresh_ConcurrentUseHasOneWinner(t *testing.T) {
	env := testutil.NewTestEnv(t)
	payload := env.RegisterAdmin("race@school.test", "securepass123", "admin")
	refresh := payload.Tokens.Refresh.Token

	const attempts = 8
	var wg sync.WaitGroup
	var successes atomic.Int32

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := env.POST("/v1/admin/refresh-tokens", map[string]string{
				"refresh_token": refresh,
			}, "")
			defer resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusOK:
				successes.Add(1)
			case http.StatusUnauthorized:
			default:
				t.Errorf("unexpected status %d", resp.StatusCode)
			}
		}()
	}
	wg.Wait()

	// The conditional single-row delete picks exactly one winner.
	assert.Equal(t, int32(1), successes.Load())
}

func TestRegister_ConcurrentDuplicateHasOneWinner(t *testing.T) {
	env := testutil.NewTestEnv(t)

	const attempts = 6
	var wg sync.WaitGroup
	var created atomic.Int32

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := env.POST("/v1/admin/register", map[string]interface{}{
				"name":      "Racer",
				"email":     "contested@school.test",
				"password":  "securepass123",
				"role":      "admin",
				"school_id": env.SchoolID,
			}, "")
			defer resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusCreated:
				created.Add(1)
			case http.StatusBadRequest:
			default:
				t.Errorf("unexpected status %d", resp.StatusCode)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())

	// The partial unique index admits exactly one live row for the email.
	var count int
	err := env.Pool.QueryRow(t.Context(),
		"SELECT COUNT(*) FROM admins WHERE lower(email) = $1 AND NOT is_deleted",
		"contested@school.test").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	env := testutil.NewTestEnv(t)
	payload := env.RegisterAdmin("kindcheck@school.test", "securepass123", "admin")

	resp := env.POST("/v1/admin/refresh-tokens", map[string]string{
		"refresh_token": payload.Tokens.Access.Token,
	}, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// ─── Logout ─────────────────────────────────────────────────────────────────

func TestLogout_RevokesRefreshToken(t *testing.T) {
	env := testutil.NewTestEnv(t)
	payload := env.RegisterAdmin("logout@school.test", "securepass123", "admin")

	resp := env.POST("/v1/admin/logout", map[string]string{
		"refresh_token": payload.Tokens.Refresh.Token,
	}, payload.Tokens.Access.Token)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The revoked token cannot refresh.
	refresh := env.POST("/v1/admin/refresh-tokens", map[string]string{
		"refresh_token": payload.Tokens.Refresh.Token,
	}, "")
	defer refresh.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, refresh.StatusCode)
}

func TestLogout_UnknownTokenNotFound(t *testing.T) {
	env := testutil.NewTestEnv(t)
	payload := env.RegisterAdmin("logout404@school.test", "securepass123", "admin")

	resp := env.POST("/v1/admin/logout", map[string]string{
		"refresh_token": "never-issued",
	}, payload.Tokens.Access.Token)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ─── Change password ────────────────────────────────────────────────────────

func TestChangePassword_WrongOldPassword(t *testing.T) {
	env := testutil.NewTestEnv(t)
	payload := env.RegisterAdmin("chpw@school.test", "securepass123", "admin")

	resp := env.POST("/v1/admin/change-password", map[string]string{
		"old_password": "wrongpassword",
		"new_password": "evenmoresecure1",
	}, payload.Tokens.Access.Token)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChangePassword_Success(t *testing.T) {
	env := testutil.NewTestEnv(t)
	payload := env.RegisterAdmin("chpw2@school.test", "securepass123", "admin")

	resp := env.POST("/v1/admin/change-password", map[string]string{
		"old_password": "securepass123",
		"new_password": "evenmoresecure1",
	}, payload.Tokens.Access.Token)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Old password no longer works, new one does.
	old := env.POST("/v1/admin/login", map[string]string{
		"email": "chpw2@school.test", "password": "securepass123",
	}, "")
	defer old.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, old.StatusCode)

	env.Login("chpw2@school.test", "evenmoresecure1")
}

// ─── Password reset ─────────────────────────────────────────────────────────

func TestForgotPassword_UniformResponse(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterAdmin("forgot@school.test", "securepass123", "admin")

	existing := env.POST("/v1/admin/forgot-password", map[string]string{
		"email": "forgot@school.test",
	}, "")
	defer existing.Body.Close()
	missing := env.POST("/v1/admin/forgot-password", map[string]string{
		"email": "nobody@school.test",
	}, "")
	defer missing.Body.Close()

	assert.Equal(t, http.StatusOK, existing.StatusCode)
	assert.Equal(t, http.StatusOK, missing.StatusCode)

	e1 := env.DecodeEnvelope(existing)
	e2 := env.DecodeEnvelope(missing)
	assert.Equal(t, e1.Message, e2.Message)
}

func TestResetPassword_Flow(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterAdmin("reset@school.test", "securepass123", "admin")

	resp := env.POST("/v1/admin/forgot-password", map[string]string{
		"email": "reset@school.test",
	}, "")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	token := env.ResetTokenFor("reset@school.test")

	reset := env.POST("/v1/admin/reset-password?token="+token, map[string]string{
		"password": "brandnewpass1",
	}, "")
	reset.Body.Close()
	require.Equal(t, http.StatusOK, reset.StatusCode)

	env.Login("reset@school.test", "brandnewpass1")

	// The consumed token is gone.
	reuse := env.POST("/v1/admin/reset-password?token="+token, map[string]string{
		"password": "anotherpass123",
	}, "")
	defer reuse.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, reuse.StatusCode)
}

func TestResetPassword_NewRequestInvalidatesOldToken(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterAdmin("reset2@school.test", "securepass123", "admin")

	resp := env.POST("/v1/admin/forgot-password", map[string]string{"email": "reset2@school.test"}, "")
	resp.Body.Close()
	first := env.ResetTokenFor("reset2@school.test")

	resp = env.POST("/v1/admin/forgot-password", map[string]string{"email": "reset2@school.test"}, "")
	resp.Body.Close()

	// Only the latest token is honored.
	stale := env.POST("/v1/admin/reset-password?token="+first, map[string]string{
		"password": "brandnewpass1",
	}, "")
	defer stale.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, stale.StatusCode)
}

// ─── Access control plumbing ────────────────────────────────────────────────

func TestProtectedRoutes_RequireAccessToken(t *testing.T) {
	env := testutil.NewTestEnv(t)
	payload := env.RegisterAdmin("plumbing@school.test", "securepass123", "admin")

	t.Run("missing token", func(t *testing.T) {
		resp := env.AuthGET("/v1/admin/profile", "")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("refresh token rejected as access token", func(t *testing.T) {
		resp := env.AuthGET("/v1/admin/profile", payload.Tokens.Refresh.Token)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		resp := env.AuthGET("/v1/admin/profile", "not.a.jwt")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
