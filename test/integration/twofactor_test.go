//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/Vishesh-Tomer/school-erp/test/integration/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type twoFactorSetupPayload struct {
	Secret      string   `json:"secret"`
	OTPAuthURL  string   `json:"otpauth_url"`
	QRCodeURL   string   `json:"qr_code_url"`
	BackupCodes []string `json:"backup_codes"`
}

func setup2FA(t *testing.T, env *testutil.TestEnv, accessToken string) twoFactorSetupPayload {
	t.Helper()
	resp := env.POST("/v1/admin/setup-2fa", nil, accessToken)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	e := env.DecodeEnvelope(resp)
	var payload twoFactorSetupPayload
	require.NoError(t, json.Unmarshal(e.Data, &payload))
	return payload
}

// ─── Enrollment ─────────────────────────────────────────────────────────────

func TestSetup2FA_ProvisionsPendingSecret(t *testing.T) {
	env := testutil.NewTestEnv(t)
	a := env.RegisterAdmin("enroll@school.test", "securepass123", "admin")

	payload := setup2FA(t, env, a.Tokens.Access.Token)
	assert.NotEmpty(t, payload.Secret)
	assert.Contains(t, payload.OTPAuthURL, "otpauth://totp/")
	assert.NotEmpty(t, payload.QRCodeURL)
	assert.Len(t, payload.BackupCodes, 10)

	secret, pending, enabled := env.TOTPSecrets(a.Admin.ID)
	assert.Empty(t, secret)
	assert.Equal(t, payload.Secret, pending)
	assert.False(t, enabled)

	t.Run("login unaffected while pending", func(t *testing.T) {
		env.Login("enroll@school.test", "securepass123")
	})
}

func TestVerify2FA_EnablesEnforcement(t *testing.T) {
	env := testutil.NewTestEnv(t)
	a := env.RegisterAdmin("enforce@school.test", "securepass123", "admin")
	payload := setup2FA(t, env, a.Tokens.Access.Token)

	resp := env.POST("/v1/admin/verify-2fa", map[string]string{
		"code": env.TOTPCode(payload.Secret),
	}, a.Tokens.Access.Token)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	secret, pending, enabled := env.TOTPSecrets(a.Admin.ID)
	assert.Equal(t, payload.Secret, secret)
	assert.Empty(t, pending)
	assert.True(t, enabled)

	t.Run("login without code rejected", func(t *testing.T) {
		login := env.POST("/v1/admin/login", map[string]string{
			"email": "enforce@school.test", "password": "securepass123",
		}, "")
		defer login.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, login.StatusCode)
	})

	t.Run("login with totp code succeeds", func(t *testing.T) {
		login := env.POST("/v1/admin/login", map[string]string{
			"email": "enforce@school.test", "password": "securepass123",
			"two_factor_code": env.TOTPCode(payload.Secret),
		}, "")
		defer login.Body.Close()
		assert.Equal(t, http.StatusOK, login.StatusCode)
	})

	t.Run("login with wrong code rejected", func(t *testing.T) {
		login := env.POST("/v1/admin/login", map[string]string{
			"email": "enforce@school.test", "password": "securepass123",
			"two_factor_code": "000000",
		}, "")
		defer login.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, login.StatusCode)
	})
}

func TestVerify2FA_RejectsBadStates(t *testing.T) {
	env := testutil.NewTestEnv(t)
	a := env.RegisterAdmin("badstate@school.test", "securepass123", "admin")

	t.Run("no pending setup", func(t *testing.T) {
		resp := env.POST("/v1/admin/verify-2fa", map[string]string{"code": "123456"}, a.Tokens.Access.Token)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("wrong code leaves setup pending", func(t *testing.T) {
		payload := setup2FA(t, env, a.Tokens.Access.Token)
		resp := env.POST("/v1/admin/verify-2fa", map[string]string{"code": "000000"}, a.Tokens.Access.Token)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		_, pending, enabled := env.TOTPSecrets(a.Admin.ID)
		assert.Equal(t, payload.Secret, pending)
		assert.False(t, enabled)
	})
}

// ─── Backup codes ───────────────────────────────────────────────────────────

func TestBackupCode_SingleUse(t *testing.T) {
	env := testutil.NewTestEnv(t)
	a := env.RegisterAdmin("backup@school.test", "securepass123", "admin")
	payload := setup2FA(t, env, a.Tokens.Access.Token)

	resp := env.POST("/v1/admin/verify-2fa", map[string]string{
		"code": env.TOTPCode(payload.Secret),
	}, a.Tokens.Access.Token)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	code := payload.BackupCodes[0]

	login := env.POST("/v1/admin/login", map[string]string{
		"email": "backup@school.test", "password": "securepass123",
		"two_factor_code": code,
	}, "")
	login.Body.Close()
	require.Equal(t, http.StatusOK, login.StatusCode)

	t.Run("replay rejected", func(t *testing.T) {
		again := env.POST("/v1/admin/login", map[string]string{
			"email": "backup@school.test", "password": "securepass123",
			"two_factor_code": code,
		}, "")
		defer again.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, again.StatusCode)
	})

	t.Run("remaining codes still work", func(t *testing.T) {
		other := env.POST("/v1/admin/login", map[string]string{
			"email": "backup@school.test", "password": "securepass123",
			"two_factor_code": payload.BackupCodes[1],
		}, "")
		defer other.Body.Close()
		assert.Equal(t, http.StatusOK, other.StatusCode)
	})

	t.Run("profile reports remaining count", func(t *testing.T) {
		resp := env.AuthGET("/v1/admin/profile", a.Tokens.Access.Token)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		e := env.DecodeEnvelope(resp)
		var profile struct {
			BackupCodesRemaining int `json:"backup_codes_remaining"`
		}
		require.NoError(t, json.Unmarshal(e.Data, &profile))
		assert.Equal(t, 8, profile.BackupCodesRemaining)
	})
}

func TestBackupCode_PendingCodesDoNotGateLogin(t *testing.T) {
	env := testutil.NewTestEnv(t)
	a := env.RegisterAdmin("staged@school.test", "securepass123", "admin")
	first := setup2FA(t, env, a.Tokens.Access.Token)

	resp := env.POST("/v1/admin/verify-2fa", map[string]string{
		"code": env.TOTPCode(first.Secret),
	}, a.Tokens.Access.Token)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Re-provision but never confirm; the new codes must stay inert.
	second := setup2FA(t, env, a.Tokens.Access.Token)

	t.Run("unconfirmed code rejected", func(t *testing.T) {
		login := env.POST("/v1/admin/login", map[string]string{
			"email": "staged@school.test", "password": "securepass123",
			"two_factor_code": second.BackupCodes[0],
		}, "")
		defer login.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, login.StatusCode)
	})

	t.Run("confirmed code survives abandoned re-provision", func(t *testing.T) {
		login := env.POST("/v1/admin/login", map[string]string{
			"email": "staged@school.test", "password": "securepass123",
			"two_factor_code": first.BackupCodes[0],
		}, "")
		defer login.Body.Close()
		assert.Equal(t, http.StatusOK, login.StatusCode)
	})

	t.Run("confirming the new secret swaps the code sets", func(t *testing.T) {
		resp := env.POST("/v1/admin/verify-2fa", map[string]string{
			"code": env.TOTPCode(second.Secret),
		}, a.Tokens.Access.Token)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		old := env.POST("/v1/admin/login", map[string]string{
			"email": "staged@school.test", "password": "securepass123",
			"two_factor_code": first.BackupCodes[1],
		}, "")
		defer old.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, old.StatusCode)

		fresh := env.POST("/v1/admin/login", map[string]string{
			"email": "staged@school.test", "password": "securepass123",
			"two_factor_code": second.BackupCodes[0],
		}, "")
		defer fresh.Body.Close()
		assert.Equal(t, http.StatusOK, fresh.StatusCode)
	})
}

func TestSetup2FA_ReprovisionKeepsActiveSecret(t *testing.T) {
	env := testutil.NewTestEnv(t)
	a := env.RegisterAdmin("rotate@school.test", "securepass123", "admin")
	first := setup2FA(t, env, a.Tokens.Access.Token)

	resp := env.POST("/v1/admin/verify-2fa", map[string]string{
		"code": env.TOTPCode(first.Secret),
	}, a.Tokens.Access.Token)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Start a fresh enrollment but never verify it.
	second := setup2FA(t, env, a.Tokens.Access.Token)
	require.NotEqual(t, first.Secret, second.Secret)

	secret, pending, enabled := env.TOTPSecrets(a.Admin.ID)
	assert.Equal(t, first.Secret, secret)
	assert.Equal(t, second.Secret, pending)
	assert.True(t, enabled)

	// The verified secret keeps gating logins until the new one is confirmed.
	login := env.POST("/v1/admin/login", map[string]string{
		"email": "rotate@school.test", "password": "securepass123",
		"two_factor_code": env.TOTPCode(first.Secret),
	}, "")
	defer login.Body.Close()
	assert.Equal(t, http.StatusOK, login.StatusCode)
}
