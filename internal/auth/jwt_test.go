package auth

import (
	"testing"
	"time"

	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenManager() *TokenManager {
	return NewTokenManager("test-secret-key", 30*time.Minute, 30*24*time.Hour, 10*time.Minute)
}

func TestSignAndVerifyAccessToken(t *testing.T) {
	tm := newTestTokenManager()
	adminID := uuid.New()
	schoolID := uuid.New()

	token, expires, err := tm.Sign(domain.TokenAccess, adminID, domain.RoleAdmin, schoolID)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), expires, 5*time.Second)

	claims, err := tm.VerifyKind(token, domain.TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, adminID.String(), claims.Subject)
	assert.Equal(t, domain.TokenAccess, claims.Kind)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	assert.Equal(t, schoolID.String(), claims.SchoolID)

	parsed, err := claims.AdminID()
	require.NoError(t, err)
	assert.Equal(t, adminID, parsed)
}

func TestKindMismatchRejected(t *testing.T) {
	tm := newTestTokenManager()

	token, _, err := tm.Sign(domain.TokenRefresh, uuid.New(), domain.RoleAdmin, uuid.New())
	require.NoError(t, err)

	_, err = tm.VerifyKind(token, domain.TokenAccess)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected access token")
}

func TestResetTokenKind(t *testing.T) {
	tm := newTestTokenManager()

	token, _, err := tm.Sign(domain.TokenResetPassword, uuid.New(), "", uuid.New())
	require.NoError(t, err)

	claims, err := tm.VerifyKind(token, domain.TokenResetPassword)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenResetPassword, claims.Kind)
}

func TestInvalidSecretRejected(t *testing.T) {
	tm1 := NewTokenManager("secret-1", time.Hour, time.Hour, time.Hour)
	tm2 := NewTokenManager("secret-2", time.Hour, time.Hour, time.Hour)

	token, _, err := tm1.Sign(domain.TokenAccess, uuid.New(), "", uuid.New())
	require.NoError(t, err)

	_, err = tm2.Verify(token)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	tm := NewTokenManager("secret", 1*time.Millisecond, 1*time.Millisecond, 1*time.Millisecond)

	token, _, err := tm.Sign(domain.TokenAccess, uuid.New(), "", uuid.New())
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = tm.Verify(token)
	assert.Error(t, err)
}

func TestTTLPerKind(t *testing.T) {
	tm := newTestTokenManager()
	assert.Equal(t, 30*time.Minute, tm.TTL(domain.TokenAccess))
	assert.Equal(t, 30*24*time.Hour, tm.TTL(domain.TokenRefresh))
	assert.Equal(t, 10*time.Minute, tm.TTL(domain.TokenResetPassword))
}
