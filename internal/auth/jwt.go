package auth

import (
	"fmt"
	"time"

	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims holds the custom JWT claims for all token kinds.
type Claims struct {
	jwt.RegisteredClaims
	Kind     domain.TokenKind `json:"kind"`
	Role     string           `json:"role,omitempty"`
	SchoolID string           `json:"school_id,omitempty"`
}

// TokenManager signs and verifies kind-discriminated JWTs. Access tokens
// are short-lived and verified statelessly; refresh and reset tokens get a
// persistence check in the token service on top of this.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
}

// NewTokenManager creates a token manager with per-kind expiry durations.
func NewTokenManager(secret string, accessTTL, refreshTTL, resetTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		resetTTL:   resetTTL,
	}
}

// TTL returns the configured lifetime for the given token kind.
func (m *TokenManager) TTL(kind domain.TokenKind) time.Duration {
	switch kind {
	case domain.TokenAccess:
		return m.accessTTL
	case domain.TokenRefresh:
		return m.refreshTTL
	default:
		return m.resetTTL
	}
}

// Sign creates a signed JWT of the given kind for the admin. Returns the
// token string and its expiry.
func (m *TokenManager) Sign(kind domain.TokenKind, adminID uuid.UUID, role string, schoolID uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(m.TTL(kind))

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.New().String(),
		},
		Kind:     kind,
		Role:     role,
		SchoolID: schoolID.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Verify parses and validates a JWT, returning claims if valid.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// VerifyKind validates a token and ensures it carries the expected kind.
// A refresh token must never pass an access check and vice versa.
func (m *TokenManager) VerifyKind(tokenString string, expected domain.TokenKind) (*Claims, error) {
	claims, err := m.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Kind != expected {
		return nil, fmt.Errorf("expected %s token, got %s", expected, claims.Kind)
	}
	return claims, nil
}

// AdminID parses the subject out of validated claims.
func (c *Claims) AdminID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}
