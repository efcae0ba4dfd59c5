package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenKind discriminates issued token types.
type TokenKind string

const (
	TokenAccess        TokenKind = "access"
	TokenRefresh       TokenKind = "refresh"
	TokenResetPassword TokenKind = "reset_password"
)

// Token is a persisted refresh or reset_password token. Access tokens are
// stateless and never stored; verifying one checks only signature, expiry
// and kind.
type Token struct {
	Token       string    `json:"token"`
	AdminID     uuid.UUID `json:"admin_id"`
	Kind        TokenKind `json:"kind"`
	ExpiresAt   time.Time `json:"expires_at"`
	Blacklisted bool      `json:"blacklisted"`
	CreatedAt   time.Time `json:"created_at"`
}

// TokenDetail is one half of an issued token pair.
type TokenDetail struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// TokenPair is returned by login, register and refresh.
type TokenPair struct {
	Access  TokenDetail `json:"access"`
	Refresh TokenDetail `json:"refresh"`
}
