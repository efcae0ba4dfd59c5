package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Vishesh-Tomer/school-erp/internal/auth"
	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/Vishesh-Tomer/school-erp/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TokenService issues and verifies signed tokens, persisting refresh and
// reset_password tokens so they can be individually revoked. Access tokens
// stay stateless: revoking them would cost a store lookup per request, and
// their short TTL bounds the exposure.
type TokenService struct {
	pool   *pgxpool.Pool
	tokens repository.TokenRepository
	tm     *auth.TokenManager
}

// NewTokenService creates a TokenService.
func NewTokenService(pool *pgxpool.Pool, tokens repository.TokenRepository, tm *auth.TokenManager) *TokenService {
	return &TokenService{pool: pool, tokens: tokens, tm: tm}
}

// IssueAuthPair issues an access/refresh pair for the admin, persisting the
// refresh token.
func (s *TokenService) IssueAuthPair(ctx context.Context, admin *domain.Admin) (*domain.TokenPair, error) {
	access, accessExp, err := s.tm.Sign(domain.TokenAccess, admin.ID, admin.Role, admin.SchoolID)
	if err != nil {
		return nil, domain.ErrInternal("sign access token", err)
	}

	refresh, refreshExp, err := s.tm.Sign(domain.TokenRefresh, admin.ID, admin.Role, admin.SchoolID)
	if err != nil {
		return nil, domain.ErrInternal("sign refresh token", err)
	}

	ctx, cancel := storeCtx(ctx)
	defer cancel()

	err = s.tokens.Save(ctx, s.pool, &domain.Token{
		Token:     refresh,
		AdminID:   admin.ID,
		Kind:      domain.TokenRefresh,
		ExpiresAt: refreshExp,
	})
	if err != nil {
		return nil, storeErr("save refresh token", err)
	}

	return &domain.TokenPair{
		Access:  domain.TokenDetail{Token: access, Expires: accessExp},
		Refresh: domain.TokenDetail{Token: refresh, Expires: refreshExp},
	}, nil
}

// ConsumeRefresh verifies and deletes a refresh token, returning its owner.
// The delete is a conditional single-row operation, so two concurrent calls
// on the same token produce exactly one winner; the loser gets Unauthorized.
func (s *TokenService) ConsumeRefresh(ctx context.Context, tokenString string) (uuid.UUID, error) {
	claims, err := s.tm.VerifyKind(tokenString, domain.TokenRefresh)
	if err != nil {
		return uuid.Nil, domain.ErrUnauthorized("invalid refresh token")
	}

	ctx, cancel := storeCtx(ctx)
	defer cancel()

	record, err := s.tokens.ConsumeOne(ctx, s.pool, tokenString, domain.TokenRefresh)
	if err != nil {
		return uuid.Nil, storeErr("consume refresh token", err)
	}
	if record == nil {
		return uuid.Nil, domain.ErrUnauthorized("invalid refresh token")
	}

	adminID, err := claims.AdminID()
	if err != nil || adminID != record.AdminID {
		return uuid.Nil, domain.ErrUnauthorized("invalid refresh token")
	}
	return adminID, nil
}

// Revoke deletes a persisted refresh token, as on logout. Returns NotFound
// if the token is absent or already consumed.
func (s *TokenService) Revoke(ctx context.Context, tokenString string) error {
	ctx, cancel := storeCtx(ctx)
	defer cancel()

	record, err := s.tokens.ConsumeOne(ctx, s.pool, tokenString, domain.TokenRefresh)
	if err != nil {
		return storeErr("revoke refresh token", err)
	}
	if record == nil {
		return domain.ErrNotFound("refresh token")
	}
	return nil
}

// IssueResetToken persists a reset_password token for the admin. Issuing a
// new one invalidates any prior unconsumed reset tokens, keeping a single
// outstanding reset credential per account.
func (s *TokenService) IssueResetToken(ctx context.Context, admin *domain.Admin) (string, error) {
	token, expires, err := s.tm.Sign(domain.TokenResetPassword, admin.ID, admin.Role, admin.SchoolID)
	if err != nil {
		return "", domain.ErrInternal("sign reset token", err)
	}

	ctx, cancel := storeCtx(ctx)
	defer cancel()

	if err := s.tokens.DeleteByAdmin(ctx, s.pool, admin.ID, domain.TokenResetPassword); err != nil {
		return "", storeErr("invalidate prior reset tokens", err)
	}

	err = s.tokens.Save(ctx, s.pool, &domain.Token{
		Token:     token,
		AdminID:   admin.ID,
		Kind:      domain.TokenResetPassword,
		ExpiresAt: expires,
	})
	if err != nil {
		return "", storeErr("save reset token", err)
	}
	return token, nil
}

// VerifyReset validates a reset token against signature and persistence,
// returning its owner without consuming it. The caller consumes all reset
// tokens only after the password update lands.
func (s *TokenService) VerifyReset(ctx context.Context, tokenString string) (uuid.UUID, error) {
	claims, err := s.tm.VerifyKind(tokenString, domain.TokenResetPassword)
	if err != nil {
		return uuid.Nil, domain.ErrUnauthorized("invalid reset token")
	}

	ctx, cancel := storeCtx(ctx)
	defer cancel()

	record, err := s.tokens.Find(ctx, s.pool, tokenString, domain.TokenResetPassword)
	if err != nil {
		return uuid.Nil, storeErr("find reset token", err)
	}
	if record == nil {
		return uuid.Nil, domain.ErrUnauthorized("invalid reset token")
	}

	adminID, err := claims.AdminID()
	if err != nil || adminID != record.AdminID {
		return uuid.Nil, domain.ErrUnauthorized("invalid reset token")
	}
	return adminID, nil
}

// RevokeAll deletes every token of the given kinds for an admin, as on
// soft-delete.
func (s *TokenService) RevokeAll(ctx context.Context, adminID uuid.UUID, kinds ...domain.TokenKind) error {
	ctx, cancel := storeCtx(ctx)
	defer cancel()

	if err := s.tokens.DeleteByAdmin(ctx, s.pool, adminID, kinds...); err != nil {
		return storeErr("revoke tokens", err)
	}
	return nil
}

// StartJanitor garbage-collects expired tokens on the given interval until
// ctx is cancelled. Expired tokens are already inert, so this only trims
// table growth.
func (s *TokenService) StartJanitor(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				gcCtx, cancel := storeCtx(ctx)
				n, err := s.tokens.DeleteExpired(gcCtx, s.pool, time.Now())
				cancel()
				if err != nil {
					logger.Warn("token gc failed", "error", err)
					continue
				}
				if n > 0 {
					logger.Info("expired tokens pruned", "count", n)
				}
			}
		}
	}()
}
