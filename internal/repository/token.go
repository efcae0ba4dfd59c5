package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PgTokenRepository implements TokenRepository using pgx.
type PgTokenRepository struct{}

// NewPgTokenRepository creates a new PgTokenRepository.
func NewPgTokenRepository() *PgTokenRepository {
	return &PgTokenRepository{}
}

// Save persists an issued token.
func (r *PgTokenRepository) Save(ctx context.Context, db DBTX, token *domain.Token) error {
	_, err := db.Exec(ctx, `
		INSERT INTO tokens (token, admin_id, kind, expires_at, blacklisted)
		VALUES ($1, $2, $3, $4, $5)`,
		token.Token, token.AdminID, string(token.Kind), token.ExpiresAt, token.Blacklisted)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// Find returns a non-blacklisted token of the given kind, or nil.
func (r *PgTokenRepository) Find(ctx context.Context, db DBTX, token string, kind domain.TokenKind) (*domain.Token, error) {
	t := &domain.Token{}
	err := db.QueryRow(ctx, `
		SELECT token, admin_id, kind, expires_at, blacklisted, created_at
		FROM tokens
		WHERE token = $1 AND kind = $2 AND NOT blacklisted`,
		token, string(kind)).
		Scan(&t.Token, &t.AdminID, &t.Kind, &t.ExpiresAt, &t.Blacklisted, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find token: %w", err)
	}
	return t, nil
}

// ConsumeOne deletes the token if it still exists, returning the deleted row
// or nil. Two concurrent consumers of the same token see exactly one non-nil
// result; Postgres serializes the row delete.
func (r *PgTokenRepository) ConsumeOne(ctx context.Context, db DBTX, token string, kind domain.TokenKind) (*domain.Token, error) {
	t := &domain.Token{}
	err := db.QueryRow(ctx, `
		DELETE FROM tokens
		WHERE token = $1 AND kind = $2 AND NOT blacklisted
		RETURNING token, admin_id, kind, expires_at, blacklisted, created_at`,
		token, string(kind)).
		Scan(&t.Token, &t.AdminID, &t.Kind, &t.ExpiresAt, &t.Blacklisted, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("consume token: %w", err)
	}
	return t, nil
}

// DeleteByAdmin removes all tokens of the given kinds for an admin.
func (r *PgTokenRepository) DeleteByAdmin(ctx context.Context, db DBTX, adminID uuid.UUID, kinds ...domain.TokenKind) error {
	kindStrs := make([]string, len(kinds))
	for i, k := range kinds {
		kindStrs[i] = string(k)
	}
	_, err := db.Exec(ctx,
		`DELETE FROM tokens WHERE admin_id = $1 AND kind = ANY($2)`,
		adminID, kindStrs)
	if err != nil {
		return fmt.Errorf("delete tokens: %w", err)
	}
	return nil
}

// DeleteExpired garbage-collects tokens past their expiry.
func (r *PgTokenRepository) DeleteExpired(ctx context.Context, db DBTX, before time.Time) (int64, error) {
	tag, err := db.Exec(ctx, `DELETE FROM tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
