package repository

import (
	"context"
	"time"

	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// AdminRepository provides access to admins.
type AdminRepository interface {
	// FindByID returns a non-deleted admin by ID, or nil if not found.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Admin, error)

	// FindByEmail returns an admin by normalized email, or nil if not found.
	// Soft-deleted rows are excluded unless includeDeleted is set.
	FindByEmail(ctx context.Context, db DBTX, email string, includeDeleted bool) (*domain.Admin, error)

	// IsEmailTaken reports whether a non-deleted admin other than excludeID
	// holds the email.
	IsEmailTaken(ctx context.Context, db DBTX, email string, excludeID *uuid.UUID) (bool, error)

	// Create inserts a new admin. A live-email uniqueness violation surfaces
	// as domain.ErrEmailConflict.
	Create(ctx context.Context, db DBTX, admin *domain.Admin) error

	// Update applies a partial field merge and returns the updated row.
	Update(ctx context.Context, db DBTX, id uuid.UUID, upd domain.AdminUpdate) (*domain.Admin, error)

	// SoftDelete marks the admin deleted, keeping the row.
	SoftDelete(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Admin, error)

	// SetTOTPState writes the TOTP columns (secret, pending secret, enabled).
	SetTOTPState(ctx context.Context, db DBTX, id uuid.UUID, secret, pendingSecret string, enabled bool) error

	// List returns a page of non-deleted admins matching the query.
	List(ctx context.Context, db DBTX, q domain.AdminQuery) (*domain.AdminPage, error)
}

// RoleRepository provides access to roles.
type RoleRepository interface {
	// ListNames returns all role names.
	ListNames(ctx context.Context, db DBTX) ([]string, error)

	// FindByName returns a role, or nil if unknown.
	FindByName(ctx context.Context, db DBTX, name string) (*domain.Role, error)

	// Seed inserts roles idempotently; duplicate names are ignored so
	// concurrent cold starts cannot double-seed.
	Seed(ctx context.Context, db DBTX, roles []domain.Role) error
}

// TokenRepository provides access to persisted refresh and reset tokens.
type TokenRepository interface {
	// Save persists an issued token.
	Save(ctx context.Context, db DBTX, token *domain.Token) error

	// Find returns a non-blacklisted token of the given kind, or nil.
	Find(ctx context.Context, db DBTX, token string, kind domain.TokenKind) (*domain.Token, error)

	// ConsumeOne deletes the token if it still exists, returning the deleted
	// row or nil. The conditional single-row delete is what makes refresh
	// rotation single-use under concurrency.
	ConsumeOne(ctx context.Context, db DBTX, token string, kind domain.TokenKind) (*domain.Token, error)

	// DeleteByAdmin removes all tokens of the given kinds for an admin.
	DeleteByAdmin(ctx context.Context, db DBTX, adminID uuid.UUID, kinds ...domain.TokenKind) error

	// DeleteExpired garbage-collects tokens past their expiry.
	DeleteExpired(ctx context.Context, db DBTX, before time.Time) (int64, error)
}

// BackupCodeRepository provides access to hashed single-use 2FA backup
// codes. Codes enter as pending and only gate logins once promoted, in
// lockstep with their secret.
type BackupCodeRepository interface {
	// ReplacePending swaps the unconfirmed code set, leaving confirmed
	// codes valid.
	ReplacePending(ctx context.Context, db DBTX, adminID uuid.UUID, codeHashes []string) error

	// Promote discards the confirmed set and confirms the pending one.
	Promote(ctx context.Context, db DBTX, adminID uuid.UUID) error

	// Consume deletes one confirmed code by hash, reporting whether it
	// existed. Conditional delete keeps each code single-use under
	// concurrency.
	Consume(ctx context.Context, db DBTX, adminID uuid.UUID, codeHash string) (bool, error)

	// CountRemaining returns the number of unused confirmed codes.
	CountRemaining(ctx context.Context, db DBTX, adminID uuid.UUID) (int, error)
}

// AuditRepository provides append-only access to audit_log.
type AuditRepository interface {
	// Insert writes one audit entry.
	Insert(ctx context.Context, db DBTX, entry *domain.AuditEntry) error

	// FetchUnpublished returns entries not yet handed to the event bus.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.AuditEntry, error)

	// MarkPublished stamps entries as published.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error
}
