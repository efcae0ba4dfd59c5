package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// PgBackupCodeRepository implements BackupCodeRepository using pgx.
type PgBackupCodeRepository struct{}

// NewPgBackupCodeRepository creates a new PgBackupCodeRepository.
func NewPgBackupCodeRepository() *PgBackupCodeRepository {
	return &PgBackupCodeRepository{}
}

// ReplacePending swaps the unconfirmed code set for an admin. Confirmed
// codes are untouched: they stay valid until the new enrollment is proven
// with a live authenticator code. Run inside a transaction so a failure
// never leaves a partial set.
func (r *PgBackupCodeRepository) ReplacePending(ctx context.Context, db DBTX, adminID uuid.UUID, codeHashes []string) error {
	if _, err := db.Exec(ctx,
		`DELETE FROM backup_codes WHERE admin_id = $1 AND NOT confirmed`, adminID); err != nil {
		return fmt.Errorf("clear pending backup codes: %w", err)
	}
	_, err := db.Exec(ctx,
		`INSERT INTO backup_codes (admin_id, code_hash, confirmed)
		 SELECT $1, unnest($2::text[]), false`,
		adminID, codeHashes)
	if err != nil {
		return fmt.Errorf("insert backup codes: %w", err)
	}
	return nil
}

// Promote replaces the confirmed code set with the pending one, as when a
// new enrollment is verified.
func (r *PgBackupCodeRepository) Promote(ctx context.Context, db DBTX, adminID uuid.UUID) error {
	if _, err := db.Exec(ctx,
		`DELETE FROM backup_codes WHERE admin_id = $1 AND confirmed`, adminID); err != nil {
		return fmt.Errorf("clear confirmed backup codes: %w", err)
	}
	if _, err := db.Exec(ctx,
		`UPDATE backup_codes SET confirmed = true WHERE admin_id = $1`, adminID); err != nil {
		return fmt.Errorf("promote backup codes: %w", err)
	}
	return nil
}

// Consume deletes one confirmed code by hash, reporting whether it existed.
// The conditional delete makes each code single-use even under concurrent
// attempts. Pending codes are never accepted.
func (r *PgBackupCodeRepository) Consume(ctx context.Context, db DBTX, adminID uuid.UUID, codeHash string) (bool, error) {
	tag, err := db.Exec(ctx,
		`DELETE FROM backup_codes WHERE admin_id = $1 AND code_hash = $2 AND confirmed`,
		adminID, codeHash)
	if err != nil {
		return false, fmt.Errorf("consume backup code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CountRemaining returns the number of unused confirmed codes.
func (r *PgBackupCodeRepository) CountRemaining(ctx context.Context, db DBTX, adminID uuid.UUID) (int, error) {
	var count int
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM backup_codes WHERE admin_id = $1 AND confirmed`, adminID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count backup codes: %w", err)
	}
	return count, nil
}
