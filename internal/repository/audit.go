package repository

import (
	"context"
	"fmt"

	"github.com/Vishesh-Tomer/school-erp/internal/domain"
)

// PgAuditRepository implements AuditRepository using pgx. The audit_log
// table doubles as an outbox: published_at stays NULL until the event bus
// poller picks the row up.
type PgAuditRepository struct{}

// NewPgAuditRepository creates a new PgAuditRepository.
func NewPgAuditRepository() *PgAuditRepository {
	return &PgAuditRepository{}
}

// Insert writes one audit entry.
func (r *PgAuditRepository) Insert(ctx context.Context, db DBTX, entry *domain.AuditEntry) error {
	details := entry.Details
	if len(details) == 0 {
		details = []byte(`{}`)
	}
	_, err := db.Exec(ctx, `
		INSERT INTO audit_log (action, actor_id, target, details, ip_address, school_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.Action, entry.ActorID, entry.Target, details, entry.IPAddress, entry.SchoolID)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// FetchUnpublished returns entries not yet handed to the event bus, oldest first.
func (r *PgAuditRepository) FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.AuditEntry, error) {
	rows, err := db.Query(ctx, `
		SELECT id, action, actor_id, target, details, ip_address, school_id, created_at
		FROM audit_log
		WHERE published_at IS NULL
		ORDER BY id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		err := rows.Scan(&e.ID, &e.Action, &e.ActorID, &e.Target, &e.Details,
			&e.IPAddress, &e.SchoolID, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkPublished stamps entries as published.
func (r *PgAuditRepository) MarkPublished(ctx context.Context, db DBTX, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.Exec(ctx,
		`UPDATE audit_log SET published_at = now() WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("mark audit entries published: %w", err)
	}
	return nil
}
