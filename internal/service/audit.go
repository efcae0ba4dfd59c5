package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/Vishesh-Tomer/school-erp/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRecorder appends audit entries as a best-effort side effect. Failures
// are logged and swallowed: an audit outage must never fail the operation
// being audited.
type AuditRecorder struct {
	pool   *pgxpool.Pool
	audit  repository.AuditRepository
	logger *slog.Logger
}

// NewAuditRecorder creates an AuditRecorder.
func NewAuditRecorder(pool *pgxpool.Pool, audit repository.AuditRepository, logger *slog.Logger) *AuditRecorder {
	return &AuditRecorder{pool: pool, audit: audit, logger: logger}
}

// Record writes one audit entry. actorID and schoolID may be nil for
// unauthenticated flows.
func (a *AuditRecorder) Record(ctx context.Context, action string, actorID *uuid.UUID, target string, details map[string]interface{}, ip string, schoolID *uuid.UUID) {
	payload, err := json.Marshal(details)
	if err != nil {
		payload = []byte(`{}`)
	}

	ctx, cancel := storeCtx(ctx)
	defer cancel()

	err = a.audit.Insert(ctx, a.pool, &domain.AuditEntry{
		Action:    action,
		ActorID:   actorID,
		Target:    target,
		Details:   payload,
		IPAddress: ip,
		SchoolID:  schoolID,
	})
	if err != nil {
		a.logger.Error("audit log write failed", "action", action, "error", err)
	}
}
