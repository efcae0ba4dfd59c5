package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/jackc/pgx/v5"
)

// PgRoleRepository implements RoleRepository using pgx.
type PgRoleRepository struct{}

// NewPgRoleRepository creates a new PgRoleRepository.
func NewPgRoleRepository() *PgRoleRepository {
	return &PgRoleRepository{}
}

// ListNames returns all role names.
func (r *PgRoleRepository) ListNames(ctx context.Context, db DBTX) ([]string, error) {
	rows, err := db.Query(ctx, `SELECT name FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan role name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// FindByName returns a role, or nil if unknown.
func (r *PgRoleRepository) FindByName(ctx context.Context, db DBTX, name string) (*domain.Role, error) {
	role := &domain.Role{}
	err := db.QueryRow(ctx,
		`SELECT id, name, permissions, created_at, updated_at FROM roles WHERE name = $1`, name).
		Scan(&role.ID, &role.Name, &role.Permissions, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find role: %w", err)
	}
	return role, nil
}

// Seed inserts roles idempotently. ON CONFLICT on the unique name makes
// concurrent cold starts safe without a test-then-act check.
func (r *PgRoleRepository) Seed(ctx context.Context, db DBTX, roles []domain.Role) error {
	for _, role := range roles {
		_, err := db.Exec(ctx, `
			INSERT INTO roles (id, name, permissions)
			VALUES ($1, $2, $3)
			ON CONFLICT (name) DO NOTHING`,
			role.ID, role.Name, role.Permissions)
		if err != nil {
			return fmt.Errorf("seed role %s: %w", role.Name, err)
		}
	}
	return nil
}
