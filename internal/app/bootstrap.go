package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/Vishesh-Tomer/school-erp/internal/infra"
	"github.com/Vishesh-Tomer/school-erp/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// Bootstrap seeds the default roles and, when configured, the initial
// superadmin account with its school. Every step is idempotent, so repeated
// cold starts and parallel replicas converge on the same state.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool, svcs *Services, cfg *infra.Config, logger *slog.Logger) error {
	if err := svcs.Roles.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}
	logger.Info("default roles seeded")

	if cfg.SeedSuperadminEmail == "" {
		return nil
	}
	if cfg.SeedSuperadminPassword == "" {
		return fmt.Errorf("SEED_SUPERADMIN_EMAIL is set but SEED_SUPERADMIN_PASSWORD is empty")
	}

	adminRepo := repository.NewPgAdminRepository()
	email := domain.NormalizeEmail(cfg.SeedSuperadminEmail)

	existing, err := adminRepo.FindByEmail(ctx, pool, email, false)
	if err != nil {
		return fmt.Errorf("check superadmin: %w", err)
	}
	if existing != nil {
		return nil
	}

	schoolID, err := ensureSchool(ctx, pool, cfg.SeedSchoolName)
	if err != nil {
		return fmt.Errorf("ensure school: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.SeedSuperadminPassword), cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash superadmin password: %w", err)
	}

	err = adminRepo.Create(ctx, pool, &domain.Admin{
		ID:           uuid.New(),
		Name:         "Super Admin",
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleSuperAdmin,
		Status:       domain.StatusActive,
		SchoolID:     schoolID,
	})
	if err != nil {
		// A replica racing past the existence check lands on the unique
		// index; the account is there either way.
		var appErr *domain.AppError
		if errors.As(err, &appErr) && appErr.Code == "EMAIL_CONFLICT" {
			return nil
		}
		return fmt.Errorf("create superadmin: %w", err)
	}

	logger.Info("superadmin seeded", "email", email)
	return nil
}

// ensureSchool resolves the seed school's id, creating it if missing. The
// unique index on lower(name) arbitrates concurrent cold starts; the loser
// of the insert reads the winner's row.
func ensureSchool(ctx context.Context, pool *pgxpool.Pool, name string) (uuid.UUID, error) {
	if _, err := pool.Exec(ctx,
		`INSERT INTO schools (id, name) VALUES ($1, $2)
		 ON CONFLICT (lower(name)) DO NOTHING`, uuid.New(), name); err != nil {
		return uuid.Nil, err
	}

	var id uuid.UUID
	err := pool.QueryRow(ctx,
		`SELECT id FROM schools WHERE lower(name) = lower($1)`, name).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
