package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const adminColumns = `id, name, email, phone, password_hash, address, state, country, city,
	zipcode, profile_photo, role, status, is_deleted, school_id,
	totp_secret, totp_pending_secret, totp_enabled, created_at, updated_at`

// PgAdminRepository implements AdminRepository using pgx.
type PgAdminRepository struct{}

// NewPgAdminRepository creates a new PgAdminRepository.
func NewPgAdminRepository() *PgAdminRepository {
	return &PgAdminRepository{}
}

func scanAdmin(row pgx.Row) (*domain.Admin, error) {
	a := &domain.Admin{}
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.PasswordHash, &a.Address,
		&a.State, &a.Country, &a.City, &a.Zipcode, &a.ProfilePhoto, &a.Role,
		&a.Status, &a.IsDeleted, &a.SchoolID, &a.TOTPSecret, &a.TOTPPendingSecret,
		&a.TOTPEnabled, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// FindByID returns a non-deleted admin by ID, or nil if not found.
func (r *PgAdminRepository) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Admin, error) {
	row := db.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE id = $1 AND NOT is_deleted`, id)
	return scanAdmin(row)
}

// FindByEmail returns an admin by normalized email, or nil if not found.
func (r *PgAdminRepository) FindByEmail(ctx context.Context, db DBTX, email string, includeDeleted bool) (*domain.Admin, error) {
	q := `SELECT ` + adminColumns + ` FROM admins WHERE lower(email) = lower($1)`
	if !includeDeleted {
		q += ` AND NOT is_deleted`
	}
	// Soft-deleted duplicates can exist; prefer the live row, newest first.
	q += ` ORDER BY is_deleted ASC, created_at DESC LIMIT 1`
	return scanAdmin(db.QueryRow(ctx, q, email))
}

// IsEmailTaken reports whether a non-deleted admin other than excludeID holds the email.
func (r *PgAdminRepository) IsEmailTaken(ctx context.Context, db DBTX, email string, excludeID *uuid.UUID) (bool, error) {
	var taken bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM admins
			WHERE lower(email) = lower($1) AND NOT is_deleted
			  AND ($2::uuid IS NULL OR id <> $2)
		)`, email, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check email taken: %w", err)
	}
	return taken, nil
}

// Create inserts a new admin.
func (r *PgAdminRepository) Create(ctx context.Context, db DBTX, admin *domain.Admin) error {
	_, err := db.Exec(ctx, `
		INSERT INTO admins
		  (id, name, email, phone, password_hash, address, state, country, city,
		   zipcode, profile_photo, role, status, school_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		admin.ID, admin.Name, admin.Email, admin.Phone, admin.PasswordHash,
		admin.Address, admin.State, admin.Country, admin.City, admin.Zipcode,
		admin.ProfilePhoto, admin.Role, admin.Status, admin.SchoolID)
	if isUniqueViolation(err) {
		return domain.ErrEmailConflict()
	}
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

// Update applies a partial field merge with dynamic SET clauses and returns
// the updated row. school_id has no clause on purpose: the tenant is
// immutable through this path.
func (r *PgAdminRepository) Update(ctx context.Context, db DBTX, id uuid.UUID, upd domain.AdminUpdate) (*domain.Admin, error) {
	sets := []string{"updated_at = now()"}
	args := []interface{}{id}

	add := func(col string, val interface{}) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.Phone != nil {
		add("phone", *upd.Phone)
	}
	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
	}
	if upd.Address != nil {
		add("address", *upd.Address)
	}
	if upd.State != nil {
		add("state", *upd.State)
	}
	if upd.Country != nil {
		add("country", *upd.Country)
	}
	if upd.City != nil {
		add("city", *upd.City)
	}
	if upd.Zipcode != nil {
		add("zipcode", *upd.Zipcode)
	}
	if upd.ProfilePhoto != nil {
		add("profile_photo", *upd.ProfilePhoto)
	}
	if upd.Role != nil {
		add("role", *upd.Role)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}

	q := fmt.Sprintf(`UPDATE admins SET %s WHERE id = $1 AND NOT is_deleted RETURNING %s`,
		strings.Join(sets, ", "), adminColumns)

	admin, err := scanAdmin(db.QueryRow(ctx, q, args...))
	if isUniqueViolation(err) {
		return nil, domain.ErrEmailConflict()
	}
	if err != nil {
		return nil, fmt.Errorf("update admin: %w", err)
	}
	return admin, nil
}

// SoftDelete marks the admin deleted, keeping the row.
func (r *PgAdminRepository) SoftDelete(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Admin, error) {
	row := db.QueryRow(ctx, `
		UPDATE admins SET is_deleted = true, status = $2, updated_at = now()
		WHERE id = $1 AND NOT is_deleted
		RETURNING `+adminColumns, id, domain.StatusInactive)
	admin, err := scanAdmin(row)
	if err != nil {
		return nil, fmt.Errorf("soft delete admin: %w", err)
	}
	return admin, nil
}

// SetTOTPState writes the TOTP columns.
func (r *PgAdminRepository) SetTOTPState(ctx context.Context, db DBTX, id uuid.UUID, secret, pendingSecret string, enabled bool) error {
	tag, err := db.Exec(ctx, `
		UPDATE admins
		SET totp_secret = $2, totp_pending_secret = $3, totp_enabled = $4, updated_at = now()
		WHERE id = $1 AND NOT is_deleted`,
		id, secret, pendingSecret, enabled)
	if err != nil {
		return fmt.Errorf("set totp state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("admin")
	}
	return nil
}

// List returns a page of non-deleted admins matching the query, newest first.
func (r *PgAdminRepository) List(ctx context.Context, db DBTX, q domain.AdminQuery) (*domain.AdminPage, error) {
	where := []string{"NOT is_deleted", "role = $1", "school_id = $2"}
	args := []interface{}{domain.RoleAdmin, q.SchoolID}

	if q.SearchBy != "" {
		args = append(args, "%"+q.SearchBy+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if q.Status != nil {
		args = append(args, *q.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM admins WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count admins: %w", err)
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 || limit > 100 {
		limit = 10
	}
	args = append(args, limit, (page-1)*limit)

	rows, err := db.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM admins WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		adminColumns, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	result := &domain.AdminPage{Page: page, Limit: limit, TotalCount: total, Results: []domain.Admin{}}
	for rows.Next() {
		a := domain.Admin{}
		err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.PasswordHash, &a.Address,
			&a.State, &a.Country, &a.City, &a.Zipcode, &a.ProfilePhoto, &a.Role,
			&a.Status, &a.IsDeleted, &a.SchoolID, &a.TOTPSecret, &a.TOTPPendingSecret,
			&a.TOTPEnabled, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan admin row: %w", err)
		}
		result.Results = append(result.Results, a.Sanitized())
	}
	return result, rows.Err()
}

// isUniqueViolation reports whether err is a Postgres 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
