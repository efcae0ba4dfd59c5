package service

import (
	"context"
	"log/slog"

	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/Vishesh-Tomer/school-erp/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// Actor identifies the authenticated caller of a management operation.
// Handlers build it from verified access-token claims.
type Actor struct {
	ID       uuid.UUID
	Role     string
	SchoolID uuid.UUID
	IP       string
}

// AdminService covers profile self-service and the superadmin-facing admin
// management operations. All lookups and listings are scoped to the caller's
// school.
type AdminService struct {
	pool       *pgxpool.Pool
	admins     repository.AdminRepository
	tokens     *TokenService
	audit      *AuditRecorder
	notifier   Notifier
	logger     *slog.Logger
	bcryptCost int
}

// NewAdminService creates an AdminService.
func NewAdminService(
	pool *pgxpool.Pool,
	admins repository.AdminRepository,
	tokens *TokenService,
	audit *AuditRecorder,
	notifier Notifier,
	logger *slog.Logger,
	bcryptCost int,
) *AdminService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AdminService{
		pool:       pool,
		admins:     admins,
		tokens:     tokens,
		audit:      audit,
		notifier:   notifier,
		logger:     logger,
		bcryptCost: bcryptCost,
	}
}

func (s *AdminService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", domain.ErrInternal("hash password", err)
	}
	return string(hash), nil
}

// GetProfile returns the caller's own record.
func (s *AdminService) GetProfile(ctx context.Context, adminID uuid.UUID) (*domain.Admin, error) {
	return s.getAdmin(ctx, adminID)
}

func (s *AdminService) getAdmin(ctx context.Context, id uuid.UUID) (*domain.Admin, error) {
	ctx, cancel := storeCtx(ctx)
	defer cancel()
	admin, err := s.admins.FindByID(ctx, s.pool, id)
	if err != nil {
		return nil, storeErr("find admin", err)
	}
	if admin == nil {
		return nil, domain.ErrNotFound("admin")
	}
	sanitized := admin.Sanitized()
	return &sanitized, nil
}

// ProfileUpdate carries the self-service profile fields. Role, status and
// tenant are not reachable through this path.
type ProfileUpdate struct {
	Name         *string `json:"name"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	Address      *string `json:"address"`
	State        *string `json:"state"`
	Country      *string `json:"country"`
	City         *string `json:"city"`
	Zipcode      *string `json:"zipcode"`
	ProfilePhoto *string `json:"profile_photo"`
}

func (p ProfileUpdate) toAdminUpdate() domain.AdminUpdate {
	return domain.AdminUpdate{
		Name:         p.Name,
		Email:        p.Email,
		Phone:        p.Phone,
		Address:      p.Address,
		State:        p.State,
		Country:      p.Country,
		City:         p.City,
		Zipcode:      p.Zipcode,
		ProfilePhoto: p.ProfilePhoto,
	}
}

// UpdateProfile merges the given fields into the caller's own record.
func (s *AdminService) UpdateProfile(ctx context.Context, actor Actor, upd ProfileUpdate) (*domain.Admin, error) {
	admin, err := s.applyUpdate(ctx, actor.ID, upd.toAdminUpdate())
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, domain.AuditUpdateProfile, &actor.ID, "Admin", nil, actor.IP, &admin.SchoolID)
	return admin, nil
}

// applyUpdate validates an email change, applies the partial merge and
// returns the sanitized result. The partial unique index still backstops
// the pre-check under concurrent updates.
func (s *AdminService) applyUpdate(ctx context.Context, id uuid.UUID, upd domain.AdminUpdate) (*domain.Admin, error) {
	if upd.IsZero() {
		return nil, domain.ErrValidation("no fields to update")
	}
	if upd.Email != nil {
		normalized := domain.NormalizeEmail(*upd.Email)
		if err := domain.ValidateEmail(normalized); err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
		upd.Email = &normalized

		checkCtx, cancel := storeCtx(ctx)
		taken, err := s.admins.IsEmailTaken(checkCtx, s.pool, normalized, &id)
		cancel()
		if err != nil {
			return nil, storeErr("check email", err)
		}
		if taken {
			return nil, domain.ErrEmailConflict()
		}
	}

	updCtx, cancel := storeCtx(ctx)
	defer cancel()
	admin, err := s.admins.Update(updCtx, s.pool, id, upd)
	if err != nil {
		return nil, storeErr("update admin", err)
	}
	if admin == nil {
		return nil, domain.ErrNotFound("admin")
	}
	sanitized := admin.Sanitized()
	return &sanitized, nil
}

// CreateAdminInput holds the fields for a superadmin-created admin account.
type CreateAdminInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Address  string `json:"address"`
	State    string `json:"state"`
	Country  string `json:"country"`
	City     string `json:"city"`
	Zipcode  string `json:"zipcode"`
}

// CreateAdmin creates a regular admin inside the caller's school and emails
// the initial credentials. The created role is always "admin"; superadmins
// are never minted through this path.
func (s *AdminService) CreateAdmin(ctx context.Context, actor Actor, input CreateAdminInput) (*domain.Admin, error) {
	input.Email = domain.NormalizeEmail(input.Email)
	if err := domain.ValidateEmail(input.Email); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidatePassword(input.Password); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	admin := &domain.Admin{
		ID:           uuid.New(),
		Name:         input.Name,
		Email:        input.Email,
		Phone:        input.Phone,
		PasswordHash: hash,
		Address:      input.Address,
		State:        input.State,
		Country:      input.Country,
		City:         input.City,
		Zipcode:      input.Zipcode,
		Role:         domain.RoleAdmin,
		Status:       domain.StatusActive,
		SchoolID:     actor.SchoolID,
	}

	createCtx, cancel := storeCtx(ctx)
	defer cancel()
	if err := s.admins.Create(createCtx, s.pool, admin); err != nil {
		return nil, storeErr("create admin", err)
	}

	if err := s.notifier.SendNewAdminCredentials(ctx, admin.Email, admin.Name, input.Password); err != nil {
		s.logger.Warn("credentials email failed", "email", admin.Email, "error", err)
	}

	s.audit.Record(ctx, domain.AuditCreateAdmin, &actor.ID, "Admin",
		map[string]interface{}{"admin_id": admin.ID.String(), "email": admin.Email},
		actor.IP, &actor.SchoolID)

	sanitized := admin.Sanitized()
	return &sanitized, nil
}

// ListAdmins returns a page of regular admins in the caller's school.
func (s *AdminService) ListAdmins(ctx context.Context, actor Actor, q domain.AdminQuery) (*domain.AdminPage, error) {
	q.SchoolID = actor.SchoolID
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 10
	}

	ctx, cancel := storeCtx(ctx)
	defer cancel()
	page, err := s.admins.List(ctx, s.pool, q)
	if err != nil {
		return nil, storeErr("list admins", err)
	}
	return page, nil
}

// GetAdmin returns an admin in the caller's school. Records outside the
// tenant read as not found rather than forbidden, so cross-tenant IDs leak
// nothing.
func (s *AdminService) GetAdmin(ctx context.Context, actor Actor, id uuid.UUID) (*domain.Admin, error) {
	admin, err := s.getAdmin(ctx, id)
	if err != nil {
		return nil, err
	}
	if admin.SchoolID != actor.SchoolID {
		return nil, domain.ErrNotFound("admin")
	}
	return admin, nil
}

// AdminEdit extends the profile fields with the status toggle available to
// managers.
type AdminEdit struct {
	ProfileUpdate
	Password *string `json:"password"`
	Status   *int16  `json:"status"`
}

// UpdateAdmin merges the given fields into another admin in the caller's
// school.
func (s *AdminService) UpdateAdmin(ctx context.Context, actor Actor, id uuid.UUID, edit AdminEdit) (*domain.Admin, error) {
	if _, err := s.GetAdmin(ctx, actor, id); err != nil {
		return nil, err
	}

	upd := edit.toAdminUpdate()
	upd.Status = edit.Status
	if edit.Password != nil {
		if err := domain.ValidatePassword(*edit.Password); err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
		hash, err := s.hashPassword(*edit.Password)
		if err != nil {
			return nil, err
		}
		upd.PasswordHash = &hash
	}

	admin, err := s.applyUpdate(ctx, id, upd)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, domain.AuditUpdateAdmin, &actor.ID, "Admin",
		map[string]interface{}{"admin_id": id.String()}, actor.IP, &actor.SchoolID)
	return admin, nil
}

// DeleteAdmin soft-deletes an admin in the caller's school and revokes every
// outstanding token for it. Superadmin accounts cannot be deleted. The row
// stays for the audit trail while the email is freed for reuse.
func (s *AdminService) DeleteAdmin(ctx context.Context, actor Actor, id uuid.UUID) error {
	target, err := s.GetAdmin(ctx, actor, id)
	if err != nil {
		return err
	}
	if target.Role == domain.RoleSuperAdmin {
		return domain.ErrForbidden("superadmin accounts cannot be deleted")
	}

	delCtx, cancel := storeCtx(ctx)
	defer cancel()
	deleted, err := s.admins.SoftDelete(delCtx, s.pool, id)
	if err != nil {
		return storeErr("delete admin", err)
	}
	if deleted == nil {
		return domain.ErrNotFound("admin")
	}

	if err := s.tokens.RevokeAll(ctx, id, domain.TokenRefresh, domain.TokenResetPassword); err != nil {
		return err
	}

	s.audit.Record(ctx, domain.AuditDeleteAdmin, &actor.ID, "Admin",
		map[string]interface{}{"admin_id": id.String()}, actor.IP, &actor.SchoolID)
	return nil
}
