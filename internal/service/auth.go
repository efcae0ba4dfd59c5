package service

import (
	"context"
	"log/slog"

	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/Vishesh-Tomer/school-erp/internal/repository"
	"github.com/Vishesh-Tomer/school-erp/internal/totp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// AuthService composes the credential store, token service and two-factor
// verification into the request-level auth workflows.
type AuthService struct {
	pool        *pgxpool.Pool
	admins      repository.AdminRepository
	backupCodes repository.BackupCodeRepository
	tokens      *TokenService
	roles       *RoleResolver
	totp        *totp.Manager
	audit       *AuditRecorder
	notifier    Notifier
	logger      *slog.Logger
	bcryptCost  int
}

// NewAuthService creates an AuthService.
func NewAuthService(
	pool *pgxpool.Pool,
	admins repository.AdminRepository,
	backupCodes repository.BackupCodeRepository,
	tokens *TokenService,
	roles *RoleResolver,
	totpMgr *totp.Manager,
	audit *AuditRecorder,
	notifier Notifier,
	logger *slog.Logger,
	bcryptCost int,
) *AuthService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		pool:        pool,
		admins:      admins,
		backupCodes: backupCodes,
		tokens:      tokens,
		roles:       roles,
		totp:        totpMgr,
		audit:       audit,
		notifier:    notifier,
		logger:      logger,
		bcryptCost:  bcryptCost,
	}
}

// HashPassword hashes a password with the configured bcrypt cost. Hashing is
// an explicit step at the write site, never an implicit store hook.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", domain.ErrInternal("hash password", err)
	}
	return string(hash), nil
}

// VerifyPassword compares a candidate against the stored hash. bcrypt's
// comparison is constant-time over the digest.
func (s *AuthService) VerifyPassword(admin *domain.Admin, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(candidate)) == nil
}

// RegisterInput holds the registration request fields.
type RegisterInput struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Phone    string    `json:"phone"`
	Password string    `json:"password"`
	Role     string    `json:"role"`
	SchoolID uuid.UUID `json:"school_id"`
}

// AuthResult is returned on successful registration or login.
type AuthResult struct {
	Admin  domain.Admin     `json:"admin"`
	Tokens domain.TokenPair `json:"tokens"`
}

// Register creates a new admin account and issues a token pair. Email
// uniqueness rides on the store's partial unique index, so concurrent
// registrations with the same email converge on a single row.
func (s *AuthService) Register(ctx context.Context, input RegisterInput, ip string) (*AuthResult, error) {
	input.Email = domain.NormalizeEmail(input.Email)
	if err := domain.ValidateEmail(input.Email); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidatePassword(input.Password); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if input.Role == "" {
		input.Role = domain.RoleAdmin
	}
	if input.SchoolID == uuid.Nil {
		return nil, domain.ErrValidation("school_id is required")
	}

	known, err := s.roles.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateRole(input.Role, known); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	hash, err := s.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	admin := &domain.Admin{
		ID:           uuid.New(),
		Name:         input.Name,
		Email:        input.Email,
		Phone:        input.Phone,
		PasswordHash: hash,
		Role:         input.Role,
		Status:       domain.StatusActive,
		SchoolID:     input.SchoolID,
	}

	createCtx, cancel := storeCtx(ctx)
	defer cancel()
	if err := s.admins.Create(createCtx, s.pool, admin); err != nil {
		return nil, storeErr("create admin", err)
	}

	pair, err := s.tokens.IssueAuthPair(ctx, admin)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, domain.AuditRegister, &admin.ID, "Admin",
		map[string]interface{}{"email": admin.Email}, ip, &admin.SchoolID)

	return &AuthResult{Admin: admin.Sanitized(), Tokens: *pair}, nil
}

// Login authenticates an admin by email and password, enforcing the TOTP
// second factor when enabled. The failure message never distinguishes a
// missing account from a wrong password or a bad second factor.
func (s *AuthService) Login(ctx context.Context, email, password, twoFactorCode, ip string) (*AuthResult, error) {
	email = domain.NormalizeEmail(email)

	findCtx, cancel := storeCtx(ctx)
	defer cancel()
	admin, err := s.admins.FindByEmail(findCtx, s.pool, email, false)
	if err != nil {
		return nil, storeErr("find admin", err)
	}
	if admin == nil || !s.VerifyPassword(admin, password) {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	if admin.Status != domain.StatusActive {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}

	if admin.TOTPEnabled {
		if twoFactorCode == "" {
			return nil, domain.ErrUnauthorized("two-factor code required")
		}
		ok, err := s.verifySecondFactor(ctx, admin, twoFactorCode)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrUnauthorized("invalid credentials")
		}
	}

	pair, err := s.tokens.IssueAuthPair(ctx, admin)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, domain.AuditLogin, &admin.ID, "Admin",
		map[string]interface{}{"email": email}, ip, &admin.SchoolID)

	return &AuthResult{Admin: admin.Sanitized(), Tokens: *pair}, nil
}

// verifySecondFactor checks a TOTP code against the active secret, falling
// back to consuming a single-use backup code.
func (s *AuthService) verifySecondFactor(ctx context.Context, admin *domain.Admin, code string) (bool, error) {
	if s.totp.Verify(code, admin.TOTPSecret) {
		return true, nil
	}

	ctx, cancel := storeCtx(ctx)
	defer cancel()
	used, err := s.backupCodes.Consume(ctx, s.pool, admin.ID, totp.HashBackupCode(code))
	if err != nil {
		return false, storeErr("consume backup code", err)
	}
	return used, nil
}

// Logout deletes the persisted refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, actorID *uuid.UUID, schoolID *uuid.UUID, ip string) error {
	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		return err
	}
	s.audit.Record(ctx, domain.AuditLogout, actorID, "Admin", nil, ip, schoolID)
	return nil
}

// Refresh rotates a refresh token into a fresh pair. Single-use: the old
// token is consumed atomically, so a replayed token gets Unauthorized.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	adminID, err := s.tokens.ConsumeRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	findCtx, cancel := storeCtx(ctx)
	defer cancel()
	admin, err := s.admins.FindByID(findCtx, s.pool, adminID)
	if err != nil {
		return nil, storeErr("find admin", err)
	}
	if admin == nil {
		return nil, domain.ErrUnauthorized("invalid refresh token")
	}

	return s.tokens.IssueAuthPair(ctx, admin)
}

// ForgotPassword issues a reset token and emails it. The response is uniform
// whether or not the account exists, resisting enumeration; the token only
// travels by email.
func (s *AuthService) ForgotPassword(ctx context.Context, email, ip string) error {
	email = domain.NormalizeEmail(email)

	findCtx, cancel := storeCtx(ctx)
	defer cancel()
	admin, err := s.admins.FindByEmail(findCtx, s.pool, email, false)
	if err != nil {
		return storeErr("find admin", err)
	}
	if admin == nil {
		return nil
	}

	token, err := s.tokens.IssueResetToken(ctx, admin)
	if err != nil {
		return err
	}

	if err := s.notifier.SendResetPassword(ctx, email, token); err != nil {
		s.logger.Warn("reset password email failed", "email", email, "error", err)
	}

	s.audit.Record(ctx, domain.AuditForgotPassword, nil, "Admin",
		map[string]interface{}{"email": email}, ip, &admin.SchoolID)
	return nil
}

// ResetPassword consumes a reset token and sets a new password. All reset
// tokens for the admin are invalidated once the update lands.
func (s *AuthService) ResetPassword(ctx context.Context, tokenString, newPassword, ip string) error {
	if err := domain.ValidatePassword(newPassword); err != nil {
		return domain.ErrValidation(err.Error())
	}

	adminID, err := s.tokens.VerifyReset(ctx, tokenString)
	if err != nil {
		return err
	}

	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}

	updCtx, cancel := storeCtx(ctx)
	defer cancel()
	admin, err := s.admins.Update(updCtx, s.pool, adminID, domain.AdminUpdate{PasswordHash: &hash})
	if err != nil {
		return storeErr("update password", err)
	}
	if admin == nil {
		return domain.ErrUnauthorized("invalid reset token")
	}

	if err := s.tokens.RevokeAll(ctx, adminID, domain.TokenResetPassword); err != nil {
		return err
	}

	s.audit.Record(ctx, domain.AuditResetPassword, nil, "Admin", nil, ip, &admin.SchoolID)
	return nil
}

// ChangePassword verifies the old password and sets a new one.
func (s *AuthService) ChangePassword(ctx context.Context, adminID uuid.UUID, oldPassword, newPassword, ip string) error {
	if err := domain.ValidatePassword(newPassword); err != nil {
		return domain.ErrValidation(err.Error())
	}

	findCtx, cancel := storeCtx(ctx)
	defer cancel()
	admin, err := s.admins.FindByID(findCtx, s.pool, adminID)
	if err != nil {
		return storeErr("find admin", err)
	}
	if admin == nil || !s.VerifyPassword(admin, oldPassword) {
		return domain.ErrUnauthorized("old password is incorrect")
	}

	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}

	updCtx, cancel2 := storeCtx(ctx)
	defer cancel2()
	if _, err := s.admins.Update(updCtx, s.pool, adminID, domain.AdminUpdate{PasswordHash: &hash}); err != nil {
		return storeErr("update password", err)
	}

	s.audit.Record(ctx, domain.AuditChangePassword, &adminID, "Admin", nil, ip, &admin.SchoolID)
	return nil
}
