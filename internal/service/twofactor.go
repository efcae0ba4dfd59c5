package service

import (
	"context"

	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/Vishesh-Tomer/school-erp/internal/repository"
	"github.com/Vishesh-Tomer/school-erp/internal/totp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TwoFactorService handles TOTP provisioning and confirmation. A freshly
// generated secret is held as pending and never gates logins; only a
// confirmed secret does. Re-provisioning while 2FA is active therefore
// cannot lock the admin out mid-setup.
type TwoFactorService struct {
	pool        *pgxpool.Pool
	admins      repository.AdminRepository
	backupCodes repository.BackupCodeRepository
	totp        *totp.Manager
	audit       *AuditRecorder
}

// NewTwoFactorService creates a TwoFactorService.
func NewTwoFactorService(
	pool *pgxpool.Pool,
	admins repository.AdminRepository,
	backupCodes repository.BackupCodeRepository,
	totpMgr *totp.Manager,
	audit *AuditRecorder,
) *TwoFactorService {
	return &TwoFactorService{
		pool:        pool,
		admins:      admins,
		backupCodes: backupCodes,
		totp:        totpMgr,
		audit:       audit,
	}
}

// SetupResult is returned by Setup. The backup codes appear in plaintext
// exactly once; only their hashes are stored.
type SetupResult struct {
	Secret      string   `json:"secret"`
	OTPAuthURL  string   `json:"otpauth_url"`
	QRCodeURL   string   `json:"qr_code_url"`
	BackupCodes []string `json:"backup_codes"`
}

// Setup generates a new TOTP secret and a fresh set of backup codes. Both
// stay pending until confirmed through Verify; any previously confirmed
// secret and codes keep gating logins in the meantime.
func (s *TwoFactorService) Setup(ctx context.Context, actor Actor) (*SetupResult, error) {
	findCtx, cancel := storeCtx(ctx)
	admin, err := s.admins.FindByID(findCtx, s.pool, actor.ID)
	cancel()
	if err != nil {
		return nil, storeErr("find admin", err)
	}
	if admin == nil {
		return nil, domain.ErrNotFound("admin")
	}

	prov, err := s.totp.GenerateSecret(admin.Email)
	if err != nil {
		return nil, domain.ErrInternal("generate totp secret", err)
	}

	plain, hashes, err := totp.GenerateBackupCodes(totp.BackupCodeCount)
	if err != nil {
		return nil, domain.ErrInternal("generate backup codes", err)
	}

	// Secret and codes land together or not at all; a half-written pending
	// set must never be visible to a concurrent login.
	setCtx, cancel2 := storeCtx(ctx)
	defer cancel2()
	tx, err := s.pool.Begin(setCtx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(setCtx)

	if err := s.admins.SetTOTPState(setCtx, tx, admin.ID, admin.TOTPSecret, prov.SecretBase32, admin.TOTPEnabled); err != nil {
		return nil, storeErr("store totp secret", err)
	}
	if err := s.backupCodes.ReplacePending(setCtx, tx, admin.ID, hashes); err != nil {
		return nil, storeErr("store backup codes", err)
	}
	if err := tx.Commit(setCtx); err != nil {
		return nil, storeErr("commit totp setup", err)
	}

	s.audit.Record(ctx, domain.AuditSetup2FA, &actor.ID, "Admin", nil, actor.IP, &admin.SchoolID)

	return &SetupResult{
		Secret:      prov.SecretBase32,
		OTPAuthURL:  prov.OTPAuthURL,
		QRCodeURL:   prov.QRCodeURL,
		BackupCodes: plain,
	}, nil
}

// Verify confirms the pending secret with a live code from the
// authenticator app, promoting it to the active secret and enabling the
// second factor.
func (s *TwoFactorService) Verify(ctx context.Context, actor Actor, code string) error {
	findCtx, cancel := storeCtx(ctx)
	admin, err := s.admins.FindByID(findCtx, s.pool, actor.ID)
	cancel()
	if err != nil {
		return storeErr("find admin", err)
	}
	if admin == nil {
		return domain.ErrNotFound("admin")
	}
	if admin.TOTPPendingSecret == "" {
		return domain.ErrValidation("no pending two-factor setup")
	}
	if !s.totp.Verify(code, admin.TOTPPendingSecret) {
		return domain.ErrValidation("invalid two-factor code")
	}

	// Promote secret and backup codes together: only codes whose secret
	// proved possession of the authenticator may ever gate a login.
	setCtx, cancel2 := storeCtx(ctx)
	defer cancel2()
	tx, err := s.pool.Begin(setCtx)
	if err != nil {
		return domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(setCtx)

	if err := s.admins.SetTOTPState(setCtx, tx, admin.ID, admin.TOTPPendingSecret, "", true); err != nil {
		return storeErr("enable totp", err)
	}
	if err := s.backupCodes.Promote(setCtx, tx, admin.ID); err != nil {
		return storeErr("promote backup codes", err)
	}
	if err := tx.Commit(setCtx); err != nil {
		return storeErr("commit totp verify", err)
	}

	s.audit.Record(ctx, domain.AuditVerify2FA, &actor.ID, "Admin", nil, actor.IP, &admin.SchoolID)
	return nil
}

// BackupCodesRemaining reports how many unused backup codes are left.
func (s *TwoFactorService) BackupCodesRemaining(ctx context.Context, adminID uuid.UUID) (int, error) {
	ctx, cancel := storeCtx(ctx)
	defer cancel()
	n, err := s.backupCodes.CountRemaining(ctx, s.pool, adminID)
	if err != nil {
		return 0, storeErr("count backup codes", err)
	}
	return n, nil
}
