package app

import (
	"log/slog"

	"github.com/Vishesh-Tomer/school-erp/internal/auth"
	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/Vishesh-Tomer/school-erp/internal/guard"
	"github.com/Vishesh-Tomer/school-erp/internal/handler"
	"github.com/Vishesh-Tomer/school-erp/internal/infra"
	"github.com/Vishesh-Tomer/school-erp/internal/repository"
	"github.com/Vishesh-Tomer/school-erp/internal/service"
	"github.com/Vishesh-Tomer/school-erp/internal/totp"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Pool     *pgxpool.Pool
	Redis    redis.UniversalClient
	TokenMgr *auth.TokenManager
	Notifier service.Notifier
	Logger   *slog.Logger
	Config   *infra.Config
}

// Services bundles the wired service layer so main and the integration
// harness can reach it outside the router.
type Services struct {
	Auth      *service.AuthService
	Admins    *service.AdminService
	TwoFactor *service.TwoFactorService
	Tokens    *service.TokenService
	Roles     *service.RoleResolver
	Audit     *service.AuditRecorder
}

// Build assembles repositories and services from the dependency set.
func Build(deps RouterDeps) *Services {
	adminRepo := repository.NewPgAdminRepository()
	roleRepo := repository.NewPgRoleRepository()
	tokenRepo := repository.NewPgTokenRepository()
	backupRepo := repository.NewPgBackupCodeRepository()
	auditRepo := repository.NewPgAuditRepository()

	totpMgr := totp.NewManager(deps.Config.TOTPIssuer)

	roleResolver := service.NewRoleResolver(deps.Pool, roleRepo)
	tokenSvc := service.NewTokenService(deps.Pool, tokenRepo, deps.TokenMgr)
	auditRec := service.NewAuditRecorder(deps.Pool, auditRepo, deps.Logger)

	authSvc := service.NewAuthService(
		deps.Pool, adminRepo, backupRepo, tokenSvc, roleResolver,
		totpMgr, auditRec, deps.Notifier, deps.Logger, deps.Config.BcryptCost)
	adminSvc := service.NewAdminService(
		deps.Pool, adminRepo, tokenSvc, auditRec, deps.Notifier,
		deps.Logger, deps.Config.BcryptCost)
	twoFASvc := service.NewTwoFactorService(deps.Pool, adminRepo, backupRepo, totpMgr, auditRec)

	return &Services{
		Auth:      authSvc,
		Admins:    adminSvc,
		TwoFactor: twoFASvc,
		Tokens:    tokenSvc,
		Roles:     roleResolver,
		Audit:     auditRec,
	}
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps, svcs *Services) chi.Router {
	logger := deps.Logger
	cfg := deps.Config

	authHandler := handler.NewAuthHandler(svcs.Auth)
	profileHandler := handler.NewProfileHandler(svcs.Admins, svcs.Auth, svcs.TwoFactor)
	adminHandler := handler.NewAdminHandler(svcs.Admins)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(cfg.CORSAllowedOrigins))
	r.Use(handler.JSONContentType)

	// Health (no auth)
	r.Get("/health", handler.HealthHandler(deps.Pool, deps.Redis))

	r.Route("/v1/admin", func(r chi.Router) {
		// Rate limiters share counters through Redis; every replica sees
		// the same per-IP budget.
		if cfg.RateLimitEnabled {
			authLimiter := guard.NewWindowLimiter(deps.Redis, "auth",
				cfg.AuthRatePoints, cfg.AuthRateWindow, cfg.RateLimitFailOpen, logger)
			r.Use(handler.RateLimit(authLimiter))
		}

		// Unauthenticated auth flows; login carries its own tighter budget.
		r.Group(func(r chi.Router) {
			if cfg.RateLimitEnabled {
				loginLimiter := guard.NewWindowLimiter(deps.Redis, "login",
					cfg.LoginRatePoints, cfg.LoginRateWindow, cfg.RateLimitFailOpen, logger)
				r.With(handler.RateLimit(loginLimiter)).Post("/login", authHandler.Login)
			} else {
				r.Post("/login", authHandler.Login)
			}
			r.Post("/register", authHandler.Register)
			r.Post("/refresh-tokens", authHandler.RefreshTokens)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/reset-password", authHandler.ResetPassword)
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate(deps.TokenMgr))

			r.Post("/logout", authHandler.Logout)

			r.Get("/profile", profileHandler.GetProfile)
			r.Patch("/profile", profileHandler.UpdateProfile)
			r.Post("/change-password", profileHandler.ChangePassword)
			r.Post("/setup-2fa", profileHandler.Setup2FA)
			r.Post("/verify-2fa", profileHandler.Verify2FA)

			r.Route("/admins", func(r chi.Router) {
				r.With(auth.RequireRole(domain.RoleSuperAdmin)).Post("/", adminHandler.CreateAdmin)
				r.With(auth.RequireRights(svcs.Roles, domain.PermGetAdmins)).Get("/", adminHandler.ListAdmins)
				r.With(auth.RequireRights(svcs.Roles, domain.PermGetAdmins)).Get("/{adminID}", adminHandler.GetAdmin)
				r.With(auth.RequireRights(svcs.Roles, domain.PermManageAdmins)).Patch("/{adminID}", adminHandler.UpdateAdmin)
				r.With(auth.RequireRole(domain.RoleSuperAdmin)).Delete("/{adminID}", adminHandler.DeleteAdmin)
			})
		})
	})

	return r
}
