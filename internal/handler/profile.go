package handler

import (
	"net/http"

	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/Vishesh-Tomer/school-erp/internal/service"
)

// ProfileHandler covers the authenticated self-service endpoints: profile,
// password change and two-factor enrollment.
type ProfileHandler struct {
	adminSvc *service.AdminService
	authSvc  *service.AuthService
	twoFA    *service.TwoFactorService
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(adminSvc *service.AdminService, authSvc *service.AuthService, twoFA *service.TwoFactorService) *ProfileHandler {
	return &ProfileHandler{adminSvc: adminSvc, authSvc: authSvc, twoFA: twoFA}
}

// GetProfile handles GET /v1/admin/profile.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	admin, err := h.adminSvc.GetProfile(r.Context(), actor.ID)
	if err != nil {
		RespondError(w, err)
		return
	}

	payload := profileResponse{Admin: *admin}
	if admin.TOTPEnabled {
		if n, err := h.twoFA.BackupCodesRemaining(r.Context(), actor.ID); err == nil {
			payload.BackupCodesRemaining = &n
		}
	}

	RespondSuccess(w, http.StatusOK, payload, "Profile fetched")
}

type profileResponse struct {
	domain.Admin
	BackupCodesRemaining *int `json:"backup_codes_remaining,omitempty"`
}

// UpdateProfile handles PATCH /v1/admin/profile.
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var upd service.ProfileUpdate
	if err := DecodeJSON(r, &upd); err != nil {
		RespondError(w, err)
		return
	}

	admin, err := h.adminSvc.UpdateProfile(r.Context(), actor, upd)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, admin, "Profile updated")
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword handles POST /v1/admin/change-password.
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req changePasswordRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		RespondError(w, domain.ErrValidation("old_password and new_password are required"))
		return
	}

	if err := h.authSvc.ChangePassword(r.Context(), actor.ID, req.OldPassword, req.NewPassword, actor.IP); err != nil {
		RespondError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, nil, "Password changed successfully")
}

// Setup2FA handles POST /v1/admin/setup-2fa. The backup codes in the
// response are shown exactly once.
func (h *ProfileHandler) Setup2FA(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	result, err := h.twoFA.Setup(r.Context(), actor)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, result, "Two-factor setup initiated")
}

type verify2FARequest struct {
	Code string `json:"code"`
}

// Verify2FA handles POST /v1/admin/verify-2fa.
func (h *ProfileHandler) Verify2FA(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req verify2FARequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	if req.Code == "" {
		RespondError(w, domain.ErrValidation("code is required"))
		return
	}

	if err := h.twoFA.Verify(r.Context(), actor, req.Code); err != nil {
		RespondError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, nil, "Two-factor authentication enabled")
}
