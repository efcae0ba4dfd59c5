package handler

import (
	"net/http"

	"github.com/Vishesh-Tomer/school-erp/internal/auth"
	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/Vishesh-Tomer/school-erp/internal/service"
	"github.com/google/uuid"
)

// AuthHandler handles the authentication endpoints.
type AuthHandler struct {
	authSvc *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Register handles POST /v1/admin/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, err)
		return
	}

	result, err := h.authSvc.Register(r.Context(), input, ClientIP(r))
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, result, "Admin registered successfully")
}

type loginRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	TwoFactorCode string `json:"two_factor_code"`
}

// Login handles POST /v1/admin/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	result, err := h.authSvc.Login(r.Context(), req.Email, req.Password, req.TwoFactorCode, ClientIP(r))
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, result, "Login successful")
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Logout handles POST /v1/admin/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	if req.RefreshToken == "" {
		RespondError(w, domain.ErrValidation("refresh_token is required"))
		return
	}

	var actorID, schoolID *uuid.UUID
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		if id, err := claims.AdminID(); err == nil {
			actorID = &id
		}
		if sid, err := uuid.Parse(claims.SchoolID); err == nil {
			schoolID = &sid
		}
	}

	if err := h.authSvc.Logout(r.Context(), req.RefreshToken, actorID, schoolID, ClientIP(r)); err != nil {
		RespondError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, nil, "Logged out successfully")
}

// RefreshTokens handles POST /v1/admin/refresh-tokens.
func (h *AuthHandler) RefreshTokens(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	if req.RefreshToken == "" {
		RespondError(w, domain.ErrValidation("refresh_token is required"))
		return
	}

	pair, err := h.authSvc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]interface{}{"tokens": pair}, "Tokens refreshed")
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword handles POST /v1/admin/forgot-password. The response is the
// same whether or not the account exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	if err := h.authSvc.ForgotPassword(r.Context(), req.Email, ClientIP(r)); err != nil {
		RespondError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, nil, "If the account exists, a reset email has been sent")
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// ResetPassword handles POST /v1/admin/reset-password?token=...
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		RespondError(w, domain.ErrValidation("token is required"))
		return
	}

	var req resetPasswordRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	if err := h.authSvc.ResetPassword(r.Context(), token, req.Password, ClientIP(r)); err != nil {
		RespondError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, nil, "Password reset successfully")
}
