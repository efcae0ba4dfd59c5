package handler

import (
	"net/http"
	"strconv"

	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/Vishesh-Tomer/school-erp/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// AdminHandler covers the management endpoints for admin accounts within a
// school.
type AdminHandler struct {
	adminSvc *service.AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(adminSvc *service.AdminService) *AdminHandler {
	return &AdminHandler{adminSvc: adminSvc}
}

func adminIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "adminID"))
	if err != nil {
		return uuid.Nil, domain.ErrValidation("invalid admin id")
	}
	return id, nil
}

// CreateAdmin handles POST /v1/admin/admins.
func (h *AdminHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var input service.CreateAdminInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, err)
		return
	}

	admin, err := h.adminSvc.CreateAdmin(r.Context(), actor, input)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, admin, "Admin created successfully")
}

// ListAdmins handles GET /v1/admin/admins with searchBy, status, page and
// limit query filters.
func (h *AdminHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	q := domain.AdminQuery{
		SearchBy: r.URL.Query().Get("searchBy"),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 16)
		if err != nil {
			RespondError(w, domain.ErrValidation("invalid status filter"))
			return
		}
		status := int16(parsed)
		q.Status = &status
	}
	q.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	q.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))

	page, err := h.adminSvc.ListAdmins(r.Context(), actor, q)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, page, "Admins fetched")
}

// GetAdmin handles GET /v1/admin/admins/{adminID}.
func (h *AdminHandler) GetAdmin(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	id, err := adminIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	admin, err := h.adminSvc.GetAdmin(r.Context(), actor, id)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, admin, "Admin fetched")
}

// UpdateAdmin handles PATCH /v1/admin/admins/{adminID}.
func (h *AdminHandler) UpdateAdmin(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	id, err := adminIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var edit service.AdminEdit
	if err := DecodeJSON(r, &edit); err != nil {
		RespondError(w, err)
		return
	}

	admin, err := h.adminSvc.UpdateAdmin(r.Context(), actor, id, edit)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, admin, "Admin updated")
}

// DeleteAdmin handles DELETE /v1/admin/admins/{adminID}.
func (h *AdminHandler) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	id, err := adminIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	if err := h.adminSvc.DeleteAdmin(r.Context(), actor, id); err != nil {
		RespondError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, nil, "Admin deleted")
}
