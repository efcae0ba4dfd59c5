package handler

import (
	"net/http"

	"github.com/Vishesh-Tomer/school-erp/internal/auth"
	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/Vishesh-Tomer/school-erp/internal/service"
	"github.com/google/uuid"
)

// actorFrom builds the service-level caller identity from verified access
// token claims. Routes behind the auth middleware always have claims; a
// missing or malformed set reads as unauthorized.
func actorFrom(r *http.Request) (service.Actor, error) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		return service.Actor{}, domain.ErrUnauthorized("no auth context")
	}

	id, err := claims.AdminID()
	if err != nil {
		return service.Actor{}, domain.ErrUnauthorized("invalid token subject")
	}

	schoolID, err := uuid.Parse(claims.SchoolID)
	if err != nil {
		return service.Actor{}, domain.ErrUnauthorized("invalid token school")
	}

	return service.Actor{
		ID:       id,
		Role:     claims.Role,
		SchoolID: schoolID,
		IP:       ClientIP(r),
	}, nil
}
