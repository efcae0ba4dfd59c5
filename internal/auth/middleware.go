package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/go-chi/chi/v5"
)

type contextKey string

const (
	claimsKey  contextKey = "auth_claims"
	subjectKey contextKey = "auth_subject"
)

// RightsResolver resolves a role name to its permission set. Implemented by
// the role resolver service; unknown roles yield an empty set.
type RightsResolver interface {
	RightsFor(ctx context.Context, role string) ([]string, error)
}

// ClaimsFromContext extracts JWT claims from request context.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

// SubjectFromContext extracts the subject ID string from request context.
func SubjectFromContext(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey).(string)
	return sub
}

// Authenticate returns middleware that validates bearer access tokens.
// Verification is stateless: signature, expiry and kind only.
func Authenticate(tm *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := extractAndValidate(r, tm)
			if err != nil {
				unauthorized(w, "invalid or missing access token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, subjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRights returns middleware that checks the caller's role grants all
// the required permissions. A caller targeting their own admin id (the
// {adminID} route param) passes even without the permission, mirroring the
// self-service rule for profile operations.
func RequireRights(resolver RightsResolver, rights ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				unauthorized(w, "no auth context")
				return
			}

			if len(rights) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			granted, err := resolver.RightsFor(r.Context(), claims.Role)
			if err != nil {
				serviceUnavailable(w, "permission lookup failed")
				return
			}

			if hasAll(granted, rights) || chi.URLParam(r, "adminID") == claims.Subject {
				next.ServeHTTP(w, r)
				return
			}

			forbidden(w, "insufficient permissions")
		})
	}
}

// RequireRole returns middleware that checks the caller's role directly.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				unauthorized(w, "no auth context")
				return
			}
			if !roleSet[claims.Role] {
				forbidden(w, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasAll(granted, required []string) bool {
	set := make(map[string]bool, len(granted))
	for _, g := range granted {
		set[g] = true
	}
	for _, req := range required {
		if !set[req] {
			return false
		}
	}
	return true
}

func extractAndValidate(r *http.Request, tm *TokenManager) (*Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, domain.ErrUnauthorized("missing Authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, domain.ErrUnauthorized("invalid Authorization format")
	}

	return tm.VerifyKind(parts[1], domain.TokenAccess)
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeEnvelope(w, http.StatusUnauthorized, msg)
}

func forbidden(w http.ResponseWriter, msg string) {
	writeEnvelope(w, http.StatusForbidden, msg)
}

func serviceUnavailable(w http.ResponseWriter, msg string) {
	writeEnvelope(w, http.StatusServiceUnavailable, msg)
}

func writeEnvelope(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"success":false,"data":{},"message":%q,"code":%d}`, msg, status)
}
