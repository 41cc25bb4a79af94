package rbac

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aegis-iam/aegis/internal/platform/httpx"
	"github.com/aegis-iam/aegis/internal/shared"
)

// Middleware wires RBAC authorization guards for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger

	// OnDecision, when set, is invoked with the outcome of every evaluated
	// requirement. Used to feed metrics.
	OnDecision func(allowed bool)
}

// Require gates a route behind an explicit requirement object. Requests
// without an authenticated identity get 401; requests whose identity fails
// the requirement get 403.
func (m Middleware) Require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(req.Roles) == 0 && len(req.Permissions) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			identity := shared.IdentityFromContext(r.Context())
			if identity == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			allowed, err := m.Service.Authorize(r.Context(), identity.UserID, req)
			if err != nil && !errors.Is(err, httpx.ErrNotFound) {
				if m.Logger != nil {
					m.Logger.Error("rbac authorize", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if m.OnDecision != nil {
				m.OnDecision(allowed)
			}
			if !allowed {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "you do not have permission to access this resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRoles gates a route behind "has any of" the given role names.
func (m Middleware) RequireRoles(names ...string) func(http.Handler) http.Handler {
	return m.Require(Requirement{Roles: names})
}

// RequirePermissions gates a route behind "has any of" the given permission
// names.
func (m Middleware) RequirePermissions(names ...string) func(http.Handler) http.Handler {
	return m.Require(Requirement{Permissions: names})
}
