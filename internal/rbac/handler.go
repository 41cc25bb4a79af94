package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aegis-iam/aegis/internal/platform/httpx"
)

// PermManage is the permission gating every registry mutation.
const PermManage = "rbac.manage"

// Handler exposes the RBAC registries and decision queries as a JSON API.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	guard     Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		guard:     guard,
	}
}

// MountRoutes registers the RBAC routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/permissions", func(r chi.Router) {
		r.Get("/", h.listPermissions)
		r.Get("/{id}", h.getPermission)
		r.Group(func(r chi.Router) {
			r.Use(h.guard.RequirePermissions(PermManage))
			r.Post("/", h.createPermission)
			r.Put("/{id}", h.updatePermission)
			r.Post("/{id}/deactivate", h.deactivatePermission)
			r.Post("/{id}/reactivate", h.reactivatePermission)
			r.Delete("/{id}", h.deletePermission)
		})
	})

	r.Route("/roles", func(r chi.Router) {
		r.Get("/", h.listRoles)
		r.Get("/{id}", h.getRole)
		r.Group(func(r chi.Router) {
			r.Use(h.guard.RequirePermissions(PermManage))
			r.Post("/", h.createRole)
			r.Put("/{id}", h.updateRole)
			r.Post("/{id}/deactivate", h.deactivateRole)
			r.Post("/{id}/restore", h.restoreRole)
			r.Delete("/{id}", h.deleteRole)
			r.Post("/{id}/permissions/assign", h.assignPermissions)
			r.Post("/{id}/permissions/remove", h.removePermissions)
			r.Put("/{id}/permissions", h.replacePermissions)
		})
	})

	// Registered flat so the users admin routes can share the /users prefix.
	manage := h.guard.RequirePermissions(PermManage)
	r.Get("/users/{id}/permissions", h.userPermissions)
	r.With(manage).Post("/users/{id}/roles", h.assignRole)
	r.With(manage).Delete("/users/{id}/roles/{roleID}", h.revokeRole)

	r.Post("/authz/check", h.check)
}

type nameRequest struct {
	Name string `json:"name" validate:"required"`
}

type permissionIDsRequest struct {
	PermissionIDs []int64 `json:"permission_ids" validate:"required,min=1,dive,gt=0"`
}

type assignRoleRequest struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

type checkRequest struct {
	UserID              int64    `json:"user_id" validate:"required,gt=0"`
	RequiredRoles       []string `json:"required_roles"`
	RequiredPermissions []string `json:"required_permissions"`
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !h.decode(w, r, &req) {
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), req.Name)
	if err != nil {
		h.fail(w, "create permission", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, perm)
}

func (h *Handler) getPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r, "id")
	if !ok {
		return
	}
	perm, err := h.service.GetPermission(r.Context(), id)
	if err != nil {
		h.fail(w, "get permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r, "id")
	if !ok {
		return
	}
	var req nameRequest
	if !h.decode(w, r, &req) {
		return
	}
	perm, err := h.service.UpdatePermission(r.Context(), id, req.Name)
	if err != nil {
		h.fail(w, "update permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *Handler) deactivatePermission(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.DeactivatePermission, "deactivate permission")
}

func (h *Handler) reactivatePermission(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.ReactivatePermission, "reactivate permission")
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.DeletePermission, "delete permission")
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r, "id")
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.fail(w, "get role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.CreateRole(r.Context(), req.Name)
	if err != nil {
		h.fail(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r, "id")
	if !ok {
		return
	}
	var req nameRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, req.Name)
	if err != nil {
		h.fail(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deactivateRole(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.DeactivateRole, "deactivate role")
}

func (h *Handler) restoreRole(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.RestoreRole, "restore role")
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.DeleteRole, "delete role")
}

func (h *Handler) assignPermissions(w http.ResponseWriter, r *http.Request) {
	h.rolePermissionBatch(w, r, h.service.AssignPermissionsToRole, "assign permissions")
}

func (h *Handler) removePermissions(w http.ResponseWriter, r *http.Request) {
	h.rolePermissionBatch(w, r, h.service.RemovePermissionsFromRole, "remove permissions")
}

func (h *Handler) replacePermissions(w http.ResponseWriter, r *http.Request) {
	h.rolePermissionBatch(w, r, h.service.ReplaceRolePermissions, "replace permissions")
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.urlID(w, r, "id")
	if !ok {
		return
	}
	var req assignRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.AssignRole(r.Context(), userID, req.RoleID); err != nil {
		h.fail(w, "assign role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.urlID(w, r, "id")
	if !ok {
		return
	}
	roleID, ok := h.urlID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.RevokeRole(r.Context(), userID, roleID); err != nil {
		h.fail(w, "revoke role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.urlID(w, r, "id")
	if !ok {
		return
	}
	perms, err := h.service.PermissionsForUser(r.Context(), userID)
	if err != nil {
		h.fail(w, "user permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !h.decode(w, r, &req) {
		return
	}
	allowed, err := h.service.Authorize(r.Context(), req.UserID, Requirement{
		Roles:       req.RequiredRoles,
		Permissions: req.RequiredPermissions,
	})
	if err != nil {
		h.fail(w, "authz check", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

func (h *Handler) rolePermissionBatch(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, roleID int64, permissionIDs []int64) error, action string) {
	roleID, ok := h.urlID(w, r, "id")
	if !ok {
		return
	}
	var req permissionIDsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := op(r.Context(), roleID, req.PermissionIDs); err != nil {
		h.fail(w, action, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64) error, action string) {
	id, ok := h.urlID(w, r, "id")
	if !ok {
		return
	}
	if err := op(r.Context(), id); err != nil {
		h.fail(w, action, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) urlID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	if h.logger != nil {
		h.logger.Error(action, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
