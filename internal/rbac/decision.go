package rbac

import (
	"context"
	"fmt"

	"github.com/aegis-iam/aegis/internal/platform/httpx"
)

// HasRoles reports whether the user actively holds at least one of the
// required role names. Soft-deleted roles never match, even while the
// binding itself is still active. A user with zero bindings yields false,
// not an error.
func (s *Service) HasRoles(ctx context.Context, userID int64, requiredRoles []string) (bool, error) {
	exists, err := s.store.ActiveUserExists(ctx, userID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("%w: user %d", httpx.ErrNotFound, userID)
	}

	roleIDs, err := s.store.ListUserRoleIDs(ctx, userID)
	if err != nil {
		return false, err
	}
	if len(roleIDs) == 0 {
		return false, nil
	}

	roles, err := s.store.ListRolesByIDs(ctx, roleIDs)
	if err != nil {
		return false, err
	}

	required := nameSet(requiredRoles)
	for _, role := range roles {
		if _, ok := required[foldName(role.Name)]; ok {
			return true, nil
		}
	}
	return false, nil
}

// PermissionsForUser resolves the user's effective permission set: the
// active permissions of the active roles actively bound to the user.
func (s *Service) PermissionsForUser(ctx context.Context, userID int64) ([]Permission, error) {
	exists, err := s.store.ActiveUserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: user %d", httpx.ErrNotFound, userID)
	}
	return s.store.ListUserPermissions(ctx, userID)
}

// HasPermission reports whether the user's effective permission set contains
// at least one of the required permission names.
func (s *Service) HasPermission(ctx context.Context, userID int64, requiredPermissions []string) (bool, error) {
	perms, err := s.PermissionsForUser(ctx, userID)
	if err != nil {
		return false, err
	}

	required := nameSet(requiredPermissions)
	for _, perm := range perms {
		if _, ok := required[foldName(perm.Name)]; ok {
			return true, nil
		}
	}
	return false, nil
}

// Authorize evaluates a requirement against a user: the user must satisfy
// both lists, each with "has any of" semantics. Empty lists pass.
func (s *Service) Authorize(ctx context.Context, userID int64, req Requirement) (bool, error) {
	if len(req.Roles) > 0 {
		ok, err := s.HasRoles(ctx, userID, req.Roles)
		if err != nil || !ok {
			return false, err
		}
	}
	if len(req.Permissions) > 0 {
		ok, err := s.HasPermission(ctx, userID, req.Permissions)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func nameSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		folded := foldName(n)
		if folded == "" {
			continue
		}
		set[folded] = struct{}{}
	}
	return set
}
