package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/aegis-iam/aegis/internal/platform/httpx"
)

// ListRoles returns all active roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// GetRole returns the active role with the given id, including its active
// permission associations.
func (s *Service) GetRole(ctx context.Context, id int64) (*Role, error) {
	role, err := s.store.FindRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, fmt.Errorf("%w: role %d", httpx.ErrNotFound, id)
	}
	perms, err := s.store.ListRolePermissions(ctx, id)
	if err != nil {
		return nil, err
	}
	role.Permissions = perms
	return role, nil
}

// CreateRole creates a new role. A soft-deleted role with the same name
// blocks creation with a distinct error so callers restore it instead.
func (s *Service) CreateRole(ctx context.Context, name string) (*Role, error) {
	if err := validateName("role", name); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)

	existing, err := s.store.FindRoleByNameAny(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status == StatusActive {
			return nil, fmt.Errorf("%w: role %q already exists", httpx.ErrDuplicate, name)
		}
		return nil, fmt.Errorf("%w: role %q exists but is soft-deleted, restore it instead", httpx.ErrDuplicate, name)
	}

	created, err := s.store.CreateRole(ctx, name)
	if err != nil {
		return nil, err
	}
	s.logger.Info("role created", "id", created.ID, "name", created.Name)
	return created, nil
}

// UpdateRole renames an active role. Renaming to the current name is
// rejected.
func (s *Service) UpdateRole(ctx context.Context, id int64, name string) (*Role, error) {
	if err := validateName("role", name); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)

	role, err := s.store.FindRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, fmt.Errorf("%w: role %d", httpx.ErrNotFound, id)
	}
	if foldName(role.Name) == foldName(name) {
		return nil, fmt.Errorf("%w: role name %q is the same as the current name", httpx.ErrValidation, name)
	}
	return s.store.RenameRole(ctx, id, name)
}

// DeactivateRole soft-deletes an active role. Deleted roles stop
// contributing to authorization decisions immediately.
func (s *Service) DeactivateRole(ctx context.Context, id int64) error {
	role, err := s.store.FindRoleAny(ctx, id)
	if err != nil {
		return err
	}
	if role == nil {
		return fmt.Errorf("%w: role %d", httpx.ErrNotFound, id)
	}
	if role.Status == StatusDeleted {
		return fmt.Errorf("%w: role %d is already deleted", httpx.ErrValidation, id)
	}
	return s.store.SetRoleDeleted(ctx, id, true)
}

// RestoreRole reverses a soft-delete.
func (s *Service) RestoreRole(ctx context.Context, id int64) error {
	role, err := s.store.FindRoleAny(ctx, id)
	if err != nil {
		return err
	}
	if role == nil {
		return fmt.Errorf("%w: role %d", httpx.ErrNotFound, id)
	}
	if role.Status == StatusActive {
		return fmt.Errorf("%w: role %d is not deleted", httpx.ErrValidation, id)
	}
	return s.store.SetRoleDeleted(ctx, id, false)
}

// DeleteRole physically removes a role regardless of its soft-delete state.
// This is irreversible.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	role, err := s.store.FindRoleAny(ctx, id)
	if err != nil {
		return err
	}
	if role == nil {
		return fmt.Errorf("%w: role %d", httpx.ErrNotFound, id)
	}
	if err := s.store.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.logger.Info("role deleted", "id", id, "name", role.Name)
	return nil
}

// AssignPermissionsToRole confirms every listed permission against the role
// and re-connects it. Every id must name an active permission that is
// already associated with the role; an unknown or unassociated id aborts the
// whole batch before anything is written. The confirm-then-connect policy is
// deliberate; use ReplaceRolePermissions to add new associations.
func (s *Service) AssignPermissionsToRole(ctx context.Context, roleID int64, permissionIDs []int64) error {
	current, err := s.rolePermissionSet(ctx, roleID)
	if err != nil {
		return err
	}
	for _, pid := range permissionIDs {
		perm, err := s.store.FindPermission(ctx, pid)
		if err != nil {
			return err
		}
		if perm == nil {
			return fmt.Errorf("%w: permission %d", httpx.ErrNotFound, pid)
		}
		if _, ok := current[pid]; !ok {
			return fmt.Errorf("%w: permission %d is not associated with role %d", httpx.ErrValidation, pid, roleID)
		}
	}
	return s.store.AttachPermissions(ctx, roleID, permissionIDs)
}

// RemovePermissionsFromRole disconnects every listed permission from the
// role. Every id must name an active permission currently associated with
// the role; validation runs over the whole batch before any disconnect.
func (s *Service) RemovePermissionsFromRole(ctx context.Context, roleID int64, permissionIDs []int64) error {
	current, err := s.rolePermissionSet(ctx, roleID)
	if err != nil {
		return err
	}
	for _, pid := range permissionIDs {
		perm, err := s.store.FindPermission(ctx, pid)
		if err != nil {
			return err
		}
		if perm == nil {
			return fmt.Errorf("%w: permission %d", httpx.ErrNotFound, pid)
		}
		if _, ok := current[pid]; !ok {
			return fmt.Errorf("%w: permission %d is not associated with role %d", httpx.ErrValidation, pid, roleID)
		}
	}
	return s.store.DetachPermissions(ctx, roleID, permissionIDs)
}

// ReplaceRolePermissions connects new permissions to a role. Every id must
// name an active permission not yet associated; the batch connects atomically.
func (s *Service) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if roleID <= 0 || len(permissionIDs) == 0 {
		return fmt.Errorf("%w: role id and permission ids are required", httpx.ErrValidation)
	}
	current, err := s.rolePermissionSet(ctx, roleID)
	if err != nil {
		return err
	}
	for _, pid := range permissionIDs {
		perm, err := s.store.FindPermission(ctx, pid)
		if err != nil {
			return err
		}
		if perm == nil {
			return fmt.Errorf("%w: permission %d", httpx.ErrNotFound, pid)
		}
	}
	for _, pid := range permissionIDs {
		if _, ok := current[pid]; ok {
			return fmt.Errorf("%w: permission %d is already associated with role %d", httpx.ErrValidation, pid, roleID)
		}
	}
	return s.store.AttachPermissions(ctx, roleID, permissionIDs)
}

func (s *Service) rolePermissionSet(ctx context.Context, roleID int64) (map[int64]struct{}, error) {
	role, err := s.store.FindRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, fmt.Errorf("%w: role %d", httpx.ErrNotFound, roleID)
	}
	perms, err := s.store.ListRolePermissions(ctx, roleID)
	if err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(perms))
	for _, p := range perms {
		set[p.ID] = struct{}{}
	}
	return set, nil
}
