package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/aegis-iam/aegis/internal/platform/httpx"
)

// ListPermissions returns all active permissions.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// CreatePermission creates a new permission. The name must not parse as a
// number and must not collide with an active permission.
func (s *Service) CreatePermission(ctx context.Context, name string) (*Permission, error) {
	if err := validateName("permission", name); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)

	existing, err := s.store.FindPermissionByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: permission %q already exists", httpx.ErrDuplicate, name)
	}

	created, err := s.store.CreatePermission(ctx, name)
	if err != nil {
		return nil, err
	}
	s.logger.Info("permission created", "id", created.ID, "name", created.Name)
	return created, nil
}

// GetPermission returns the active permission with the given id.
func (s *Service) GetPermission(ctx context.Context, id int64) (*Permission, error) {
	perm, err := s.store.FindPermission(ctx, id)
	if err != nil {
		return nil, err
	}
	if perm == nil {
		return nil, fmt.Errorf("%w: permission %d", httpx.ErrNotFound, id)
	}
	return perm, nil
}

// UpdatePermission renames an active permission. Renaming to the current
// name is rejected.
func (s *Service) UpdatePermission(ctx context.Context, id int64, name string) (*Permission, error) {
	if err := validateName("permission", name); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)

	perm, err := s.GetPermission(ctx, id)
	if err != nil {
		return nil, err
	}
	if foldName(perm.Name) == foldName(name) {
		return nil, fmt.Errorf("%w: permission name %q is the same as the current name", httpx.ErrValidation, name)
	}
	return s.store.RenamePermission(ctx, id, name)
}

// DeactivatePermission soft-deletes an active permission.
func (s *Service) DeactivatePermission(ctx context.Context, id int64) error {
	perm, err := s.store.FindPermissionAny(ctx, id)
	if err != nil {
		return err
	}
	if perm == nil {
		return fmt.Errorf("%w: permission %d", httpx.ErrNotFound, id)
	}
	if perm.Status == StatusDeleted {
		return fmt.Errorf("%w: permission %d is already deleted", httpx.ErrValidation, id)
	}
	return s.store.SetPermissionDeleted(ctx, id, true)
}

// ReactivatePermission restores a soft-deleted permission.
func (s *Service) ReactivatePermission(ctx context.Context, id int64) error {
	perm, err := s.store.FindPermissionAny(ctx, id)
	if err != nil {
		return err
	}
	if perm == nil {
		return fmt.Errorf("%w: permission %d", httpx.ErrNotFound, id)
	}
	if perm.Status == StatusActive {
		return fmt.Errorf("%w: permission %d is not deleted", httpx.ErrValidation, id)
	}
	return s.store.SetPermissionDeleted(ctx, id, false)
}

// DeletePermission physically removes a permission. The record only needs to
// exist; soft-deleted permissions can be removed too. There is no restore.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	perm, err := s.store.FindPermissionAny(ctx, id)
	if err != nil {
		return err
	}
	if perm == nil {
		return fmt.Errorf("%w: permission %d", httpx.ErrNotFound, id)
	}
	if err := s.store.DeletePermission(ctx, id); err != nil {
		return err
	}
	s.logger.Info("permission deleted", "id", id, "name", perm.Name)
	return nil
}
