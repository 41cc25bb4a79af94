package rbac

import (
	"context"
	"fmt"

	"github.com/aegis-iam/aegis/internal/platform/httpx"
)

// AssignRole binds a role to a user. The user and role must both be active,
// and the user must not already hold the role. A previously revoked binding
// is restored rather than duplicated.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	exists, err := s.store.ActiveUserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: user %d", httpx.ErrNotFound, userID)
	}

	role, err := s.store.FindRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role == nil {
		return fmt.Errorf("%w: role %d", httpx.ErrNotFound, roleID)
	}

	binding, err := s.store.FindBinding(ctx, userID, roleID)
	if err != nil {
		return err
	}
	if binding != nil && binding.Status == StatusActive {
		return fmt.Errorf("%w: user %d already has role %q", httpx.ErrValidation, userID, role.Name)
	}

	if err := s.store.BindRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.logger.Info("role assigned", "user_id", userID, "role_id", roleID, "role", role.Name)
	return nil
}

// RevokeRole soft-revokes a role from a user. Revoking a role the user does
// not actively hold is a not-found error.
func (s *Service) RevokeRole(ctx context.Context, userID, roleID int64) error {
	exists, err := s.store.ActiveUserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: user %d", httpx.ErrNotFound, userID)
	}

	binding, err := s.store.FindBinding(ctx, userID, roleID)
	if err != nil {
		return err
	}
	if binding == nil || binding.Status == StatusDeleted {
		return fmt.Errorf("%w: user %d does not hold role %d", httpx.ErrNotFound, userID, roleID)
	}

	if err := s.store.UnbindRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.logger.Info("role revoked", "user_id", userID, "role_id", roleID)
	return nil
}
