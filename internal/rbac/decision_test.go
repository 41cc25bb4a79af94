package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-iam/aegis/internal/platform/httpx"
)

func TestHasRolesAnySemantics(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	store.addUser(7)
	role, err := svc.CreateRole(ctx, "editor")
	require.NoError(t, err)
	require.NoError(t, svc.AssignRole(ctx, 7, role.ID))

	ok, err := svc.HasRoles(ctx, 7, []string{"admin", "editor"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasRoles(ctx, 7, []string{"admin"})
	require.NoError(t, err)
	assert.False(t, ok)

	// Case-insensitive name matching.
	ok, err = svc.HasRoles(ctx, 7, []string{"EDITOR"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasRolesIdempotentWithoutMutation(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	store.addUser(7)
	role, err := svc.CreateRole(ctx, "admin")
	require.NoError(t, err)
	require.NoError(t, svc.AssignRole(ctx, 7, role.ID))

	first, err := svc.HasRoles(ctx, 7, []string{"admin"})
	require.NoError(t, err)
	second, err := svc.HasRoles(ctx, 7, []string{"admin"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecisionsFalseForZeroBindings(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	store.addUser(7)

	ok, err := svc.HasRoles(ctx, 7, []string{"admin"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.HasPermission(ctx, 7, []string{"publish"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecisionsNotFoundForMissingUser(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.HasRoles(ctx, 99, []string{"admin"})
	require.ErrorIs(t, err, httpx.ErrNotFound)

	_, err = svc.PermissionsForUser(ctx, 99)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestEffectivePermissionFlow(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	store.addUser(42)
	role, err := svc.CreateRole(ctx, "editor")
	require.NoError(t, err)
	perm, err := svc.CreatePermission(ctx, "publish")
	require.NoError(t, err)
	require.NoError(t, svc.ReplaceRolePermissions(ctx, role.ID, []int64{perm.ID}))
	require.NoError(t, svc.AssignRole(ctx, 42, role.ID))

	ok, err := svc.HasPermission(ctx, 42, []string{"publish"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasPermission(ctx, 42, []string{"delete"})
	require.NoError(t, err)
	assert.False(t, ok)

	perms, err := svc.PermissionsForUser(ctx, 42)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "publish", perms[0].Name)
}

func TestDeactivatedRoleStopsContributing(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	store.addUser(7)
	role, err := svc.CreateRole(ctx, "temp")
	require.NoError(t, err)
	perm, err := svc.CreatePermission(ctx, "export")
	require.NoError(t, err)
	require.NoError(t, svc.ReplaceRolePermissions(ctx, role.ID, []int64{perm.ID}))
	require.NoError(t, svc.AssignRole(ctx, 7, role.ID))

	require.NoError(t, svc.DeactivateRole(ctx, role.ID))

	// The binding is still active, but the deleted role must not count.
	ok, err := svc.HasRoles(ctx, 7, []string{"temp"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.HasPermission(ctx, 7, []string{"export"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeactivatedPermissionStopsContributing(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	store.addUser(7)
	role, err := svc.CreateRole(ctx, "editor")
	require.NoError(t, err)
	perm, err := svc.CreatePermission(ctx, "publish")
	require.NoError(t, err)
	require.NoError(t, svc.ReplaceRolePermissions(ctx, role.ID, []int64{perm.ID}))
	require.NoError(t, svc.AssignRole(ctx, 7, role.ID))

	require.NoError(t, svc.DeactivatePermission(ctx, perm.ID))

	ok, err := svc.HasPermission(ctx, 7, []string{"publish"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthorizeCombinesRolesAndPermissions(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	store.addUser(7)
	role, err := svc.CreateRole(ctx, "editor")
	require.NoError(t, err)
	perm, err := svc.CreatePermission(ctx, "publish")
	require.NoError(t, err)
	require.NoError(t, svc.ReplaceRolePermissions(ctx, role.ID, []int64{perm.ID}))
	require.NoError(t, svc.AssignRole(ctx, 7, role.ID))

	allowed, err := svc.Authorize(ctx, 7, Requirement{Roles: []string{"editor"}, Permissions: []string{"publish"}})
	require.NoError(t, err)
	assert.True(t, allowed)

	// Both lists must be satisfied.
	allowed, err = svc.Authorize(ctx, 7, Requirement{Roles: []string{"editor"}, Permissions: []string{"delete"}})
	require.NoError(t, err)
	assert.False(t, allowed)

	// Empty requirement imposes no constraint.
	allowed, err = svc.Authorize(ctx, 7, Requirement{})
	require.NoError(t, err)
	assert.True(t, allowed)
}
