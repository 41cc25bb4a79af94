package rbac

import "context"

// Store is the persistence port for the RBAC engine. Find methods filter
// soft-deleted records unless the name says otherwise, and return (nil, nil)
// when no row matches so services can produce their own not-found errors.
type Store interface {
	// Permissions.
	ListPermissions(ctx context.Context) ([]Permission, error)
	FindPermission(ctx context.Context, id int64) (*Permission, error)
	FindPermissionAny(ctx context.Context, id int64) (*Permission, error)
	FindPermissionByName(ctx context.Context, name string) (*Permission, error)
	CreatePermission(ctx context.Context, name string) (*Permission, error)
	RenamePermission(ctx context.Context, id int64, name string) (*Permission, error)
	SetPermissionDeleted(ctx context.Context, id int64, deleted bool) error
	DeletePermission(ctx context.Context, id int64) error

	// Roles.
	ListRoles(ctx context.Context) ([]Role, error)
	FindRole(ctx context.Context, id int64) (*Role, error)
	FindRoleAny(ctx context.Context, id int64) (*Role, error)
	FindRoleByNameAny(ctx context.Context, name string) (*Role, error)
	CreateRole(ctx context.Context, name string) (*Role, error)
	RenameRole(ctx context.Context, id int64, name string) (*Role, error)
	SetRoleDeleted(ctx context.Context, id int64, deleted bool) error
	DeleteRole(ctx context.Context, id int64) error

	// Role-permission associations. Batch mutations are atomic: either every
	// listed id is connected/disconnected or none is.
	ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error)
	AttachPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	DetachPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error

	// Users and bindings. BindRole restores a soft-deleted binding row when
	// one exists instead of inserting a duplicate.
	ActiveUserExists(ctx context.Context, userID int64) (bool, error)
	FindBinding(ctx context.Context, userID, roleID int64) (*Binding, error)
	BindRole(ctx context.Context, userID, roleID int64) error
	UnbindRole(ctx context.Context, userID, roleID int64) error

	// Decision queries.
	ListUserRoleIDs(ctx context.Context, userID int64) ([]int64, error)
	ListRolesByIDs(ctx context.Context, ids []int64) ([]Role, error)
	ListUserPermissions(ctx context.Context, userID int64) ([]Permission, error)
}
