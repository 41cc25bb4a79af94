package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegis-iam/aegis/internal/platform/db"
	"github.com/aegis-iam/aegis/internal/platform/httpx"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for the RBAC engine.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

const permissionColumns = `id, name, created_at, updated_at, deleted_at`

func scanPermission(row pgx.Row) (*Permission, error) {
	var p Permission
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.Status = StatusOf(p.DeletedAt)
	return &p, nil
}

// ListPermissions returns all active permissions.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt); err != nil {
			return nil, err
		}
		p.Status = StatusOf(p.DeletedAt)
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// FindPermission returns the active permission with the given id.
func (r *Repository) FindPermission(ctx context.Context, id int64) (*Permission, error) {
	return scanPermission(r.pool.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE id = $1 AND deleted_at IS NULL`, id))
}

// FindPermissionAny returns the permission with the given id regardless of state.
func (r *Repository) FindPermissionAny(ctx context.Context, id int64) (*Permission, error) {
	return scanPermission(r.pool.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id))
}

// FindPermissionByName returns the active permission with the given name,
// compared case-insensitively.
func (r *Repository) FindPermissionByName(ctx context.Context, name string) (*Permission, error) {
	return scanPermission(r.pool.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE lower(name) = lower($1) AND deleted_at IS NULL`, name))
}

// CreatePermission inserts a new permission.
func (r *Repository) CreatePermission(ctx context.Context, name string) (*Permission, error) {
	p, err := scanPermission(r.pool.QueryRow(ctx,
		`INSERT INTO permissions (name) VALUES ($1) RETURNING `+permissionColumns, name))
	if err != nil {
		return nil, mapUniqueViolation(err, fmt.Sprintf("permission %q already exists", name))
	}
	return p, nil
}

// RenamePermission updates the name of an active permission.
func (r *Repository) RenamePermission(ctx context.Context, id int64, name string) (*Permission, error) {
	p, err := scanPermission(r.pool.QueryRow(ctx,
		`UPDATE permissions SET name = $2, updated_at = now() WHERE id = $1 AND deleted_at IS NULL RETURNING `+permissionColumns,
		id, name))
	if err != nil {
		return nil, mapUniqueViolation(err, fmt.Sprintf("permission %q already exists", name))
	}
	return p, nil
}

// SetPermissionDeleted toggles the soft-delete tombstone.
func (r *Repository) SetPermissionDeleted(ctx context.Context, id int64, deleted bool) error {
	return r.setDeleted(ctx, "permissions", id, deleted)
}

// DeletePermission physically removes a permission and its associations.
func (r *Repository) DeletePermission(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE permission_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
		return err
	})
}

const roleColumns = `id, name, created_at, updated_at, deleted_at`

func scanRole(row pgx.Row) (*Role, error) {
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt, &role.DeletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	role.Status = StatusOf(role.DeletedAt)
	return &role, nil
}

// ListRoles returns all active roles.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRoles(rows)
}

// FindRole returns the active role with the given id.
func (r *Repository) FindRole(ctx context.Context, id int64) (*Role, error) {
	return scanRole(r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = $1 AND deleted_at IS NULL`, id))
}

// FindRoleAny returns the role with the given id regardless of state.
func (r *Repository) FindRoleAny(ctx context.Context, id int64) (*Role, error) {
	return scanRole(r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

// FindRoleByNameAny returns the role with the given name regardless of state,
// compared case-insensitively.
func (r *Repository) FindRoleByNameAny(ctx context.Context, name string) (*Role, error) {
	return scanRole(r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE lower(name) = lower($1)`, name))
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, name string) (*Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx,
		`INSERT INTO roles (name) VALUES ($1) RETURNING `+roleColumns, name))
	if err != nil {
		return nil, mapUniqueViolation(err, fmt.Sprintf("role %q already exists", name))
	}
	return role, nil
}

// RenameRole updates the name of an active role.
func (r *Repository) RenameRole(ctx context.Context, id int64, name string) (*Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, updated_at = now() WHERE id = $1 AND deleted_at IS NULL RETURNING `+roleColumns,
		id, name))
	if err != nil {
		return nil, mapUniqueViolation(err, fmt.Sprintf("role %q already exists", name))
	}
	return role, nil
}

// SetRoleDeleted toggles the soft-delete tombstone.
func (r *Repository) SetRoleDeleted(ctx context.Context, id int64, deleted bool) error {
	return r.setDeleted(ctx, "roles", id, deleted)
}

// DeleteRole physically removes a role, its permission associations and its
// user bindings.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE role_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		return err
	})
}

// ListRolePermissions returns the active permissions associated with a role.
func (r *Repository) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name, p.created_at, p.updated_at, p.deleted_at
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1 AND p.deleted_at IS NULL
		ORDER BY p.id`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt); err != nil {
			return nil, err
		}
		p.Status = StatusOf(p.DeletedAt)
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// AttachPermissions connects every listed permission to the role in a single
// transaction. Already-connected ids are left untouched.
func (r *Repository) AttachPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, pid := range permissionIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO role_permissions (role_id, permission_id)
				VALUES ($1, $2)
				ON CONFLICT (role_id, permission_id) DO NOTHING`, roleID, pid); err != nil {
				return err
			}
		}
		return nil
	})
}

// DetachPermissions disconnects every listed permission from the role in a
// single transaction.
func (r *Repository) DetachPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, pid := range permissionIDs {
			if _, err := tx.Exec(ctx,
				`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, pid); err != nil {
				return err
			}
		}
		return nil
	})
}

// ActiveUserExists reports whether an active user with the given id exists.
func (r *Repository) ActiveUserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND deleted_at IS NULL)`, userID).Scan(&exists)
	return exists, err
}

// FindBinding returns the binding row between a user and a role regardless of
// state.
func (r *Repository) FindBinding(ctx context.Context, userID, roleID int64) (*Binding, error) {
	var b Binding
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, role_id, created_at, deleted_at
		FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID).
		Scan(&b.UserID, &b.RoleID, &b.CreatedAt, &b.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	b.Status = StatusOf(b.DeletedAt)
	return &b, nil
}

// BindRole restores a revoked binding when one exists, otherwise inserts a
// new row. A concurrent duplicate insert surfaces as ErrDuplicate through the
// primary key rather than silently succeeding.
func (r *Repository) BindRole(ctx context.Context, userID, roleID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_roles SET deleted_at = NULL
		WHERE user_id = $1 AND role_id = $2 AND deleted_at IS NOT NULL`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, userID, roleID)
	return mapUniqueViolation(err, "user already has this role")
}

// UnbindRole soft-revokes an active binding.
func (r *Repository) UnbindRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE user_roles SET deleted_at = now()
		WHERE user_id = $1 AND role_id = $2 AND deleted_at IS NULL`, userID, roleID)
	return err
}

// ListUserRoleIDs returns the role ids of the user's active bindings. The
// roles themselves may be soft-deleted; decision queries filter them later.
func (r *Repository) ListUserRoleIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT role_id FROM user_roles WHERE user_id = $1 AND deleted_at IS NULL ORDER BY role_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListRolesByIDs returns the active roles among the given ids.
func (r *Repository) ListRolesByIDs(ctx context.Context, ids []int64) ([]Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = ANY($1) AND deleted_at IS NULL ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRoles(rows)
}

// ListUserPermissions resolves the user's effective active permissions
// through their active bindings and active roles.
func (r *Repository) ListUserPermissions(ctx context.Context, userID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT p.id, p.name, p.created_at, p.updated_at, p.deleted_at
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id AND ro.deleted_at IS NULL
		JOIN role_permissions rp ON rp.role_id = ro.id
		JOIN permissions p ON p.id = rp.permission_id AND p.deleted_at IS NULL
		WHERE ur.user_id = $1 AND ur.deleted_at IS NULL
		ORDER BY p.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt); err != nil {
			return nil, err
		}
		p.Status = StatusOf(p.DeletedAt)
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (r *Repository) setDeleted(ctx context.Context, table string, id int64, deleted bool) error {
	var err error
	if deleted {
		_, err = r.pool.Exec(ctx,
			`UPDATE `+table+` SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	} else {
		_, err = r.pool.Exec(ctx,
			`UPDATE `+table+` SET deleted_at = NULL, updated_at = now() WHERE id = $1 AND deleted_at IS NOT NULL`, id)
	}
	return err
}

func collectRoles(rows pgx.Rows) ([]Role, error) {
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt, &role.DeletedAt); err != nil {
			return nil, err
		}
		role.Status = StatusOf(role.DeletedAt)
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func mapUniqueViolation(err error, detail string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", httpx.ErrDuplicate, detail)
	}
	return err
}
