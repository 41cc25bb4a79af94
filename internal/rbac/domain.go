package rbac

import "time"

// Status tags the lifecycle state of an entity or binding.
type Status string

const (
	// StatusActive marks a record that participates in authorization.
	StatusActive Status = "active"
	// StatusDeleted marks a soft-deleted record awaiting restore or removal.
	StatusDeleted Status = "deleted"
)

// StatusOf derives the lifecycle state from the soft-delete tombstone.
func StatusOf(deletedAt *time.Time) Status {
	if deletedAt != nil {
		return StatusDeleted
	}
	return StatusActive
}

// Permission represents an atomic capability flag.
type Permission struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Role represents a named bundle of permissions assignable to users.
type Role struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	// Permissions holds the active associations when the role was loaded
	// with them, nil otherwise.
	Permissions []Permission `json:"permissions,omitempty"`
}

// Binding is the association record between a user and a role. The join row
// carries its own tombstone so a revoked role can be restored instead of
// re-created.
type Binding struct {
	UserID    int64      `json:"user_id"`
	RoleID    int64      `json:"role_id"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Requirement declares the roles and permissions a route demands. Both lists
// use "has any of" semantics; an empty list imposes no constraint.
type Requirement struct {
	Roles       []string `json:"required_roles"`
	Permissions []string `json:"required_permissions"`
}
