package users

import (
	"time"

	"github.com/aegis-iam/aegis/internal/rbac"
)

// User represents an account as seen by the management API. The password
// hash never leaves the server.
type User struct {
	ID           int64       `json:"id"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Status       rbac.Status `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	DeletedAt    *time.Time  `json:"deleted_at,omitempty"`

	// Roles holds the active role names when the user was loaded with
	// them, nil otherwise.
	Roles []string `json:"roles,omitempty"`
}
