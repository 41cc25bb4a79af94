package users

import "context"

// RepositoryPort defines data access methods for user management. Lookup
// methods return (nil, nil) when no row matches so the service layer owns
// the error vocabulary.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByIDAny(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, email, passwordHash string) (*User, error)
	UpdateUser(ctx context.Context, id int64, email, passwordHash string) (*User, error)
	DeleteUser(ctx context.Context, id int64) error
	SetDeleted(ctx context.Context, id int64, deleted bool) error
	ListUserRoles(ctx context.Context, userID int64) ([]string, error)
}
