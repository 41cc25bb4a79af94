package auth

import "context"

// Repository defines the persistence surface the auth service needs. Lookups
// consider active users only and return (nil, nil) when no row matches.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, email, passwordHash string) (*User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}
