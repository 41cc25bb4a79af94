package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/aegis-iam/aegis/internal/platform/httpx"
)

// Service handles user administration business logic.
type Service struct {
	repo       RepositoryPort
	logger     *slog.Logger
	bcryptCost int
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, logger: logger, bcryptCost: bcryptCost}
}

// ListUsers returns all active users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// CreateUser provisions a new active account.
func (s *Service) CreateUser(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: invalid email or password", httpx.ErrValidation)
	}
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: user already exists", httpx.ErrDuplicate)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.repo.CreateUser(ctx, email, string(hash))
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", slog.Int64("user_id", user.ID))
	return user, nil
}

// GetUser returns the active user with the given id, including the names of
// its active roles.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user not found", httpx.ErrNotFound)
	}
	roles, err := s.repo.ListUserRoles(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Roles = roles
	return user, nil
}

// FindUserByEmail returns the active user with the given email. A purely
// numeric value is rejected to catch ids passed in the wrong slot.
func (s *Service) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	if _, err := strconv.ParseFloat(email, 64); err == nil {
		return nil, fmt.Errorf("%w: user %q can't be a number", httpx.ErrValidation, email)
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user not found", httpx.ErrNotFound)
	}
	return user, nil
}

// UpdateUser rewrites the credentials of an active user. The password is
// mandatory and must differ from the current one; an empty email keeps the
// existing address.
func (s *Service) UpdateUser(ctx context.Context, id int64, email, password string) (*User, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: invalid email or password", httpx.ErrValidation)
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil {
		return nil, fmt.Errorf("%w: password is the same as the previous password", httpx.ErrValidation)
	}
	email = strings.TrimSpace(email)
	if email == "" {
		email = user.Email
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	updated, err := s.repo.UpdateUser(ctx, id, email, string(hash))
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: user not found", httpx.ErrNotFound)
	}
	s.logger.Info("user updated", slog.Int64("user_id", id))
	return updated, nil
}

// DeleteUser removes an active user and its role bindings permanently.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user not found", httpx.ErrNotFound)
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", slog.Int64("user_id", id))
	return nil
}

// DeactivateUser soft-deletes an active user.
func (s *Service) DeactivateUser(ctx context.Context, id int64) error {
	user, err := s.repo.FindByIDAny(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user not found", httpx.ErrNotFound)
	}
	if user.DeletedAt != nil {
		return fmt.Errorf("%w: user already deactivated", httpx.ErrValidation)
	}
	return s.repo.SetDeleted(ctx, id, true)
}

// ReactivateUser restores a soft-deleted user.
func (s *Service) ReactivateUser(ctx context.Context, id int64) error {
	user, err := s.repo.FindByIDAny(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user not found", httpx.ErrNotFound)
	}
	if user.DeletedAt == nil {
		return fmt.Errorf("%w: user already activated", httpx.ErrValidation)
	}
	return s.repo.SetDeleted(ctx, id, false)
}
