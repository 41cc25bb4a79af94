package users

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aegis-iam/aegis/internal/platform/httpx"
)

type stubRepo struct {
	users  map[int64]*User
	roles  map[int64][]string
	nextID int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{users: make(map[int64]*User), roles: make(map[int64][]string), nextID: 1}
}

func (s *stubRepo) ListUsers(ctx context.Context) ([]User, error) {
	var list []User
	for _, u := range s.users {
		if u.DeletedAt == nil {
			list = append(list, *u)
		}
	}
	return list, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*User, error) {
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *stubRepo) FindByIDAny(ctx context.Context, id int64) (*User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) && u.DeletedAt == nil {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) CreateUser(ctx context.Context, email, passwordHash string) (*User, error) {
	u := &User{
		ID:           s.nextID,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	s.nextID++
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *stubRepo) UpdateUser(ctx context.Context, id int64, email, passwordHash string) (*User, error) {
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, nil
	}
	u.Email = email
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	cp := *u
	return &cp, nil
}

func (s *stubRepo) DeleteUser(ctx context.Context, id int64) error {
	delete(s.users, id)
	delete(s.roles, id)
	return nil
}

func (s *stubRepo) SetDeleted(ctx context.Context, id int64, deleted bool) error {
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	if deleted {
		now := time.Now()
		u.DeletedAt = &now
	} else {
		u.DeletedAt = nil
	}
	return nil
}

func (s *stubRepo) ListUserRoles(ctx context.Context, userID int64) ([]string, error) {
	return s.roles[userID], nil
}

func newTestService() (*Service, *stubRepo) {
	repo := newStubRepo()
	return NewService(repo, slog.Default(), bcrypt.MinCost), repo
}

func TestCreateUserRejectsDuplicate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, "Alice@Example.com", "another-pass")
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestCreateUserRequiresCredentials(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "", "correct-horse")
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreateUser(ctx, "alice@example.com", "")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestGetUserIncludesRoles(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)
	repo.roles[created.ID] = []string{"admin", "auditor"}

	user, err := svc.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "auditor"}, user.Roles)
}

func TestGetUserNotFoundWhenSoftDeleted(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)
	require.NoError(t, svc.DeactivateUser(ctx, created.ID))

	_, err = svc.GetUser(ctx, created.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestFindUserByEmailRejectsNumericValue(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.FindUserByEmail(context.Background(), "12345")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateUserRejectsSamePassword(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)

	_, err = svc.UpdateUser(ctx, created.ID, "", "correct-horse")
	require.ErrorIs(t, err, httpx.ErrValidation)

	updated, err := svc.UpdateUser(ctx, created.ID, "alice2@example.com", "new-password-1")
	require.NoError(t, err)
	assert.Equal(t, "alice2@example.com", updated.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("new-password-1")))
}

func TestUpdateUserRequiresPassword(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)

	_, err = svc.UpdateUser(ctx, created.ID, "alice2@example.com", "")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDeleteUserRequiresActiveRecord(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)
	require.NoError(t, svc.DeactivateUser(ctx, created.ID))

	// Soft-deleted users are invisible to the hard delete path.
	err = svc.DeleteUser(ctx, created.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)

	require.NoError(t, svc.ReactivateUser(ctx, created.ID))
	require.NoError(t, svc.DeleteUser(ctx, created.ID))
	assert.Empty(t, repo.users)
}

func TestUserStateTransitions(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)

	require.ErrorIs(t, svc.ReactivateUser(ctx, created.ID), httpx.ErrValidation)
	require.NoError(t, svc.DeactivateUser(ctx, created.ID))
	require.ErrorIs(t, svc.DeactivateUser(ctx, created.ID), httpx.ErrValidation)
	require.NoError(t, svc.ReactivateUser(ctx, created.ID))

	user, err := svc.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, user.DeletedAt)
}

func TestListUsersExcludesSoftDeleted(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	a, err := svc.CreateUser(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, "bob@example.com", "correct-horse")
	require.NoError(t, err)
	require.NoError(t, svc.DeactivateUser(ctx, a.ID))

	list, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "bob@example.com", list[0].Email)
}
