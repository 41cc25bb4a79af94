package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aegis-iam/aegis/internal/platform/httpx"
	"github.com/aegis-iam/aegis/jobs"
)

type stubRepo struct {
	users  map[int64]*User
	nextID int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{users: make(map[int64]*User), nextID: 1}
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

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*User, error) {
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *stubRepo) Create(ctx context.Context, email, passwordHash string) (*User, error) {
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

func (s *stubRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	if u, ok := s.users[id]; ok {
		u.PasswordHash = passwordHash
		u.UpdatedAt = time.Now()
	}
	return nil
}

type stubEnqueuer struct {
	tasks []*asynq.Task
}

func (s *stubEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func newTestService(t *testing.T) (*Service, *stubRepo, *stubEnqueuer) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := newStubRepo()
	enqueuer := &stubEnqueuer{}
	svc := NewService(ServiceConfig{
		Repo:         repo,
		Tokens:       NewTokenManager("test-secret", "aegis", time.Hour),
		Resets:       NewResetTokenStore(client, time.Minute),
		Enqueuer:     enqueuer,
		Logger:       slog.Default(),
		BcryptCost:   bcrypt.MinCost,
		ResetBaseURL: "http://localhost:8080/auth/reset",
	})
	return svc, repo, enqueuer
}

func TestLoginIssuesParsableToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Signup(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)

	token, err := svc.Login(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)

	identity, err := NewTokenManager("test-secret", "aegis", time.Hour).Parse(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.UserID)
	assert.Equal(t, "alice@example.com", identity.Email)
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, httpx.ErrUnauthorized)

	_, err = svc.Login(ctx, "nobody@example.com", "whatever")
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)

	_, err = svc.Signup(ctx, "Alice@Example.com", "another-pass")
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestChangePasswordRejectsReuse(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Signup(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, user.ID, "correct-horse")
	require.ErrorIs(t, err, httpx.ErrValidation)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "new-password-1"))

	_, err = svc.Login(ctx, "alice@example.com", "new-password-1")
	require.NoError(t, err)
}

func TestForgotPasswordEnqueuesResetEmail(t *testing.T) {
	svc, _, enqueuer := newTestService(t)
	ctx := context.Background()

	user, err := svc.Signup(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)
	_ = user

	require.NoError(t, svc.ForgotPassword(ctx, "alice@example.com"))
	require.Len(t, enqueuer.tasks, 1)
	assert.Equal(t, jobs.TaskTypeSendResetEmail, enqueuer.tasks[0].Type())

	var payload jobs.SendResetEmailPayload
	require.NoError(t, json.Unmarshal(enqueuer.tasks[0].Payload(), &payload))
	assert.Equal(t, "alice@example.com", payload.To)
	assert.Contains(t, payload.ResetURL, "token=")
}

func TestForgotPasswordSilentForUnknownEmail(t *testing.T) {
	svc, _, enqueuer := newTestService(t)

	require.NoError(t, svc.ForgotPassword(context.Background(), "ghost@example.com"))
	assert.Empty(t, enqueuer.tasks)
}

func TestResetPasswordConsumesTokenOnce(t *testing.T) {
	svc, _, enqueuer := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)
	require.NoError(t, svc.ForgotPassword(ctx, "alice@example.com"))

	var payload jobs.SendResetEmailPayload
	require.NoError(t, json.Unmarshal(enqueuer.tasks[0].Payload(), &payload))
	_, token, found := strings.Cut(payload.ResetURL, "token=")
	require.True(t, found)

	require.NoError(t, svc.ResetPassword(ctx, token, "brand-new-pass"))

	_, err = svc.Login(ctx, "alice@example.com", "brand-new-pass")
	require.NoError(t, err)

	// Second use of the same token fails.
	err = svc.ResetPassword(ctx, token, "yet-another-pass")
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
}

func TestResetPasswordRejectsUnknownToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.ResetPassword(context.Background(), "not-a-token", "whatever-pass")
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
}
