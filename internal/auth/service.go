// Package auth implements credential verification, token issuance and the
// password lifecycle. Authorization decisions live in the rbac package; this
// package only establishes who the caller is.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"golang.org/x/crypto/bcrypt"

	"github.com/aegis-iam/aegis/internal/platform/httpx"
	"github.com/aegis-iam/aegis/jobs"
)

// Enqueuer submits background tasks. Satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo         Repository
	tokens       *TokenManager
	resets       *ResetTokenStore
	enqueuer     Enqueuer
	logger       *slog.Logger
	bcryptCost   int
	resetBaseURL string
}

// ServiceConfig collects the dependencies of the auth service.
type ServiceConfig struct {
	Repo         Repository
	Tokens       *TokenManager
	Resets       *ResetTokenStore
	Enqueuer     Enqueuer
	Logger       *slog.Logger
	BcryptCost   int
	ResetBaseURL string
}

// NewService constructs a new Service.
func NewService(cfg ServiceConfig) *Service {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:         cfg.Repo,
		tokens:       cfg.Tokens,
		resets:       cfg.Resets,
		enqueuer:     cfg.Enqueuer,
		logger:       logger,
		bcryptCost:   cost,
		resetBaseURL: cfg.ResetBaseURL,
	}
}

// Login validates credentials and returns a signed access token. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", fmt.Errorf("%w: invalid email or password", httpx.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("%w: invalid email or password", httpx.ErrUnauthorized)
	}
	return s.tokens.Issue(user)
}

// Signup registers a new account.
func (s *Service) Signup(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", httpx.ErrValidation)
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: user %q already exists", httpx.ErrDuplicate, email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.Create(ctx, email, string(hash))
	if err != nil {
		return nil, err
	}
	s.logger.Info("user signed up", "user_id", user.ID)
	return user, nil
}

// ChangePassword rotates the credential of an authenticated user. Reusing
// the current password is rejected.
func (s *Service) ChangePassword(ctx context.Context, userID int64, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: password is required", httpx.ErrValidation)
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user %d", httpx.ErrNotFound, userID)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(newPassword)) == nil {
		return fmt.Errorf("%w: new password is the same as the previous password", httpx.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, userID, string(hash))
}

// ForgotPassword issues a reset token and enqueues the reset email. Unknown
// emails are reported as success so the endpoint cannot be used to probe for
// accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		s.logger.Info("password reset requested for unknown email")
		return nil
	}

	token, err := s.resets.Create(ctx, user.ID)
	if err != nil {
		return err
	}
	task, err := jobs.NewSendResetEmailTask(jobs.SendResetEmailPayload{
		To:       user.Email,
		ResetURL: fmt.Sprintf("%s?token=%s", s.resetBaseURL, token),
	})
	if err != nil {
		return err
	}
	if _, err := s.enqueuer.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("auth: enqueue reset email: %w", err)
	}
	s.logger.Info("password reset requested", "user_id", user.ID)
	return nil
}

// ResetPassword completes the forgot-password flow with a one-time token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: password is required", httpx.ErrValidation)
	}
	userID, err := s.resets.Consume(ctx, token)
	if err != nil {
		return err
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: invalid or expired reset token", httpx.ErrUnauthorized)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}
	s.logger.Info("password reset completed", "user_id", user.ID)
	return nil
}
