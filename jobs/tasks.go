// Package jobs defines background task types and their handlers.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendResetEmail is the task type for password reset emails.
	TaskTypeSendResetEmail = "auth:send_reset_email"
)

// SendResetEmailPayload describes a password reset email to deliver.
type SendResetEmailPayload struct {
	To       string `json:"to"`
	ResetURL string `json:"reset_url"`
}

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewSendResetEmailTask constructs an Asynq task.
func NewSendResetEmailTask(payload SendResetEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendResetEmail, data, asynq.Queue(QueueDefault)), nil
}

// NewResetEmailHandler returns the handler processing TaskTypeSendResetEmail.
func NewResetEmailHandler(mailer Mailer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendResetEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		body := fmt.Sprintf("Click on the following link to reset your password: %s", payload.ResetURL)
		if err := mailer.Send(ctx, payload.To, "Password Reset", body); err != nil {
			return err
		}
		if logger != nil {
			logger.Info("reset email sent", slog.String("to", payload.To))
		}
		return nil
	}
}
