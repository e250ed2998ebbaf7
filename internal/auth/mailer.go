package auth

import (
	"context"

	"go.uber.org/zap"
)

// Mailer delivers password reset links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}

// LogMailer writes reset links to the log instead of sending mail. It is the
// default until an SMTP relay is configured.
type LogMailer struct {
	Logger *zap.Logger
}

func (m LogMailer) SendPasswordReset(_ context.Context, email, link string) error {
	m.Logger.Info("password reset requested", zap.String("email", email), zap.String("link", link))
	return nil
}
