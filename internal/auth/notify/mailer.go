package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/authify/internal/auth/domain"
)

// Outbox accepts messages for delivery. *Dispatcher is the production
// implementation.
type Outbox interface {
	Notify(ctx context.Context, msg Message)
}

// Mailer renders the auth emails and hands them to an Outbox. It satisfies
// service.Notifier.
type Mailer struct {
	Outbox      Outbox
	AppName     string
	FrontendURL string // links point at the web app, which calls the API
}

func (m *Mailer) link(path, token string) string {
	return strings.TrimRight(m.FrontendURL, "/") + path + "?token=" + url.QueryEscape(token)
}

func (m *Mailer) VerificationRequested(ctx context.Context, user domain.User, token string) {
	m.Outbox.Notify(ctx, Message{
		To:      user.Email,
		Subject: m.AppName + " - Verify your email address",
		Body: fmt.Sprintf("Hi,\n\n"+
			"Please verify your email address by clicking the link below:\n\n"+
			"%s\n\n"+
			"This link will expire in 24 hours.\n\n"+
			"If you didn't create an account, you can ignore this email.\n\n"+
			"Thanks,\n%s", m.link("/verify-email", token), m.AppName),
		Token: token,
	})
}

func (m *Mailer) PasswordResetRequested(ctx context.Context, user domain.User, token string) {
	m.Outbox.Notify(ctx, Message{
		To:      user.Email,
		Subject: m.AppName + " - Reset your password",
		Body: fmt.Sprintf("Hi,\n\n"+
			"You requested to reset your password. Click the link below:\n\n"+
			"%s\n\n"+
			"This link will expire in 1 hour.\n\n"+
			"If you didn't request this, you can ignore this email.\n\n"+
			"Thanks,\n%s", m.link("/reset-password", token), m.AppName),
		Token: token,
	})
}
