package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/aussiebroadwan/authify/internal/auth/domain"
	"github.com/aussiebroadwan/authify/internal/auth/store"
	"github.com/aussiebroadwan/authify/pkg/cryptox"
	"github.com/aussiebroadwan/authify/pkg/idx"
	"github.com/aussiebroadwan/authify/pkg/slogx"
	"go.opentelemetry.io/otel/attribute"
)

// Notifier receives the out-of-band messages the auth flows produce. It is
// only ever called after the transaction that created the token committed.
// Implementations must not block the caller for long.
type Notifier interface {
	VerificationRequested(ctx context.Context, user domain.User, token string)
	PasswordResetRequested(ctx context.Context, user domain.User, token string)
}

// AuthService is the account state machine: registration, login (with the
// optional second factor), session refresh and logout, and the email-driven
// verification and reset flows.
type AuthService struct {
	Store    store.Store
	Tokens   *TokenService
	TFA      *TFAService
	OneTime  *OneTimeTokenService
	Notifier Notifier

	// AdminEmails receive ADMIN on registration in addition to USER.
	// Entries must be normalised.
	AdminEmails []string
}

type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
}

type LoginInput struct {
	Email      string
	Password   string
	TFACode    string
	RememberMe bool
}

// LoginResult carries the outcome of a login. When TFARequired is set no
// tokens were issued and the caller should retry with a code.
type LoginResult struct {
	User         domain.User
	AccessToken  string
	RefreshToken string // empty unless RememberMe
	TFARequired  bool
}

// RefreshResult is the outcome of a refresh. RefreshToken is the token to
// keep using; Rotated reports whether it differs from the presented one.
type RefreshResult struct {
	User         domain.User
	AccessToken  string
	RefreshToken string
	Rotated      bool
}

type ResetPasswordInput struct {
	Token           string
	NewPassword     string
	ConfirmPassword string
}

// Register creates an unverified account with the USER role and sends the
// verification email.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	ctx, span := startSpan(ctx, "Register")
	var err error
	defer func() { endSpan(span, err) }()

	if err = checkPassword(in.Password, in.ConfirmPassword); err != nil {
		return nil, err
	}

	email := domain.NormalizeEmail(in.Email)
	_, err = s.Store.Users().GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		err = ErrUserAlreadyExists
		return nil, err
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	// Hashing is slow; keep it outside the transaction.
	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.Tokens.now()
	user := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Roles:        s.rolesFor(email),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var token string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrUserAlreadyExists
			}
			return fmt.Errorf("create user: %w", err)
		}
		for _, role := range user.Roles {
			if err := tx.Roles().AssignRole(ctx, user.ID, role); err != nil {
				return fmt.Errorf("assign role %s: %w", role, err)
			}
		}
		var err error
		token, err = s.OneTime.CreateVerificationToken(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("user registered",
		slog.String("user_id", user.ID),
		slog.Any("roles", user.RoleStrings()),
	)
	s.Notifier.VerificationRequested(ctx, user, token)
	return &user, nil
}

func (s *AuthService) rolesFor(email string) []domain.RoleName {
	roles := []domain.RoleName{domain.RoleUser}
	isAdmin := slices.ContainsFunc(s.AdminEmails, func(admin string) bool {
		return domain.NormalizeEmail(admin) == email
	})
	if isAdmin {
		roles = append(roles, domain.RoleAdmin)
	}
	return roles
}

// Login checks credentials and, when the account has TFA active, the code.
// Nothing is written to the store until every check has passed.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	ctx, span := startSpan(ctx, "Login", attribute.Bool("auth.remember_me", in.RememberMe))
	var err error
	defer func() { endSpan(span, err) }()
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByEmail(ctx, domain.NormalizeEmail(in.Email))
	if errors.Is(err, store.ErrNotFound) {
		cryptox.CompareDummy(in.Password)
		l.Info("login failed", slog.String("reason", "unknown email"))
		err = ErrInvalidCredentials
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err = cryptox.ComparePassword(user.PasswordHash, in.Password); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Error("password compare failed", slog.String("user_id", user.ID), slog.Any("error", err))
		}
		l.Info("login failed", slog.String("user_id", user.ID), slog.String("reason", "bad password"))
		err = ErrInvalidCredentials
		return nil, err
	}

	if user.TFAEnabled {
		code := strings.TrimSpace(in.TFACode)
		if code == "" {
			return &LoginResult{User: user, TFARequired: true}, nil
		}
		if user.TFASecret == nil || !s.TFA.Check(*user.TFASecret, code) {
			l.Info("login failed", slog.String("user_id", user.ID), slog.String("reason", "bad tfa code"))
			err = ErrInvalidTFACode
			return nil, err
		}
	}

	res := &LoginResult{User: user}
	if res.AccessToken, err = s.Tokens.IssueAccessToken(ctx, user, user.TFAEnabled); err != nil {
		return nil, err
	}
	if in.RememberMe {
		if res.RefreshToken, err = s.Tokens.IssueRefreshToken(ctx, user.ID); err != nil {
			return nil, err
		}
	}

	l.Info("login succeeded",
		slog.String("user_id", user.ID),
		slog.Bool("tfa", user.TFAEnabled),
		slog.Bool("remember_me", in.RememberMe),
	)
	return res, nil
}

// Logout ends every session of the user owning refreshToken. Unknown or
// empty tokens are accepted silently.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.Tokens.RevokeAllForToken(ctx, refreshToken)
}

// Refresh mints a new access token from a refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	ctx, span := startSpan(ctx, "Refresh")
	var err error
	defer func() { endSpan(span, err) }()

	rt, err := s.Tokens.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.Store.Users().GetUserByID(ctx, rt.UserID)
	if errors.Is(err, store.ErrNotFound) {
		err = ErrInvalidToken
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	res := &RefreshResult{User: user, RefreshToken: refreshToken}
	if s.Tokens.RotateRefreshTokens {
		if res.RefreshToken, err = s.Tokens.RotateRefreshToken(ctx, refreshToken); err != nil {
			return nil, err
		}
		res.Rotated = true
	}

	// A TFA user could only have obtained the refresh token by passing TFA.
	if res.AccessToken, err = s.Tokens.IssueAccessToken(ctx, user, user.TFAEnabled); err != nil {
		return nil, err
	}
	return res, nil
}

// VerifyEmail consumes a verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	return s.OneTime.ConsumeVerification(ctx, token)
}

// ForgotPassword sends a reset link when email belongs to an account. The
// result is the same whether or not it does.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	ctx, span := startSpan(ctx, "ForgotPassword")
	var err error
	defer func() { endSpan(span, err) }()

	user, err := s.Store.Users().GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		slogx.FromContext(ctx).Info("password reset requested for unknown email")
		err = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}

	token, err := s.OneTime.CreateResetToken(ctx, user.ID)
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("password reset requested", slog.String("user_id", user.ID))
	s.Notifier.PasswordResetRequested(ctx, user, token)
	return nil
}

// ResetPassword sets a new password from a reset token and logs the user out
// everywhere.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if err := checkPassword(in.NewPassword, in.ConfirmPassword); err != nil {
		return err
	}

	hash, err := cryptox.HashPassword(in.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	_, err = s.OneTime.ConsumeReset(ctx, in.Token, hash)
	return err
}

// CurrentUser returns the account for email, typically the subject of a
// verified access token.
func (s *AuthService) CurrentUser(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.Store.Users().GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return &user, nil
}

// ResendVerification issues a fresh verification token for an unverified
// account. Unknown and already verified emails are accepted silently.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.Store.Users().GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user.EmailVerified {
		return nil
	}

	token, err := s.OneTime.CreateVerificationToken(ctx, s.Store, user.ID)
	if err != nil {
		return err
	}
	s.Notifier.VerificationRequested(ctx, user, token)
	return nil
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) VerificationRequested(context.Context, domain.User, string)  {}
func (NopNotifier) PasswordResetRequested(context.Context, domain.User, string) {}

var _ Notifier = NopNotifier{}
