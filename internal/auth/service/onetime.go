package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/authify/internal/auth/domain"
	"github.com/aussiebroadwan/authify/internal/auth/store"
	"github.com/aussiebroadwan/authify/pkg/cryptox"
	"github.com/aussiebroadwan/authify/pkg/idx"
	"github.com/aussiebroadwan/authify/pkg/slogx"
	"go.opentelemetry.io/otel/attribute"
)

// OneTimeTokenService issues and consumes email verification and password
// reset tokens. Raw values only ever leave through the return value; the
// store keeps fingerprints.
type OneTimeTokenService struct {
	Store store.Store

	// Now is overridable in tests.
	Now func() time.Time
}

func (s *OneTimeTokenService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// CreateVerificationToken stores a 24 hour verification token for userID
// through st, which may be a transaction.
func (s *OneTimeTokenService) CreateVerificationToken(ctx context.Context, st store.Store, userID string) (string, error) {
	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	now := s.now()
	err = st.VerificationTokens().CreateVerificationToken(ctx, domain.EmailVerificationToken{
		ID:        idx.New().String(),
		UserID:    userID,
		TokenHash: cryptox.FingerprintToken(raw),
		ExpiresAt: now.Add(domain.VerificationTokenTTL),
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("store verification token: %w", err)
	}
	return raw, nil
}

// CreateResetToken stores a one hour password reset token for userID.
// Earlier reset tokens stay valid until used or expired.
func (s *OneTimeTokenService) CreateResetToken(ctx context.Context, userID string) (string, error) {
	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	now := s.now()
	err = s.Store.ResetTokens().CreateResetToken(ctx, domain.PasswordResetToken{
		ID:        idx.New().String(),
		UserID:    userID,
		TokenHash: cryptox.FingerprintToken(raw),
		ExpiresAt: now.Add(domain.ResetTokenTTL),
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return raw, nil
}

// ConsumeVerification marks the token owner's email as verified. The token
// is not deleted, so following the same link twice succeeds twice.
func (s *OneTimeTokenService) ConsumeVerification(ctx context.Context, token string) error {
	ctx, span := startSpan(ctx, "ConsumeVerification")
	var err error
	defer func() { endSpan(span, err) }()

	if token == "" {
		err = ErrInvalidToken
		return err
	}

	vt, err := s.Store.VerificationTokens().GetVerificationTokenByHash(ctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		err = ErrInvalidToken
		return err
	}
	if err != nil {
		return fmt.Errorf("lookup verification token: %w", err)
	}
	if vt.IsExpired(s.now()) {
		err = ErrTokenExpired
		return err
	}

	if err = s.Store.Users().MarkEmailVerified(ctx, vt.UserID); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}

	slogx.FromContext(ctx).Info("email verified", slog.String("user_id", vt.UserID))
	return nil
}

// ConsumeReset spends a reset token and installs newHash as the owner's
// password. All of the owner's refresh tokens go in the same transaction.
// Of two concurrent calls with the same token exactly one succeeds; the
// other gets ErrTokenUsed.
func (s *OneTimeTokenService) ConsumeReset(ctx context.Context, token, newHash string) (string, error) {
	ctx, span := startSpan(ctx, "ConsumeReset")

	if token == "" {
		endSpan(span, ErrInvalidToken)
		return "", ErrInvalidToken
	}

	var (
		userID  string
		revoked int64
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		rt, err := tx.ResetTokens().GetResetTokenByHash(ctx, cryptox.FingerprintToken(token))
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		if err != nil {
			return fmt.Errorf("lookup reset token: %w", err)
		}
		if rt.IsExpired(s.now()) {
			return ErrTokenExpired
		}
		if rt.Used {
			return ErrTokenUsed
		}

		won, err := tx.ResetTokens().MarkResetTokenUsed(ctx, rt.ID)
		if err != nil {
			return fmt.Errorf("mark reset token used: %w", err)
		}
		if !won {
			return ErrTokenUsed
		}

		if err := tx.Users().UpdatePasswordHash(ctx, rt.UserID, newHash); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if revoked, err = tx.RefreshTokens().DeleteUserRefreshTokens(ctx, rt.UserID); err != nil {
			return fmt.Errorf("revoke refresh tokens: %w", err)
		}
		userID = rt.UserID
		return nil
	})
	span.SetAttributes(attribute.Int64("auth.revoked", revoked))
	endSpan(span, err)
	if err != nil {
		return "", err
	}

	slogx.FromContext(ctx).Info("password reset",
		slog.String("user_id", userID),
		slog.Int64("sessions_revoked", revoked),
	)
	return userID, nil
}
