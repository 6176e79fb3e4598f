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
	"github.com/aussiebroadwan/authify/pkg/jwtx"
	"github.com/aussiebroadwan/authify/pkg/slogx"
	"go.opentelemetry.io/otel/attribute"
)

// TokenService mints and checks access and refresh tokens. Access tokens
// are verified without touching the store; refresh tokens are opaque and
// only their fingerprint is stored.
type TokenService struct {
	Store      store.Store
	KeyManager *jwtx.KeyManager

	// RotateRefreshTokens swaps the refresh token on every use. Off by
	// default: a refresh token is reusable until it expires or the user logs
	// out.
	RotateRefreshTokens bool

	// Now is overridable in tests.
	Now func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// IssueAccessToken signs a 15 minute JWT whose subject is the user's email.
// tfa records whether a second factor was part of the session.
func (s *TokenService) IssueAccessToken(ctx context.Context, user domain.User, tfa bool) (string, error) {
	claims := jwtx.NewAccessClaims(user.Email, s.KeyManager.Issuer(), user.RoleStrings(), tfa, jwtx.AccessTokenTTL, s.now())
	token, err := s.KeyManager.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return token, nil
}

// VerifyAccessToken checks signature, issuer and expiry. Expired tokens
// return ErrTokenExpired, anything else wrong returns ErrInvalidToken.
func (s *TokenService) VerifyAccessToken(ctx context.Context, token string) (*jwtx.Claims, error) {
	claims, err := s.KeyManager.Verify(ctx, token)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwtx.ErrExpired):
		return nil, ErrTokenExpired
	default:
		slogx.FromContext(ctx).Debug("access token rejected", slog.String("reason", err.Error()))
		return nil, ErrInvalidToken
	}
}

// IssueRefreshToken creates a 7 day refresh token for userID.
func (s *TokenService) IssueRefreshToken(ctx context.Context, userID string) (string, error) {
	return s.issueRefreshToken(ctx, s.Store.RefreshTokens(), userID)
}

func (s *TokenService) issueRefreshToken(ctx context.Context, repo store.RefreshTokens, userID string) (string, error) {
	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	now := s.now()
	err = repo.CreateRefreshToken(ctx, domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    userID,
		TokenHash: cryptox.FingerprintToken(raw),
		ExpiresAt: now.Add(domain.RefreshTokenTTL),
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return raw, nil
}

// ValidateRefreshToken resolves a presented refresh token. An expired token
// is deleted on the spot and reported as ErrTokenExpired.
func (s *TokenService) ValidateRefreshToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	l := slogx.FromContext(ctx)

	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	if rt.IsExpired(s.now()) {
		if _, err := s.Store.RefreshTokens().DeleteRefreshToken(ctx, rt.ID); err != nil {
			return nil, fmt.Errorf("delete expired refresh token: %w", err)
		}
		l.Info("expired refresh token purged", slog.String("token", cryptox.ShortFingerprint(token)))
		return nil, ErrTokenExpired
	}
	return &rt, nil
}

// RevokeAllForToken deletes every refresh token belonging to the owner of
// token. An unknown token is not an error.
func (s *TokenService) RevokeAllForToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	ctx, span := startSpan(ctx, "RevokeAllForToken")

	var revoked int64
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		rt, err := tx.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(token))
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		revoked, err = tx.RefreshTokens().DeleteUserRefreshTokens(ctx, rt.UserID)
		return err
	})
	span.SetAttributes(attribute.Int64("auth.revoked", revoked))
	endSpan(span, err)
	if err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	slogx.FromContext(ctx).Info("refresh tokens revoked", slog.Int64("count", revoked))
	return nil
}

// RotateRefreshToken replaces old with a new token for the same user. Only
// one of several concurrent rotations of the same token succeeds; the rest
// get ErrInvalidToken.
func (s *TokenService) RotateRefreshToken(ctx context.Context, old string) (string, error) {
	rt, err := s.ValidateRefreshToken(ctx, old)
	if err != nil {
		return "", err
	}

	var fresh string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		deleted, err := tx.RefreshTokens().DeleteRefreshToken(ctx, rt.ID)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrInvalidToken
		}
		fresh, err = s.issueRefreshToken(ctx, tx.RefreshTokens(), rt.UserID)
		return err
	})
	if err != nil {
		return "", err
	}
	return fresh, nil
}
