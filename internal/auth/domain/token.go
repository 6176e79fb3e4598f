package domain

import "time"

// Fixed lifetimes of the opaque tokens.
const (
	RefreshTokenTTL      = 7 * 24 * time.Hour
	ResetTokenTTL        = time.Hour
	VerificationTokenTTL = 24 * time.Hour
)

// RefreshToken is the stored refresh token record. Only the fingerprint of
// the opaque value is persisted.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string // deterministic fingerprint (base64url SHA-256)
	ExpiresAt time.Time
	CreatedAt time.Time
}

// PasswordResetToken is single use: Used flips exactly once.
type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// EmailVerificationToken may be presented any number of times until it
// expires.
type EmailVerificationToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the token is past its expiry at now.
func (t *RefreshToken) IsExpired(now time.Time) bool { return now.After(t.ExpiresAt) }

func (t *PasswordResetToken) IsExpired(now time.Time) bool { return now.After(t.ExpiresAt) }

func (t *EmailVerificationToken) IsExpired(now time.Time) bool { return now.After(t.ExpiresAt) }
