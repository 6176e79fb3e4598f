package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/authify/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and a Tx-scoped Store can't open another transaction, which stops
// accidental transactions within transactions.
type Store interface {
	Users() Users
	Roles() Roles
	RefreshTokens() RefreshTokens
	ResetTokens() ResetTokens
	VerificationTokens() VerificationTokens
	SigningKeys() SigningKeys

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error

	// Driver names the backing database, as reported by /readyz.
	Driver() string
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user, roles included.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks a user up by normalised email, roles included.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID). Roles
	// are assigned separately. A taken email returns ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// MarkEmailVerified sets email_verified. Setting it twice is fine.
	MarkEmailVerified(ctx context.Context, userID string) error

	// SetTFASecret stores a freshly provisioned secret and clears tfa_enabled.
	SetTFASecret(ctx context.Context, userID, secret string) error

	// EnableTFA sets tfa_enabled only while tfa_secret still equals secret,
	// the value the caller verified a code against. Returns ErrNotFound when
	// the user is gone or the secret was cleared or replaced meanwhile.
	EnableTFA(ctx context.Context, userID, secret string) error

	// DisableTFA clears tfa_secret and tfa_enabled in one statement.
	DisableTFA(ctx context.Context, userID string) error
}

type Roles interface {
	// EnsureRole inserts the role if it doesn't exist yet.
	EnsureRole(ctx context.Context, r domain.Role) error

	// ListRoles returns every role, ordered by name.
	ListRoles(ctx context.Context) ([]domain.Role, error)

	// AssignRole links a user to a role by name. Assigning twice is a no-op.
	// An unknown role returns ErrNotFound.
	AssignRole(ctx context.Context, userID string, role domain.RoleName) error

	// ListUserRoles returns the user's role names, ordered by name.
	ListUserRoles(ctx context.Context, userID string) ([]domain.RoleName, error)
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by its fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// DeleteRefreshToken removes one token by id and reports whether it was
	// still there, so concurrent consumers can tell who won.
	DeleteRefreshToken(ctx context.Context, id string) (bool, error)

	// DeleteUserRefreshTokens removes every token of a user and reports how
	// many went.
	DeleteUserRefreshTokens(ctx context.Context, userID string) (int64, error)

	// DeleteExpiredRefreshTokens is housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type ResetTokens interface {
	// CreateResetToken stores a new password reset token.
	CreateResetToken(ctx context.Context, t domain.PasswordResetToken) error

	// GetResetTokenByHash returns the token by its fingerprint, used or not.
	GetResetTokenByHash(ctx context.Context, hash string) (domain.PasswordResetToken, error)

	// MarkResetTokenUsed flips used from 0 to 1. It reports false when the
	// token was already used (or is gone), so exactly one caller wins.
	MarkResetTokenUsed(ctx context.Context, id string) (bool, error)

	// DeleteStaleResetTokens is housekeeping: removes used or expired tokens.
	DeleteStaleResetTokens(ctx context.Context, now time.Time) (int64, error)
}

type VerificationTokens interface {
	// CreateVerificationToken stores a new email verification token.
	CreateVerificationToken(ctx context.Context, t domain.EmailVerificationToken) error

	// GetVerificationTokenByHash returns the token by its fingerprint.
	GetVerificationTokenByHash(ctx context.Context, hash string) (domain.EmailVerificationToken, error)

	// DeleteExpiredVerificationTokens is housekeeping.
	DeleteExpiredVerificationTokens(ctx context.Context, now time.Time) (int64, error)
}

type SigningKeys interface {
	// CreateSigningKey stores a new signing key with encrypted private key material.
	CreateSigningKey(ctx context.Context, key domain.SigningKey) error

	// ListSigningKeys returns every key that hasn't expired, oldest first.
	// Retired keys are included so their tokens still verify.
	ListSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error)

	// RetireSigningKey stops a key from signing and schedules its deletion.
	// Retiring an already retired key keeps the original schedule.
	RetireSigningKey(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error

	// DeleteExpiredSigningKeys is housekeeping.
	DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error)
}
