package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/authify/internal/auth/domain"
	"github.com/aussiebroadwan/authify/internal/auth/store"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, password_hash, first_name, last_name,
	email_verified, tfa_enabled, tfa_secret, created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *usersRepo) getUser(ctx context.Context, query string, arg string) (domain.User, error) {
	var (
		u                    domain.User
		secret               sql.NullString
		createdAt, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.EmailVerified, &u.TFAEnabled, &secret, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.TFASecret = mapNullString(secret)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)

	roles, err := (&rolesRepo{db: r.db}).ListUserRoles(ctx, u.ID)
	if err != nil {
		return domain.User{}, err
	}
	u.Roles = roles
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name,
			email_verified, tfa_enabled, tfa_secret, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName,
		u.EmailVerified, u.TFAEnabled, u.TFASecret, toMillis(u.CreatedAt), toMillis(now),
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	return r.updateOne(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, toMillis(time.Now()), userID)
}

func (r *usersRepo) MarkEmailVerified(ctx context.Context, userID string) error {
	return r.updateOne(ctx,
		`UPDATE users SET email_verified = 1, updated_at = ? WHERE id = ?`,
		toMillis(time.Now()), userID)
}

func (r *usersRepo) SetTFASecret(ctx context.Context, userID, secret string) error {
	return r.updateOne(ctx,
		`UPDATE users SET tfa_secret = ?, tfa_enabled = 0, updated_at = ? WHERE id = ?`,
		secret, toMillis(time.Now()), userID)
}

func (r *usersRepo) EnableTFA(ctx context.Context, userID, secret string) error {
	return r.updateOne(ctx,
		`UPDATE users SET tfa_enabled = 1, updated_at = ? WHERE id = ? AND tfa_secret = ?`,
		toMillis(time.Now()), userID, secret)
}

func (r *usersRepo) DisableTFA(ctx context.Context, userID string) error {
	return r.updateOne(ctx,
		`UPDATE users SET tfa_enabled = 0, tfa_secret = NULL, updated_at = ? WHERE id = ?`,
		toMillis(time.Now()), userID)
}

// updateOne runs an UPDATE expected to touch exactly one row.
func (r *usersRepo) updateOne(ctx context.Context, query string, args ...any) error {
	n, err := rowsAffected(r.db.ExecContext(ctx, query, args...))
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
