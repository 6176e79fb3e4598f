package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/authify/internal/auth/domain"
	"github.com/aussiebroadwan/authify/internal/auth/store"
)

type usersRepo struct {
	q querier
}

const userColumns = `id, email, password_hash, first_name, last_name,
	email_verified, tfa_enabled, tfa_secret, created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getUser(ctx, "postgres.GetUserByID", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getUser(ctx, "postgres.GetUserByEmail", `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *usersRepo) getUser(ctx context.Context, op, query, arg string) (domain.User, error) {
	var u domain.User
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.EmailVerified, &u.TFAEnabled, &u.TFASecret, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, wrap(op, err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()

	roles, err := (&rolesRepo{q: r.q}).ListUserRoles(ctx, u.ID)
	if err != nil {
		return domain.User{}, err
	}
	u.Roles = roles
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	const op = "postgres.CreateUser"

	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name,
			email_verified, tfa_enabled, tfa_secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName,
		u.EmailVerified, u.TFAEnabled, u.TFASecret, u.CreatedAt, now,
	)
	return wrap(op, err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	return r.updateOne(ctx, "postgres.UpdatePasswordHash",
		`UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`, newHash, userID)
}

func (r *usersRepo) MarkEmailVerified(ctx context.Context, userID string) error {
	return r.updateOne(ctx, "postgres.MarkEmailVerified",
		`UPDATE users SET email_verified = TRUE, updated_at = now() WHERE id = $1`, userID)
}

func (r *usersRepo) SetTFASecret(ctx context.Context, userID, secret string) error {
	return r.updateOne(ctx, "postgres.SetTFASecret",
		`UPDATE users SET tfa_secret = $1, tfa_enabled = FALSE, updated_at = now() WHERE id = $2`, secret, userID)
}

func (r *usersRepo) EnableTFA(ctx context.Context, userID, secret string) error {
	return r.updateOne(ctx, "postgres.EnableTFA",
		`UPDATE users SET tfa_enabled = TRUE, updated_at = now() WHERE id = $1 AND tfa_secret = $2`, userID, secret)
}

func (r *usersRepo) DisableTFA(ctx context.Context, userID string) error {
	return r.updateOne(ctx, "postgres.DisableTFA",
		`UPDATE users SET tfa_enabled = FALSE, tfa_secret = NULL, updated_at = now() WHERE id = $1`, userID)
}

func (r *usersRepo) updateOne(ctx context.Context, op, query string, args ...interface{}) error {
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return wrap(op, err)
	}
	if tag.RowsAffected() == 0 {
		return wrap(op, store.ErrNotFound)
	}
	return nil
}
