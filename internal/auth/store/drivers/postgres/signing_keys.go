package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/authify/internal/auth/domain"
)

type signingKeysRepo struct {
	q querier
}

func (r *signingKeysRepo) CreateSigningKey(ctx context.Context, key domain.SigningKey) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO signing_keys (kid, algorithm, private_key_encrypted, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`,
		key.Kid, key.Algorithm, key.PrivateKeyEncrypted, key.CreatedAt, key.ExpiresAt)
	return wrap("postgres.CreateSigningKey", err)
}

func (r *signingKeysRepo) ListSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error) {
	const op = "postgres.ListSigningKeys"

	rows, err := r.q.Query(ctx, `
		SELECT kid, algorithm, private_key_encrypted, created_at, retired_at, expires_at
		FROM signing_keys
		WHERE expires_at IS NULL OR expires_at > $1
		ORDER BY created_at, kid`, now)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var out []domain.SigningKey
	for rows.Next() {
		var k domain.SigningKey
		if err := rows.Scan(&k.Kid, &k.Algorithm, &k.PrivateKeyEncrypted, &k.CreatedAt, &k.RetiredAt, &k.ExpiresAt); err != nil {
			return nil, wrap(op, err)
		}
		k.CreatedAt = k.CreatedAt.UTC()
		out = append(out, k)
	}
	return out, wrap(op, rows.Err())
}

func (r *signingKeysRepo) RetireSigningKey(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error {
	_, err := r.q.Exec(ctx, `
		UPDATE signing_keys SET retired_at = $1, expires_at = $2
		WHERE kid = $3 AND retired_at IS NULL`,
		retiredAt, expiresAt, kid)
	return wrap("postgres.RetireSigningKey", err)
}

func (r *signingKeysRepo) DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx,
		`DELETE FROM signing_keys WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, wrap("postgres.DeleteExpiredSigningKeys", err)
	}
	return tag.RowsAffected(), nil
}
