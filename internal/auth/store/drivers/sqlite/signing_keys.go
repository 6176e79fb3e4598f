package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/authify/internal/auth/domain"
)

type signingKeysRepo struct {
	db dbtx
}

func (r *signingKeysRepo) CreateSigningKey(ctx context.Context, key domain.SigningKey) error {
	var expiresAt sql.NullInt64
	if key.ExpiresAt != nil {
		expiresAt = sql.NullInt64{Int64: toMillis(*key.ExpiresAt), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO signing_keys (kid, algorithm, private_key_encrypted, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		key.Kid, key.Algorithm, key.PrivateKeyEncrypted, toMillis(key.CreatedAt), expiresAt)
	return mapConstraint(err)
}

func (r *signingKeysRepo) ListSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kid, algorithm, private_key_encrypted, created_at, retired_at, expires_at
		FROM signing_keys
		WHERE expires_at IS NULL OR expires_at > ?
		ORDER BY created_at, kid`, toMillis(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SigningKey
	for rows.Next() {
		var (
			k                    domain.SigningKey
			createdAt            int64
			retiredAt, expiresAt sql.NullInt64
		)
		if err := rows.Scan(&k.Kid, &k.Algorithm, &k.PrivateKeyEncrypted, &createdAt, &retiredAt, &expiresAt); err != nil {
			return nil, err
		}
		k.CreatedAt = fromMillis(createdAt)
		k.RetiredAt = mapNullMillis(retiredAt)
		k.ExpiresAt = mapNullMillis(expiresAt)
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r *signingKeysRepo) RetireSigningKey(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE signing_keys SET retired_at = ?, expires_at = ?
		WHERE kid = ? AND retired_at IS NULL`,
		toMillis(retiredAt), toMillis(expiresAt), kid)
	return err
}

func (r *signingKeysRepo) DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM signing_keys WHERE expires_at IS NOT NULL AND expires_at < ?`, toMillis(now)))
}
