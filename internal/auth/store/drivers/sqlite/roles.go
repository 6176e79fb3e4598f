package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/authify/internal/auth/domain"
)

type rolesRepo struct {
	db dbtx
}

func (r *rolesRepo) EnsureRole(ctx context.Context, role domain.Role) error {
	if role.CreatedAt.IsZero() {
		role.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO roles (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING`,
		role.ID, string(role.Name), toMillis(role.CreatedAt))
	return err
}

func (r *rolesRepo) ListRoles(ctx context.Context) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Role
	for rows.Next() {
		var (
			role      domain.Role
			name      string
			createdAt int64
		)
		if err := rows.Scan(&role.ID, &name, &createdAt); err != nil {
			return nil, err
		}
		role.Name = domain.RoleName(name)
		role.CreatedAt = fromMillis(createdAt)
		out = append(out, role)
	}
	return out, rows.Err()
}

func (r *rolesRepo) AssignRole(ctx context.Context, userID string, role domain.RoleName) error {
	var roleID string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM roles WHERE name = ?`, string(role)).Scan(&roleID)
	if err != nil {
		return mapNotFound(err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		userID, roleID)
	return err
}

func (r *rolesRepo) ListUserRoles(ctx context.Context, userID string) ([]domain.RoleName, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.name FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = ?
		ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RoleName
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, domain.RoleName(name))
	}
	return out, rows.Err()
}
