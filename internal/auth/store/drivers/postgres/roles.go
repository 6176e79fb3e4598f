package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/authify/internal/auth/domain"
)

type rolesRepo struct {
	q querier
}

func (r *rolesRepo) EnsureRole(ctx context.Context, role domain.Role) error {
	const op = "postgres.EnsureRole"

	if role.CreatedAt.IsZero() {
		role.CreatedAt = time.Now().UTC()
	}
	_, err := r.q.Exec(ctx,
		`INSERT INTO roles (id, name, created_at) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`,
		role.ID, string(role.Name), role.CreatedAt)
	return wrap(op, err)
}

func (r *rolesRepo) ListRoles(ctx context.Context) ([]domain.Role, error) {
	const op = "postgres.ListRoles"

	rows, err := r.q.Query(ctx, `SELECT id, name, created_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var out []domain.Role
	for rows.Next() {
		var (
			role domain.Role
			name string
		)
		if err := rows.Scan(&role.ID, &name, &role.CreatedAt); err != nil {
			return nil, wrap(op, err)
		}
		role.Name = domain.RoleName(name)
		role.CreatedAt = role.CreatedAt.UTC()
		out = append(out, role)
	}
	return out, wrap(op, rows.Err())
}

func (r *rolesRepo) AssignRole(ctx context.Context, userID string, role domain.RoleName) error {
	const op = "postgres.AssignRole"

	var roleID string
	if err := r.q.QueryRow(ctx, `SELECT id FROM roles WHERE name = $1`, string(role)).Scan(&roleID); err != nil {
		return wrap(op, err)
	}

	_, err := r.q.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, roleID)
	return wrap(op, err)
}

func (r *rolesRepo) ListUserRoles(ctx context.Context, userID string) ([]domain.RoleName, error) {
	const op = "postgres.ListUserRoles"

	rows, err := r.q.Query(ctx, `
		SELECT r.name FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name`, userID)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var out []domain.RoleName
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, domain.RoleName(name))
	}
	return out, wrap(op, rows.Err())
}
