package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/authify/internal/auth/domain"
	"github.com/aussiebroadwan/authify/internal/auth/store"
	"github.com/aussiebroadwan/authify/pkg/idx"
)

type RolesService struct {
	Store store.Store
}

// EnsureDefaults creates the USER and ADMIN roles if they don't exist yet.
// Safe to run on every start and from several instances at once.
func (s *RolesService) EnsureDefaults(ctx context.Context) error {
	now := time.Now().UTC()
	for _, name := range domain.DefaultRoles {
		role := domain.Role{ID: idx.NewAt(now).String(), Name: name, CreatedAt: now}
		if err := s.Store.Roles().EnsureRole(ctx, role); err != nil {
			return fmt.Errorf("ensure role %s: %w", name, err)
		}
	}
	return nil
}

// ListAll returns all roles in the system.
func (s *RolesService) ListAll(ctx context.Context) ([]domain.Role, error) {
	return s.Store.Roles().ListRoles(ctx)
}
