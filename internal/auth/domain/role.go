package domain

import "time"

// RoleName is one of the fixed roles. Roles are created at startup and never
// change afterwards.
type RoleName string

const (
	RoleUser  RoleName = "USER"
	RoleAdmin RoleName = "ADMIN"
)

// DefaultRoles are bootstrapped on every start.
var DefaultRoles = []RoleName{RoleUser, RoleAdmin}

type Role struct {
	ID        string
	Name      RoleName
	CreatedAt time.Time
}
