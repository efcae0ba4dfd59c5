package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role names seeded at bootstrap.
const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// Permission strings referenced by route guards.
const (
	PermManageAdmins   = "manageAdmins"
	PermGetAdmins      = "getAdmins"
	PermUpdateProfile  = "updateProfile"
	PermChangePassword = "changePassword"
	PermManageRoles    = "manageRoles"
)

// Role maps a role name to its permission set. Read-mostly: written only at
// bootstrap seeding or by explicit role management.
type Role struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SeedRoles returns the roles inserted when the roles table is empty.
func SeedRoles() []Role {
	return []Role{
		{
			ID:   uuid.New(),
			Name: RoleSuperAdmin,
			Permissions: []string{
				PermManageAdmins, PermGetAdmins, PermUpdateProfile,
				PermChangePassword, PermManageRoles,
			},
		},
		{
			ID:          uuid.New(),
			Name:        RoleAdmin,
			Permissions: []string{PermUpdateProfile, PermChangePassword},
		},
	}
}
