package domain

import (
	"time"

	"github.com/google/uuid"
)

// Admin status values.
const (
	StatusInactive int16 = 0
	StatusActive   int16 = 1
)

// Admin represents an admins row: the identity and credential record of an
// administrative user scoped to a school tenant.
//
// PasswordHash and the TOTP secrets never serialize; responses go through
// Sanitized so credential material cannot ride along.
type Admin struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Phone             string    `json:"phone,omitempty"`
	PasswordHash      string    `json:"-"`
	Address           string    `json:"address,omitempty"`
	State             string    `json:"state,omitempty"`
	Country           string    `json:"country,omitempty"`
	City              string    `json:"city,omitempty"`
	Zipcode           string    `json:"zipcode,omitempty"`
	ProfilePhoto      string    `json:"profile_photo,omitempty"`
	Role              string    `json:"role"`
	Status            int16     `json:"status"`
	IsDeleted         bool      `json:"is_deleted"`
	SchoolID          uuid.UUID `json:"school_id"`
	TOTPSecret        string    `json:"-"`
	TOTPPendingSecret string    `json:"-"`
	TOTPEnabled       bool      `json:"totp_enabled"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Sanitized returns a copy with credential material zeroed.
func (a Admin) Sanitized() Admin {
	a.PasswordHash = ""
	a.TOTPSecret = ""
	a.TOTPPendingSecret = ""
	return a
}

// AdminUpdate carries a partial field merge for an admin row. Nil pointers
// mean "leave unchanged". SchoolID is deliberately absent: the tenant is
// immutable after creation.
type AdminUpdate struct {
	Name         *string
	Email        *string
	Phone        *string
	PasswordHash *string
	Address      *string
	State        *string
	Country      *string
	City         *string
	Zipcode      *string
	ProfilePhoto *string
	Role         *string
	Status       *int16
}

// IsZero reports whether the update would change nothing.
func (u AdminUpdate) IsZero() bool {
	return u.Name == nil && u.Email == nil && u.Phone == nil &&
		u.PasswordHash == nil && u.Address == nil && u.State == nil &&
		u.Country == nil && u.City == nil && u.Zipcode == nil &&
		u.ProfilePhoto == nil && u.Role == nil && u.Status == nil
}

// AdminQuery holds filters for listing admins within a tenant.
type AdminQuery struct {
	SchoolID uuid.UUID
	SearchBy string // case-insensitive name substring
	Status   *int16
	Page     int
	Limit    int
}

// AdminPage is a paginated list result, newest first.
type AdminPage struct {
	Results    []Admin `json:"results"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalCount int     `json:"total_count"`
}
