package domain

import (
	"errors"
	"time"
)

// User is an actor identity, owned independently of any organization.
// OrganizationID is nil for unaffiliated users; a non-nil value implies
// exactly one active member entry in that organization.
type User struct {
	ID             string
	Email          string
	Name           string
	Role           Role
	OrganizationID *string
	PasswordHash   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ErrInvalidEmail is returned for empty or malformed email addresses.
var ErrInvalidEmail = errors.New("invalid email address")

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleAttorney Role = "attorney"
)

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Role != RoleAdmin && u.Role != RoleAttorney {
		return errors.New("role must be admin or attorney")
	}
	return nil
}
