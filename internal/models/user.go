package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a platform-wide permission level. Exactly one per user.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// roleRank is the total order used for every "at least" check.
var roleRank = map[Role]int{
	RoleUser:       1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// Rank returns the role's position in the hierarchy, or 0 for unknown roles.
func (r Role) Rank() int {
	return roleRank[r]
}

func (r Role) Valid() bool {
	return r.Rank() > 0
}

// AtLeast reports whether r is min or higher. Unknown roles never satisfy it.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && r.Rank() >= min.Rank()
}

func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

type AuthProvider string

const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google"
)

type User struct {
	ID           uuid.UUID    `json:"id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	PasswordHash *string      `json:"-"`
	AuthProvider AuthProvider `json:"authProvider"`
	GoogleID     *string      `json:"googleId,omitempty"`
	FirstName    string       `json:"firstName"`
	LastName     string       `json:"lastName"`
	Role         Role         `json:"role"`
	IsActive     bool         `json:"isActive"`
	LastLogin    *time.Time   `json:"lastLogin,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// IsFederated is true for accounts that authenticate through Google, including
// local accounts that were later linked to a Google identity.
func (u *User) IsFederated() bool {
	return u.GoogleID != nil || u.AuthProvider == ProviderGoogle
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
