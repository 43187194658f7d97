package dto

import (
	"time"

	"github.com/google/uuid"
)

// UserResponse is the public view of an account. It never carries the password hash.
type UserResponse struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Role         string     `json:"role"`
	AuthProvider string     `json:"authProvider"`
	GoogleID     *string    `json:"googleId,omitempty"`
	IsActive     bool       `json:"isActive"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type UserEnvelope struct {
	User UserResponse `json:"user"`
}

type UserMessageResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

type UsersResponse struct {
	Users []UserResponse `json:"users"`
}

type DeleteUserResponse struct {
	Message     string       `json:"message"`
	DeletedUser UserResponse `json:"deletedUser"`
}

type UpdateProfileRequest struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

type UpdateStatusRequest struct {
	IsActive *bool `json:"isActive"`
}
