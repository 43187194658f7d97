package handlers

import (
	"context"

	"github.com/dimitrije/vericheck-api/internal/models"
	"github.com/dimitrije/vericheck-api/internal/services"
	"github.com/google/uuid"
)

// AuthServiceInterface defines the methods used by handlers from AuthService
type AuthServiceInterface interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	GoogleSignIn(ctx context.Context, in services.GoogleInput) (*services.AuthResult, error)
	UpdateProfile(ctx context.Context, user *models.User, in services.ProfileInput) (*models.User, error)
	UpdateSuperAdminProfile(ctx context.Context, user *models.User, in services.ProfileInput) (*models.User, error)
	ChangePassword(ctx context.Context, user *models.User, current, next string) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateAdmin(ctx context.Context, actor *models.User, in services.RegisterInput) (*models.User, error)
	ChangeRole(ctx context.Context, actor *models.User, targetID uuid.UUID, role string) (*models.User, error)
	SetStatus(ctx context.Context, actor *models.User, targetID uuid.UUID, active bool) (*models.User, error)
	DeleteUser(ctx context.Context, actor *models.User, targetID uuid.UUID) (*models.User, error)
}

var _ AuthServiceInterface = (*services.AuthService)(nil)
