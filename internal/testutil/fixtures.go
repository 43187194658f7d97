package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/dimitrije/vericheck-api/internal/models"
	"github.com/dimitrije/vericheck-api/internal/services"
)

// DefaultPassword is the plain-text password fixtures are created with.
const DefaultPassword = "password123"

// Fixtures provides factory methods for creating test users in any UserStore
type Fixtures struct {
	store   services.UserStore
	hasher  *services.PasswordHasher
	counter int
}

func NewFixtures(store services.UserStore) *Fixtures {
	return &Fixtures{store: store, hasher: TestPasswordHasher()}
}

// UserOption configures a test user before it is stored
type UserOption func(*services.NewUser)

// CreateUser stores an active local user with DefaultPassword unless options say otherwise
func (f *Fixtures) CreateUser(t *testing.T, opts ...UserOption) *models.User {
	t.Helper()
	f.counter++

	hash, err := f.hasher.Hash(DefaultPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	nu := services.NewUser{
		Username:     fmt.Sprintf("user%d", f.counter),
		Email:        fmt.Sprintf("user%d@example.com", f.counter),
		PasswordHash: &hash,
		AuthProvider: models.ProviderLocal,
		FirstName:    "Test",
		LastName:     fmt.Sprintf("User %d", f.counter),
		Role:         models.RoleUser,
		IsActive:     true,
	}
	for _, opt := range opts {
		opt(&nu)
	}

	user, err := f.store.Create(context.Background(), nu)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func WithEmail(email string) UserOption {
	return func(u *services.NewUser) {
		u.Email = email
	}
}

func WithUsername(username string) UserOption {
	return func(u *services.NewUser) {
		u.Username = username
	}
}

func WithRole(role models.Role) UserOption {
	return func(u *services.NewUser) {
		u.Role = role
	}
}

// Inactive creates the user deactivated
func Inactive() UserOption {
	return func(u *services.NewUser) {
		u.IsActive = false
	}
}

// WithGoogle makes a Google-only account without a password
func WithGoogle(googleID string) UserOption {
	return func(u *services.NewUser) {
		u.AuthProvider = models.ProviderGoogle
		u.GoogleID = &googleID
		u.PasswordHash = nil
	}
}
