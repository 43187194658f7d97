package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/dimitrije/vericheck-api/internal/events"
	"github.com/dimitrije/vericheck-api/internal/models"
	"github.com/dimitrije/vericheck-api/internal/oauth"
	"github.com/dimitrije/vericheck-api/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockUserStore mocks services.UserStore. It also satisfies middleware.UserLookup.
type MockUserStore struct {
	mock.Mock
}

var _ services.UserStore = (*MockUserStore)(nil)

func userResult(args mock.Arguments) (*models.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return userResult(m.Called(ctx, id))
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return userResult(m.Called(ctx, email))
}

func (m *MockUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return userResult(m.Called(ctx, username))
}

func (m *MockUserStore) List(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserStore) Create(ctx context.Context, nu services.NewUser) (*models.User, error) {
	return userResult(m.Called(ctx, nu))
}

func (m *MockUserStore) UpdateProfile(ctx context.Context, id uuid.UUID, ch services.ProfileChanges) (*models.User, error) {
	return userResult(m.Called(ctx, id, ch))
}

func (m *MockUserStore) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	args := m.Called(ctx, id, hash)
	return args.Error(0)
}

func (m *MockUserStore) LinkGoogle(ctx context.Context, id uuid.UUID, googleID string, provider models.AuthProvider) (*models.User, error) {
	return userResult(m.Called(ctx, id, googleID, provider))
}

func (m *MockUserStore) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error) {
	return userResult(m.Called(ctx, id, role))
}

func (m *MockUserStore) UpdateStatus(ctx context.Context, id uuid.UUID, active bool) (*models.User, error) {
	return userResult(m.Called(ctx, id, active))
}

func (m *MockUserStore) TouchLastLogin(ctx context.Context, id uuid.UUID) (time.Time, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockUserStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserStore) ExistsWithEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	args := m.Called(ctx, email, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserStore) EmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, email, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserStore) UsernameTaken(ctx context.Context, username string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, username, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserStore) SuperAdminExists(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserStore) CountByRole(ctx context.Context, role models.Role) (int, error) {
	args := m.Called(ctx, role)
	return args.Int(0), args.Error(1)
}

// MockAuthService mocks the account operations the HTTP handlers call.
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, in services.RegisterInput) (*models.User, error) {
	return userResult(m.Called(ctx, in))
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*services.AuthResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AuthResult), args.Error(1)
}

func (m *MockAuthService) GoogleSignIn(ctx context.Context, in services.GoogleInput) (*services.AuthResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AuthResult), args.Error(1)
}

func (m *MockAuthService) UpdateProfile(ctx context.Context, user *models.User, in services.ProfileInput) (*models.User, error) {
	return userResult(m.Called(ctx, user, in))
}

func (m *MockAuthService) UpdateSuperAdminProfile(ctx context.Context, user *models.User, in services.ProfileInput) (*models.User, error) {
	return userResult(m.Called(ctx, user, in))
}

func (m *MockAuthService) ChangePassword(ctx context.Context, user *models.User, current, next string) error {
	args := m.Called(ctx, user, current, next)
	return args.Error(0)
}

func (m *MockAuthService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return userResult(m.Called(ctx, id))
}

func (m *MockAuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockAuthService) CreateAdmin(ctx context.Context, actor *models.User, in services.RegisterInput) (*models.User, error) {
	return userResult(m.Called(ctx, actor, in))
}

func (m *MockAuthService) ChangeRole(ctx context.Context, actor *models.User, targetID uuid.UUID, role string) (*models.User, error) {
	return userResult(m.Called(ctx, actor, targetID, role))
}

func (m *MockAuthService) SetStatus(ctx context.Context, actor *models.User, targetID uuid.UUID, active bool) (*models.User, error) {
	return userResult(m.Called(ctx, actor, targetID, active))
}

func (m *MockAuthService) DeleteUser(ctx context.Context, actor *models.User, targetID uuid.UUID) (*models.User, error) {
	return userResult(m.Called(ctx, actor, targetID))
}

// MockOAuthProvider mocks oauth.Provider
type MockOAuthProvider struct {
	mock.Mock
}

func (m *MockOAuthProvider) GetConsentURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*oauth.UserInfo, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oauth.UserInfo), args.Error(1)
}

func (m *MockOAuthProvider) Name() string {
	args := m.Called()
	return args.String(0)
}

// MockPublisher mocks events.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

// RecordingPublisher keeps every event it is handed.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *RecordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *RecordingPublisher) Close() error { return nil }

// Types returns the published event types in order.
func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}

// MockMailer mocks services.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendAdminWelcome(to, name string) error {
	return m.Called(to, name).Error(0)
}

func (m *MockMailer) SendStatusChanged(to, name string, active bool) error {
	return m.Called(to, name, active).Error(0)
}
