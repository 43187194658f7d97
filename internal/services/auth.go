package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dimitrije/vericheck-api/internal/events"
	"github.com/dimitrije/vericheck-api/internal/metrics"
	"github.com/dimitrije/vericheck-api/internal/models"
	"github.com/google/uuid"
)

const (
	minPasswordLength = 6
	// bcrypt ignores input past 72 bytes and x/crypto rejects it outright.
	maxPasswordBytes = 72

	publishTimeout = 10 * time.Second
)

// UserStore is the persistence AuthService needs. *UserService is the Postgres implementation.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, nu NewUser) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, ch ProfileChanges) (*models.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	LinkGoogle(ctx context.Context, id uuid.UUID, googleID string, provider models.AuthProvider) (*models.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, active bool) (*models.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID) (time.Time, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ExistsWithEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	EmailTaken(ctx context.Context, email string, excludeID uuid.UUID) (bool, error)
	UsernameTaken(ctx context.Context, username string, excludeID uuid.UUID) (bool, error)
	SuperAdminExists(ctx context.Context) (bool, error)
	CountByRole(ctx context.Context, role models.Role) (int, error)
}

// Mailer sends account notices. *EmailService implements it.
type Mailer interface {
	SendAdminWelcome(to, name string) error
	SendStatusChanged(to, name string, active bool) error
}

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type GoogleInput struct {
	Email     string
	GoogleID  string
	Username  string
	FirstName string
	LastName  string
}

// ProfileInput is a partial update. Nil or blank fields keep the stored value.
type ProfileInput struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
}

type SuperAdminSeed struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type AuthResult struct {
	Token     string
	ExpiresIn int64
	User      *models.User
}

type AuthService struct {
	users   UserStore
	hasher  *PasswordHasher
	tokens  *JWTService
	events  events.Publisher
	metrics metrics.Recorder
	mailer  Mailer

	// Events and mail go out here so a stalled broker or SMTP server never holds a request.
	outbox *dispatcher
}

// NewAuthService wires the account rules. publisher, recorder and mailer may be nil.
func NewAuthService(users UserStore, hasher *PasswordHasher, tokens *JWTService, publisher events.Publisher, recorder metrics.Recorder, mailer Mailer) *AuthService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}
	return &AuthService{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		events:  publisher,
		metrics: recorder,
		mailer:  mailer,
		outbox:  newDispatcher(),
	}
}

// Close waits for queued events and notifications to be sent. Later ones are dropped.
func (s *AuthService) Close() {
	s.outbox.close()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1
}

func validatePassword(password, field string) error {
	if len(password) < minPasswordLength {
		return validationError(fmt.Sprintf("%s must be at least %d characters long", field, minPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return validationError(fmt.Sprintf("%s must be at most %d bytes long", field, maxPasswordBytes))
	}
	return nil
}

func validateRegistration(in RegisterInput) error {
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return validationError("username, email, and password are required")
	}
	if !validEmail(in.Email) {
		return validationError("please enter a valid email")
	}
	return validatePassword(in.Password, "password")
}

// blankToNil trims *s and treats an empty result as absent.
func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func (s *AuthService) publish(ctx context.Context, evt events.Event) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	// The request context is cancelled once the response is written.
	ctx = context.WithoutCancel(ctx)
	s.outbox.submit("event "+evt.Type, func() {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := s.events.Publish(ctx, evt); err != nil {
			log.Printf("events: failed to publish %s for user %s: %v", evt.Type, evt.UserID, err)
		}
	})
}

func userEvent(eventType string, user *models.User, actor *models.User) events.Event {
	evt := events.Event{
		Type:   eventType,
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	}
	if actor != nil {
		id := actor.ID
		evt.ActorID = &id
	}
	return evt
}

// Register creates an active local account with role user. No token is issued.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	user, err := s.createLocalUser(ctx, in, models.RoleUser)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordUserMutation("register")
	s.publish(ctx, userEvent(events.UserRegistered, user, nil))
	return user, nil
}

func (s *AuthService) createLocalUser(ctx context.Context, in RegisterInput, role models.Role) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if err := validateRegistration(in); err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsWithEmailOrUsername(ctx, in.Email, in.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, ErrDuplicateUser
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return s.users.Create(ctx, NewUser{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: &hash,
		AuthProvider: models.ProviderLocal,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         role,
		IsActive:     true,
	})
}

// Login checks existence, then active status, then the password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		s.metrics.RecordAuthAttempt(metrics.MethodLocal, metrics.ResultInvalidInput)
		return nil, validationError("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.metrics.RecordAuthAttempt(metrics.MethodLocal, metrics.ResultInvalidCredentials)
			return nil, ErrInvalidCredentials
		}
		s.metrics.RecordAuthAttempt(metrics.MethodLocal, metrics.ResultError)
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !user.IsActive {
		s.metrics.RecordAuthAttempt(metrics.MethodLocal, metrics.ResultDeactivated)
		return nil, ErrAccountDeactivated
	}

	if !user.HasPassword() || !s.hasher.Verify(*user.PasswordHash, password) {
		s.metrics.RecordAuthAttempt(metrics.MethodLocal, metrics.ResultInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	return s.startSession(ctx, user, metrics.MethodLocal)
}

// GoogleSignIn upserts by email. Existing accounts get google_id linked once and keep their provider.
func (s *AuthService) GoogleSignIn(ctx context.Context, in GoogleInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	in.GoogleID = strings.TrimSpace(in.GoogleID)
	if in.Email == "" || in.GoogleID == "" {
		s.metrics.RecordAuthAttempt(metrics.MethodGoogle, metrics.ResultInvalidInput)
		return nil, validationError("email and googleId are required")
	}
	if !validEmail(in.Email) {
		s.metrics.RecordAuthAttempt(metrics.MethodGoogle, metrics.ResultInvalidInput)
		return nil, validationError("please enter a valid email")
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		user, err = s.createGoogleUser(ctx, in)
		if err != nil {
			s.metrics.RecordAuthAttempt(metrics.MethodGoogle, metrics.ResultError)
			return nil, err
		}
	case err != nil:
		s.metrics.RecordAuthAttempt(metrics.MethodGoogle, metrics.ResultError)
		return nil, fmt.Errorf("failed to load user: %w", err)
	case user.GoogleID == nil:
		provider := user.AuthProvider
		if provider == "" {
			provider = models.ProviderLocal
		}
		user, err = s.users.LinkGoogle(ctx, user.ID, in.GoogleID, provider)
		if err != nil {
			s.metrics.RecordAuthAttempt(metrics.MethodGoogle, metrics.ResultError)
			return nil, fmt.Errorf("failed to link google account: %w", err)
		}
		s.metrics.RecordUserMutation("google_linked")
		s.publish(ctx, userEvent(events.UserGoogleLinked, user, nil))
	}

	if !user.IsActive {
		s.metrics.RecordAuthAttempt(metrics.MethodGoogle, metrics.ResultDeactivated)
		return nil, ErrAccountDeactivated
	}

	return s.startSession(ctx, user, metrics.MethodGoogle)
}

func (s *AuthService) createGoogleUser(ctx context.Context, in GoogleInput) (*models.User, error) {
	base := strings.TrimSpace(in.Username)
	if base == "" {
		base, _, _ = strings.Cut(in.Email, "@")
	}
	if base == "" {
		base = "user"
	}

	username := base
	taken, err := s.users.UsernameTaken(ctx, username, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if taken {
		username = fmt.Sprintf("%s_%s", base, strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	}

	googleID := in.GoogleID
	user, err := s.users.Create(ctx, NewUser{
		Username:     username,
		Email:        in.Email,
		AuthProvider: models.ProviderGoogle,
		GoogleID:     &googleID,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         models.RoleUser,
		IsActive:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google user: %w", err)
	}

	s.metrics.RecordUserMutation("register")
	evt := userEvent(events.UserRegistered, user, nil)
	evt.Data = map[string]string{"provider": string(models.ProviderGoogle)}
	s.publish(ctx, evt)
	return user, nil
}

func (s *AuthService) startSession(ctx context.Context, user *models.User, method string) (*AuthResult, error) {
	lastLogin, err := s.users.TouchLastLogin(ctx, user.ID)
	if err != nil {
		s.metrics.RecordAuthAttempt(method, metrics.ResultError)
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.LastLogin = &lastLogin

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.metrics.RecordAuthAttempt(method, metrics.ResultError)
		return nil, err
	}

	s.metrics.RecordAuthAttempt(method, metrics.ResultSuccess)
	s.metrics.RecordTokenIssued(method)
	evt := userEvent(events.UserLoggedIn, user, nil)
	evt.Data = map[string]string{"method": method}
	s.publish(ctx, evt)

	return &AuthResult{
		Token:     token,
		ExpiresIn: int64(s.tokens.Expiry().Seconds()),
		User:      user,
	}, nil
}

// UpdateProfile changes email and names. Username is only editable through UpdateSuperAdminProfile.
func (s *AuthService) UpdateProfile(ctx context.Context, user *models.User, in ProfileInput) (*models.User, error) {
	in.Username = nil
	return s.updateProfile(ctx, user, in)
}

func (s *AuthService) UpdateSuperAdminProfile(ctx context.Context, user *models.User, in ProfileInput) (*models.User, error) {
	return s.updateProfile(ctx, user, in)
}

func (s *AuthService) updateProfile(ctx context.Context, user *models.User, in ProfileInput) (*models.User, error) {
	changes := ProfileChanges{
		FirstName: blankToNil(in.FirstName),
		LastName:  blankToNil(in.LastName),
	}

	if username := blankToNil(in.Username); username != nil && *username != user.Username {
		taken, err := s.users.UsernameTaken(ctx, *username, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check username: %w", err)
		}
		if taken {
			return nil, ErrUsernameTaken
		}
		changes.Username = username
	}

	if email := blankToNil(in.Email); email != nil {
		normalized := normalizeEmail(*email)
		if !validEmail(normalized) {
			return nil, validationError("please enter a valid email")
		}
		if normalized != user.Email {
			taken, err := s.users.EmailTaken(ctx, normalized, user.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to check email: %w", err)
			}
			if taken {
				return nil, ErrEmailTaken
			}
			changes.Email = &normalized
		}
	}

	updated, err := s.users.UpdateProfile(ctx, user.ID, changes)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordUserMutation("profile_updated")
	s.publish(ctx, userEvent(events.UserProfileUpdated, updated, nil))
	return updated, nil
}

// ChangePassword is refused for any account tied to Google, even one that also has a local password.
func (s *AuthService) ChangePassword(ctx context.Context, user *models.User, current, next string) error {
	if user.IsFederated() {
		return ErrFederatedAccount
	}
	if current == "" || next == "" {
		return validationError("current password and new password are required")
	}
	if err := validatePassword(next, "new password"); err != nil {
		return err
	}
	if !user.HasPassword() || !s.hasher.Verify(*user.PasswordHash, current) {
		return ErrInvalidCurrentPassword
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	s.metrics.RecordUserMutation("password_changed")
	s.publish(ctx, userEvent(events.UserPasswordChanged, user, nil))
	return nil
}

func (s *AuthService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

// CreateAdmin applies the same validation and uniqueness rules as Register.
func (s *AuthService) CreateAdmin(ctx context.Context, actor *models.User, in RegisterInput) (*models.User, error) {
	user, err := s.createLocalUser(ctx, in, models.RoleAdmin)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordUserMutation("admin_created")
	s.publish(ctx, userEvent(events.UserRegistered, user, actor))
	to, name := user.Email, displayName(user)
	s.notify(func(m Mailer) error { return m.SendAdminWelcome(to, name) })
	return user, nil
}

// ChangeRole validates the role before looking up the target.
func (s *AuthService) ChangeRole(ctx context.Context, actor *models.User, targetID uuid.UUID, role string) (*models.User, error) {
	newRole, ok := models.ParseRole(role)
	if !ok {
		return nil, ErrInvalidRole
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if target.Role == models.RoleSuperAdmin && newRole != models.RoleSuperAdmin {
		count, err := s.users.CountByRole(ctx, models.RoleSuperAdmin)
		if err != nil {
			return nil, fmt.Errorf("failed to count super admins: %w", err)
		}
		if count <= 1 {
			return nil, ErrLastSuperAdmin
		}
	}

	updated, err := s.users.UpdateRole(ctx, target.ID, newRole)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordUserMutation("role_changed")
	evt := userEvent(events.UserRoleChanged, updated, actor)
	evt.Data = map[string]string{"previousRole": string(target.Role)}
	s.publish(ctx, evt)
	return updated, nil
}

// SetStatus lets admins toggle accounts, except that only a super admin may touch a super admin.
func (s *AuthService) SetStatus(ctx context.Context, actor *models.User, targetID uuid.UUID, active bool) (*models.User, error) {
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if target.Role == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin {
		return nil, ErrCannotModifySuperAdmin
	}

	updated, err := s.users.UpdateStatus(ctx, target.ID, active)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordUserMutation("status_changed")
	evt := userEvent(events.UserStatusChanged, updated, actor)
	evt.Data = map[string]string{"isActive": fmt.Sprintf("%t", active)}
	s.publish(ctx, evt)
	if target.IsActive != active {
		to, name := updated.Email, displayName(updated)
		s.notify(func(m Mailer) error { return m.SendStatusChanged(to, name, active) })
	}
	return updated, nil
}

// DeleteUser hard-deletes the target and returns the row as it was.
func (s *AuthService) DeleteUser(ctx context.Context, actor *models.User, targetID uuid.UUID) (*models.User, error) {
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if target.ID == actor.ID {
		return nil, ErrCannotDeleteSelf
	}
	if target.Role == models.RoleSuperAdmin {
		return nil, ErrCannotDeleteSuperAdmin
	}

	if err := s.users.Delete(ctx, target.ID); err != nil {
		return nil, err
	}

	s.metrics.RecordUserMutation("deleted")
	s.publish(ctx, userEvent(events.UserDeleted, target, actor))
	return target, nil
}

// BootstrapSuperAdmin creates the first super admin. It does nothing once any super admin exists.
func (s *AuthService) BootstrapSuperAdmin(ctx context.Context, seed SuperAdminSeed) (bool, error) {
	exists, err := s.users.SuperAdminExists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check for super admin: %w", err)
	}
	if exists {
		return false, nil
	}

	user, err := s.createLocalUser(ctx, RegisterInput(seed), models.RoleSuperAdmin)
	if err != nil {
		return false, err
	}

	s.metrics.RecordUserMutation("super_admin_bootstrapped")
	s.publish(ctx, userEvent(events.SuperAdminBootstrapped, user, nil))
	return true, nil
}

func (s *AuthService) notify(send func(Mailer) error) {
	if s.mailer == nil {
		return
	}
	mailer := s.mailer
	s.outbox.submit("email notification", func() {
		if err := send(mailer); err != nil {
			log.Printf("email: failed to send notification: %v", err)
		}
	})
}

func displayName(u *models.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}
