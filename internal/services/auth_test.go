package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dimitrije/vericheck-api/internal/events"
	"github.com/dimitrije/vericheck-api/internal/models"
	"github.com/dimitrije/vericheck-api/internal/services"
	"github.com/dimitrije/vericheck-api/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	svc       *services.AuthService
	store     *testutil.MemoryUserStore
	fixtures  *testutil.Fixtures
	publisher *testutil.RecordingPublisher
	mailer    *testutil.MockMailer
}

func setupAuthService(t *testing.T) *authFixture {
	t.Helper()
	store := testutil.NewMemoryUserStore()
	publisher := &testutil.RecordingPublisher{}
	mailer := new(testutil.MockMailer)
	svc := services.NewAuthService(store, testutil.TestPasswordHasher(), testutil.TestJWTService(), publisher, nil, mailer)
	t.Cleanup(svc.Close)
	return &authFixture{
		svc:       svc,
		store:     store,
		fixtures:  testutil.NewFixtures(store),
		publisher: publisher,
		mailer:    mailer,
	}
}

// drain waits for queued events and mail. The service accepts no side effects afterwards.
func (f *authFixture) drain() {
	f.svc.Close()
}

func validRegistration() services.RegisterInput {
	return services.RegisterInput{
		Username:  "alice",
		Email:     "Alice@Example.com ",
		Password:  "secret1",
		FirstName: "Alice",
		LastName:  "Smith",
	}
}

func TestAuthService_Register(t *testing.T) {
	f := setupAuthService(t)

	user, err := f.svc.Register(context.Background(), validRegistration())

	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.Equal(t, models.ProviderLocal, user.AuthProvider)
	assert.True(t, user.IsActive)
	require.NotNil(t, user.PasswordHash)
	assert.NotEqual(t, "secret1", *user.PasswordHash)
	f.drain()
	assert.Equal(t, []string{events.UserRegistered}, f.publisher.Types())
}

func TestAuthService_Register_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*services.RegisterInput)
		msg    string
	}{
		{"missing username", func(in *services.RegisterInput) { in.Username = " " }, "username, email, and password are required"},
		{"missing email", func(in *services.RegisterInput) { in.Email = "" }, "username, email, and password are required"},
		{"missing password", func(in *services.RegisterInput) { in.Password = "" }, "username, email, and password are required"},
		{"short password", func(in *services.RegisterInput) { in.Password = "12345" }, "password must be at least 6 characters long"},
		{"email without at", func(in *services.RegisterInput) { in.Email = "alice.example.com" }, "please enter a valid email"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := setupAuthService(t)
			in := validRegistration()
			tc.mutate(&in)

			_, err := f.svc.Register(context.Background(), in)

			require.ErrorIs(t, err, services.ErrValidation)
			assert.Equal(t, tc.msg, services.ValidationMessage(err))
		})
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	f := setupAuthService(t)
	_, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	sameEmail := validRegistration()
	sameEmail.Username = "alice2"
	_, err = f.svc.Register(context.Background(), sameEmail)
	assert.ErrorIs(t, err, services.ErrDuplicateUser)

	sameUsername := validRegistration()
	sameUsername.Email = "other@example.com"
	_, err = f.svc.Register(context.Background(), sameUsername)
	assert.ErrorIs(t, err, services.ErrDuplicateUser)
}

func TestAuthService_Login(t *testing.T) {
	f := setupAuthService(t)
	user := f.fixtures.CreateUser(t, testutil.WithEmail("bob@example.com"))

	result, err := f.svc.Login(context.Background(), "BOB@example.com", testutil.DefaultPassword)

	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, int64(24*60*60), result.ExpiresIn)
	assert.Equal(t, user.ID, result.User.ID)
	assert.NotNil(t, result.User.LastLogin)

	claims, err := testutil.TestJWTService().Verify(result.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestAuthService_Login_Failures(t *testing.T) {
	f := setupAuthService(t)
	f.fixtures.CreateUser(t, testutil.WithEmail("active@example.com"))
	f.fixtures.CreateUser(t, testutil.WithEmail("inactive@example.com"), testutil.Inactive())
	f.fixtures.CreateUser(t, testutil.WithEmail("google@example.com"), testutil.WithGoogle("g-1"))

	testCases := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"unknown email", "nobody@example.com", testutil.DefaultPassword, services.ErrInvalidCredentials},
		{"wrong password", "active@example.com", "wrong-password", services.ErrInvalidCredentials},
		{"deactivated before password check", "inactive@example.com", "wrong-password", services.ErrAccountDeactivated},
		{"account without password", "google@example.com", testutil.DefaultPassword, services.ErrInvalidCredentials},
		{"missing fields", "", "", services.ErrValidation},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := f.svc.Login(context.Background(), tc.email, tc.password)

			assert.Nil(t, result)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAuthService_GoogleSignIn_CreatesUser(t *testing.T) {
	f := setupAuthService(t)

	result, err := f.svc.GoogleSignIn(context.Background(), services.GoogleInput{
		Email:     "gina@example.com",
		GoogleID:  "google-1",
		FirstName: "Gina",
	})

	require.NoError(t, err)
	assert.Equal(t, "gina", result.User.Username)
	assert.Equal(t, models.ProviderGoogle, result.User.AuthProvider)
	assert.False(t, result.User.HasPassword())
	f.drain()
	assert.Equal(t, []string{events.UserRegistered, events.UserLoggedIn}, f.publisher.Types())
}

func TestAuthService_GoogleSignIn_InvalidEmail(t *testing.T) {
	f := setupAuthService(t)

	for _, email := range []string{"not-an-email", "@example.com", "gina@"} {
		t.Run(email, func(t *testing.T) {
			_, err := f.svc.GoogleSignIn(context.Background(), services.GoogleInput{
				Email:    email,
				GoogleID: "g-1",
			})

			require.ErrorIs(t, err, services.ErrValidation)
			assert.Equal(t, "please enter a valid email", services.ValidationMessage(err))
		})
	}

	users, err := f.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestAuthService_GoogleSignIn_UsernameCollision(t *testing.T) {
	f := setupAuthService(t)
	f.fixtures.CreateUser(t, testutil.WithUsername("gina"))

	result, err := f.svc.GoogleSignIn(context.Background(), services.GoogleInput{
		Email:    "gina@example.com",
		GoogleID: "google-1",
	})

	require.NoError(t, err)
	assert.NotEqual(t, "gina", result.User.Username)
	assert.Contains(t, result.User.Username, "gina_")
}

func TestAuthService_GoogleSignIn_LinksExistingLocalAccount(t *testing.T) {
	f := setupAuthService(t)
	existing := f.fixtures.CreateUser(t, testutil.WithEmail("dual@example.com"))

	result, err := f.svc.GoogleSignIn(context.Background(), services.GoogleInput{
		Email:    "dual@example.com",
		GoogleID: "google-7",
	})

	require.NoError(t, err)
	assert.Equal(t, existing.ID, result.User.ID)
	require.NotNil(t, result.User.GoogleID)
	assert.Equal(t, "google-7", *result.User.GoogleID)
	assert.Equal(t, models.ProviderLocal, result.User.AuthProvider)
	assert.True(t, result.User.HasPassword())

	// The linked account is now federated, so its password can no longer be changed here.
	err = f.svc.ChangePassword(context.Background(), result.User, testutil.DefaultPassword, "another1")
	assert.ErrorIs(t, err, services.ErrFederatedAccount)

	f.drain()
	assert.Equal(t, []string{events.UserGoogleLinked, events.UserLoggedIn}, f.publisher.Types())
}

func TestAuthService_GoogleSignIn_DeactivatedAndValidation(t *testing.T) {
	f := setupAuthService(t)
	f.fixtures.CreateUser(t, testutil.WithEmail("off@example.com"), testutil.WithGoogle("g-off"), testutil.Inactive())

	_, err := f.svc.GoogleSignIn(context.Background(), services.GoogleInput{Email: "off@example.com", GoogleID: "g-off"})
	assert.ErrorIs(t, err, services.ErrAccountDeactivated)

	_, err = f.svc.GoogleSignIn(context.Background(), services.GoogleInput{Email: "x@example.com"})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestAuthService_UpdateProfile_IgnoresUsernameAndKeepsHash(t *testing.T) {
	f := setupAuthService(t)
	user := f.fixtures.CreateUser(t, testutil.WithUsername("carol"))
	hashBefore := f.store.PasswordHash(user.ID)

	newName := "Caroline"
	newUsername := "carol-renamed"
	updated, err := f.svc.UpdateProfile(context.Background(), user, services.ProfileInput{
		Username:  &newUsername,
		FirstName: &newName,
	})

	require.NoError(t, err)
	assert.Equal(t, "Caroline", updated.FirstName)
	assert.Equal(t, "carol", updated.Username)
	assert.Equal(t, hashBefore, f.store.PasswordHash(user.ID))

	_, err = f.svc.Login(context.Background(), user.Email, testutil.DefaultPassword)
	assert.NoError(t, err)
}

func TestAuthService_UpdateProfile_BlankFieldsKeepValues(t *testing.T) {
	f := setupAuthService(t)
	user := f.fixtures.CreateUser(t)

	blank := "  "
	updated, err := f.svc.UpdateProfile(context.Background(), user, services.ProfileInput{
		FirstName: &blank,
		Email:     &blank,
	})

	require.NoError(t, err)
	assert.Equal(t, user.FirstName, updated.FirstName)
	assert.Equal(t, user.Email, updated.Email)
}

func TestAuthService_UpdateProfile_EmailTaken(t *testing.T) {
	f := setupAuthService(t)
	f.fixtures.CreateUser(t, testutil.WithEmail("taken@example.com"))
	user := f.fixtures.CreateUser(t)

	email := "taken@example.com"
	_, err := f.svc.UpdateProfile(context.Background(), user, services.ProfileInput{Email: &email})

	assert.ErrorIs(t, err, services.ErrEmailTaken)
	assert.ErrorIs(t, err, services.ErrDuplicateUser)
}

func TestAuthService_UpdateSuperAdminProfile_Username(t *testing.T) {
	f := setupAuthService(t)
	f.fixtures.CreateUser(t, testutil.WithUsername("taken"))
	admin := f.fixtures.CreateUser(t, testutil.WithRole(models.RoleSuperAdmin), testutil.WithUsername("root"))

	taken := "taken"
	_, err := f.svc.UpdateSuperAdminProfile(context.Background(), admin, services.ProfileInput{Username: &taken})
	assert.ErrorIs(t, err, services.ErrUsernameTaken)

	fresh := "chief"
	updated, err := f.svc.UpdateSuperAdminProfile(context.Background(), admin, services.ProfileInput{Username: &fresh})
	require.NoError(t, err)
	assert.Equal(t, "chief", updated.Username)
}

func TestAuthService_ChangePassword(t *testing.T) {
	f := setupAuthService(t)
	user := f.fixtures.CreateUser(t)

	err := f.svc.ChangePassword(context.Background(), user, testutil.DefaultPassword, "brand-new")
	require.NoError(t, err)

	_, err = f.svc.Login(context.Background(), user.Email, testutil.DefaultPassword)
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	_, err = f.svc.Login(context.Background(), user.Email, "brand-new")
	assert.NoError(t, err)
}

func TestAuthService_ChangePassword_Rules(t *testing.T) {
	f := setupAuthService(t)
	local := f.fixtures.CreateUser(t)
	google := f.fixtures.CreateUser(t, testutil.WithGoogle("g-2"))

	assert.ErrorIs(t, f.svc.ChangePassword(context.Background(), google, "", "whatever1"), services.ErrFederatedAccount)
	assert.ErrorIs(t, f.svc.ChangePassword(context.Background(), local, "", "whatever1"), services.ErrValidation)
	assert.ErrorIs(t, f.svc.ChangePassword(context.Background(), local, testutil.DefaultPassword, "short"), services.ErrValidation)
	assert.ErrorIs(t, f.svc.ChangePassword(context.Background(), local, "not-current", "whatever1"), services.ErrInvalidCurrentPassword)
}

func TestAuthService_CreateAdmin(t *testing.T) {
	f := setupAuthService(t)
	root := f.fixtures.CreateUser(t, testutil.WithRole(models.RoleSuperAdmin))
	f.mailer.On("SendAdminWelcome", "alice@example.com", "Alice Smith").Return(nil)

	admin, err := f.svc.CreateAdmin(context.Background(), root, validRegistration())

	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	f.drain()
	f.mailer.AssertExpectations(t)
}

func TestAuthService_CreateAdmin_MailFailureIsNotFatal(t *testing.T) {
	f := setupAuthService(t)
	root := f.fixtures.CreateUser(t, testutil.WithRole(models.RoleSuperAdmin))
	f.mailer.On("SendAdminWelcome", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	_, err := f.svc.CreateAdmin(context.Background(), root, validRegistration())

	assert.NoError(t, err)
	f.drain()
	f.mailer.AssertExpectations(t)
}

func TestAuthService_ChangeRole(t *testing.T) {
	f := setupAuthService(t)
	root := f.fixtures.CreateUser(t, testutil.WithRole(models.RoleSuperAdmin))
	target := f.fixtures.CreateUser(t)

	updated, err := f.svc.ChangeRole(context.Background(), root, target.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, updated.Role)

	_, err = f.svc.ChangeRole(context.Background(), root, target.ID, "owner")
	assert.ErrorIs(t, err, services.ErrInvalidRole)

	_, err = f.svc.ChangeRole(context.Background(), root, uuid.New(), "admin")
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}

func TestAuthService_ChangeRole_LastSuperAdmin(t *testing.T) {
	f := setupAuthService(t)
	root := f.fixtures.CreateUser(t, testutil.WithRole(models.RoleSuperAdmin))

	_, err := f.svc.ChangeRole(context.Background(), root, root.ID, "user")
	assert.ErrorIs(t, err, services.ErrLastSuperAdmin)

	second := f.fixtures.CreateUser(t, testutil.WithRole(models.RoleSuperAdmin))
	updated, err := f.svc.ChangeRole(context.Background(), root, second.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, updated.Role)
}

func TestAuthService_SetStatus(t *testing.T) {
	f := setupAuthService(t)
	admin := f.fixtures.CreateUser(t, testutil.WithRole(models.RoleAdmin))
	root := f.fixtures.CreateUser(t, testutil.WithRole(models.RoleSuperAdmin))
	target := f.fixtures.CreateUser(t)
	f.mailer.On("SendStatusChanged", target.Email, mock.Anything, false).Return(nil).Once()

	updated, err := f.svc.SetStatus(context.Background(), admin, target.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	_, err = f.svc.SetStatus(context.Background(), admin, root.ID, false)
	assert.ErrorIs(t, err, services.ErrCannotModifySuperAdmin)

	_, err = f.svc.Login(context.Background(), target.Email, testutil.DefaultPassword)
	assert.ErrorIs(t, err, services.ErrAccountDeactivated)
	f.drain()
	f.mailer.AssertExpectations(t)
}

func TestAuthService_DeleteUser(t *testing.T) {
	f := setupAuthService(t)
	root := f.fixtures.CreateUser(t, testutil.WithRole(models.RoleSuperAdmin))
	otherRoot := f.fixtures.CreateUser(t, testutil.WithRole(models.RoleSuperAdmin))
	target := f.fixtures.CreateUser(t)

	_, err := f.svc.DeleteUser(context.Background(), root, root.ID)
	assert.ErrorIs(t, err, services.ErrCannotDeleteSelf)

	_, err = f.svc.DeleteUser(context.Background(), root, otherRoot.ID)
	assert.ErrorIs(t, err, services.ErrCannotDeleteSuperAdmin)

	deleted, err := f.svc.DeleteUser(context.Background(), root, target.ID)
	require.NoError(t, err)
	assert.Equal(t, target.ID, deleted.ID)

	_, err = f.store.GetByID(context.Background(), target.ID)
	assert.ErrorIs(t, err, services.ErrUserNotFound)

	_, err = f.svc.DeleteUser(context.Background(), root, target.ID)
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}

func TestAuthService_BootstrapSuperAdmin(t *testing.T) {
	f := setupAuthService(t)
	seed := services.SuperAdminSeed{Username: "root", Email: "root@example.com", Password: "rootpass"}

	created, err := f.svc.BootstrapSuperAdmin(context.Background(), seed)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.svc.BootstrapSuperAdmin(context.Background(), services.SuperAdminSeed{
		Username: "root2", Email: "root2@example.com", Password: "rootpass",
	})
	require.NoError(t, err)
	assert.False(t, created)

	count, err := f.store.CountByRole(context.Background(), models.RoleSuperAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	result, err := f.svc.Login(context.Background(), "root@example.com", "rootpass")
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperAdmin, result.User.Role)
}

func TestAuthService_PublishFailureDoesNotFailRequest(t *testing.T) {
	store := testutil.NewMemoryUserStore()
	publisher := new(testutil.MockPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	svc := services.NewAuthService(store, testutil.TestPasswordHasher(), testutil.TestJWTService(), publisher, nil, nil)

	_, err := svc.Register(context.Background(), validRegistration())

	assert.NoError(t, err)
	svc.Close()
	publisher.AssertExpectations(t)
}

// stalledPublisher blocks every Publish until released or the context ends.
type stalledPublisher struct {
	release chan struct{}
}

func (p *stalledPublisher) Publish(ctx context.Context, _ events.Event) error {
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *stalledPublisher) Close() error { return nil }

// stalledMailer blocks every send until released.
type stalledMailer struct {
	release chan struct{}
}

func (m *stalledMailer) SendAdminWelcome(_, _ string) error {
	<-m.release
	return nil
}

func (m *stalledMailer) SendStatusChanged(_, _ string, _ bool) error {
	<-m.release
	return nil
}

func TestAuthService_StalledSideEffectsDoNotBlockRequests(t *testing.T) {
	store := testutil.NewMemoryUserStore()
	release := make(chan struct{})
	svc := services.NewAuthService(
		store,
		testutil.TestPasswordHasher(),
		testutil.TestJWTService(),
		&stalledPublisher{release: release},
		nil,
		&stalledMailer{release: release},
	)
	fixtures := testutil.NewFixtures(store)
	root := fixtures.CreateUser(t, testutil.WithRole(models.RoleSuperAdmin))
	target := fixtures.CreateUser(t)

	start := time.Now()

	_, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = svc.Login(context.Background(), target.Email, testutil.DefaultPassword)
		require.NoError(t, err)
	}
	admin := validRegistration()
	admin.Username, admin.Email = "ada", "ada@example.com"
	_, err = svc.CreateAdmin(context.Background(), root, admin)
	require.NoError(t, err)
	_, err = svc.SetStatus(context.Background(), root, target.ID, false)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)

	close(release)
	svc.Close()
}
