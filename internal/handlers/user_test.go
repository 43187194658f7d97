package handlers

import (
	"net/http"
	"testing"

	"github.com/dimitrije/vericheck-api/internal/middleware"
	"github.com/dimitrije/vericheck-api/internal/models"
	"github.com/dimitrije/vericheck-api/internal/services"
	"github.com/dimitrije/vericheck-api/internal/testutil"
	"github.com/dimitrije/vericheck-api/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
	driftmw "github.com/m1z23r/drift/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// withUser stands in for the Auth middleware.
func withUser(user *models.User) drift.HandlerFunc {
	return func(c *drift.Context) {
		if user != nil {
			c.Set(middleware.UserKey, user)
			c.Set(middleware.UserIDKey, user.ID)
		}
		c.Next()
	}
}

func setupUserTest(t *testing.T, user *models.User) (*testutil.MockAuthService, *testutil.HTTPTestClient) {
	t.Helper()
	mockAuth := new(testutil.MockAuthService)
	handler := NewUserHandler(mockAuth)

	app := drift.New()
	app.Use(driftmw.BodyParser())
	app.Use(withUser(user))
	app.Get("/auth/profile", handler.GetProfile)
	app.Put("/auth/profile", handler.UpdateProfile)
	app.Put("/auth/super-admin/profile", handler.UpdateSuperAdminProfile)
	app.Put("/auth/change-password", handler.ChangePassword)

	return mockAuth, testutil.NewHTTPTestClient(t, app)
}

func strPtr(s string) *string { return &s }

func TestUserHandler_GetProfile(t *testing.T) {
	user := newTestUser(models.RoleUser)
	_, client := setupUserTest(t, user)

	rec := client.GET("/auth/profile", nil)

	testutil.AssertStatus(t, rec, http.StatusOK)
	var response dto.UserEnvelope
	testutil.ParseJSON(t, rec, &response)
	assert.Equal(t, user.ID, response.User.ID)
	assert.Equal(t, "tester@example.com", response.User.Email)
}

func TestUserHandler_GetProfile_NoUser(t *testing.T) {
	_, client := setupUserTest(t, nil)

	rec := client.GET("/auth/profile", nil)

	testutil.AssertStatus(t, rec, http.StatusUnauthorized)
}

func TestUserHandler_UpdateProfile(t *testing.T) {
	user := newTestUser(models.RoleUser)
	mockAuth, client := setupUserTest(t, user)

	updated := *user
	updated.FirstName = "Changed"
	mockAuth.On("UpdateProfile", mock.Anything, user, services.ProfileInput{
		FirstName: strPtr("Changed"),
	}).Return(&updated, nil)

	rec := client.PUT("/auth/profile", dto.UpdateProfileRequest{FirstName: strPtr("Changed")}, nil)

	testutil.AssertStatus(t, rec, http.StatusOK)
	var response dto.UserMessageResponse
	testutil.ParseJSON(t, rec, &response)
	assert.Equal(t, "profile updated successfully", response.Message)
	assert.Equal(t, "Changed", response.User.FirstName)
	mockAuth.AssertExpectations(t)
}

func TestUserHandler_UpdateProfile_EmailTaken(t *testing.T) {
	user := newTestUser(models.RoleUser)
	mockAuth, client := setupUserTest(t, user)
	mockAuth.On("UpdateProfile", mock.Anything, user, mock.Anything).Return(nil, services.ErrEmailTaken)

	rec := client.PUT("/auth/profile", dto.UpdateProfileRequest{Email: strPtr("taken@example.com")}, nil)

	testutil.AssertStatus(t, rec, http.StatusBadRequest)
	var body errorBody
	testutil.ParseJSON(t, rec, &body)
	assert.Equal(t, "email already exists", body.Message)
}

func TestUserHandler_UpdateSuperAdminProfile(t *testing.T) {
	user := newTestUser(models.RoleSuperAdmin)
	mockAuth, client := setupUserTest(t, user)

	t.Run("username taken", func(t *testing.T) {
		mockAuth.On("UpdateSuperAdminProfile", mock.Anything, user, services.ProfileInput{Username: strPtr("taken")}).
			Return(nil, services.ErrUsernameTaken).Once()

		rec := client.PUT("/auth/super-admin/profile", dto.UpdateProfileRequest{Username: strPtr("taken")}, nil)

		testutil.AssertStatus(t, rec, http.StatusBadRequest)
		var body errorBody
		testutil.ParseJSON(t, rec, &body)
		assert.Equal(t, "username already exists", body.Message)
	})

	t.Run("success", func(t *testing.T) {
		updated := *user
		updated.Username = "chief"
		mockAuth.On("UpdateSuperAdminProfile", mock.Anything, user, services.ProfileInput{Username: strPtr("chief")}).
			Return(&updated, nil).Once()

		rec := client.PUT("/auth/super-admin/profile", dto.UpdateProfileRequest{Username: strPtr("chief")}, nil)

		testutil.AssertStatus(t, rec, http.StatusOK)
		var response dto.UserMessageResponse
		testutil.ParseJSON(t, rec, &response)
		assert.Equal(t, "super admin profile updated successfully", response.Message)
		assert.Equal(t, "chief", response.User.Username)
	})
}

func TestUserHandler_ChangePassword(t *testing.T) {
	testCases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"success", nil, http.StatusOK, "password changed successfully"},
		{"wrong current password", services.ErrInvalidCurrentPassword, http.StatusBadRequest, "current password is incorrect"},
		{"google account", services.ErrFederatedAccount, http.StatusBadRequest, services.ErrFederatedAccount.Error()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			user := newTestUser(models.RoleUser)
			mockAuth, client := setupUserTest(t, user)
			mockAuth.On("ChangePassword", mock.Anything, user, "old-secret", "new-secret").Return(tc.err)

			rec := client.PUT("/auth/change-password", dto.ChangePasswordRequest{
				CurrentPassword: "old-secret",
				NewPassword:     "new-secret",
			}, nil)

			testutil.AssertStatus(t, rec, tc.status)
			var body errorBody
			testutil.ParseJSON(t, rec, &body)
			assert.Equal(t, tc.message, body.Message)
		})
	}
}
