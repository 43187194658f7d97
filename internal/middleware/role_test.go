package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dimitrije/vericheck-api/internal/models"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/stretchr/testify/assert"
)

func asUser(user *models.User) drift.HandlerFunc {
	return func(c *drift.Context) {
		if user != nil {
			c.Set(UserKey, user)
			c.Set(UserIDKey, user.ID)
		}
		c.Next()
	}
}

func runGate(gate drift.HandlerFunc, user *models.User, path string) *httptest.ResponseRecorder {
	app := drift.New()
	app.Use(asUser(user))
	app.Get("/users/:userId", gate, func(c *drift.Context) {
		_ = c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRequireSuperAdmin(t *testing.T) {
	testCases := []struct {
		role   models.Role
		status int
	}{
		{models.RoleUser, http.StatusForbidden},
		{models.RoleAdmin, http.StatusForbidden},
		{models.RoleSuperAdmin, http.StatusOK},
		{models.Role("root"), http.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(string(tc.role), func(t *testing.T) {
			rec := runGate(RequireSuperAdmin(), activeUser(tc.role), "/users/x")

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusForbidden {
				assert.Contains(t, rec.Body.String(), "super admin access required")
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	testCases := []struct {
		role   models.Role
		status int
	}{
		{models.RoleUser, http.StatusForbidden},
		{models.RoleAdmin, http.StatusOK},
		{models.RoleSuperAdmin, http.StatusOK},
		{models.Role(""), http.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(string(tc.role), func(t *testing.T) {
			rec := runGate(RequireAdmin(), activeUser(tc.role), "/users/x")

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusForbidden {
				assert.Contains(t, rec.Body.String(), "admin access required")
			}
		})
	}
}

func TestRoleGates_WithoutUser(t *testing.T) {
	for name, gate := range map[string]drift.HandlerFunc{
		"super admin": RequireSuperAdmin(),
		"admin":       RequireAdmin(),
		"can access":  CanAccessUser("userId"),
	} {
		t.Run(name, func(t *testing.T) {
			rec := runGate(gate, nil, "/users/"+uuid.NewString())
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestCanAccessUser(t *testing.T) {
	user := activeUser(models.RoleUser)
	other := uuid.NewString()

	assert.Equal(t, http.StatusOK, runGate(CanAccessUser("userId"), user, "/users/"+user.ID.String()).Code)

	rec := runGate(CanAccessUser("userId"), user, "/users/"+other)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "access denied")

	assert.Equal(t, http.StatusForbidden, runGate(CanAccessUser("userId"), user, "/users/not-a-uuid").Code)

	assert.Equal(t, http.StatusOK, runGate(CanAccessUser("userId"), activeUser(models.RoleAdmin), "/users/"+other).Code)
	assert.Equal(t, http.StatusOK, runGate(CanAccessUser("userId"), activeUser(models.RoleSuperAdmin), "/users/"+other).Code)
}
